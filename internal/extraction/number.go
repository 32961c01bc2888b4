package extraction

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber parses a captured numeric string such as "1,200.50".
// Thousands separators and surrounding whitespace are ignored. Non-finite
// results are rejected.
func ParseNumber(s string) (float64, bool) {
	clean := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
