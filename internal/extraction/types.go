package extraction

import (
	"errors"
	"time"
)

// Source identifies how an observation was produced.
type Source string

const (
	SourceManual Source = "manual"
	SourceText   Source = "text"
	SourceCSV    Source = "csv"
)

// Confidence policy per source kind.
const (
	ConfidenceManual  = 1.0
	ConfidenceText    = 0.7
	ConfidenceTabular = 0.95
)

// Category is an evidence category keying the rule table.
type Category string

const (
	CategoryUtilityBills    Category = "utilityBills"
	CategoryEmployeeData    Category = "employeeData"
	CategoryWasteManagement Category = "wasteManagement"

	// DefaultCategory is used for unknown categories.
	DefaultCategory = CategoryUtilityBills
)

// Categories returns the closed set of known categories.
func Categories() []Category {
	return []Category{CategoryUtilityBills, CategoryEmployeeData, CategoryWasteManagement}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryUtilityBills, CategoryEmployeeData, CategoryWasteManagement:
		return true
	}
	return false
}

// Common errors.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidRule     = errors.New("invalid extraction rule")
)

// Observation is a single normalized metric fact derived from evidence.
// Observations are values; nothing mutates them after creation.
type Observation struct {
	TaskID     string  `json:"taskId"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Source     Source  `json:"source"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

// Clock returns the current time. time.Now satisfies it.
type Clock func() time.Time

// formatTimestamp renders t as an ISO-8601 (RFC 3339) UTC string.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatTimestamp is the timestamp format shared by all observation producers.
func FormatTimestamp(t time.Time) string {
	return formatTimestamp(t)
}
