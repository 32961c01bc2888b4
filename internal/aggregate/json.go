package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
)

// Non-finite change values travel as these strings.
const (
	posInf = "Infinity"
	negInf = "-Infinity"
	nan    = "NaN"
)

// MarshalJSON encodes a non-finite Change as a string.
func (s MetricSeries) MarshalJSON() ([]byte, error) {
	type alias MetricSeries
	out := struct {
		alias
		Change any `json:"change"`
	}{alias: alias(s)}

	if s.Change != nil {
		switch c := *s.Change; {
		case math.IsInf(c, 1):
			out.Change = posInf
		case math.IsInf(c, -1):
			out.Change = negInf
		case math.IsNaN(c):
			out.Change = nan
		default:
			out.Change = c
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts Change as a number, null, or one of the
// non-finite strings.
func (s *MetricSeries) UnmarshalJSON(data []byte) error {
	type alias MetricSeries
	in := struct {
		*alias
		Change json.RawMessage `json:"change"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.Change = nil
	if len(in.Change) == 0 || string(in.Change) == "null" {
		return nil
	}

	var c float64
	if err := json.Unmarshal(in.Change, &c); err == nil {
		s.Change = &c
		return nil
	}

	var str string
	if err := json.Unmarshal(in.Change, &str); err != nil {
		return fmt.Errorf("invalid change: %s", in.Change)
	}
	switch str {
	case posInf:
		c = math.Inf(1)
	case negInf:
		c = math.Inf(-1)
	case nan:
		c = math.NaN()
	default:
		return fmt.Errorf("invalid change: %q", str)
	}
	s.Change = &c
	return nil
}
