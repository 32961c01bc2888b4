package extraction

import "time"

// TextExtractor applies a category's rules to unstructured text.
type TextExtractor struct {
	rules *RuleTable
	now   Clock
}

// NewTextExtractor creates a text extractor. A nil table uses the built-in
// rules and a nil clock uses time.Now.
func NewTextExtractor(rules *RuleTable, now Clock) *TextExtractor {
	if rules == nil {
		rules = DefaultRuleTable()
	}
	if now == nil {
		now = time.Now
	}
	return &TextExtractor{rules: rules, now: now}
}

// Extract runs every rule for category once against text and returns one
// observation per rule that captured a parseable number. Rules for a metric
// that an earlier rule already produced are skipped. Captures that do not
// parse are dropped silently.
func (x *TextExtractor) Extract(text, taskID string, category Category) []Observation {
	observations := []Observation{}
	if text == "" {
		return observations
	}

	ts := formatTimestamp(x.now())
	claimed := make(map[string]bool)

	for _, r := range x.rules.compiledFor(category) {
		if claimed[r.Metric] {
			continue
		}
		m := r.regex.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := ParseNumber(m[1])
		if !ok {
			continue
		}
		claimed[r.Metric] = true
		observations = append(observations, Observation{
			TaskID:     taskID,
			Metric:     r.Metric,
			Value:      v * r.scale(),
			Unit:       r.Unit,
			Source:     SourceText,
			Timestamp:  ts,
			Confidence: ConfidenceText,
		})
	}

	return observations
}
