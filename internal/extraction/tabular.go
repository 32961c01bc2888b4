package extraction

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SynonymSet maps header keywords to a metric.
type SynonymSet struct {
	Metric   string
	Unit     string
	Synonyms []string
}

// matches reports whether the normalized header contains any synonym.
func (s SynonymSet) matches(header string) bool {
	for _, syn := range s.Synonyms {
		if strings.Contains(header, syn) {
			return true
		}
	}
	return false
}

// DefaultSynonymSets returns the header synonym sets in match order.
func DefaultSynonymSets() []SynonymSet {
	return []SynonymSet{
		{Metric: "energy_consumption", Unit: "kWh", Synonyms: []string{"energy", "kwh", "electricity", "power", "electric"}},
		{Metric: "water_usage", Unit: "L", Synonyms: []string{"water", "water usage", "water (l)", "liters", "gallons"}},
		{Metric: "waste_generated", Unit: "kg", Synonyms: []string{"waste", "waste (kg)", "waste generated", "garbage", "trash"}},
	}
}

// TabularExtractor infers metric columns from CSV headers.
//
// Columns are split on commas verbatim; quoted fields are not supported.
type TabularExtractor struct {
	sets []SynonymSet
	now  Clock
}

// NewTabularExtractor creates a tabular extractor using the default synonym
// sets. A nil clock uses time.Now.
func NewTabularExtractor(now Clock) *TabularExtractor {
	if now == nil {
		now = time.Now
	}
	return &TabularExtractor{sets: DefaultSynonymSets(), now: now}
}

// metricColumn binds a CSV column to one synonym set.
type metricColumn struct {
	index int
	set   SynonymSet
}

// Extract emits one observation per data row and matched column whose cell
// parses to a finite number. Input with fewer than two non-empty lines
// yields nothing.
func (x *TabularExtractor) Extract(csv, taskID string) []Observation {
	observations := []Observation{}

	lines := nonEmptyLines(csv)
	if len(lines) < 2 {
		return observations
	}

	// Casers are stateful; one per call.
	lower := cases.Lower(language.Und)
	headers := strings.Split(lines[0], ",")
	for i, h := range headers {
		headers[i] = lower.String(strings.TrimSpace(h))
	}

	var columns []metricColumn
	for i, h := range headers {
		for _, set := range x.sets {
			if set.matches(h) {
				columns = append(columns, metricColumn{index: i, set: set})
			}
		}
	}
	if len(columns) == 0 {
		return observations
	}

	isMetric := make(map[int]bool, len(columns))
	for _, col := range columns {
		isMetric[col.index] = true
	}
	timeCol := timestampColumn(headers, isMetric)
	now := formatTimestamp(x.now())

	for _, line := range lines[1:] {
		cells := strings.Split(line, ",")

		ts := now
		if timeCol >= 0 && timeCol < len(cells) {
			if v := strings.TrimSpace(cells[timeCol]); v != "" {
				ts = v
			}
		}

		for _, col := range columns {
			if col.index >= len(cells) {
				continue
			}
			v, ok := ParseNumber(cells[col.index])
			if !ok {
				continue
			}
			observations = append(observations, Observation{
				TaskID:     taskID,
				Metric:     col.set.Metric,
				Value:      v,
				Unit:       col.set.Unit,
				Source:     SourceCSV,
				Timestamp:  ts,
				Confidence: ConfidenceTabular,
			})
		}
	}

	return observations
}

// timestampColumn finds the column supplying row timestamps: an exact "date"
// or "time" header first, then any header containing either word. Metric
// columns never supply timestamps, so "Power Update Time" stays a metric.
// Returns -1 when there is none.
func timestampColumn(headers []string, isMetric map[int]bool) int {
	for i, h := range headers {
		if !isMetric[i] && (h == "date" || h == "time") {
			return i
		}
	}
	for i, h := range headers {
		if !isMetric[i] && (strings.Contains(h, "date") || strings.Contains(h, "time")) {
			return i
		}
	}
	return -1
}

// nonEmptyLines splits s into lines, dropping blank ones and trailing CRs.
func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
