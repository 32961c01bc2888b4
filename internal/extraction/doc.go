// Package extraction turns loosely-structured evidence text into metric
// observations using a declarative rule table.
//
// The package supports:
//   - A versioned Rule Table mapping evidence categories to ordered
//     (pattern, metric, unit) extraction rules
//   - Pattern-based extraction from free text (TextExtractor)
//   - Column-header inference for CSV exports (TabularExtractor)
//   - Rule table overrides loaded from a TOML file
//
// # Architecture
//
// The main components are:
//   - RuleTable: immutable, compiled registry of ExtractionRule per Category
//   - TextExtractor: applies a category's rules once each against the text
//   - TabularExtractor: matches CSV headers against synonym sets
//   - Observation: a single normalized metric fact with a fixed confidence
//
// # Usage
//
// Extract observations from a utility bill:
//
//	x := extraction.NewTextExtractor(extraction.DefaultRuleTable(), time.Now)
//	obs := x.Extract("Electricity usage was 450 kWh this month", "electricity_consumption", extraction.CategoryUtilityBills)
//	for _, o := range obs {
//	    fmt.Printf("%s = %v %s (confidence %.2f)\n", o.Metric, o.Value, o.Unit, o.Confidence)
//	}
//
// # Confidence
//
// Confidence is a policy constant per source kind, not a computed score:
// manual entries are 1.0, tabular extraction 0.95, text patterns 0.7.
//
// # Rule Overrides
//
// LoadRuleFile reads a TOML document of the form:
//
//	version = "2024-06"
//
//	[[category.utilityBills]]
//	pattern = '(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*kwh'
//	metric  = "energy_consumption"
//	unit    = "kWh"
//
// Categories present in the file replace the defaults wholesale; others keep
// the built-in rules.
package extraction
