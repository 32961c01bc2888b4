package extraction

import (
	"fmt"
	"regexp"
	"sync"
)

// DefaultRuleVersion identifies the built-in rule set.
const DefaultRuleVersion = "builtin-1"

// number matches integers and decimals with optional thousands separators.
const number = `(\d+(?:,\d{3})*(?:\.\d+)?)`

// ExtractionRule maps a text pattern to a metric. The pattern must contain
// one capture group holding the numeric value.
type ExtractionRule struct {
	Pattern string  `json:"pattern" toml:"pattern"`
	Metric  string  `json:"metric" toml:"metric"`
	Unit    string  `json:"unit" toml:"unit"`
	Scale   float64 `json:"scale,omitempty" toml:"scale"` // 0 means 1
}

// compiledRule holds a pre-compiled rule pattern.
type compiledRule struct {
	ExtractionRule
	regex *regexp.Regexp
}

// scale returns the multiplier applied to parsed values.
func (r *compiledRule) scale() float64 {
	if r.Scale == 0 {
		return 1
	}
	return r.Scale
}

// RuleTable is an immutable registry of ordered extraction rules per category.
// It is safe for concurrent use.
type RuleTable struct {
	version string
	rules   map[Category][]*compiledRule
}

// NewRuleTable compiles rules into a table. Rule order within a category is
// preserved: for a given metric the first rule that yields a value wins.
func NewRuleTable(version string, rules map[Category][]ExtractionRule) (*RuleTable, error) {
	t := &RuleTable{
		version: version,
		rules:   make(map[Category][]*compiledRule, len(rules)),
	}
	for category, list := range rules {
		if !category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		compiled := make([]*compiledRule, 0, len(list))
		for i, r := range list {
			cr, err := compileRule(r)
			if err != nil {
				return nil, fmt.Errorf("%s rule %d: %w", category, i, err)
			}
			compiled = append(compiled, cr)
		}
		t.rules[category] = compiled
	}
	return t, nil
}

func compileRule(r ExtractionRule) (*compiledRule, error) {
	if r.Metric == "" {
		return nil, fmt.Errorf("%w: metric is required", ErrInvalidRule)
	}
	if r.Scale < 0 {
		return nil, fmt.Errorf("%w: scale must be >= 0, got %v", ErrInvalidRule, r.Scale)
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: pattern %q has no capture group", ErrInvalidRule, r.Pattern)
	}
	return &compiledRule{ExtractionRule: r, regex: re}, nil
}

// Version returns the rule set version.
func (t *RuleTable) Version() string {
	return t.version
}

// RulesFor returns a copy of the ordered rules for category. Unknown
// categories fall back to DefaultCategory.
func (t *RuleTable) RulesFor(category Category) []ExtractionRule {
	compiled := t.compiledFor(category)
	out := make([]ExtractionRule, len(compiled))
	for i, r := range compiled {
		out[i] = r.ExtractionRule
	}
	return out
}

func (t *RuleTable) compiledFor(category Category) []*compiledRule {
	if !category.Valid() {
		category = DefaultCategory
	}
	return t.rules[category]
}

// withOverrides returns a new table in which the given categories replace
// the receiver's.
func (t *RuleTable) withOverrides(version string, overrides map[Category][]ExtractionRule) (*RuleTable, error) {
	o, err := NewRuleTable(version, overrides)
	if err != nil {
		return nil, err
	}
	merged := &RuleTable{
		version: version,
		rules:   make(map[Category][]*compiledRule, len(t.rules)+len(o.rules)),
	}
	for c, rs := range t.rules {
		merged.rules[c] = rs
	}
	for c, rs := range o.rules {
		merged.rules[c] = rs
	}
	return merged, nil
}

var (
	defaultTable     *RuleTable
	defaultTableOnce sync.Once
)

// DefaultRuleTable returns the compiled built-in rule table.
func DefaultRuleTable() *RuleTable {
	defaultTableOnce.Do(func() {
		t, err := NewRuleTable(DefaultRuleVersion, DefaultRules())
		if err != nil {
			panic(fmt.Sprintf("extraction: invalid built-in rules: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// DefaultRules returns a fresh copy of the built-in rules.
func DefaultRules() map[Category][]ExtractionRule {
	return map[Category][]ExtractionRule{
		CategoryUtilityBills: {
			{Pattern: `(?i)` + number + `\s*(?:kwh|kilowatt[\s-]?hours?)\b`, Metric: "energy_consumption", Unit: "kWh"},
			{Pattern: `(?i)` + number + `\s*(?:mwh|megawatt[\s-]?hours?)\b`, Metric: "energy_consumption", Unit: "kWh", Scale: 1000},
			{Pattern: `(?i)` + number + `\s*(?:liters?|litres?|l)\b`, Metric: "water_usage", Unit: "L"},
			{Pattern: `(?i)` + number + `\s*(?:m3|m³|cubic\s+met(?:er|re)s?)`, Metric: "water_usage", Unit: "L", Scale: 1000},
			{Pattern: `(?i)` + number + `\s*(?:tco2e?|tons?\s+(?:of\s+)?co2e?)\b`, Metric: "carbon_emissions", Unit: "tCO2e"},
			{Pattern: `(?i)(?:total\s+amount|amount\s+due|total)\s*[:=]?\s*(?:aed|usd|eur|gbp|\$)?\s*` + number, Metric: "utility_cost", Unit: "AED"},
		},
		CategoryEmployeeData: {
			{Pattern: `(?i)(?:total\s+)?(?:employees?|staff|workforce|headcount)\s*[:=]\s*(\d+(?:,\d{3})*)`, Metric: "total_employees", Unit: "employees"},
			{Pattern: `(?i)(\d+(?:,\d{3})*)\s+(?:full[\s-]time\s+)?(?:employees|staff\s+members)\b`, Metric: "total_employees", Unit: "employees"},
			{Pattern: `(?i)training\s+hours?\s*[:=]?\s*` + number, Metric: "training_hours", Unit: "hours"},
			{Pattern: `(?i)` + number + `\s*hours?\s+of\s+training\b`, Metric: "training_hours", Unit: "hours"},
			{Pattern: `(?i)(\d+)\s+(?:safety\s+|lost[\s-]time\s+)?incidents?\b`, Metric: "safety_incidents", Unit: "incidents"},
			{Pattern: `(?i)satisfaction[^\d%]{0,40}?(\d+(?:\.\d+)?)\s*%`, Metric: "employee_satisfaction", Unit: "%"},
		},
		CategoryWasteManagement: {
			{Pattern: `(?i)` + number + `\s*(?:kg|kilograms?)\b`, Metric: "waste_generated", Unit: "kg"},
			{Pattern: `(?i)` + number + `\s*(?:metric\s+)?(?:tons?|tonnes?)\b`, Metric: "waste_generated", Unit: "kg", Scale: 1000},
			{Pattern: `(?i)recycl\w*[^\d%]{0,40}?(\d+(?:\.\d+)?)\s*%`, Metric: "recycling_rate", Unit: "%"},
		},
	}
}
