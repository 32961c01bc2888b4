package extraction

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ruleFile is the on-disk shape of a rule override document.
type ruleFile struct {
	Version  string                      `toml:"version"`
	Category map[string][]ExtractionRule `toml:"category"`
}

// LoadRuleFile reads rule overrides from a TOML file and layers them over
// the built-in table.
func LoadRuleFile(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return ParseRules(string(data))
}

// ParseRules parses a TOML rule document and layers it over the built-in
// table. Categories named in the document replace the defaults.
func ParseRules(doc string) (*RuleTable, error) {
	var rf ruleFile
	md, err := toml.Decode(doc, &rf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in rule file: %v", undecoded)
	}

	overrides := make(map[Category][]ExtractionRule, len(rf.Category))
	for name, rules := range rf.Category {
		overrides[Category(name)] = rules
	}

	version := rf.Version
	if version == "" {
		version = DefaultRuleVersion + "+overrides"
	}
	return DefaultRuleTable().withOverrides(version, overrides)
}
