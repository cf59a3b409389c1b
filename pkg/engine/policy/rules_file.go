package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the on-disk shape of an operator-authored triage rules
// file: a flat "rules:" list of DynamicRule.
type rulesFile struct {
	Rules []DynamicRule `yaml:"rules"`
}

// LoadRulesFile reads a YAML triage rules file (a top-level "rules:"
// list) into a []DynamicRule ready for CELEngine.Compile.
func LoadRulesFile(path string) ([]DynamicRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triage rules file: %w", err)
	}

	var parsed rulesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse triage rules yaml: %w", err)
	}
	return parsed.Rules, nil
}
