package router

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mnemo/internal/model"
)

// RuleFile is the YAML document accepted by the administrative rule import.
//
//	rules:
//	  - name: task_prefix
//	    pattern: "^(TODO|TASK)"
//	    priority: 100
//	    target: tasks
//	    entry_type: task
type RuleFile struct {
	Rules []fileRule `yaml:"rules"`
}

// fileRule mirrors model.Rule but lets `active` default to true when omitted.
type fileRule struct {
	Name        string          `yaml:"name"`
	Pattern     string          `yaml:"pattern"`
	Priority    int             `yaml:"priority"`
	Target      model.Category  `yaml:"target"`
	EntryType   model.EntryType `yaml:"entry_type"`
	Active      *bool           `yaml:"active,omitempty"`
	Description string          `yaml:"description,omitempty"`
}

// LoadRulesFile reads and validates a YAML rule file.
func LoadRulesFile(path string) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document. Positions follow
// document order so ties in priority keep the order they were written in.
func ParseRules(data []byte) ([]model.Rule, error) {
	var doc RuleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, model.NewValidationError("rules", fmt.Sprintf("invalid rules YAML: %v", err))
	}

	seen := make(map[string]bool, len(doc.Rules))
	rules := make([]model.Rule, 0, len(doc.Rules))
	for i, fr := range doc.Rules {
		active := true
		if fr.Active != nil {
			active = *fr.Active
		}
		rule := model.Rule{
			Name:        strings.TrimSpace(fr.Name),
			Pattern:     fr.Pattern,
			Priority:    fr.Priority,
			Target:      fr.Target,
			EntryType:   fr.EntryType,
			Active:      active,
			Description: fr.Description,
			Position:    int64(i + 1),
		}
		if err := ValidateRule(rule); err != nil {
			return nil, err
		}
		if seen[rule.Name] {
			return nil, model.NewValidationError("name", fmt.Sprintf("duplicate rule name %q", rule.Name))
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

// ValidateRule checks a rule before it is written by the administrative path.
func ValidateRule(rule model.Rule) error {
	if rule.Name == "" {
		return model.NewValidationError("name", "rule name is required")
	}
	if !rule.Target.IsValid() {
		return model.NewValidationError("target", fmt.Sprintf("rule %q: unknown target %q", rule.Name, rule.Target))
	}
	if !rule.EntryType.IsValid() {
		return model.NewValidationError("entry_type", fmt.Sprintf("rule %q: unknown entry type %q", rule.Name, rule.EntryType))
	}
	if err := Validate(rule.Pattern); err != nil {
		return model.NewValidationError("pattern", fmt.Sprintf("rule %q: %v", rule.Name, err))
	}
	return nil
}
