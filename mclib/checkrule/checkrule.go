/*
NaiveSystems MemCheck - A static memory safety analyzer for Rust crates
Copyright (C) 2023  Naive Systems Ltd.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package checkrule

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type CheckRule struct {
	Name        string
	JSONOptions JSONOption
}

// JSONOption carries the per-rule knobs. All fields are optional; pointers
// distinguish "unset" from a zero value.
type JSONOption struct {
	// Severity overrides the configured severity table for this rule.
	Severity *string `json:"severity,omitempty" yaml:"severity,omitempty"`
	// MaxPaths caps the per-function control paths this rule analyzes,
	// on top of the run-wide enumeration limit.
	MaxPaths *int `json:"max-paths,omitempty" yaml:"max-paths,omitempty"`
	// MaxReportNum truncates this rule's findings. Zero or unset means
	// unlimited.
	MaxReportNum *int `json:"max-report-num,omitempty" yaml:"max-report-num,omitempty"`
}

// MakeCheckRule builds one rule from its name and a JSON options string
// (possibly empty).
func MakeCheckRule(name string, jsonOptions string) (*CheckRule, error) {
	checkRule := &CheckRule{Name: name}
	if strings.TrimSpace(jsonOptions) != "" {
		if err := json.Unmarshal([]byte(jsonOptions), &checkRule.JSONOptions); err != nil {
			return nil, fmt.Errorf("rule %s: %v", name, err)
		}
	}
	return checkRule, nil
}

type yamlRule struct {
	Name    string     `yaml:"name"`
	Options JSONOption `yaml:"options,omitempty"`
}

type yamlConfig struct {
	Rules []yamlRule `yaml:"rules"`
}

// ParseRulesFile reads the YAML rule configuration. An empty rules list
// means "run every rule of the memsafety ruleset".
func ParseRulesFile(path string) ([]CheckRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %v", err)
	}
	config := yamlConfig{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %v", path, err)
	}
	rules := make([]CheckRule, 0, len(config.Rules))
	for _, raw := range config.Rules {
		if raw.Name == "" {
			return nil, fmt.Errorf("rules file %s: rule without a name", path)
		}
		rules = append(rules, CheckRule{Name: raw.Name, JSONOptions: raw.Options})
	}
	return rules, nil
}

// DefaultRules is the full memsafety ruleset in its canonical order.
func DefaultRules() []CheckRule {
	names := []string{
		"memsafety/use_after_free",
		"memsafety/double_free",
		"memsafety/dangling_reference",
		"memsafety/uninit_read",
		"memsafety/data_race",
	}
	rules := make([]CheckRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, CheckRule{Name: name})
	}
	return rules
}
