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
	"os"
	"path/filepath"
	"testing"
)

func TestMakeCheckRule(t *testing.T) {
	rule, err := MakeCheckRule("memsafety/use_after_free", `{"severity": "highest", "max-report-num": 10}`)
	if err != nil {
		t.Fatalf("MakeCheckRule failed: %v", err)
	}
	if rule.Name != "memsafety/use_after_free" {
		t.Errorf("unexpected rule name: %s", rule.Name)
	}
	if rule.JSONOptions.Severity == nil || *rule.JSONOptions.Severity != "highest" {
		t.Errorf("severity option not parsed: %+v", rule.JSONOptions)
	}
	if rule.JSONOptions.MaxReportNum == nil || *rule.JSONOptions.MaxReportNum != 10 {
		t.Errorf("max-report-num option not parsed: %+v", rule.JSONOptions)
	}
	if rule.JSONOptions.MaxPaths != nil {
		t.Errorf("unset option must stay nil: %+v", rule.JSONOptions)
	}
}

func TestMakeCheckRuleEmptyOptions(t *testing.T) {
	rule, err := MakeCheckRule("memsafety/double_free", "")
	if err != nil {
		t.Fatalf("MakeCheckRule failed: %v", err)
	}
	if rule.JSONOptions.Severity != nil || rule.JSONOptions.MaxPaths != nil {
		t.Errorf("empty options must leave every field unset: %+v", rule.JSONOptions)
	}
}

func TestMakeCheckRuleBadJSON(t *testing.T) {
	if _, err := MakeCheckRule("memsafety/double_free", "{severity"); err == nil {
		t.Error("expected an error for malformed JSON options")
	}
}

func TestParseRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check_rules.yaml")
	content := `rules:
  - name: memsafety/use_after_free
  - name: memsafety/data_race
    options:
      severity: highest
      max-paths: 16
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	rules, err := ParseRulesFile(path)
	if err != nil {
		t.Fatalf("ParseRulesFile failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("unexpected rule count, got: %d, expected: 2", len(rules))
	}
	if rules[0].Name != "memsafety/use_after_free" {
		t.Errorf("unexpected first rule: %s", rules[0].Name)
	}
	opts := rules[1].JSONOptions
	if opts.Severity == nil || *opts.Severity != "highest" {
		t.Errorf("severity option not parsed: %+v", opts)
	}
	if opts.MaxPaths == nil || *opts.MaxPaths != 16 {
		t.Errorf("max-paths option not parsed: %+v", opts)
	}
}

func TestParseRulesFileUnnamedRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check_rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - options:\n      severity: low\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseRulesFile(path); err == nil {
		t.Error("expected an error for a rule without a name")
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	if len(rules) != 5 {
		t.Fatalf("unexpected default rule count, got: %d, expected: 5", len(rules))
	}
	if rules[0].Name != "memsafety/use_after_free" {
		t.Errorf("unexpected first default rule: %s", rules[0].Name)
	}
}
