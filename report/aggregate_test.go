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

package report

import (
	"errors"
	"testing"

	"naive.systems/memcheck/mclib/severity"
)

func TestAggregateDeduplicates(t *testing.T) {
	a := &FindingsList{Findings: []*Finding{
		{Ruleset: "memsafety", RuleId: "use_after_free", Path: "src/lib.rs", LineNumber: 4, Column: 5, ErrorMessage: "m"},
	}}
	b := &FindingsList{Findings: []*Finding{
		{Ruleset: "memsafety", RuleId: "use_after_free", Path: "src/lib.rs", LineNumber: 4, Column: 5, ErrorMessage: "m"},
		{Ruleset: "memsafety", RuleId: "double_free", Path: "src/lib.rs", LineNumber: 4, Column: 5, ErrorMessage: "n"},
	}}
	r := NewAggregator(severity.DefaultTable()).Aggregate(a, b)
	if len(r.Findings) != 2 {
		t.Fatalf("unexpected finding count, got: %d, expected: 2", len(r.Findings))
	}
}

func TestAggregateKeepsDistinctRelatedLocations(t *testing.T) {
	// Same rule and primary location, different related locations: both
	// findings are real.
	a := &FindingsList{Findings: []*Finding{
		{Ruleset: "memsafety", RuleId: "double_free", Path: "src/lib.rs", LineNumber: 9, Column: 5,
			Related: []*Related{{Path: "src/lib.rs", LineNumber: 3, Column: 5}}},
		{Ruleset: "memsafety", RuleId: "double_free", Path: "src/lib.rs", LineNumber: 9, Column: 5,
			Related: []*Related{{Path: "src/lib.rs", LineNumber: 6, Column: 5}}},
	}}
	r := NewAggregator(severity.DefaultTable()).Aggregate(a)
	if len(r.Findings) != 2 {
		t.Fatalf("unexpected finding count, got: %d, expected: 2", len(r.Findings))
	}
}

func TestAggregateSortsDeterministically(t *testing.T) {
	list := &FindingsList{Findings: []*Finding{
		{RuleId: "use_after_free", Path: "src/b.rs", LineNumber: 1, Column: 1},
		{RuleId: "use_after_free", Path: "src/a.rs", LineNumber: 9, Column: 1},
		{RuleId: "use_after_free", Path: "src/a.rs", LineNumber: 2, Column: 7},
		{RuleId: "double_free", Path: "src/a.rs", LineNumber: 2, Column: 7},
	}}
	r := NewAggregator(severity.DefaultTable()).Aggregate(list)
	expected := []struct {
		path   string
		line   int32
		ruleId string
	}{
		{"src/a.rs", 2, "double_free"},
		{"src/a.rs", 2, "use_after_free"},
		{"src/a.rs", 9, "use_after_free"},
		{"src/b.rs", 1, "use_after_free"},
	}
	for i, want := range expected {
		got := r.Findings[i]
		if got.Path != want.path || got.LineNumber != want.line || got.RuleId != want.ruleId {
			t.Errorf("position %d: got %s:%d %s, expected %s:%d %s",
				i, got.Path, got.LineNumber, got.RuleId, want.path, want.line, want.ruleId)
		}
	}
}

func TestAggregateAssignsSeverityAndID(t *testing.T) {
	list := &FindingsList{Findings: []*Finding{
		{Ruleset: "memsafety", RuleId: "use_after_free", Path: "src/a.rs", LineNumber: 1},
		{Ruleset: "memsafety", RuleId: "uninit_read", Path: "src/a.rs", LineNumber: 2},
	}}
	r := NewAggregator(severity.DefaultTable()).Aggregate(list)
	for _, f := range r.Findings {
		if f.Id == "" {
			t.Errorf("finding %s/%s has no id", f.Ruleset, f.RuleId)
		}
	}
	if r.Findings[0].Severity != severity.High {
		t.Errorf("use_after_free severity is %v, expected High", r.Findings[0].Severity)
	}
	if r.Findings[1].Severity != severity.Medium {
		t.Errorf("uninit_read severity is %v, expected Medium", r.Findings[1].Severity)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	r := NewAggregator(severity.DefaultTable()).Aggregate()
	if r == nil {
		t.Fatal("empty input must still produce a report")
	}
	if len(r.Findings) != 0 {
		t.Errorf("unexpected findings in an empty report: %d", len(r.Findings))
	}
	r = NewAggregator(severity.DefaultTable()).Aggregate(nil, &FindingsList{})
	if len(r.Findings) != 0 {
		t.Errorf("unexpected findings in an empty report: %d", len(r.Findings))
	}
}

func TestAddUnitError(t *testing.T) {
	r := &Report{}
	r.AddUnitError("src/broken.rs", errors.New("malformed front-end IR"))
	if len(r.UnitErrors) != 1 {
		t.Fatalf("unexpected unit error count, got: %d, expected: 1", len(r.UnitErrors))
	}
	if r.UnitErrors[0].File != "src/broken.rs" {
		t.Errorf("unexpected unit error file: %s", r.UnitErrors[0].File)
	}
}
