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

// Package testcase is the fixture helper for rule tests driven by testdata
// directories. A case directory holds unit.mcir.json, the IR of one unit,
// and expected.json, the findings the rule must produce on it.
package testcase

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"naive.systems/memcheck/ir"
	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

type TestCase struct {
	t      *testing.T
	Srcdir string
}

func New(t *testing.T, dirname string) TestCase {
	srcdir, err := filepath.Abs(dirname)
	if err != nil {
		t.Fatalf("filepath.Abs(%s): %v", dirname, err)
	}
	return TestCase{t, srcdir}
}

// Analyze builds the case's ownership graph and runs one rule on it.
func (tc *TestCase) Analyze(analyze func(graph *ownership.Graph) *report.FindingsList) *report.FindingsList {
	path := filepath.Join(tc.Srcdir, "unit.mcir.json")
	unit, err := ir.LoadUnit(path)
	if err != nil {
		tc.t.Fatalf("ir.LoadUnit(%s): %v", path, err)
	}
	graph, err := ownership.Build(unit)
	if err != nil {
		tc.t.Fatalf("ownership.Build: %v", err)
	}
	return analyze(graph)
}

func (tc *TestCase) expectedEquals(actual *report.FindingsList) bool {
	path := filepath.Join(tc.Srcdir, "expected.json")
	bytes, err := os.ReadFile(path)
	if err != nil {
		tc.t.Fatalf("os.ReadFile(%s): %v", path, err)
	}
	expected := &report.FindingsList{}
	if err := json.Unmarshal(bytes, expected); err != nil {
		tc.t.Fatalf("json.Unmarshal(%s): %v", path, err)
	}
	// Compare the stable fields only: the message headline, not the
	// position notes after the first newline.
	cleaned := &report.FindingsList{}
	for _, f := range actual.Findings {
		headline, _, _ := strings.Cut(f.ErrorMessage, "\n")
		cleaned.Findings = append(cleaned.Findings, &report.Finding{
			RuleId:       f.RuleId,
			Path:         f.Path,
			LineNumber:   f.LineNumber,
			Column:       f.Column,
			ErrorMessage: headline,
		})
	}
	if len(expected.Findings) == 0 && len(cleaned.Findings) == 0 {
		return true
	}
	return reflect.DeepEqual(expected, cleaned)
}

func (tc *TestCase) dumpJSON(list *report.FindingsList) {
	bytes, err := json.MarshalIndent(list, "", "  ")
	if err == nil {
		tc.t.Log(string(bytes))
	} else {
		tc.t.Errorf("json.MarshalIndent: %v", err)
	}
}

// ExpectOK asserts the rule produced exactly the expected findings.
func (tc *TestCase) ExpectOK(actual *report.FindingsList) {
	if !tc.expectedEquals(actual) {
		tc.dumpJSON(actual)
		tc.t.Fatal("checker is expected to be OK")
	}
}

// ExpectFailure asserts the rule did not produce the expected findings.
func (tc *TestCase) ExpectFailure(actual *report.FindingsList) {
	if tc.expectedEquals(actual) {
		tc.dumpJSON(actual)
		tc.t.Fatal("checker is expected to fail")
	}
}
