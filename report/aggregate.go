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
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"naive.systems/memcheck/mclib/severity"
)

// UnitError records a compilation unit whose analysis failed. It rides in
// the report next to the findings of the units that succeeded.
type UnitError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// Report is the ordered, deduplicated output of one analysis run.
type Report struct {
	Findings   []*Finding   `json:"findings"`
	UnitErrors []*UnitError `json:"unit_errors,omitempty"`
}

// Aggregator merges checker findings into a Report. The severity table is
// fixed at construction; there is no global severity state.
type Aggregator struct {
	table severity.Table
}

func NewAggregator(table severity.Table) *Aggregator {
	return &Aggregator{table: table}
}

// Aggregate deduplicates exact (rule, location set) pairs, assigns
// severities from the table, and orders findings by path, line, column and
// rule. It never fails; no input yields an empty report.
func (a *Aggregator) Aggregate(lists ...*FindingsList) *Report {
	report := &Report{Findings: []*Finding{}}
	seen := make(map[string]struct{})
	for _, list := range lists {
		if list == nil {
			continue
		}
		for _, f := range list.Findings {
			key := dedupKey(f)
			if _, reported := seen[key]; reported {
				continue
			}
			seen[key] = struct{}{}
			if f.Severity == severity.Unknown {
				f.Severity = a.table.Of(f.Ruleset + "/" + f.RuleId)
			}
			report.Findings = append(report.Findings, f)
		}
	}
	SortFindings(report.Findings)
	AddID(report.Findings)
	return report
}

// AddUnitError appends a per-unit failure. One unit's failure never blocks
// the others' findings.
func (r *Report) AddUnitError(file string, err error) {
	r.UnitErrors = append(r.UnitErrors, &UnitError{File: file, Message: err.Error()})
}

// dedupKey identifies a finding by rule and its full location set. Findings
// of different kinds at the same location are all kept.
func dedupKey(f *Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s|%s:%d:%d", f.Ruleset, f.RuleId, f.Path, f.LineNumber, f.Column)
	for _, rel := range f.Related {
		fmt.Fprintf(&sb, "|%s:%d:%d", rel.Path, rel.LineNumber, rel.Column)
	}
	return sb.String()
}

// SortFindings orders findings by path, then line, then column, then rule,
// so repeated runs emit identical reports.
func SortFindings(findings []*Finding) {
	slices.SortStableFunc(findings, func(a, b *Finding) int {
		if a.Path != b.Path {
			return strings.Compare(a.Path, b.Path)
		}
		if a.LineNumber != b.LineNumber {
			return int(a.LineNumber - b.LineNumber)
		}
		if a.Column != b.Column {
			return int(a.Column - b.Column)
		}
		return strings.Compare(a.RuleId, b.RuleId)
	})
}

// AddID assigns a fresh UUID to every finding that has none yet.
func AddID(findings []*Finding) {
	for _, f := range findings {
		if f.Id != "" {
			continue
		}
		id, err := uuid.NewRandom()
		if err != nil {
			glog.Errorf("failed to generate finding id: %v", err)
			continue
		}
		f.Id = id.String()
	}
}
