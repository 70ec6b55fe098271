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

/*
Package report holds the findings model, the aggregator that merges checker
output into a deterministic report, and the text/JSON/SARIF writers.
*/
package report

import (
	"naive.systems/memcheck/mclib/severity"
)

// Related points at a secondary source position a finding involves, e.g.
// the first drop of a double free.
type Related struct {
	Path       string `json:"path"`
	LineNumber int32  `json:"line_number"`
	Column     int32  `json:"column"`
	Message    string `json:"message"`
}

// Finding is one reported instance of a suspected memory-safety defect.
// Checkers create findings; the aggregator treats them as immutable.
type Finding struct {
	Id           string         `json:"id,omitempty"`
	Ruleset      string         `json:"ruleset,omitempty"`
	RuleId       string         `json:"rule_id,omitempty"`
	Path         string         `json:"path"`
	LineNumber   int32          `json:"line_number"`
	Column       int32          `json:"column"`
	ErrorMessage string         `json:"error_message"`
	Severity     severity.Level `json:"severity"`
	Related      []*Related     `json:"related,omitempty"`
}

type FindingsList struct {
	Findings []*Finding `json:"findings"`
}

type findingBlood struct {
	ruleId       string
	path         string
	lineNumber   int32
	column       int32
	errorMessage string
}

// FindingsSet is an alternative to FindingsList. Add checks findingBlood to
// identify unique findings while preserving adding order.
type FindingsSet struct {
	// You can manipulate FindingsList beyond the limits.
	FindingsList
	stored map[findingBlood]struct{}
}

func NewFindingsSet() *FindingsSet {
	set := FindingsSet{}
	set.stored = make(map[findingBlood]struct{})
	return &set
}

func NewFindingsSetFromList(list *FindingsList) *FindingsSet {
	set := NewFindingsSet()
	set.AddList(list)
	return set
}

func (fs *FindingsSet) Add(f *Finding) {
	blood := findingBlood{
		ruleId:       f.RuleId,
		path:         f.Path,
		lineNumber:   f.LineNumber,
		column:       f.Column,
		errorMessage: f.ErrorMessage,
	}
	if _, reported := fs.stored[blood]; !reported {
		fs.stored[blood] = struct{}{}
		fs.Findings = append(fs.Findings, f)
	}
}

func (fs *FindingsSet) AddList(list *FindingsList) {
	for _, f := range list.Findings {
		fs.Add(f)
	}
}
