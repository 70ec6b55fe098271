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

package dangling_reference

import (
	"fmt"

	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Analyze flags borrows whose destination scope is not nested within (or
// equal to) the scope of the borrowed binding: the reference outlives its
// referent. A borrow handed out through return escapes every scope of the
// function and is always flagged.
func Analyze(graph *ownership.Graph) *report.FindingsList {
	findings := report.NewFindingsSet()
	for _, fn := range graph.Functions {
		for _, path := range fn.Paths {
			for _, ev := range path.Events {
				if ev.Kind != ownership.BorrowShared && ev.Kind != ownership.BorrowExclusive {
					continue
				}
				if ev.DestScope != nil && ev.Binding.Scope.Encloses(ev.DestScope) {
					continue
				}
				findings.Add(newFinding(graph.File, ev))
			}
		}
	}
	return &findings.FindingsList
}

func newFinding(file string, ev *ownership.Event) *report.Finding {
	owner := ev.Binding
	escape := "stored here"
	if ev.DestScope == nil {
		escape = "returned here"
	}
	pos := ev.Pos
	path := pos.File
	if path == "" {
		path = file
	}
	ownerPath := owner.DeclPos.File
	if ownerPath == "" {
		ownerPath = file
	}
	return &report.Finding{
		Ruleset:    "memsafety",
		RuleId:     "dangling_reference",
		Path:       path,
		LineNumber: pos.Line,
		Column:     pos.Column,
		ErrorMessage: fmt.Sprintf(
			"dangling reference memory bug may exist\nborrow of %s escapes its lifetime, %s",
			owner.Name, escape),
		Related: []*report.Related{{
			Path:       ownerPath,
			LineNumber: owner.DeclPos.Line,
			Column:     owner.DeclPos.Column,
			Message:    fmt.Sprintf("borrowed value declared here, relative variable: %s", owner.Name),
		}},
	}
}
