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

package use_after_free

import (
	"fmt"

	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Analyze flags every Use of a binding whose most recent event on the same
// path is a Drop or a Move with no re-initializing Declare in between. The
// graph is read-only; a defect is reported if it holds on any one path.
func Analyze(graph *ownership.Graph) *report.FindingsList {
	findings := report.NewFindingsSet()
	for _, fn := range graph.Functions {
		for _, path := range fn.Paths {
			scanPath(graph.File, path, findings)
		}
	}
	return &findings.FindingsList
}

func scanPath(file string, path *ownership.Path, findings *report.FindingsSet) {
	invalidated := make(map[*ownership.Binding]*ownership.Event)
	for _, ev := range path.Events {
		switch ev.Kind {
		case ownership.Declare:
			delete(invalidated, ev.Binding)
		case ownership.Drop, ownership.Move:
			if _, gone := invalidated[ev.Binding]; !gone {
				invalidated[ev.Binding] = ev
			}
		case ownership.Use:
			killer, gone := invalidated[ev.Binding]
			if !gone {
				continue
			}
			killerNote := "first drop here"
			if killer.Kind == ownership.Move {
				killerNote = "moved out here"
			}
			findings.Add(&report.Finding{
				Ruleset:    "memsafety",
				RuleId:     "use_after_free",
				Path:       pathOf(file, ev),
				LineNumber: ev.Pos.Line,
				Column:     ev.Pos.Column,
				ErrorMessage: fmt.Sprintf(
					"use after free memory bug may exist\nthen use here, relative variable: %s",
					ev.Binding.Name),
				Related: []*report.Related{{
					Path:       pathOf(file, killer),
					LineNumber: killer.Pos.Line,
					Column:     killer.Pos.Column,
					Message:    fmt.Sprintf("%s, relative variable: %s", killerNote, killer.Binding.Name),
				}},
			})
		}
	}
}

func pathOf(file string, ev *ownership.Event) string {
	if ev.Pos.File != "" {
		return ev.Pos.File
	}
	return file
}
