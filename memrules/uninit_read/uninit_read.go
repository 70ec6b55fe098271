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

package uninit_read

import (
	"fmt"

	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Analyze flags a Use of a binding declared without a value and not
// initialized by any earlier event on that control path.
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
	declared := make(map[*ownership.Binding]*ownership.Event)
	initialized := make(map[*ownership.Binding]bool)
	for _, ev := range path.Events {
		switch ev.Kind {
		case ownership.Declare:
			if ev.Init {
				initialized[ev.Binding] = true
			} else {
				declared[ev.Binding] = ev
				initialized[ev.Binding] = false
			}
		case ownership.Use:
			if initialized[ev.Binding] {
				continue
			}
			decl, known := declared[ev.Binding]
			if !known {
				continue
			}
			findings.Add(&report.Finding{
				Ruleset:    "memsafety",
				RuleId:     "uninit_read",
				Path:       pathOf(file, ev.Pos.File),
				LineNumber: ev.Pos.Line,
				Column:     ev.Pos.Column,
				ErrorMessage: fmt.Sprintf(
					"uninitialized memory read may exist\nused before initialization here, relative variable: %s",
					ev.Binding.Name),
				Related: []*report.Related{{
					Path:       pathOf(file, decl.Pos.File),
					LineNumber: decl.Pos.Line,
					Column:     decl.Pos.Column,
					Message:    fmt.Sprintf("declared without a value here, relative variable: %s", decl.Binding.Name),
				}},
			})
		}
	}
}

func pathOf(file, posFile string) string {
	if posFile != "" {
		return posFile
	}
	return file
}
