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

package double_free

import (
	"fmt"

	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Analyze flags two Drops of the same binding on one path with no
// re-initializing Declare in between. Later drops pair with the most recent
// earlier one.
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
	lastDrop := make(map[*ownership.Binding]*ownership.Event)
	for _, ev := range path.Events {
		switch ev.Kind {
		case ownership.Declare:
			delete(lastDrop, ev.Binding)
		case ownership.Drop:
			first, dropped := lastDrop[ev.Binding]
			lastDrop[ev.Binding] = ev
			if !dropped {
				continue
			}
			findings.Add(&report.Finding{
				Ruleset:    "memsafety",
				RuleId:     "double_free",
				Path:       pathOf(file, ev),
				LineNumber: ev.Pos.Line,
				Column:     ev.Pos.Column,
				ErrorMessage: fmt.Sprintf(
					"double free memory bug may exist\nthen drop here, relative variable: %s",
					ev.Binding.Name),
				Related: []*report.Related{{
					Path:       pathOf(file, first),
					LineNumber: first.Pos.Line,
					Column:     first.Pos.Column,
					Message:    fmt.Sprintf("first drop here, relative variable: %s", first.Binding.Name),
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
