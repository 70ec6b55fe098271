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

package data_race

import (
	"fmt"

	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Analyze flags an exclusive borrow taken while another borrow of the same
// binding is still live on the same path (or any borrow taken across a live
// exclusive one). Aliased mutable access is the static proxy for a data
// race on shared mutable state.
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
	active := make(map[*ownership.Binding][]*ownership.Event)
	for _, ev := range path.Events {
		switch ev.Kind {
		case ownership.BorrowShared, ownership.BorrowExclusive:
			// A returned borrow leaves the function; nothing in this
			// path can race with it.
			if ev.Ref == nil {
				continue
			}
			if conflict := findConflict(active[ev.Binding], ev); conflict != nil {
				findings.Add(newFinding(file, ev, conflict))
			}
			active[ev.Binding] = append(active[ev.Binding], ev)
		case ownership.ReleaseBorrow:
			live := active[ev.Binding]
			for i, borrow := range live {
				if borrow.Ref == ev.Ref {
					active[ev.Binding] = append(live[:i:i], live[i+1:]...)
					break
				}
			}
		}
	}
}

func findConflict(live []*ownership.Event, incoming *ownership.Event) *ownership.Event {
	for i := len(live) - 1; i >= 0; i-- {
		if incoming.Kind == ownership.BorrowExclusive || live[i].Kind == ownership.BorrowExclusive {
			return live[i]
		}
	}
	return nil
}

func newFinding(file string, ev, conflict *ownership.Event) *report.Finding {
	return &report.Finding{
		Ruleset:    "memsafety",
		RuleId:     "data_race",
		Path:       pathOf(file, ev.Pos.File),
		LineNumber: ev.Pos.Line,
		Column:     ev.Pos.Column,
		ErrorMessage: fmt.Sprintf(
			"data race on shared mutable state may exist\nconflicting borrow here, relative variable: %s",
			ev.Binding.Name),
		Related: []*report.Related{{
			Path:       pathOf(file, conflict.Pos.File),
			LineNumber: conflict.Pos.Line,
			Column:     conflict.Pos.Column,
			Message:    fmt.Sprintf("existing borrow here, relative variable: %s", conflict.Binding.Name),
		}},
	}
}

func pathOf(file, posFile string) string {
	if posFile != "" {
		return posFile
	}
	return file
}
