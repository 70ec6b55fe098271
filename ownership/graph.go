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
Package ownership builds the analyzer's model of one compilation unit: every
binding, its lexical scope, and the ordered lifecycle events it goes through
on each control path. The graph is immutable once Build returns; checkers are
concurrent readers.
*/
package ownership

import (
	"errors"
	"fmt"

	"naive.systems/memcheck/ir"
)

// ErrInvariantViolation marks a broken ownership graph invariant. It always
// indicates a builder bug and is never recovered from silently.
var ErrInvariantViolation = errors.New("internal invariant violation")

type EventKind int32

const (
	Declare EventKind = iota
	Move
	BorrowShared
	BorrowExclusive
	ReleaseBorrow
	Drop
	Use
)

func (k EventKind) String() string {
	switch k {
	case Declare:
		return "Declare"
	case Move:
		return "Move"
	case BorrowShared:
		return "BorrowShared"
	case BorrowExclusive:
		return "BorrowExclusive"
	case ReleaseBorrow:
		return "ReleaseBorrow"
	case Drop:
		return "Drop"
	case Use:
		return "Use"
	}
	return fmt.Sprintf("EventKind(%d)", int32(k))
}

type PathID int32

// Scope is one lexical region. Parent is nil only for a function's root
// scope. Nesting forms a tree; Depth is the distance from the root.
type Scope struct {
	ID       int32
	Parent   *Scope
	Depth    int32
	Bindings []*Binding
	names    map[string]*Binding
}

// Encloses reports whether other is s itself or lexically nested inside s.
func (s *Scope) Encloses(other *Scope) bool {
	for cur := other; cur != nil; cur = cur.Parent {
		if cur == s {
			return true
		}
	}
	return false
}

// lookup resolves name through the scope chain, innermost first.
func (s *Scope) lookup(name string) *Binding {
	for cur := s; cur != nil; cur = cur.Parent {
		if b, ok := cur.names[name]; ok {
			return b
		}
	}
	return nil
}

// Binding is one named memory location. A second let of the same name
// shadows the first with a fresh Binding.
type Binding struct {
	Name    string
	Scope   *Scope
	DeclPos ir.Pos
	// BorrowOf is set when this binding holds a reference produced by a
	// borrow expression; it names the borrowed-from binding.
	BorrowOf  *Binding
	Exclusive bool
}

// Event is one recorded lifecycle transition. Events are immutable once
// recorded and totally ordered within a path by Seq.
type Event struct {
	Kind    EventKind
	Binding *Binding
	Pos     ir.Pos
	Seq     int32
	// Implicit marks compiler-inserted events: end-of-scope drops and
	// borrow releases.
	Implicit bool
	// Init distinguishes `let x = v` from `let x;` on Declare events.
	Init bool
	// Ref is the reference binding on BorrowShared, BorrowExclusive and
	// ReleaseBorrow events; Binding is then the borrowed-from binding.
	// Ref is nil for a borrow that is returned rather than bound.
	Ref *Binding
	// DestScope is the scope the reference lives in, for borrow events.
	// nil means the borrow escapes the function (returned reference).
	DestScope *Scope
}

// Path is one enumerated control path through a function. Branch arms fork
// paths; a finding that holds on any path is reported.
type Path struct {
	ID     PathID
	Events []*Event
}

// FunctionGraph holds the ownership model of a single function.
type FunctionGraph struct {
	Name     string
	Root     *Scope
	Bindings []*Binding
	Paths    []*Path
	// Truncated is set when path enumeration hit the configured cap and
	// some control paths were not modeled.
	Truncated bool
}

// Graph is the ownership model of one compilation unit.
type Graph struct {
	File      string
	Functions []*FunctionGraph
}

// Verify checks the structural invariants of the graph: the scope relation
// is a tree and every path is totally ordered by event sequence. A failure
// wraps ErrInvariantViolation.
func (g *Graph) Verify() error {
	for _, fn := range g.Functions {
		for _, b := range fn.Bindings {
			if b.Scope == nil {
				return fmt.Errorf("%w: binding %s in %s has no scope", ErrInvariantViolation, b.Name, fn.Name)
			}
			if !fn.Root.Encloses(b.Scope) {
				return fmt.Errorf("%w: binding %s in %s lives outside the function root scope", ErrInvariantViolation, b.Name, fn.Name)
			}
		}
		for _, path := range fn.Paths {
			prev := int32(-1)
			for _, ev := range path.Events {
				if ev.Binding == nil {
					return fmt.Errorf("%w: event without a binding in %s path %d", ErrInvariantViolation, fn.Name, path.ID)
				}
				if ev.Seq <= prev {
					return fmt.Errorf("%w: events out of order in %s path %d (seq %d after %d)", ErrInvariantViolation, fn.Name, path.ID, ev.Seq, prev)
				}
				prev = ev.Seq
			}
		}
		// The scope tree is acyclic iff every chain terminates at the root.
		for _, b := range fn.Bindings {
			steps := 0
			for cur := b.Scope; cur != nil; cur = cur.Parent {
				steps++
				if steps > 1<<16 {
					return fmt.Errorf("%w: scope parentage cycle in %s", ErrInvariantViolation, fn.Name)
				}
			}
		}
	}
	return nil
}
