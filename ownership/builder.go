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

package ownership

import (
	"fmt"

	"github.com/golang/glog"
	"naive.systems/memcheck/ir"
)

// DefaultMaxPaths caps per-function path enumeration. Beyond the cap the
// remaining paths are discarded, FunctionGraph.Truncated is set, and the
// analysis of the modeled paths proceeds normally.
const DefaultMaxPaths = 64

type Builder struct {
	MaxPaths int
}

// Build constructs the ownership graph of a unit with default limits. It is
// a pure function of the IR.
func Build(unit *ir.Unit) (*Graph, error) {
	b := &Builder{MaxPaths: DefaultMaxPaths}
	return b.Build(unit)
}

func (b *Builder) Build(unit *ir.Unit) (*Graph, error) {
	maxPaths := b.MaxPaths
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	graph := &Graph{File: unit.File}
	for _, function := range unit.Functions {
		fb := &funcBuilder{
			name:     function.Name,
			maxPaths: maxPaths,
		}
		fn, err := fb.build(function)
		if err != nil {
			return nil, err
		}
		graph.Functions = append(graph.Functions, fn)
	}
	if err := graph.Verify(); err != nil {
		return nil, err
	}
	return graph, nil
}

type bindState int8

const (
	stUninit bindState = iota
	stOwned
	stMoved
	stDropped
)

// pathState is the builder's working view of one control path. Only the
// builder mutates it; the finished graph exposes immutable Paths.
type pathState struct {
	id       PathID
	events   []*Event
	states   map[*Binding]bindState
	returned bool
}

func (ps *pathState) fork(id PathID) *pathState {
	clone := &pathState{
		id:       id,
		events:   append([]*Event(nil), ps.events...),
		states:   make(map[*Binding]bindState, len(ps.states)),
		returned: ps.returned,
	}
	for b, st := range ps.states {
		clone.states[b] = st
	}
	return clone
}

type funcBuilder struct {
	name      string
	maxPaths  int
	fn        *FunctionGraph
	nextScope int32
	nextPath  PathID
	seq       int32
	truncated bool
}

func (fb *funcBuilder) build(function *ir.Function) (*FunctionGraph, error) {
	fb.fn = &FunctionGraph{Name: function.Name}
	first := &pathState{id: fb.newPathID(), states: make(map[*Binding]bindState)}
	paths, err := fb.walkBlock(function.Body, nil, []*pathState{first}, function.Pos)
	if err != nil {
		return nil, err
	}
	for _, ps := range paths {
		fb.fn.Paths = append(fb.fn.Paths, &Path{ID: ps.id, Events: ps.events})
	}
	fb.fn.Truncated = fb.truncated
	return fb.fn, nil
}

func (fb *funcBuilder) newScope(parent *Scope) *Scope {
	scope := &Scope{
		ID:     fb.nextScope,
		Parent: parent,
		names:  make(map[string]*Binding),
	}
	if parent != nil {
		scope.Depth = parent.Depth + 1
	}
	fb.nextScope++
	if fb.fn.Root == nil {
		fb.fn.Root = scope
	}
	return scope
}

func (fb *funcBuilder) newPathID() PathID {
	id := fb.nextPath
	fb.nextPath++
	return id
}

// emit records one event on every live path. All paths share the sequence
// number of the statement that produced the event.
func (fb *funcBuilder) emit(paths []*pathState, ev Event) {
	ev.Seq = fb.seq
	fb.seq++
	for _, ps := range paths {
		if ps.returned {
			continue
		}
		copied := ev
		ps.events = append(ps.events, &copied)
	}
}

func (fb *funcBuilder) undeclared(name string, pos ir.Pos) error {
	return fmt.Errorf("%w: function %s references undeclared binding %q at %s",
		ir.ErrMalformedInput, fb.name, name, pos)
}

func (fb *funcBuilder) walkBlock(block *ir.Block, parent *Scope, paths []*pathState, blockPos ir.Pos) ([]*pathState, error) {
	scope := fb.newScope(parent)
	endPos := blockPos
	var err error
	for _, stmt := range block.Stmts {
		endPos = stmt.Pos
		switch stmt.Kind {
		case ir.StmtLet:
			err = fb.walkLet(scope, paths, stmt)
		case ir.StmtAssign:
			err = fb.walkAssign(scope, paths, stmt)
		case ir.StmtDrop:
			err = fb.walkDrop(scope, paths, stmt)
		case ir.StmtUse:
			err = fb.walkUse(scope, paths, stmt)
		case ir.StmtBranch:
			paths, err = fb.walkBranch(scope, paths, stmt)
		case ir.StmtBlock:
			paths, err = fb.walkBlock(stmt.Body, scope, paths, stmt.Pos)
		case ir.StmtReturn:
			err = fb.walkReturn(scope, paths, stmt)
		default:
			err = fmt.Errorf("%w: function %s has unknown statement kind %q at %s",
				ir.ErrMalformedInput, fb.name, stmt.Kind, stmt.Pos)
		}
		if err != nil {
			return nil, err
		}
	}
	fb.closeScope(scope, paths, endPos)
	return paths, nil
}

// walkExpr records the events the evaluation of expr causes on its source
// binding and returns that binding (nil for literals). ref is the binding
// the expression result is stored into, if any.
func (fb *funcBuilder) walkExpr(scope *Scope, paths []*pathState, expr *ir.Expr, ref *Binding, destScope *Scope, pos ir.Pos) (*Binding, error) {
	if expr == nil || expr.Kind == ir.ExprLit {
		return nil, nil
	}
	source := scope.lookup(expr.Target)
	if source == nil {
		return nil, fb.undeclared(expr.Target, pos)
	}
	switch expr.Kind {
	case ir.ExprCopy:
		fb.emit(paths, Event{Kind: Use, Binding: source, Pos: pos})
	case ir.ExprMove:
		fb.emit(paths, Event{Kind: Move, Binding: source, Pos: pos})
		for _, ps := range paths {
			if !ps.returned {
				ps.states[source] = stMoved
			}
		}
	case ir.ExprBorrow:
		kind := BorrowShared
		if expr.Mut {
			kind = BorrowExclusive
		}
		fb.emit(paths, Event{Kind: kind, Binding: source, Ref: ref, DestScope: destScope, Pos: pos})
	}
	return source, nil
}

func (fb *funcBuilder) walkLet(scope *Scope, paths []*pathState, stmt *ir.Stmt) error {
	binding := &Binding{Name: stmt.Name, Scope: scope, DeclPos: stmt.Pos}
	if stmt.Init != nil && stmt.Init.Kind == ir.ExprBorrow {
		binding.Exclusive = stmt.Init.Mut
	}
	source, err := fb.walkExpr(scope, paths, stmt.Init, binding, scope, stmt.Pos)
	if err != nil {
		return err
	}
	if stmt.Init != nil && stmt.Init.Kind == ir.ExprBorrow {
		binding.BorrowOf = source
	}
	scope.names[stmt.Name] = binding
	scope.Bindings = append(scope.Bindings, binding)
	fb.fn.Bindings = append(fb.fn.Bindings, binding)
	fb.emit(paths, Event{Kind: Declare, Binding: binding, Init: stmt.Init != nil, Pos: stmt.Pos})
	st := stUninit
	if stmt.Init != nil {
		st = stOwned
	}
	for _, ps := range paths {
		if !ps.returned {
			ps.states[binding] = st
		}
	}
	return nil
}

func (fb *funcBuilder) walkAssign(scope *Scope, paths []*pathState, stmt *ir.Stmt) error {
	target := scope.lookup(stmt.Lhs)
	if target == nil {
		return fb.undeclared(stmt.Lhs, stmt.Pos)
	}
	// Reassignment ends whatever borrow the target currently holds, so the
	// scope-end release never points at a stale binding.
	if target.BorrowOf != nil {
		fb.emit(paths, Event{
			Kind:      ReleaseBorrow,
			Binding:   target.BorrowOf,
			Ref:       target,
			DestScope: target.Scope,
			Implicit:  true,
			Pos:       stmt.Pos,
		})
		target.BorrowOf = nil
		target.Exclusive = false
	}
	borrow := stmt.Rhs != nil && stmt.Rhs.Kind == ir.ExprBorrow
	if borrow {
		target.Exclusive = stmt.Rhs.Mut
	}
	source, err := fb.walkExpr(scope, paths, stmt.Rhs, target, target.Scope, stmt.Pos)
	if err != nil {
		return err
	}
	if borrow {
		target.BorrowOf = source
	}
	// Assignment re-initializes the target: a fresh Declare restarts the
	// binding's move/drop accounting on every live path.
	fb.emit(paths, Event{Kind: Declare, Binding: target, Init: true, Pos: stmt.Pos})
	for _, ps := range paths {
		if !ps.returned {
			ps.states[target] = stOwned
		}
	}
	return nil
}

func (fb *funcBuilder) walkDrop(scope *Scope, paths []*pathState, stmt *ir.Stmt) error {
	binding := scope.lookup(stmt.Name)
	if binding == nil {
		return fb.undeclared(stmt.Name, stmt.Pos)
	}
	fb.emit(paths, Event{Kind: Drop, Binding: binding, Pos: stmt.Pos})
	for _, ps := range paths {
		if !ps.returned {
			ps.states[binding] = stDropped
		}
	}
	return nil
}

func (fb *funcBuilder) walkUse(scope *Scope, paths []*pathState, stmt *ir.Stmt) error {
	binding := scope.lookup(stmt.Name)
	if binding == nil {
		return fb.undeclared(stmt.Name, stmt.Pos)
	}
	fb.emit(paths, Event{Kind: Use, Binding: binding, Pos: stmt.Pos})
	return nil
}

func (fb *funcBuilder) walkBranch(scope *Scope, paths []*pathState, stmt *ir.Stmt) ([]*pathState, error) {
	// Later arms must fork from the pre-branch states, before the first
	// arm's walk mutates them.
	armSets := make([][]*pathState, len(stmt.Arms))
	armSets[0] = paths
	for i := 1; i < len(stmt.Arms); i++ {
		set := make([]*pathState, 0, len(paths))
		for _, ps := range paths {
			set = append(set, ps.fork(fb.newPathID()))
		}
		armSets[i] = set
	}
	merged := make([]*pathState, 0, len(paths)*len(stmt.Arms))
	for i, arm := range stmt.Arms {
		armPaths, err := fb.walkBlock(arm, scope, armSets[i], stmt.Pos)
		if err != nil {
			return nil, err
		}
		merged = append(merged, armPaths...)
		if len(merged) >= fb.maxPaths && i < len(stmt.Arms)-1 {
			if !fb.truncated {
				glog.Warningf("function %s at %s exceeds %d control paths, remaining arms are not modeled",
					fb.name, stmt.Pos, fb.maxPaths)
			}
			fb.truncated = true
			break
		}
	}
	if len(merged) > fb.maxPaths {
		if !fb.truncated {
			glog.Warningf("function %s at %s exceeds %d control paths, remaining arms are not modeled",
				fb.name, stmt.Pos, fb.maxPaths)
		}
		fb.truncated = true
		merged = merged[:fb.maxPaths]
	}
	return merged, nil
}

func (fb *funcBuilder) walkReturn(scope *Scope, paths []*pathState, stmt *ir.Stmt) error {
	// A returned borrow has no destination scope inside the function.
	if _, err := fb.walkExpr(scope, paths, stmt.Value, nil, nil, stmt.Pos); err != nil {
		return err
	}
	for _, ps := range paths {
		ps.returned = true
	}
	return nil
}

// closeScope ends the lexical region: still-owned bindings drop in reverse
// declaration order, and references declared here release their borrows.
// Early-returned paths get the same treatment; their locals die at the
// return, which this approximates at the scope end position.
func (fb *funcBuilder) closeScope(scope *Scope, paths []*pathState, endPos ir.Pos) {
	for i := len(scope.Bindings) - 1; i >= 0; i-- {
		binding := scope.Bindings[i]
		if binding.BorrowOf != nil {
			fb.seq++
			for _, ps := range paths {
				if ps.states[binding] == stOwned {
					ps.events = append(ps.events, &Event{
						Kind:      ReleaseBorrow,
						Binding:   binding.BorrowOf,
						Ref:       binding,
						Pos:       endPos,
						Seq:       fb.seq - 1,
						Implicit:  true,
						DestScope: scope,
					})
					ps.states[binding] = stDropped
				}
			}
			// Dropping a reference never frees the referent.
			continue
		}
		fb.seq++
		for _, ps := range paths {
			if ps.states[binding] == stOwned {
				ps.events = append(ps.events, &Event{
					Kind:     Drop,
					Binding:  binding,
					Pos:      endPos,
					Seq:      fb.seq - 1,
					Implicit: true,
				})
				ps.states[binding] = stDropped
			}
		}
	}
}
