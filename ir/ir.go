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
Package ir defines the intermediate representation of one compilation unit
as produced by the external front-end. The analyzer core only ever consumes
this form; it never reads Rust source directly.
*/
package ir

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks front-end input the analyzer cannot accept. It is
// fatal to the unit that carries it, never to the whole run.
var ErrMalformedInput = errors.New("malformed front-end IR")

type StmtKind string

const (
	StmtLet    StmtKind = "let"
	StmtAssign StmtKind = "assign"
	StmtDrop   StmtKind = "drop"
	StmtUse    StmtKind = "use"
	StmtBranch StmtKind = "branch"
	StmtBlock  StmtKind = "block"
	StmtReturn StmtKind = "return"
)

type ExprKind string

const (
	// ExprLit is a constant; it touches no binding.
	ExprLit ExprKind = "lit"
	// ExprCopy reads a binding without consuming it.
	ExprCopy ExprKind = "copy"
	// ExprMove consumes the source binding.
	ExprMove ExprKind = "move"
	// ExprBorrow takes a reference to the source binding. Mut selects
	// between & and &mut.
	ExprBorrow ExprKind = "borrow"
)

// Pos is a source position inside the analyzed crate. Line and Column are
// 1-based; the front-end guarantees both are set for every statement.
type Pos struct {
	File   string `json:"file"`
	Line   int32  `json:"line"`
	Column int32  `json:"column"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Unit is the IR of one compilation unit.
type Unit struct {
	File      string      `json:"file"`
	Functions []*Function `json:"functions"`
}

type Function struct {
	Name string `json:"name"`
	Body *Block `json:"body"`
	Pos  Pos    `json:"pos"`
}

// Block is a lexical scope. Statement order follows source order.
type Block struct {
	Stmts []*Stmt `json:"stmts"`
}

// Stmt is one IR statement. Which fields are meaningful depends on Kind:
//
//	let    Name, Init (nil means declared uninitialized)
//	assign Lhs, Rhs
//	drop   Name (explicit drop, e.g. drop(x) or a free through FFI)
//	use    Name (a read, call argument, or dereference)
//	branch Arms (each arm is an independent control path)
//	block  Body (a nested lexical scope)
//	return Value (may be nil)
type Stmt struct {
	Kind  StmtKind `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Init  *Expr    `json:"init,omitempty"`
	Lhs   string   `json:"lhs,omitempty"`
	Rhs   *Expr    `json:"rhs,omitempty"`
	Arms  []*Block `json:"arms,omitempty"`
	Body  *Block   `json:"body,omitempty"`
	Value *Expr    `json:"value,omitempty"`
	Pos   Pos      `json:"pos"`
}

type Expr struct {
	Kind   ExprKind `json:"kind"`
	Target string   `json:"target,omitempty"`
	Mut    bool     `json:"mut,omitempty"`
}
