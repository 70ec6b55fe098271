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
	"strings"
	"testing"

	"naive.systems/memcheck/ir"
	"naive.systems/memcheck/ownership"
)

func pos(line int32) ir.Pos {
	return ir.Pos{File: "src/lib.rs", Line: line, Column: 5}
}

func buildGraph(t *testing.T, stmts ...*ir.Stmt) *ownership.Graph {
	t.Helper()
	unit := &ir.Unit{
		File: "src/lib.rs",
		Functions: []*ir.Function{{
			Name: "f",
			Body: &ir.Block{Stmts: stmts},
			Pos:  pos(1),
		}},
	}
	graph, err := ownership.Build(unit)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return graph
}

func TestDoubleExplicitDrop(t *testing.T) {
	graph := buildGraph(t,
		&ir.Stmt{Kind: ir.StmtLet, Name: "x", Init: &ir.Expr{Kind: ir.ExprLit}, Pos: pos(2)},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(3)},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(4)},
	)
	findings := Analyze(graph)
	if len(findings.Findings) != 1 {
		t.Fatalf("unexpected finding count, got: %d, expected: 1", len(findings.Findings))
	}
	f := findings.Findings[0]
	if f.RuleId != "double_free" {
		t.Errorf("unexpected rule id: %s", f.RuleId)
	}
	if f.LineNumber != 4 {
		t.Errorf("finding points at line %d, expected the second drop at line 4", f.LineNumber)
	}
	if !strings.Contains(f.ErrorMessage, "double free memory bug may exist") {
		t.Errorf("unexpected message: %s", f.ErrorMessage)
	}
	if len(f.Related) != 1 || f.Related[0].LineNumber != 3 {
		t.Errorf("related location does not point at the first drop: %+v", f.Related)
	}
}

func TestSingleDropIsClean(t *testing.T) {
	graph := buildGraph(t,
		&ir.Stmt{Kind: ir.StmtLet, Name: "x", Init: &ir.Expr{Kind: ir.ExprLit}, Pos: pos(2)},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(3)},
	)
	findings := Analyze(graph)
	if len(findings.Findings) != 0 {
		t.Fatalf("a single drop must not be reported, got: %d findings", len(findings.Findings))
	}
}

func TestReinitBetweenDropsIsClean(t *testing.T) {
	graph := buildGraph(t,
		&ir.Stmt{Kind: ir.StmtLet, Name: "x", Init: &ir.Expr{Kind: ir.ExprLit}, Pos: pos(2)},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(3)},
		&ir.Stmt{Kind: ir.StmtAssign, Lhs: "x", Rhs: &ir.Expr{Kind: ir.ExprLit}, Pos: pos(4)},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(5)},
	)
	findings := Analyze(graph)
	if len(findings.Findings) != 0 {
		t.Fatalf("re-initialization separates the drops, got: %d findings", len(findings.Findings))
	}
}

func TestDropInBranchArmThenAfterMerge(t *testing.T) {
	// Only the path through the dropping arm frees twice.
	graph := buildGraph(t,
		&ir.Stmt{Kind: ir.StmtLet, Name: "x", Init: &ir.Expr{Kind: ir.ExprLit}, Pos: pos(2)},
		&ir.Stmt{Kind: ir.StmtBranch, Pos: pos(3), Arms: []*ir.Block{
			{Stmts: []*ir.Stmt{{Kind: ir.StmtDrop, Name: "x", Pos: pos(4)}}},
			{Stmts: []*ir.Stmt{}},
		}},
		&ir.Stmt{Kind: ir.StmtDrop, Name: "x", Pos: pos(6)},
	)
	findings := Analyze(graph)
	if len(findings.Findings) != 1 {
		t.Fatalf("unexpected finding count, got: %d, expected: 1", len(findings.Findings))
	}
	if findings.Findings[0].LineNumber != 6 {
		t.Errorf("finding points at line %d, expected the merge-point drop at line 6", findings.Findings[0].LineNumber)
	}
}
