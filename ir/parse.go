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

package ir

import (
	"encoding/json"
	"fmt"
	"os"
)

// ParseUnit decodes and validates one compilation unit. All returned errors
// wrap ErrMalformedInput.
func ParseUnit(data []byte) (*Unit, error) {
	unit := &Unit{}
	if err := json.Unmarshal(data, unit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if unit.File == "" {
		return nil, fmt.Errorf("%w: unit has no file name", ErrMalformedInput)
	}
	for _, function := range unit.Functions {
		if function.Name == "" {
			return nil, fmt.Errorf("%w: unnamed function in %s", ErrMalformedInput, unit.File)
		}
		if function.Body == nil {
			return nil, fmt.Errorf("%w: function %s has no body", ErrMalformedInput, function.Name)
		}
		if err := validateBlock(function.Name, function.Body); err != nil {
			return nil, err
		}
	}
	return unit, nil
}

// LoadUnit reads a pre-dumped IR file (the .mcir.json form emitted by the
// front-end) and parses it.
func LoadUnit(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedInput, path, err)
	}
	return ParseUnit(data)
}

func validateBlock(function string, block *Block) error {
	for _, stmt := range block.Stmts {
		if err := validateStmt(function, stmt); err != nil {
			return err
		}
	}
	return nil
}

func validateStmt(function string, stmt *Stmt) error {
	bad := func(format string, args ...any) error {
		prefix := fmt.Sprintf("%%w: in %s at %s: ", function, stmt.Pos)
		return fmt.Errorf(prefix+format, append([]any{ErrMalformedInput}, args...)...)
	}
	switch stmt.Kind {
	case StmtLet:
		if stmt.Name == "" {
			return bad("let without a binding name")
		}
		if err := validateExpr(function, stmt, stmt.Init); err != nil {
			return err
		}
	case StmtAssign:
		if stmt.Lhs == "" {
			return bad("assign without a target")
		}
		if stmt.Rhs == nil {
			return bad("assign without a source")
		}
		if err := validateExpr(function, stmt, stmt.Rhs); err != nil {
			return err
		}
	case StmtDrop, StmtUse:
		if stmt.Name == "" {
			return bad("%s without a binding name", stmt.Kind)
		}
	case StmtBranch:
		if len(stmt.Arms) == 0 {
			return bad("branch without arms")
		}
		for _, arm := range stmt.Arms {
			if err := validateBlock(function, arm); err != nil {
				return err
			}
		}
	case StmtBlock:
		if stmt.Body == nil {
			return bad("block without a body")
		}
		return validateBlock(function, stmt.Body)
	case StmtReturn:
		return validateExpr(function, stmt, stmt.Value)
	default:
		return bad("unknown statement kind %q", stmt.Kind)
	}
	return nil
}

func validateExpr(function string, stmt *Stmt, expr *Expr) error {
	if expr == nil {
		return nil
	}
	switch expr.Kind {
	case ExprLit:
		return nil
	case ExprCopy, ExprMove, ExprBorrow:
		if expr.Target == "" {
			return fmt.Errorf("%w: in %s at %s: %s expression without a target",
				ErrMalformedInput, function, stmt.Pos, expr.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: in %s at %s: unknown expression kind %q",
			ErrMalformedInput, function, stmt.Pos, expr.Kind)
	}
}
