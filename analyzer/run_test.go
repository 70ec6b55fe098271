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

package analyzer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"naive.systems/memcheck/mclib/checkrule"
	"naive.systems/memcheck/mclib/i18n"
	"naive.systems/memcheck/mclib/options"
	"naive.systems/memcheck/mclib/severity"
)

const useAfterFreeUnit = `{
	"file": "src/main.rs",
	"functions": [{
		"name": "main",
		"pos": {"file": "src/main.rs", "line": 1, "column": 1},
		"body": {"stmts": [
			{"kind": "let", "name": "x", "init": {"kind": "lit"},
			 "pos": {"file": "src/main.rs", "line": 2, "column": 5}},
			{"kind": "drop", "name": "x",
			 "pos": {"file": "src/main.rs", "line": 3, "column": 5}},
			{"kind": "use", "name": "x",
			 "pos": {"file": "src/main.rs", "line": 4, "column": 5}}
		]}
	}]
}`

const cleanUnit = `{
	"file": "src/clean.rs",
	"functions": [{
		"name": "tidy",
		"pos": {"file": "src/clean.rs", "line": 1, "column": 1},
		"body": {"stmts": [
			{"kind": "let", "name": "x", "init": {"kind": "lit"},
			 "pos": {"file": "src/clean.rs", "line": 2, "column": 5}},
			{"kind": "drop", "name": "x",
			 "pos": {"file": "src/clean.rs", "line": 3, "column": 5}}
		]}
	}]
}`

func writeUnit(t *testing.T, srcdir, rel, content string) {
	t.Helper()
	path := filepath.Join(srcdir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testEnvOptions(t *testing.T) *options.EnvOptions {
	t.Helper()
	return &options.EnvOptions{
		ResultsDir: t.TempDir(),
		NumWorkers: 2,
		Lang:       "en",
	}
}

func TestRunReportsUseAfterFree(t *testing.T) {
	srcdir := t.TempDir()
	writeUnit(t, srcdir, "src/main.mcir.json", useAfterFreeUnit)

	result, err := Run(srcdir, checkrule.DefaultRules(), testEnvOptions(t), severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.UnitErrors) != 0 {
		t.Fatalf("unexpected unit errors: %+v", result.UnitErrors)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("unexpected finding count, got: %d, expected: 1", len(result.Findings))
	}
	f := result.Findings[0]
	if !strings.HasPrefix(f.ErrorMessage, "[MC0416][memsafety-use_after_free]: ") {
		t.Errorf("message is not prefixed with the issue code: %s", f.ErrorMessage)
	}
	if f.Path != "src/main.rs" || f.LineNumber != 4 {
		t.Errorf("finding points at %s:%d, expected src/main.rs:4", f.Path, f.LineNumber)
	}
	if f.Severity != severity.High {
		t.Errorf("unexpected severity: %v", f.Severity)
	}
	if f.Id == "" {
		t.Error("finding has no id")
	}
}

func TestRunCleanUnitYieldsEmptyReport(t *testing.T) {
	srcdir := t.TempDir()
	writeUnit(t, srcdir, "src/clean.mcir.json", cleanUnit)

	result, err := Run(srcdir, checkrule.DefaultRules(), testEnvOptions(t), severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("clean unit must yield no findings, got: %d", len(result.Findings))
	}
	if len(result.UnitErrors) != 0 {
		t.Fatalf("unexpected unit errors: %+v", result.UnitErrors)
	}
}

func TestRunMalformedUnitDoesNotBlockOthers(t *testing.T) {
	srcdir := t.TempDir()
	writeUnit(t, srcdir, "src/main.mcir.json", useAfterFreeUnit)
	writeUnit(t, srcdir, "src/broken.mcir.json", `{"functions": [`)

	result, err := Run(srcdir, checkrule.DefaultRules(), testEnvOptions(t), severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.UnitErrors) != 1 {
		t.Fatalf("unexpected unit error count, got: %d, expected: 1", len(result.UnitErrors))
	}
	if result.UnitErrors[0].File != "src/broken.mcir.json" {
		t.Errorf("unexpected unit error file: %s", result.UnitErrors[0].File)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("healthy unit was not analyzed, got: %d findings", len(result.Findings))
	}
}

func TestRunRecordsGraphBuildFailure(t *testing.T) {
	// Parses fine, but the use targets a binding that was never declared,
	// which only the graph builder can see.
	const undeclaredUseUnit = `{
		"file": "src/odd.rs",
		"functions": [{
			"name": "odd",
			"pos": {"file": "src/odd.rs", "line": 1, "column": 1},
			"body": {"stmts": [
				{"kind": "use", "name": "ghost",
				 "pos": {"file": "src/odd.rs", "line": 2, "column": 5}}
			]}
		}]
	}`
	srcdir := t.TempDir()
	writeUnit(t, srcdir, "src/odd.mcir.json", undeclaredUseUnit)

	result, err := Run(srcdir, checkrule.DefaultRules(), testEnvOptions(t), severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.UnitErrors) != 1 {
		t.Fatalf("unexpected unit error count, got: %d, expected: 1", len(result.UnitErrors))
	}
	if !strings.Contains(result.UnitErrors[0].Message, "ghost") {
		t.Errorf("unit error does not name the undeclared binding: %s", result.UnitErrors[0].Message)
	}
}

func TestRunEmptySourceDir(t *testing.T) {
	result, err := Run(t.TempDir(), checkrule.DefaultRules(), testEnvOptions(t), severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Findings) != 0 || len(result.UnitErrors) != 0 {
		t.Errorf("empty source dir must yield an empty report: %+v", result)
	}
}

func TestRunHonorsIgnorePatterns(t *testing.T) {
	srcdir := t.TempDir()
	writeUnit(t, srcdir, "vendor/dep.mcir.json", useAfterFreeUnit)

	envOpts := testEnvOptions(t)
	envOpts.IgnoreDirPatterns = options.ArrayFlags{"vendor/**"}
	result, err := Run(srcdir, checkrule.DefaultRules(), envOpts, severity.DefaultTable(), i18n.GetPrinter("en"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("ignored path still analyzed, got: %d findings", len(result.Findings))
	}
}
