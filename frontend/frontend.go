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

// Package frontend turns the source tree into IR units. Pre-generated
// *.mcir.json files are loaded directly; *.rs files are handed to the
// external front-end command, which prints the IR of a crate source file
// on stdout.
package frontend

import (
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/google/shlex"
	"naive.systems/memcheck/ir"
	"naive.systems/memcheck/mclib/filter"
)

const irSuffix = ".mcir.json"

// ListSourceFiles walks srcdir and returns the IR and Rust source files
// to analyze, relative paths sorted for a deterministic task order. A Rust
// file is skipped when a pre-generated IR file sits next to it, so the
// same unit is never analyzed twice.
func ListSourceFiles(srcdir string, ignoreDirPatterns []string) ([]string, error) {
	files := []string{}
	seenIR := map[string]bool{}
	err := filepath.WalkDir(srcdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcdir, path)
		if err != nil {
			return err
		}
		matched, err := filter.MatchIgnoreDirPatterns(ignoreDirPatterns, rel)
		if err != nil {
			return err
		}
		if matched {
			if d.IsDir() {
				glog.Infof("skip ignored dir %s", rel)
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(rel, irSuffix) {
			files = append(files, rel)
			seenIR[strings.TrimSuffix(rel, irSuffix)+".rs"] = true
		} else if filepath.Ext(rel) == ".rs" {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %v", srcdir, err)
	}
	filtered := files[:0]
	for _, f := range files {
		if filepath.Ext(f) == ".rs" && seenIR[f] {
			continue
		}
		filtered = append(filtered, f)
	}
	sort.Strings(filtered)
	return filtered, nil
}

// GenerateIR runs the front-end command on a Rust source file and parses
// its stdout as an IR unit. The source path is appended as the command's
// last argument.
func GenerateIR(srcdir, relPath, frontendCmd string) (*ir.Unit, error) {
	if frontendCmd == "" {
		return nil, fmt.Errorf("no front-end command configured for %s", relPath)
	}
	args, err := shlex.Split(frontendCmd)
	if err != nil {
		return nil, fmt.Errorf("malformed front-end command %q: %v", frontendCmd, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty front-end command")
	}
	args = append(args, relPath)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = srcdir
	glog.Info("executing: ", cmd.String())
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("front-end failed on %s: %v, reported:\n%s", relPath, err, string(ee.Stderr))
		}
		return nil, fmt.Errorf("front-end failed on %s: %v", relPath, err)
	}
	return ir.ParseUnit(out)
}

// LoadUnit reads one unit, either a pre-generated IR file or a Rust
// source file routed through the front-end.
func LoadUnit(srcdir, relPath, frontendCmd string) (*ir.Unit, error) {
	if strings.HasSuffix(relPath, irSuffix) {
		return ir.LoadUnit(filepath.Join(srcdir, relPath))
	}
	return GenerateIR(srcdir, relPath, frontendCmd)
}
