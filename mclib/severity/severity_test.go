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

package severity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	for _, level := range [...]Level{Highest, High, Medium, Low, Lowest, Unknown} {
		parsed, err := Parse(level.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", level.String(), err)
		}
		if parsed != level {
			t.Errorf("round trip of %v yields %v", level, parsed)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("catastrophic"); err == nil {
		t.Error("expected an error for an unknown severity name")
	}
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	for rule, expected := range map[string]Level{
		"memsafety/use_after_free":     High,
		"memsafety/double_free":        High,
		"memsafety/dangling_reference": High,
		"memsafety/uninit_read":        Medium,
		"memsafety/data_race":          Medium,
	} {
		if got := table.Of(rule); got != expected {
			t.Errorf("%s severity is %v, expected %v", rule, got, expected)
		}
	}
	if got := table.Of("memsafety/no_such_rule"); got != Unknown {
		t.Errorf("missing rule reports %v, expected Unknown", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "severities.yaml")
	content := "memsafety/uninit_read: high\nmemsafety/data_race: low\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := DefaultTable().LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides failed: %v", err)
	}
	if got := table.Of("memsafety/uninit_read"); got != High {
		t.Errorf("override not applied, got: %v", got)
	}
	if got := table.Of("memsafety/data_race"); got != Low {
		t.Errorf("override not applied, got: %v", got)
	}
	// Untouched rules keep their defaults.
	if got := table.Of("memsafety/use_after_free"); got != High {
		t.Errorf("default lost after override, got: %v", got)
	}
}

func TestLoadOverridesInvalidLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "severities.yaml")
	if err := os.WriteFile(path, []byte("memsafety/data_race: severe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DefaultTable().LoadOverrides(path); err == nil {
		t.Error("expected an error for an invalid severity name")
	}
}
