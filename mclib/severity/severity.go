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
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"gopkg.in/yaml.v2"
)

type Level int32

const (
	Unknown Level = iota
	Highest
	High
	Medium
	Low
	Lowest
)

func (l Level) String() string {
	switch l {
	case Highest:
		return "highest"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	case Lowest:
		return "lowest"
	}
	return "unknown"
}

func Parse(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "highest":
		return Highest, nil
	case "high":
		return High, nil
	case "medium":
		return Medium, nil
	case "low":
		return Low, nil
	case "lowest":
		return Lowest, nil
	case "unknown", "":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("invalid severity: %s", s)
}

// Table maps rule names (ruleset/rule form) to severities. The table is
// frozen at construction and passed explicitly to the aggregator; there is
// no process-wide registry.
type Table map[string]Level

// DefaultTable returns the built-in severity assignment for the memsafety
// ruleset.
func DefaultTable() Table {
	return Table{
		"memsafety/use_after_free":     High,
		"memsafety/double_free":        High,
		"memsafety/dangling_reference": High,
		"memsafety/uninit_read":        Medium,
		"memsafety/data_race":          Medium,
	}
}

// Of looks a rule up in the table; rules missing from the table report
// Unknown and a warning, never an error.
func (t Table) Of(rule string) Level {
	level, ok := t[rule]
	if !ok {
		glog.Warningf("no severity configured for rule %s", rule)
		return Unknown
	}
	return level
}

// LoadOverrides reads a YAML mapping of rule name to severity name and
// returns a copy of the table with the overrides applied.
func (t Table) LoadOverrides(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read severity overrides: %v", err)
	}
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse severity overrides %s: %v", path, err)
	}
	merged := make(Table, len(t)+len(raw))
	for rule, level := range t {
		merged[rule] = level
	}
	for rule, name := range raw {
		level, err := Parse(name)
		if err != nil {
			return nil, fmt.Errorf("severity override for %s: %v", rule, err)
		}
		merged[rule] = level
	}
	return merged, nil
}
