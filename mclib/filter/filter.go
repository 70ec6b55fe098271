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
This package should not import any packages of other analyzers to
avoid recursive import.
*/
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/glog"
	"naive.systems/memcheck/report"
)

// DeleteFindingsByIgnorePatterns removes findings whose path matches any of
// the doublestar ignore patterns. A malformed pattern is logged and skipped;
// it never drops findings.
func DeleteFindingsByIgnorePatterns(list *report.FindingsList, ignoreDirPatterns []string) *report.FindingsList {
	for _, ignoreDirPattern := range ignoreDirPatterns {
		newFindings := []*report.Finding{}
		for _, f := range list.Findings {
			matched, err := doublestar.Match(ignoreDirPattern, f.Path)
			if err != nil {
				glog.Error("malformed ignore_dir pattern ", ignoreDirPattern)
				newFindings = list.Findings
				break
			}
			if matched {
				glog.Infof("Finding in path %s ignored due to pattern %s", f.Path, ignoreDirPattern)
			} else {
				newFindings = append(newFindings, f)
			}
		}
		list.Findings = newFindings
	}
	return list
}

// MatchIgnoreDirPatterns reports whether path matches any ignore pattern.
func MatchIgnoreDirPatterns(ignoreDirPatterns []string, path string) (bool, error) {
	for _, pattern := range ignoreDirPatterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, fmt.Errorf("malformed ignore_dir pattern %s", pattern)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

var messagePrefix = regexp.MustCompile(`\[([a-zA-Z\d]*)\]\[([a-zA-Z\.\-\_\d]*)\].*`)

// GetRuleNameFromErrorMessage recovers "memsafety/use_after_free" from a
// "[MC0416][memsafety-use_after_free]: ..." message prefix.
func GetRuleNameFromErrorMessage(msg string) (string, error) {
	matches := messagePrefix.FindAllStringSubmatch(msg, -1)
	for _, match := range matches {
		if len(match) < 3 {
			continue
		}
		ruleset, rule, found := strings.Cut(match[2], "-")
		if !found {
			continue
		}
		if ruleset == "memsafety" {
			return ruleset + "/" + rule, nil
		}
	}
	return "", fmt.Errorf("unknown rule in error message: %s", msg)
}
