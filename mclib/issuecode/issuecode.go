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

package issuecode

// Issue codes follow the CWE entry each rule approximates.
var codes = map[string]map[string]string{
	"memsafety": {
		"use_after_free":     "MC0416",
		"double_free":        "MC0415",
		"dangling_reference": "MC0825",
		"uninit_read":        "MC0457",
		"data_race":          "MC0362",
	},
}

var titles = map[string]string{
	"MC0416": "Use After Free",
	"MC0415": "Double Free",
	"MC0825": "Expired Pointer Dereference",
	"MC0457": "Use of Uninitialized Variable",
	"MC0362": "Concurrent Access of Shared Mutable State",
}

func GetIssueCode(ruleset, rule string) string {
	rules, ok := codes[ruleset]
	if !ok {
		return ""
	}
	return rules[rule]
}

func GetTitle(code string) string {
	return titles[code]
}
