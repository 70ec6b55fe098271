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

package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"naive.systems/memcheck/mclib/issuecode"
	"naive.systems/memcheck/mclib/severity"
)

const toolName = "NaiveSystems MemCheck"
const toolURI = "https://naivesystems.com/memcheck"

// WriteSarif serializes the report as SARIF 2.1.0 for IDE and CI consumers.
func WriteSarif(w io.Writer, r *Report) error {
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("sarif.New: %v", err)
	}
	run := sarif.NewRunWithInformationURI(toolName, toolURI)

	addedRules := map[string]bool{}
	for _, f := range r.Findings {
		code := issuecode.GetIssueCode(f.Ruleset, f.RuleId)
		if code == "" {
			code = f.Ruleset + "/" + f.RuleId
		}
		if !addedRules[code] {
			run.AddRule(code).
				WithShortDescription(sarif.NewMultiformatMessageString(issuecode.GetTitle(code))).
				WithProperties(sarif.Properties{
					"rule":     f.Ruleset + "/" + f.RuleId,
					"severity": f.Severity.String(),
				})
			addedRules[code] = true
		}

		locations := []*sarif.Location{sarifLocation(f.Path, f.LineNumber, f.Column)}
		for _, rel := range f.Related {
			locations = append(locations, sarifLocation(rel.Path, rel.LineNumber, rel.Column))
		}
		run.CreateResultForRule(code).
			WithLevel(sarifLevel(f.Severity)).
			WithMessage(sarif.NewTextMessage(f.ErrorMessage)).
			WithLocations(locations)
	}
	sarifReport.AddRun(run)
	return sarifReport.PrettyWrite(w)
}

func sarifLocation(path string, line, column int32) *sarif.Location {
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(path)).
			WithRegion(sarif.NewRegion().
				WithStartLine(int(line)).
				WithStartColumn(int(column))),
	)
}

func sarifLevel(level severity.Level) string {
	switch level {
	case severity.Highest, severity.High:
		return "error"
	case severity.Medium:
		return "warning"
	case severity.Low, severity.Lowest:
		return "note"
	}
	return "none"
}
