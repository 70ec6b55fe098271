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

// Package analyzer drives a whole checking run: front-end, ownership
// graph construction, rule analysis and report aggregation.
package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/text/message"
	"naive.systems/memcheck/frontend"
	"naive.systems/memcheck/ir"
	"naive.systems/memcheck/mclib/basic"
	"naive.systems/memcheck/mclib/checkrule"
	"naive.systems/memcheck/mclib/filter"
	"naive.systems/memcheck/mclib/options"
	"naive.systems/memcheck/mclib/severity"
	"naive.systems/memcheck/mclib/stats"
	memrules "naive.systems/memcheck/memrules/analyzer"
	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// Run analyzes every unit under srcdir with the given rules and returns
// the aggregated report. A unit that fails to load or build only records
// a unit error; the remaining units are still analyzed.
func Run(srcdir string, rules []checkrule.CheckRule, envOpts *options.EnvOptions, table severity.Table, printer *message.Printer) (*report.Report, error) {
	start := time.Now()
	if envOpts.CheckProgress {
		basic.PrintfWithTimeStamp(printer.Sprintf("Start parsing source files"))
		stats.WriteProgress(envOpts.ResultsDir, stats.FE, "0%", start)
	}

	files, err := frontend.ListSourceFiles(srcdir, envOpts.IgnoreDirPatterns)
	if err != nil {
		return nil, fmt.Errorf("list source files: %v", err)
	}
	if len(files) == 0 {
		glog.Warning("no Rust sources or IR units found under ", srcdir)
	}

	unitErrors := []*report.UnitError{}
	units := make([]*ir.Unit, 0, len(files))
	for i, file := range files {
		unit, err := frontend.LoadUnit(srcdir, file, envOpts.FrontendCmd)
		if err != nil {
			if errors.Is(err, ir.ErrMalformedInput) {
				glog.Errorf("skipping %s: %v", file, err)
				unitErrors = append(unitErrors, &report.UnitError{File: file, Message: err.Error()})
				continue
			}
			glog.Errorf("front-end failed on %s: %v", file, err)
			unitErrors = append(unitErrors, &report.UnitError{File: file, Message: err.Error()})
			continue
		}
		units = append(units, unit)
		if envOpts.CheckProgress {
			stats.WriteProgress(envOpts.ResultsDir, stats.FE, basic.GetPercentString(i+1, len(files)), start)
		}
	}

	if envOpts.CheckProgress {
		basic.PrintfWithTimeStamp(printer.Sprintf("Start building ownership graphs"))
		stats.WriteProgress(envOpts.ResultsDir, stats.OG, "0%", start)
	}
	builder := ownership.Builder{MaxPaths: envOpts.MaxPaths}
	graphs := make([]*ownership.Graph, 0, len(units))
	for i, unit := range units {
		// Build verifies the finished graph before returning it.
		graph, err := builder.Build(unit)
		if err != nil {
			glog.Errorf("ownership graph for %s: %v", unit.File, err)
			unitErrors = append(unitErrors, &report.UnitError{File: unit.File, Message: err.Error()})
			continue
		}
		graphs = append(graphs, graph)
		if envOpts.CheckProgress {
			stats.WriteProgress(envOpts.ResultsDir, stats.OG, basic.GetPercentString(i+1, len(units)), start)
		}
	}

	if envOpts.CheckProgress {
		basic.PrintfWithTimeStamp(printer.Sprintf("Start analyzing Rust units"))
		stats.WriteProgress(envOpts.ResultsDir, stats.AC, "0%", start)
	}
	findings, errs := memrules.Run(rules, graphs, envOpts, table)
	for _, err := range errs {
		if err != nil {
			glog.Errorf("errors occur while analyzing: %v", err)
		}
	}
	findings = filter.DeleteFindingsByIgnorePatterns(findings, envOpts.IgnoreDirPatterns)

	result := report.NewAggregator(table).Aggregate(findings)
	result.UnitErrors = unitErrors

	if envOpts.CheckProgress {
		timeUsed := basic.FormatTimeDuration(time.Since(start))
		basic.PrintfWithTimeStamp(printer.Sprintf("Analysis completed [%s]", timeUsed))
		stats.WriteProgress(envOpts.ResultsDir, stats.END, "100%", start)
	}
	return result, nil
}
