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
	"strings"

	"naive.systems/memcheck/mclib/checkrule"
	"naive.systems/memcheck/mclib/options"
	"naive.systems/memcheck/mclib/runner"
	"naive.systems/memcheck/mclib/severity"
	"naive.systems/memcheck/memrules/dangling_reference"
	"naive.systems/memcheck/memrules/data_race"
	"naive.systems/memcheck/memrules/double_free"
	"naive.systems/memcheck/memrules/uninit_read"
	"naive.systems/memcheck/memrules/use_after_free"
	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

func Run(rules []checkrule.CheckRule, graphs []*ownership.Graph, envOpts *options.EnvOptions, table severity.Table) (*report.FindingsList, []error) {
	taskNums := len(rules) * len(graphs)
	numWorkers := envOpts.NumWorkers
	paraTaskRunner := runner.NewParaTaskRunner(numWorkers, taskNums, envOpts.CheckProgress, envOpts.Lang, table)

	id := 0
	for _, rule := range rules {
		ruleSpecific := options.NewRuleSpecificOptions(rule.Name, envOpts.ResultsDir)
		ruleOptions := options.MakeCheckOptions(&rule.JSONOptions, envOpts, ruleSpecific)
		ruleName := strings.TrimPrefix(rule.Name, "memsafety/")
		ruleGraphs := graphs
		if rule.JSONOptions.MaxPaths != nil {
			ruleGraphs = make([]*ownership.Graph, 0, len(graphs))
			for _, graph := range graphs {
				ruleGraphs = append(ruleGraphs, limitPaths(graph, *rule.JSONOptions.MaxPaths))
			}
		}
		for _, graph := range ruleGraphs {
			exiting_results, exiting_errors := paraTaskRunner.CheckSignalExiting()
			if exiting_results != nil {
				return exiting_results, exiting_errors
			}

			x := func(analyze func(graph *ownership.Graph) *report.FindingsList) {
				paraTaskRunner.AddTask(runner.AnalyzerTask{Id: id, Unit: graph.File, Graph: graph, Opts: &ruleOptions, Rule: rule.Name, Analyze: analyze})
			}
			switch ruleName {
			case "use_after_free":
				x(use_after_free.Analyze)
			case "double_free":
				x(double_free.Analyze)
			case "dangling_reference":
				x(dangling_reference.Analyze)
			case "uninit_read":
				x(uninit_read.Analyze)
			case "data_race":
				x(data_race.Analyze)
			}
			id++
		}
	}
	return paraTaskRunner.CollectResultsAndErrors()
}

// limitPaths applies a per-rule control path cap on top of the shared
// graphs. Functions within the cap are reused as-is; functions over it get
// a shallow copy with the extra paths discarded and Truncated set.
func limitPaths(graph *ownership.Graph, maxPaths int) *ownership.Graph {
	if maxPaths <= 0 {
		return graph
	}
	over := false
	for _, fn := range graph.Functions {
		if len(fn.Paths) > maxPaths {
			over = true
			break
		}
	}
	if !over {
		return graph
	}
	limited := &ownership.Graph{File: graph.File, Functions: make([]*ownership.FunctionGraph, 0, len(graph.Functions))}
	for _, fn := range graph.Functions {
		if len(fn.Paths) <= maxPaths {
			limited.Functions = append(limited.Functions, fn)
			continue
		}
		capped := *fn
		capped.Paths = fn.Paths[:maxPaths]
		capped.Truncated = true
		limited.Functions = append(limited.Functions, &capped)
	}
	return limited
}
