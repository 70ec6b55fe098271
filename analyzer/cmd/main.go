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

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"naive.systems/memcheck/analyzer"
	"naive.systems/memcheck/atomic"
	"naive.systems/memcheck/mclib/basic"
	"naive.systems/memcheck/mclib/checkrule"
	"naive.systems/memcheck/mclib/i18n"
	"naive.systems/memcheck/mclib/options"
	"naive.systems/memcheck/mclib/severity"
	"naive.systems/memcheck/mclib/stats"
	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

var (
	srcDir        = flag.String("src_dir", "/src", "absolute path to the crate sources")
	resultsDir    = flag.String("results_dir", "/output", "directory for results and metadata")
	rulesPath     = flag.String("rules", "", "path to a YAML rules file; empty runs every memsafety rule")
	severityPath  = flag.String("severities", "", "path to a YAML severity override file")
	frontendCmd   = flag.String("frontend_cmd", "", "external command that prints the IR of a Rust file on stdout")
	numWorkers    = flag.Int("num_workers", 0, "number of parallel analyzer workers, 0 means the CPU count")
	maxPaths      = flag.Int("max_paths", ownership.DefaultMaxPaths, "per-function control path enumeration limit")
	lang          = flag.String("lang", "en", "language of progress messages (en or zh)")
	checkProgress = flag.Bool("check_progress", false, "print and record analysis progress")
	debugMode     = flag.Bool("debug", false, "log to stderr at all thresholds")
	showResults   = flag.Bool("show_results", false, "print findings with source excerpts to stdout")
	emitSarif     = flag.Bool("sarif", false, "also write results.sarif")
)

var ignoreDirPatterns options.ArrayFlags

func main() {
	flag.Var(&ignoreDirPatterns, "ignore_dir", "doublestar pattern of paths to skip, repeatable")
	flag.Parse()
	defer glog.Flush()

	// Do not call any logging functions of glog before this part.
	logDir := flag.Lookup("log_dir")
	if logDir.Value.String() == "" {
		if err := flag.Set("log_dir", filepath.Join(*resultsDir, "logs")); err != nil {
			glog.Fatalf("failed to set default log_dir: %v", err)
		}
	}
	if err := os.MkdirAll(logDir.Value.String(), os.ModePerm); err != nil {
		glog.Fatalf("failed to create log dir: %v", err)
	}
	if !*debugMode {
		if err := flag.Set("stderrthreshold", "FATAL"); err != nil {
			glog.Fatalf("failed to set default stderrthreshold: %v", err)
		}
	}

	fmt.Println("(c) 2023 Naive Systems Ltd.")
	printer := i18n.GetPrinter(*lang)

	if !filepath.IsAbs(*srcDir) {
		glog.Fatal("src_dir must be an absolute path")
	}
	if err := os.MkdirAll(*resultsDir, os.ModePerm); err != nil {
		glog.Fatalf("failed to create result dir: %v", err)
	}

	envOpts := &options.EnvOptions{
		ResultsDir:        *resultsDir,
		LogDir:            logDir.Value.String(),
		IgnoreDirPatterns: ignoreDirPatterns,
		CheckProgress:     *checkProgress,
		Debug:             *debugMode,
		Lang:              *lang,
		FrontendCmd:       *frontendCmd,
		MaxPaths:          *maxPaths,
	}
	envOpts.NumWorkers = int32(*numWorkers)
	envOpts.NumWorkers = envOpts.EffectiveWorkers()
	glog.Info("numWorkers: ", envOpts.NumWorkers)

	rules := checkrule.DefaultRules()
	if *rulesPath != "" {
		parsed, err := checkrule.ParseRulesFile(*rulesPath)
		if err != nil {
			glog.Fatalf("failed to read check rules from %s: %v", *rulesPath, err)
		}
		rules = parsed
	}

	table := severity.DefaultTable()
	if *severityPath != "" {
		merged, err := table.LoadOverrides(*severityPath)
		if err != nil {
			glog.Fatalf("failed to load severity overrides from %s: %v", *severityPath, err)
		}
		table = merged
	}

	start := time.Now()
	if *checkProgress {
		lines, err := stats.CountLOC([]string{*srcDir})
		if err != nil {
			glog.Errorf("failed to count lines of code: %v", err)
		} else {
			stats.WriteLOC(*resultsDir, lines)
		}
	}

	result, err := analyzer.Run(*srcDir, rules, envOpts, table, printer)
	if err != nil {
		glog.Fatal(err)
	}

	resultsJsonPath := filepath.Join(*resultsDir, "mc_results.json")
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		glog.Fatal(err)
	}
	if err := atomic.Write(resultsJsonPath, data); err != nil {
		glog.Fatal(err)
	}

	if *emitSarif {
		var buf bytes.Buffer
		if err := report.WriteSarif(&buf, result); err != nil {
			glog.Errorf("failed to generate SARIF report: %v", err)
		} else if err := atomic.Write(filepath.Join(*resultsDir, "results.sarif"), buf.Bytes()); err != nil {
			glog.Errorf("failed to write SARIF report: %v", err)
		}
	}

	// count results by severity and save stats to severity_stats.mc_metadata
	stats.CountSeverityAndWrite(result, *resultsDir)

	if *showResults {
		if err := report.WriteText(os.Stdout, result, *srcDir); err != nil {
			glog.Errorf("failed to print results: %v", err)
		}
	}

	glog.Infof("All results have been written to %s (%d in total), exit. ", resultsJsonPath, len(result.Findings))
	if *checkProgress {
		timeUsed := basic.FormatTimeDuration(time.Since(start))
		basic.PrintfWithTimeStamp(printer.Sprintf("Total time for analysis: %s", timeUsed))
	}
	glog.Flush()
}
