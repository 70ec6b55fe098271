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

package runner

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/text/message"
	"naive.systems/memcheck/mclib/basic"
	"naive.systems/memcheck/mclib/i18n"
	"naive.systems/memcheck/mclib/issuecode"
	"naive.systems/memcheck/mclib/options"
	"naive.systems/memcheck/mclib/severity"
	"naive.systems/memcheck/mclib/stats"
	"naive.systems/memcheck/ownership"
	"naive.systems/memcheck/report"
)

// The task for Runner to run in parallels. Every task scans one immutable
// ownership graph with one rule; tasks never share mutable state.
type AnalyzerTask struct {
	Id      int
	Unit    string
	Graph   *ownership.Graph
	Opts    *options.CheckOptions
	Rule    string
	Analyze func(graph *ownership.Graph) *report.FindingsList
}

type analyzerResult struct {
	id             int
	rule           string
	unit           string
	findings       *report.FindingsList
	customSeverity string
	err            error
}

// A goroutine workgroup to run analyzers in parallel.
type ParaTaskRunner struct {
	showProgress   bool
	workerWg       sync.WaitGroup
	collectorWg    sync.WaitGroup
	jobsChan       chan AnalyzerTask
	resultsChan    chan analyzerResult
	sigsExiting    chan bool
	findings       *report.FindingsList
	errors         []error
	processPrinter basic.CheckingProcessPrinter
}

// modifyResult rewrites raw checker findings into their reportable form:
// memsafety/use_after_free -> [MC0416][memsafety-use_after_free]: message
func modifyResult(result *analyzerResult) {
	for _, f := range result.findings.Findings {
		if f.Ruleset == "" {
			ruleset, rule, found := strings.Cut(result.rule, "/")
			if !found {
				ruleset, rule = "memsafety", result.rule
			}
			f.Ruleset = ruleset
			f.RuleId = rule
		}
		code := issuecode.GetIssueCode(f.Ruleset, f.RuleId)
		if code == "" {
			glog.Warning("There is no available issue code for ", result.rule)
			code = "-"
		}
		f.ErrorMessage = fmt.Sprintf("[%s][%s-%s]: %s", code, f.Ruleset, f.RuleId, f.ErrorMessage)
	}
}

// applySeverity resolves each finding's severity: an explicit per-rule
// override wins over the configured table.
func applySeverity(result *analyzerResult, table severity.Table) {
	override := severity.Unknown
	if result.customSeverity != "" {
		parsed, err := severity.Parse(result.customSeverity)
		if err != nil {
			glog.Errorf("invalid severity override for %s: %v", result.rule, err)
		} else {
			override = parsed
		}
	}
	for _, f := range result.findings.Findings {
		if override != severity.Unknown {
			f.Severity = override
		} else if f.Severity == severity.Unknown {
			f.Severity = table.Of(f.Ruleset + "/" + f.RuleId)
		}
	}
}

func (pt *ParaTaskRunner) worker(jobs <-chan AnalyzerTask, results chan<- analyzerResult, printer *message.Printer) {
	for j := range jobs {
		taskName := j.Rule + " (" + j.Unit + ")"
		if pt.showProgress {
			pt.processPrinter.StartAnalyzeTask(taskName, printer)
		}
		func() {
			defer func() {
				// recover from possible panic
				if r := recover(); r != nil {
					glog.Error("Recovered in analyze: ", r, string(debug.Stack()))
					results <- analyzerResult{id: j.Id, err: errors.New("panic in analyze rule"), findings: nil, rule: j.Rule, unit: j.Unit}
					if pt.showProgress {
						pt.processPrinter.FinishAnalyzeTask(taskName, printer)
					}
				}
			}()
			findings := j.Analyze(j.Graph)
			if findings == nil {
				findings = &report.FindingsList{}
			}
			if max := j.Opts.JsonOption.MaxReportNum; max != nil && *max > 0 && len(findings.Findings) > *max {
				glog.Infof("rule %s truncated to %d findings on %s", j.Rule, *max, j.Unit)
				findings.Findings = findings.Findings[:*max]
			}
			customSeverity := ""
			if j.Opts.JsonOption.Severity != nil {
				customSeverity = *j.Opts.JsonOption.Severity
			}
			results <- analyzerResult{id: j.Id, findings: findings, rule: j.Rule, unit: j.Unit, customSeverity: customSeverity}
			if pt.showProgress {
				pt.processPrinter.FinishAnalyzeTask(taskName, printer)
				stats.WriteProgress(j.Opts.EnvOption.ResultsDir, stats.AC, pt.processPrinter.GetPercentString(), pt.processPrinter.GetStartedAt())
			}
		}()
	}
	pt.workerWg.Done()
}

// Create a new task runner and results collectors.
func NewParaTaskRunner(numWorkers int32, taskNums int, showProgress bool, lang string, table severity.Table) *ParaTaskRunner {
	printer := i18n.GetPrinter(lang)
	if numWorkers <= 0 {
		numWorkers = 1
	}
	paraRunner := &ParaTaskRunner{
		showProgress:   showProgress,
		jobsChan:       make(chan AnalyzerTask, numWorkers),
		resultsChan:    make(chan analyzerResult, numWorkers),
		sigsExiting:    make(chan bool, 1),
		findings:       &report.FindingsList{},
		errors:         make([]error, taskNums),
		processPrinter: basic.NewCheckingProcessPrinter(taskNums),
	}
	for w := 0; w < int(numWorkers); w++ {
		paraRunner.workerWg.Add(1)
		go paraRunner.worker(paraRunner.jobsChan, paraRunner.resultsChan, printer)
	}

	sigs := make(chan os.Signal, 1)
	// if a signal is received, notify the loop to stop sending new workers
	signal.Notify(sigs, syscall.SIGINT)
	// collect results
	paraRunner.collectorWg.Add(1)
	go func() {
		for jobResult := range paraRunner.resultsChan {
			select {
			case <-sigs:
				// if received a SIGINT, stop collector and analyze rule loop
				if paraRunner.showProgress {
					basic.PrintfWithTimeStamp("Ctrl C Pressed. Stop analysis")
				}
				// notify the task-adding loop to exit
				paraRunner.sigsExiting <- true
				paraRunner.collectorWg.Done()
				return
			default:
			}
			if jobResult.err == nil {
				modifyResult(&jobResult)
				applySeverity(&jobResult, table)
				paraRunner.findings.Findings = append(paraRunner.findings.Findings, jobResult.findings.Findings...)
			} else {
				glog.Errorf("Analyze %v got error %v", jobResult.rule, jobResult.err)
			}
			paraRunner.errors[jobResult.id] = jobResult.err
		}
		paraRunner.collectorWg.Done()
	}()
	return paraRunner
}

// CheckSignalExiting checks for the SIGINT exiting signal.
// If the exiting signal is received, it returns the collected findings and
// errors; findings will never be nil in that case. Otherwise it returns nil
// for both.
func (pt *ParaTaskRunner) CheckSignalExiting() (findings *report.FindingsList, errors []error) {
	select {
	// if received a SIGINT, stop the analyze rule loop
	case <-pt.sigsExiting:
		// close the jobs chan to let workers end
		close(pt.jobsChan)
		pt.collectorWg.Wait()
		// return findings and errors directly because the collector has stopped.
		return pt.findings, pt.errors
	default:
		return nil, nil
	}
}

// Add a task to the task runner and start running the task.
func (pt *ParaTaskRunner) AddTask(task AnalyzerTask) {
	pt.jobsChan <- task
}

// Wait until all the task workers and collectors are finished and all
// findings are collected. Return the findings and errors.
func (pt *ParaTaskRunner) CollectResultsAndErrors() (findings *report.FindingsList, errors []error) {
	go func() {
		pt.workerWg.Wait()
		close(pt.resultsChan)
	}()
	close(pt.jobsChan)
	pt.collectorWg.Wait()
	return pt.findings, pt.errors
}
