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

package options

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"
	"naive.systems/memcheck/mclib/checkrule"
)

// ArrayFlags collects a repeatable string flag.
type ArrayFlags []string

func (i *ArrayFlags) String() string {
	return strings.Join(*i, ",")
}

func (i *ArrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

type CheckOptions struct {
	JsonOption         checkrule.JSONOption
	EnvOption          *EnvOptions
	RuleSpecificOption *RuleSpecificOptions
}

// EnvOptions holds the run-wide settings every rule shares.
type EnvOptions struct {
	ResultsDir        string
	LogDir            string
	IgnoreDirPatterns ArrayFlags
	CheckProgress     bool
	Debug             bool
	NumWorkers        int32
	Lang              string
	// FrontendCmd is the external parser invocation; the source file path
	// is appended as its last argument. Empty means IR files are loaded
	// directly.
	FrontendCmd string
	// MaxPaths bounds per-function control path enumeration.
	MaxPaths int
}

type RuleSpecificOptions struct {
	RuleSpecificResultDir string
}

// NewRuleSpecificOptions creates the per-rule scratch results directory
// under the run's results dir.
func NewRuleSpecificOptions(ruleName string, generalResultsDir string) *RuleSpecificOptions {
	ruleset, rule, found := strings.Cut(ruleName, "/")
	if !found {
		rule = ruleName
		ruleset = "memsafety"
	}
	tmpResultsDir := filepath.Join(generalResultsDir, "tmp", ruleset)
	if err := os.MkdirAll(tmpResultsDir, os.ModePerm); err != nil {
		glog.Fatalf("failed to create tmp dir: %v", err)
	}
	resultsDir, err := os.MkdirTemp(tmpResultsDir, rule+"-*")
	if err != nil {
		glog.Fatalf("failed to create result dir: %v", err)
	}
	return &RuleSpecificOptions{RuleSpecificResultDir: resultsDir}
}

func MakeCheckOptions(jsonOptions *checkrule.JSONOption, envOpts *EnvOptions, ruleSpecific *RuleSpecificOptions) CheckOptions {
	return CheckOptions{
		JsonOption:         *jsonOptions,
		EnvOption:          envOpts,
		RuleSpecificOption: ruleSpecific,
	}
}

// EffectiveWorkers resolves the worker count, defaulting to the CPU count.
func (e *EnvOptions) EffectiveWorkers() int32 {
	if e.NumWorkers > 0 {
		return e.NumWorkers
	}
	return int32(runtime.NumCPU())
}
