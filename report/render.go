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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
)

// WriteText renders the report in the analyzer's line-oriented warning
// format:
//
//	warning:(memory check) use after free memory bug may exist
//	  --> src/main.rs:7:5
//	   |
//	 7 |     use x
//	   |     ^ then use here
//
// Source excerpts are included when the referenced file is readable from
// sourceDir; otherwise only the location lines are printed.
func WriteText(w io.Writer, r *Report, sourceDir string) error {
	for _, f := range r.Findings {
		if _, err := fmt.Fprintf(w, "warning:(memory check) %s\n", firstLine(f.ErrorMessage)); err != nil {
			return err
		}
		writeLocation(w, sourceDir, f.Path, f.LineNumber, f.Column, primaryNote(f))
		for _, rel := range f.Related {
			writeLocation(w, sourceDir, rel.Path, rel.LineNumber, rel.Column, rel.Message)
		}
		fmt.Fprintln(w)
	}
	for _, ue := range r.UnitErrors {
		if _, err := fmt.Fprintf(w, "error:(memory check) %s: %s\n", ue.File, ue.Message); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// primaryNote is the caret label on the finding's own location. The message
// body may carry a dedicated note after the first newline.
func primaryNote(f *Finding) string {
	if i := strings.IndexByte(f.ErrorMessage, '\n'); i >= 0 {
		return f.ErrorMessage[i+1:]
	}
	return "here"
}

func writeLocation(w io.Writer, sourceDir, path string, line, column int32, note string) {
	width := len(fmt.Sprint(line))
	fmt.Fprintf(w, "%s--> %s:%d:%d\n", strings.Repeat(" ", width), path, line, column)
	text, ok := readLine(sourceDir, path, int(line))
	if !ok {
		return
	}
	gutter := strings.Repeat(" ", width)
	fmt.Fprintf(w, "%s |\n", gutter)
	fmt.Fprintf(w, "%d | %s\n", line, text)
	caretCol := int(column)
	if caretCol < 1 {
		caretCol = 1
	}
	fmt.Fprintf(w, "%s | %s^ %s\n", gutter, strings.Repeat(" ", caretCol-1), note)
}

// readLine fetches one 1-based line from path, resolved under sourceDir
// when relative. Unreadable files degrade the output, never fail it.
func readLine(sourceDir, path string, line int) (string, bool) {
	full := path
	if sourceDir != "" && !strings.HasPrefix(path, "/") {
		full = sourceDir + "/" + path
	}
	f, err := os.Open(full)
	if err != nil {
		glog.V(1).Infof("source excerpt unavailable: %v", err)
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 1; scanner.Scan(); i++ {
		if i == line {
			return scanner.Text(), true
		}
	}
	return "", false
}
