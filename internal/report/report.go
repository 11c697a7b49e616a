// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the human-readable search report and reads it
// back after a human has marked versions for download.
//
// The report lists every resolved request with its strategy trace and a
// numbered version block per edition. To pick an edition, the reader
// prefixes its "[version N]" line with a "v". The parser only cares
// about version blocks; everything else is presentation.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/bookbatch/pkg/types"
)

// RequestResult pairs one search request with its resolution.
type RequestResult struct {
	Request  types.SearchRequest
	Trace    []string
	Editions []types.Edition
}

// Found reports whether the request resolved to at least one edition.
func (r RequestResult) Found() bool {
	return len(r.Editions) > 0
}

const rule = "===================================================================="
const thinRule = "--------------------------------------------------------------------"

// Write renders the full report for a batch search run.
func Write(w io.Writer, results []RequestResult, generatedAt time.Time) error {
	var found, notFound []RequestResult
	for _, r := range results {
		if r.Found() {
			found = append(found, r)
		} else {
			notFound = append(notFound, r)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "bookbatch search results")
	fmt.Fprintln(bw, rule)
	fmt.Fprintf(bw, "searched: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "requests: %d, found: %d, not found: %d\n", len(results), len(found), len(notFound))
	fmt.Fprintln(bw, rule)

	for _, r := range found {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, thinRule)
		fmt.Fprintf(bw, "request: %s\n", r.Request)
		fmt.Fprintln(bw, thinRule)

		if len(r.Trace) > 0 {
			fmt.Fprintln(bw, "strategy:")
			for _, line := range r.Trace {
				fmt.Fprintf(bw, "  %s\n", line)
			}
		}

		fmt.Fprintf(bw, "\nfound %d downloadable version(s):\n\n", len(r.Editions))
		for i, e := range r.Editions {
			writeVersion(bw, i+1, e)
		}
	}

	if len(notFound) > 0 {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, rule)
		fmt.Fprintln(bw, "not found")
		fmt.Fprintln(bw, rule)
		for i, r := range notFound {
			fmt.Fprintf(bw, "%d. %s\n", i+1, r.Request)
			for _, line := range r.Trace {
				fmt.Fprintf(bw, "   %s\n", line)
			}
		}
	}

	fmt.Fprintln(bw, rule)
	return bw.Flush()
}

func writeVersion(w io.Writer, n int, e types.Edition) {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	}
	fmt.Fprintf(w, "  [version %d]\n", n)
	fmt.Fprintf(w, "    Title: %s\n", orNA(e.Title))
	fmt.Fprintf(w, "    Author: %s\n", orNA(e.Author))
	fmt.Fprintf(w, "    Publisher: %s\n", orNA(e.Publisher))
	fmt.Fprintf(w, "    Year: %s\n", orNA(e.Year))
	fmt.Fprintf(w, "    Language: %s\n", orNA(e.Language))
	fmt.Fprintf(w, "    Pages: %s\n", orNA(e.Pages))
	fmt.Fprintf(w, "    File size: %s\n", orNA(e.FileSize))
	fmt.Fprintf(w, "    ID: %s\n", e.WorkID)
	fmt.Fprintf(w, "    Hash: %s\n", e.ContentHash)
	fmt.Fprintln(w)
}

// WriteFile renders the report to path.
func WriteFile(path string, results []RequestResult, generatedAt time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if err := Write(f, results, generatedAt); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

// versionHeader matches "[version 3]" with an optional "v" mark, in the
// forms "v[version 3]", "v [version 3]" and "v   [version 3]".
var versionHeader = regexp.MustCompile(`^(v)?\s*\[version\s*\d+\]`)

// Parse reads version blocks back from a marked report. A block is
// complete once its Hash line is seen; blocks missing ID or Hash are
// dropped. Field values with "N/A" come back empty.
func Parse(r io.Reader) ([]types.VersionBlock, error) {
	var blocks []types.VersionBlock

	var current types.VersionBlock
	inBlock := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if m := versionHeader.FindStringSubmatch(line); m != nil {
			current = types.VersionBlock{Marked: m[1] == "v"}
			inBlock = true
			continue
		}
		if !inBlock {
			continue
		}

		key, value, ok := splitField(line)
		if !ok {
			continue
		}
		switch key {
		case "Title":
			current.Title = value
		case "Author":
			current.Author = value
		case "Publisher":
			current.Publisher = value
		case "Year":
			current.Year = value
		case "Language":
			current.Language = value
		case "Pages":
			current.Pages = value
		case "File size":
			current.FileSize = value
		case "ID":
			current.WorkID = value
		case "Hash":
			current.ContentHash = value
			if current.HasIdentity() {
				blocks = append(blocks, current)
			}
			current = types.VersionBlock{}
			inBlock = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return blocks, nil
}

// ParseFile reads version blocks from the report at path.
func ParseFile(path string) ([]types.VersionBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

func splitField(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	if value == "N/A" {
		value = ""
	}
	return key, value, true
}
