// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/bookbatch/pkg/types"
)

func sampleResults() []RequestResult {
	return []RequestResult{
		{
			Request: types.SearchRequest{Title: "Dune", Publisher: "Ace"},
			Trace:   []string{`seed term: "Dune"`, `catalog search "Dune" -> 3 candidates`},
			Editions: []types.Edition{
				{WorkID: "1", ContentHash: "aa", Title: "Dune", Author: "Frank Herbert",
					Publisher: "Ace", Year: "1990", Language: "English", Pages: "412", FileSize: "1.2 MB"},
				{WorkID: "2", ContentHash: "bb", Title: "Dune", Author: "Frank Herbert"},
			},
		},
		{
			Request: types.SearchRequest{Title: "Unobtainium"},
			Trace:   []string{`seed term: "Unobtainium"`, `catalog search "Unobtainium" -> 0 candidates`},
		},
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResults(), time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}

	blocks, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("len(blocks) = %d, want 2", len(blocks))
	}

	first := blocks[0]
	if first.Marked {
		t.Error("freshly written report should have no marks")
	}
	if first.WorkID != "1" || first.ContentHash != "aa" {
		t.Errorf("identity = %s/%s, want 1/aa", first.WorkID, first.ContentHash)
	}
	if first.Title != "Dune" || first.Publisher != "Ace" || first.Year != "1990" {
		t.Errorf("metadata did not round-trip: %+v", first)
	}

	// Absent fields were written as N/A and come back empty.
	if blocks[1].Publisher != "" || blocks[1].Language != "" {
		t.Errorf("N/A fields should parse as empty, got %+v", blocks[1])
	}
}

func TestWriteListsNotFoundRequests(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResults(), time.Now()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "not found") {
		t.Error("report should carry a not-found section")
	}
	if !strings.Contains(out, "Unobtainium") {
		t.Error("not-found section should name the request")
	}
	if !strings.Contains(out, `seed term: "Dune"`) {
		t.Error("report should include the strategy trace")
	}
}

func TestParseMarks(t *testing.T) {
	input := `
  [version 1]
    Title: Dune
    ID: 1
    Hash: aa

v [version 2]
    Title: Dune
    ID: 2
    Hash: bb

v[version 3]
    Title: Dune Messiah
    ID: 3
    Hash: cc
`
	blocks, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 3 {
		t.Fatalf("len(blocks) = %d, want 3", len(blocks))
	}
	wantMarked := []bool{false, true, true}
	for i, b := range blocks {
		if b.Marked != wantMarked[i] {
			t.Errorf("block %d marked = %v, want %v", i+1, b.Marked, wantMarked[i])
		}
	}
}

func TestParseDropsIncompleteBlocks(t *testing.T) {
	input := `
  [version 1]
    Title: No identity here
    Hash: aa

  [version 2]
    Title: Complete
    ID: 2
    Hash: bb
`
	blocks, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 || blocks[0].WorkID != "2" {
		t.Errorf("blocks = %+v, want only the complete block", blocks)
	}
}

func TestParseIgnoresProseOutsideBlocks(t *testing.T) {
	input := `
request: title: Dune | author: N/A | publisher: Ace
strategy:
  seed term: "Dune"

  [version 1]
    Title: Dune
    ID: 1
    Hash: aa
`
	blocks, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	if blocks[0].Title != "Dune" {
		t.Errorf("title = %q, want Dune", blocks[0].Title)
	}
}
