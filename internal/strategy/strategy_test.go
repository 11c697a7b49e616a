// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/bookbatch/internal/catalog"
	"github.com/pdiddy/bookbatch/pkg/types"
)

// --- stub searcher ---

type stubSearcher struct {
	resp     catalog.SearchResponse
	err      error
	lastTerm string
	calls    int
}

func (s *stubSearcher) Search(_ context.Context, term, _ string, _ int) (catalog.SearchResponse, error) {
	s.calls++
	s.lastTerm = term
	return s.resp, s.err
}

func ok(editions ...types.Edition) catalog.SearchResponse {
	return catalog.SearchResponse{Success: true, Editions: editions}
}

func ed(id, title, author, publisher string) types.Edition {
	return types.Edition{WorkID: id, ContentHash: "h" + id, Title: title, Author: author, Publisher: publisher}
}

func testCfg() types.SearchConfig {
	return types.SearchConfig{Extension: "epub", SeedLimit: 50}
}

// --- Resolve ---

func TestResolveNoSearchTerms(t *testing.T) {
	s := &stubSearcher{}
	editions, trace, err := Resolve(context.Background(), types.SearchRequest{Title: "   "}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(editions) != 0 {
		t.Errorf("editions = %v, want none", editions)
	}
	if len(trace) != 1 || trace[0] != "no search terms" {
		t.Errorf("trace = %v, want [no search terms]", trace)
	}
	if s.calls != 0 {
		t.Errorf("searcher called %d times, want 0", s.calls)
	}
}

func TestResolveSeedTermSelection(t *testing.T) {
	tests := []struct {
		name     string
		req      types.SearchRequest
		wantTerm string
	}{
		{"title preferred", types.SearchRequest{Title: "Dune", Author: "Herbert", Publisher: "Ace"}, "Dune"},
		{"publisher when no title", types.SearchRequest{Author: "Herbert", Publisher: "Ace"}, "Ace"},
		{"author as last resort", types.SearchRequest{Author: "Herbert"}, "Herbert"},
		{"blank title falls through", types.SearchRequest{Title: "  ", Publisher: "Ace"}, "Ace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSearcher{resp: ok()}
			_, _, err := Resolve(context.Background(), tt.req, s, testCfg())
			if err != nil {
				t.Fatal(err)
			}
			if s.lastTerm != tt.wantTerm {
				t.Errorf("seed term = %q, want %q", s.lastTerm, tt.wantTerm)
			}
		})
	}
}

func TestResolveEmptySeedResultIsTerminal(t *testing.T) {
	s := &stubSearcher{resp: ok()}
	editions, _, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune", Publisher: "Ace"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(editions) != 0 {
		t.Errorf("editions = %v, want none", editions)
	}
	if s.calls != 1 {
		t.Errorf("searcher called %d times, want 1 (no alternate seed)", s.calls)
	}
}

func TestResolveStagedNarrowing(t *testing.T) {
	// Three candidates: two match the title, one of those matches the publisher.
	s := &stubSearcher{resp: ok(
		ed("1", "Dune", "Herbert", "Ace"),
		ed("2", "Dune Messiah", "Herbert", "Putnam"),
		ed("3", "Foundation", "Asimov", "Gnome"),
	)}

	editions, trace, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune", Publisher: "Ace"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(editions) != 1 || editions[0].WorkID != "1" {
		t.Fatalf("editions = %v, want the single Ace edition", editions)
	}

	joined := strings.Join(trace, "\n")
	if !strings.Contains(joined, `title filter "Dune" -> 2`) {
		t.Errorf("trace missing title stage count:\n%s", joined)
	}
	if !strings.Contains(joined, `publisher filter "Ace" -> 1`) {
		t.Errorf("trace missing publisher stage count:\n%s", joined)
	}
	if strings.Contains(joined, "emptied") {
		t.Errorf("no fallback expected:\n%s", joined)
	}
}

func TestResolvePublisherFallback(t *testing.T) {
	s := &stubSearcher{resp: ok(
		ed("1", "Dune", "Herbert", "Ace"),
		ed("2", "Dune", "Herbert", "Putnam"),
	)}

	editions, trace, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune", Publisher: "Gollancz"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	// The publisher constraint matches nothing, so the title-stage set survives.
	if len(editions) != 2 {
		t.Fatalf("editions = %v, want both title matches kept", editions)
	}
	if !strings.Contains(strings.Join(trace, "\n"), "emptied the set") {
		t.Errorf("trace should record the fallback: %v", trace)
	}
}

func TestResolveAuthorFallback(t *testing.T) {
	s := &stubSearcher{resp: ok(
		ed("1", "Dune", "Herbert", "Ace"),
		ed("2", "Dune", "Herbert", "Ace"),
	)}

	editions, _, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune", Author: "Asimov"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(editions) != 2 {
		t.Fatalf("editions = %v, want pre-author set kept", editions)
	}
}

func TestResolveAuthorStageSkippedForSingleCandidate(t *testing.T) {
	s := &stubSearcher{resp: ok(ed("1", "Dune", "Herbert", "Ace"))}

	editions, trace, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune", Author: "Nobody"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	// One candidate left after the title stage: author stage never runs,
	// even though the author would not match.
	if len(editions) != 1 {
		t.Fatalf("editions = %v, want single candidate kept", editions)
	}
	if strings.Contains(strings.Join(trace, "\n"), "author filter") {
		t.Errorf("author stage should be skipped: %v", trace)
	}
}

func TestResolveSearchFailureIsNotAnError(t *testing.T) {
	s := &stubSearcher{resp: catalog.SearchResponse{Success: false, Message: "backend offline"}}

	editions, trace, err := Resolve(context.Background(),
		types.SearchRequest{Title: "Dune"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(editions) != 0 {
		t.Errorf("editions = %v, want none", editions)
	}
	if !strings.Contains(strings.Join(trace, "\n"), "backend offline") {
		t.Errorf("trace should carry the catalog message: %v", trace)
	}
}

func TestResolveTransportError(t *testing.T) {
	s := &stubSearcher{err: errors.New("connection refused")}
	_, _, err := Resolve(context.Background(), types.SearchRequest{Title: "Dune"}, s, testCfg())
	if err == nil {
		t.Fatal("expected transport error")
	}
}

func TestResolveIdempotent(t *testing.T) {
	req := types.SearchRequest{Title: "Dune", Author: "Herbert", Publisher: "Ace"}
	resp := ok(
		ed("1", "Dune", "Herbert", "Ace"),
		ed("2", "Dune", "Herbert", "Putnam"),
	)

	first, firstTrace, err := Resolve(context.Background(), req, &stubSearcher{resp: resp}, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	second, secondTrace, err := Resolve(context.Background(), req, &stubSearcher{resp: resp}, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("result sets differ between identical runs")
	}
	if !reflect.DeepEqual(firstTrace, secondTrace) {
		t.Errorf("traces differ between identical runs")
	}
}

func TestResolveKeepsDuplicateEditions(t *testing.T) {
	dup := ed("1", "Dune", "Herbert", "Ace")
	s := &stubSearcher{resp: ok(dup, dup)}

	editions, _, err := Resolve(context.Background(), types.SearchRequest{Title: "Dune"}, s, testCfg())
	if err != nil {
		t.Fatal(err)
	}
	// Dedup is the selector's and ledger's job, not the strategy's.
	if len(editions) != 2 {
		t.Errorf("editions = %d, want duplicates preserved", len(editions))
	}
}

// --- ConfirmFormat ---

type stubChecker struct {
	formats map[string]map[string]catalog.FormatInfo
	errs    map[string]error
}

func (s *stubChecker) BookInfo(_ context.Context, workID, _ string) (map[string]catalog.FormatInfo, error) {
	if err := s.errs[workID]; err != nil {
		return nil, err
	}
	return s.formats[workID], nil
}

func TestConfirmFormat(t *testing.T) {
	checker := &stubChecker{
		formats: map[string]map[string]catalog.FormatInfo{
			"1": {"epub": {FileSize: "2.5 MB"}},
			"2": {"pdf": {FileSize: "11 MB"}},
		},
	}
	editions := []types.Edition{
		{WorkID: "1", ContentHash: "aa"},
		{WorkID: "2", ContentHash: "bb"},
	}

	kept, trace := ConfirmFormat(context.Background(), editions, "epub", checker)
	if len(kept) != 1 || kept[0].WorkID != "1" {
		t.Fatalf("kept = %+v, want only work 1", kept)
	}
	if kept[0].FileSize != "2.5 MB" {
		t.Errorf("file size = %q, want filled from format info", kept[0].FileSize)
	}
	if !strings.Contains(strings.Join(trace, "\n"), "no epub format for 2") {
		t.Errorf("trace = %v, missing drop line", trace)
	}
}

func TestConfirmFormatErrorDropsEdition(t *testing.T) {
	checker := &stubChecker{
		formats: map[string]map[string]catalog.FormatInfo{
			"1": {"epub": {}},
		},
		errs: map[string]error{"2": errors.New("boom")},
	}
	editions := []types.Edition{{WorkID: "1"}, {WorkID: "2"}}

	kept, _ := ConfirmFormat(context.Background(), editions, "epub", checker)
	if len(kept) != 1 || kept[0].WorkID != "1" {
		t.Fatalf("kept = %+v, want the checkable edition only", kept)
	}
}

func TestConfirmFormatEmptyExtensionKeepsAll(t *testing.T) {
	editions := []types.Edition{{WorkID: "1"}, {WorkID: "2"}}
	kept, trace := ConfirmFormat(context.Background(), editions, "", nil)
	if len(kept) != 2 || len(trace) != 0 {
		t.Fatalf("kept = %d, trace = %v, want pass-through", len(kept), trace)
	}
}

// --- SortByYear ---

func TestSortByYear(t *testing.T) {
	editions := []types.Edition{
		{WorkID: "a", Year: "1999"},
		{WorkID: "b", Year: "N/A"},
		{WorkID: "c", Year: "2021"},
		{WorkID: "d", Year: "c2005 printing"},
	}
	SortByYear(editions)

	var order []string
	for _, e := range editions {
		order = append(order, e.WorkID)
	}
	want := []string{"c", "d", "a", "b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}
