// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package strategy narrows a fuzzy bibliographic query down to the best
// matching set of catalog editions.
//
// The strategy issues a single broad catalog search for a seed term, then
// filters the candidates locally in stages: title, publisher, author. A
// stage that would empty a non-empty candidate set is discarded and the
// previous set kept, so one over-strict constraint never loses valid
// candidates. Every stage is recorded in a human-readable trace.
package strategy

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/bookbatch/internal/catalog"
	"github.com/pdiddy/bookbatch/internal/match"
	"github.com/pdiddy/bookbatch/pkg/types"
)

// Searcher is the one catalog capability the strategy needs. *catalog.Client
// satisfies it; tests substitute a stub.
type Searcher interface {
	Search(ctx context.Context, term, extension string, limit int) (catalog.SearchResponse, error)
}

// Resolve runs the staged narrowing for one request. It returns the
// matching editions and a trace describing each stage. Absence of a match
// is a normal outcome: an empty slice with a trace, not an error. The
// error return is reserved for transport failures.
func Resolve(ctx context.Context, req types.SearchRequest, searcher Searcher, cfg types.SearchConfig) ([]types.Edition, []string, error) {
	if req.IsEmpty() {
		return nil, []string{"no search terms"}, nil
	}

	title := strings.TrimSpace(req.Title)
	author := strings.TrimSpace(req.Author)
	publisher := strings.TrimSpace(req.Publisher)

	var trace []string

	// The seed term is the most precise field available: title first,
	// then publisher, then author.
	var seed string
	switch {
	case title != "":
		seed = title
		trace = append(trace, fmt.Sprintf("seed term: %q", seed))
	case publisher != "":
		seed = publisher
		trace = append(trace, fmt.Sprintf("seed term: %q (no title, using publisher)", seed))
	default:
		seed = author
		trace = append(trace, fmt.Sprintf("seed term: %q (no title or publisher, using author)", seed))
	}

	limit := cfg.SeedLimit
	if limit <= 0 {
		limit = 50
	}

	resp, err := searcher.Search(ctx, seed, cfg.Extension, limit)
	if err != nil {
		return nil, trace, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		trace = append(trace, "catalog search failed: "+msg)
		return nil, trace, nil
	}

	candidates := resp.Editions
	trace = append(trace, fmt.Sprintf("catalog search %q -> %d candidates", seed, len(candidates)))

	// An empty seed result is terminal; no alternate seed is tried.
	if len(candidates) == 0 {
		return nil, trace, nil
	}

	// Stage A: title filter, pass-through when the request has no title.
	if title != "" {
		candidates = filter(candidates, title, func(e types.Edition) string { return e.Title })
		trace = append(trace, fmt.Sprintf("title filter %q -> %d", title, len(candidates)))
	}

	// Stage B: publisher filter, only worth running while more than one
	// candidate remains.
	if len(candidates) > 1 && publisher != "" {
		narrowed := filter(candidates, publisher, func(e types.Edition) string { return e.Publisher })
		if len(narrowed) == 0 {
			trace = append(trace, fmt.Sprintf("publisher filter %q emptied the set, keeping %d candidates", publisher, len(candidates)))
		} else {
			candidates = narrowed
			trace = append(trace, fmt.Sprintf("publisher filter %q -> %d", publisher, len(candidates)))
		}
	}

	// Stage C: author filter, same gating and fallback as stage B.
	if len(candidates) > 1 && author != "" {
		narrowed := filter(candidates, author, func(e types.Edition) string { return e.Author })
		if len(narrowed) == 0 {
			trace = append(trace, fmt.Sprintf("author filter %q emptied the set, keeping %d candidates", author, len(candidates)))
		} else {
			candidates = narrowed
			trace = append(trace, fmt.Sprintf("author filter %q -> %d", author, len(candidates)))
		}
	}

	trace = append(trace, fmt.Sprintf("resolved %d edition(s)", len(candidates)))
	return candidates, trace, nil
}

func filter(editions []types.Edition, query string, field func(types.Edition) string) []types.Edition {
	var kept []types.Edition
	for _, e := range editions {
		if match.Matches(query, field(e)) {
			kept = append(kept, e)
		}
	}
	return kept
}

// FormatChecker is the per-edition format lookup ConfirmFormat needs.
// *catalog.Client satisfies it.
type FormatChecker interface {
	BookInfo(ctx context.Context, workID, contentHash string) (map[string]catalog.FormatInfo, error)
}

// ConfirmFormat keeps only editions actually available in the requested
// extension and fills in their file size from the format info. An edition
// whose info cannot be fetched is dropped with a trace line rather than
// failing the request. An empty extension keeps everything.
func ConfirmFormat(ctx context.Context, editions []types.Edition, extension string, checker FormatChecker) ([]types.Edition, []string) {
	if extension == "" {
		return editions, nil
	}

	ext := strings.ToLower(strings.TrimSpace(extension))
	var kept []types.Edition
	var trace []string
	for _, e := range editions {
		formats, err := checker.BookInfo(ctx, e.WorkID, e.ContentHash)
		if err != nil {
			trace = append(trace, fmt.Sprintf("format check failed for %s: %v", e.WorkID, err))
			continue
		}
		f, ok := formats[ext]
		if !ok {
			trace = append(trace, fmt.Sprintf("no %s format for %s", ext, e.WorkID))
			continue
		}
		if f.FileSize != "" {
			e.FileSize = f.FileSize
		}
		kept = append(kept, e)
	}
	if dropped := len(editions) - len(kept); dropped > 0 {
		trace = append(trace, fmt.Sprintf("format check %s -> %d", ext, len(kept)))
	}
	return kept, trace
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// SortByYear orders editions newest first. Editions without a parseable
// four-digit year sort last. The sort is stable so catalog order breaks ties.
func SortByYear(editions []types.Edition) {
	sort.SliceStable(editions, func(i, j int) bool {
		return extractYear(editions[i].Year) > extractYear(editions[j].Year)
	})
}

func extractYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}
