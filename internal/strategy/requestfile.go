// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package strategy

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bookbatch/pkg/types"
)

// Duplicate records a search request that repeats an earlier one in the
// same file. Identity is the verbatim title|author|publisher triple.
type Duplicate struct {
	Index      int // 1-based position of the repeated request
	FirstIndex int // 1-based position of its first occurrence
	Request    types.SearchRequest
}

// LoadRequests reads a request file: a YAML (or JSON) sequence of search
// requests. Requests with no usable terms are rejected. Duplicates are
// collapsed to their first occurrence and reported so the caller can warn.
func LoadRequests(path string) ([]types.SearchRequest, []Duplicate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading request file: %w", err)
	}

	var requests []types.SearchRequest
	if err := yaml.Unmarshal(data, &requests); err != nil {
		return nil, nil, fmt.Errorf("parsing request file %s: %w", path, err)
	}

	seen := make(map[string]int)
	var unique []types.SearchRequest
	var dups []Duplicate

	for i, req := range requests {
		if req.IsEmpty() {
			return nil, nil, fmt.Errorf("request %d has no search terms", i+1)
		}
		key := req.Identity()
		if first, ok := seen[key]; ok {
			dups = append(dups, Duplicate{Index: i + 1, FirstIndex: first, Request: req})
			continue
		}
		seen[key] = i + 1
		unique = append(unique, req)
	}

	return unique, dups, nil
}
