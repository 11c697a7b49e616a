// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector turns the marked version blocks of a report into a
// download worklist, one edition per work.
package selector

import "github.com/pdiddy/bookbatch/pkg/types"

// SelectTargets picks at most one edition per work-title group:
//
//   - the first marked block with a complete identity wins;
//   - an unmarked group with exactly one block is selected automatically;
//   - an unmarked group with several blocks is ambiguous and yields
//     nothing until a human marks one.
//
// Output follows the discovery order of title groups. A work is never
// selected twice, even when title variants put it in several groups.
func SelectTargets(blocks []types.VersionBlock) []types.Edition {
	groups := make(map[string][]types.VersionBlock)
	var order []string
	for _, b := range blocks {
		if _, seen := groups[b.Title]; !seen {
			order = append(order, b.Title)
		}
		groups[b.Title] = append(groups[b.Title], b)
	}

	var targets []types.Edition
	selected := make(map[string]bool) // by work id

	add := func(e types.Edition) {
		if selected[e.WorkID] {
			return
		}
		selected[e.WorkID] = true
		targets = append(targets, e)
	}

	for _, title := range order {
		group := groups[title]

		marked := false
		for _, b := range group {
			if b.Marked && b.HasIdentity() {
				add(b.Edition)
				marked = true
				break
			}
		}
		if marked {
			continue
		}

		if len(group) == 1 && group[0].HasIdentity() {
			add(group[0].Edition)
		}
	}

	return targets
}
