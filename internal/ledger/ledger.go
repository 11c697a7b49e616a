// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps the durable record of download progress: which
// editions are downloaded, which are pending because of the daily quota,
// and which failed. The whole document is rewritten on every persist so a
// crash loses at most the in-flight item.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/bookbatch/pkg/types"
)

// FailedEntry is a failed edition with its failure bookkeeping.
type FailedEntry struct {
	types.Edition
	FailReason string `json:"fail_reason"`
	FailCount  int    `json:"fail_count"`
}

// State is the persisted ledger document. It round-trips exactly through
// save and load.
type State struct {
	Downloaded []types.Edition `json:"downloaded"`
	Pending    []types.Edition `json:"pending"`
	Failed     []FailedEntry   `json:"failed"`
	LastUpdate string          `json:"last_update"`
}

// Ledger tracks download outcomes in memory and persists them to one JSON
// file. Single writer; no locking.
type Ledger struct {
	path  string
	state State
	now   func() time.Time
}

// Load reads the ledger document at path, or starts an empty ledger when
// the file does not exist yet. A structurally invalid file is an error,
// not an empty state, so a corrupt document never silently erases
// progress.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &l.state); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	return l, nil
}

// RecordSuccess moves an edition into the downloaded bucket. Idempotent:
// a key already downloaded is left alone. The key is always removed from
// pending, and a matching failed entry is dropped because the edition is
// now resolved.
func (l *Ledger) RecordSuccess(e types.Edition) {
	if !l.isDownloaded(e) {
		l.state.Downloaded = append(l.state.Downloaded, e)
	}
	l.state.Pending = removeEdition(l.state.Pending, e)

	kept := l.state.Failed[:0]
	for _, f := range l.state.Failed {
		if !types.SameEdition(f.Edition, e) {
			kept = append(kept, f)
		}
	}
	l.state.Failed = kept
}

// RecordPending adds an edition to the pending bucket if its key is not
// already there.
func (l *Ledger) RecordPending(e types.Edition) {
	for _, p := range l.state.Pending {
		if types.SameEdition(p, e) {
			return
		}
	}
	l.state.Pending = append(l.state.Pending, e)
}

// RecordFailure records a failed attempt. A repeated failure of the same
// key updates the reason and increments the count.
func (l *Ledger) RecordFailure(e types.Edition, reason string) {
	for i := range l.state.Failed {
		if types.SameEdition(l.state.Failed[i].Edition, e) {
			l.state.Failed[i].FailReason = reason
			l.state.Failed[i].FailCount++
			return
		}
	}
	l.state.Failed = append(l.state.Failed, FailedEntry{Edition: e, FailReason: reason, FailCount: 1})
}

// MergeResumedPending appends persisted pending entries whose key is not
// already in worklist, keeping the worklist's order first and the resumed
// items after it.
func (l *Ledger) MergeResumedPending(worklist []types.Edition) []types.Edition {
	merged := append([]types.Edition(nil), worklist...)
	for _, p := range l.state.Pending {
		if !containsEdition(merged, p) {
			merged = append(merged, p)
		}
	}
	return merged
}

// FilterAlreadyDownloaded drops worklist items whose work id matches a
// downloaded entry. The match is deliberately by work alone, not by
// edition key: a different file of an already-obtained work still counts
// as obtained.
func (l *Ledger) FilterAlreadyDownloaded(worklist []types.Edition) []types.Edition {
	var kept []types.Edition
	for _, e := range worklist {
		have := false
		for _, d := range l.state.Downloaded {
			if types.SameWork(d, e) {
				have = true
				break
			}
		}
		if !have {
			kept = append(kept, e)
		}
	}
	return kept
}

// FailCountFor returns how many times the edition has failed, for
// caller-supplied retry-ceiling policies. Zero means no recorded failure.
func (l *Ledger) FailCountFor(e types.Edition) int {
	for _, f := range l.state.Failed {
		if types.SameEdition(f.Edition, e) {
			return f.FailCount
		}
	}
	return 0
}

// Counts returns the bucket sizes (downloaded, pending, failed).
func (l *Ledger) Counts() (int, int, int) {
	return len(l.state.Downloaded), len(l.state.Pending), len(l.state.Failed)
}

// Snapshot returns a copy of the current document for display.
func (l *Ledger) Snapshot() State {
	return State{
		Downloaded: append([]types.Edition(nil), l.state.Downloaded...),
		Pending:    append([]types.Edition(nil), l.state.Pending...),
		Failed:     append([]FailedEntry(nil), l.state.Failed...),
		LastUpdate: l.state.LastUpdate,
	}
}

// Persist writes the whole document to a temp file in the target
// directory and renames it over the previous one, so a failed write never
// corrupts the durable copy.
func (l *Ledger) Persist() error {
	l.state.LastUpdate = l.now().Format(time.RFC3339)

	data, err := json.MarshalIndent(&l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing ledger: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp ledger: %w", closeErr)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func (l *Ledger) isDownloaded(e types.Edition) bool {
	return containsEdition(l.state.Downloaded, e)
}

func containsEdition(list []types.Edition, e types.Edition) bool {
	for _, x := range list {
		if types.SameEdition(x, e) {
			return true
		}
	}
	return false
}

func removeEdition(list []types.Edition, e types.Edition) []types.Edition {
	kept := list[:0]
	for _, x := range list {
		if !types.SameEdition(x, e) {
			kept = append(kept, x)
		}
	}
	return kept
}
