// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download drives the download worklist against the catalog under
// the account's daily quota, recording every outcome in the ledger.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/bookbatch/internal/catalog"
	"github.com/pdiddy/bookbatch/internal/ledger"
	"github.com/pdiddy/bookbatch/pkg/types"
)

// Downloader fetches one edition's file. *catalog.Client satisfies it.
type Downloader interface {
	Download(ctx context.Context, workID, contentHash string) (filename string, data []byte, err error)
}

// Recorder receives the outcome of each attempt for the run history.
// *history.Store satisfies it. A nil Recorder disables history.
type Recorder interface {
	Record(e types.Edition, outcome, detail string) error
}

// Summary holds the outcome counts of one run.
type Summary struct {
	Downloaded int
	Pending    int
	Failed     int
	Skipped    int
}

// Total returns the number of worklist items accounted for.
func (s Summary) Total() int {
	return s.Downloaded + s.Pending + s.Failed + s.Skipped
}

// Run processes the worklist in order, one download at a time.
//
// The loop body is not entered once successes reach quotaLeft; everything
// not yet attempted moves to pending in one batch. A quota-exhausted
// answer from the catalog also parks the current and all remaining items
// as pending and stops the run, since the quota is global. Any other
// failure is recorded and the run continues with the next item.
//
// The ledger is persisted after every mutation, so the durable state
// never lags the run by more than one item. A persist failure aborts the
// run: continuing would silently widen the window of lost progress.
func Run(ctx context.Context, worklist []types.Edition, quotaLeft int, dl Downloader, led *ledger.Ledger, rec Recorder, cfg types.DownloadConfig, w io.Writer) (Summary, error) {
	var sum Summary

	// Retry ceiling: items that have already failed too often are
	// skipped up front rather than burning quota on them again.
	if cfg.MaxFailCount > 0 {
		var kept []types.Edition
		for _, e := range worklist {
			if led.FailCountFor(e) >= cfg.MaxFailCount {
				fmt.Fprintf(w, "skipped: %s (failed %d times)\n", e.Title, led.FailCountFor(e))
				sum.Skipped++
				continue
			}
			kept = append(kept, e)
		}
		worklist = kept
	}

	for i, e := range worklist {
		if sum.Downloaded >= quotaLeft {
			fmt.Fprintf(w, "quota reached (%d): parking %d remaining item(s) as pending\n",
				quotaLeft, len(worklist)-i)
			if err := parkRemaining(worklist[i:], led, rec, &sum); err != nil {
				return sum, err
			}
			break
		}

		if i > 0 && cfg.DownloadDelay > 0 {
			time.Sleep(cfg.DownloadDelay)
		}

		filename, data, err := dl.Download(ctx, e.WorkID, e.ContentHash)
		if err != nil {
			if errors.Is(err, catalog.ErrQuotaExhausted) {
				fmt.Fprintf(w, "quota exhausted at %s: parking it and %d remaining item(s) as pending\n",
					e.Title, len(worklist)-i-1)
				if err := parkRemaining(worklist[i:], led, rec, &sum); err != nil {
					return sum, err
				}
				break
			}

			fmt.Fprintf(w, "failed:  %s (%v)\n", e.Title, err)
			led.RecordFailure(e, err.Error())
			if perr := led.Persist(); perr != nil {
				return sum, perr
			}
			record(rec, e, "failed", err.Error())
			sum.Failed++
			continue
		}

		path, err := saveFile(cfg.OutputDir, filename, data)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", e.Title, err)
			led.RecordFailure(e, err.Error())
			if perr := led.Persist(); perr != nil {
				return sum, perr
			}
			record(rec, e, "failed", err.Error())
			sum.Failed++
			continue
		}

		fmt.Fprintf(w, "downloaded: %s -> %s\n", e.Title, path)
		led.RecordSuccess(e)
		if perr := led.Persist(); perr != nil {
			return sum, perr
		}
		record(rec, e, "downloaded", path)
		sum.Downloaded++
	}

	fmt.Fprintf(w, "\nRun summary: %d downloaded, %d pending, %d failed, %d skipped\n",
		sum.Downloaded, sum.Pending, sum.Failed, sum.Skipped)
	return sum, nil
}

// parkRemaining moves items into pending in one batch and persists once.
func parkRemaining(items []types.Edition, led *ledger.Ledger, rec Recorder, sum *Summary) error {
	for _, e := range items {
		led.RecordPending(e)
		record(rec, e, "pending", "daily quota")
		sum.Pending++
	}
	return led.Persist()
}

func record(rec Recorder, e types.Edition, outcome, detail string) {
	if rec == nil {
		return
	}
	if err := rec.Record(e, outcome, detail); err != nil {
		fmt.Fprintf(os.Stderr, "warning: history record failed: %v\n", err)
	}
}

// saveFile writes the payload to outputDir using a temp file and rename,
// and returns the final path.
func saveFile(outputDir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	dest := filepath.Join(outputDir, sanitizeFilename(filename))

	tmp, err := os.CreateTemp(outputDir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}

// sanitizeFilename strips path components and characters that are unsafe
// in catalog-supplied filenames.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "download.bin"
	}
	return name
}
