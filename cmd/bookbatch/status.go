// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookbatch/internal/history"
	"github.com/pdiddy/bookbatch/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show download progress and recent failures",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("state", "download_state.json", "ledger state file")
	statusCmd.Flags().String("history-dir", "state", "directory for the attempt history database")
	statusCmd.Flags().Int("failures", 10, "number of recent failures to list")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	statePath, _ := cmd.Flags().GetString("state")
	historyDir, _ := cmd.Flags().GetString("history-dir")
	failLimit, _ := cmd.Flags().GetInt("failures")

	led, err := ledger.Load(statePath)
	if err != nil {
		return err
	}

	s := led.Snapshot()
	fmt.Printf("downloaded: %d, pending: %d, failed: %d\n", len(s.Downloaded), len(s.Pending), len(s.Failed))
	if s.LastUpdate != "" {
		fmt.Printf("last update: %s\n", s.LastUpdate)
	}

	if len(s.Pending) > 0 {
		fmt.Println("\npending:")
		for _, e := range s.Pending {
			fmt.Printf("  %s (%s)\n", e.Title, e.WorkID)
		}
	}

	if len(s.Failed) > 0 {
		fmt.Println("\nfailed:")
		for _, f := range s.Failed {
			fmt.Printf("  %s (%s): %s, %d attempt(s)\n", f.Title, f.WorkID, f.FailReason, f.FailCount)
		}
	}

	// The history database only exists after the first real download run.
	if _, err := os.Stat(filepath.Join(historyDir, "history.db")); err == nil {
		hist, err := history.NewStore(historyDir)
		if err != nil {
			return err
		}
		defer hist.Close()

		ctx := context.Background()
		counts, err := hist.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nattempt history: %d downloaded, %d pending, %d failed\n",
			counts["downloaded"], counts["pending"], counts["failed"])

		failures, err := hist.RecentFailures(ctx, failLimit)
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			fmt.Println("recent failures:")
			for _, a := range failures {
				fmt.Printf("  %s %s (%s): %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Title, a.WorkID, a.Detail)
			}
		}
	}

	return nil
}
