// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookbatch/internal/download"
	"github.com/pdiddy/bookbatch/internal/history"
	"github.com/pdiddy/bookbatch/internal/ledger"
	"github.com/pdiddy/bookbatch/internal/report"
	"github.com/pdiddy/bookbatch/internal/selector"
	"github.com/pdiddy/bookbatch/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the versions marked in a search report",
	Long: `Download parses the marked report, builds a worklist (marked versions
plus lone unmarked candidates), merges in items left pending by earlier
runs, drops works already downloaded, and fetches files until the daily
quota runs out. Everything not fetched is parked as pending and picked up
by the next run.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("report", "report.txt", "marked report file to read")
	downloadCmd.Flags().String("output-dir", "downloads", "directory downloaded files are written to")
	downloadCmd.Flags().String("state", "download_state.json", "ledger state file")
	downloadCmd.Flags().String("history-dir", "state", "directory for the attempt history database")
	downloadCmd.Flags().Bool("dry-run", false, "preview the worklist without downloading")
	downloadCmd.Flags().Bool("force", false, "ignore downloaded/pending records from earlier runs")
	downloadCmd.Flags().Int("max-fail", 0, "skip items that already failed this many times (0 = no limit)")
	downloadCmd.Flags().Duration("delay", 1*time.Second, "delay between consecutive downloads")
	downloadCmd.Flags().Duration("timeout", 60*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	reportPath, _ := cmd.Flags().GetString("report")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	statePath, _ := cmd.Flags().GetString("state")
	historyDir, _ := cmd.Flags().GetString("history-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	maxFail, _ := cmd.Flags().GetInt("max-fail")
	delay, _ := cmd.Flags().GetDuration("delay")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	blocks, err := report.ParseFile(reportPath)
	if err != nil {
		return err
	}
	worklist := selector.SelectTargets(blocks)
	fmt.Printf("%d version(s) selected from %s\n", len(worklist), reportPath)

	led, err := ledger.Load(statePath)
	if err != nil {
		return err
	}

	if !force {
		before := len(worklist)
		worklist = led.MergeResumedPending(worklist)
		if resumed := len(worklist) - before; resumed > 0 {
			fmt.Printf("resumed %d pending item(s) from the previous run\n", resumed)
		}

		before = len(worklist)
		worklist = led.FilterAlreadyDownloaded(worklist)
		if dropped := before - len(worklist); dropped > 0 {
			fmt.Printf("dropped %d already-downloaded work(s)\n", dropped)
		}
	}

	if len(worklist) == 0 {
		fmt.Println("nothing to download")
		return nil
	}

	client := newCatalogClient(timeout)
	ctx := context.Background()

	acct, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("catalog account check failed: %w", err)
	}
	fmt.Printf("account %s, %d of %d downloads left today\n", acct.Name, acct.DownloadsLeft, acct.DownloadsLimit)

	if dryRun {
		fmt.Printf("\ndry run: %d item(s) queued\n\n", len(worklist))
		for i, e := range worklist {
			fmt.Printf("%d. %s (%s) id=%s hash=%s\n", i+1, e.Title, e.Author, e.WorkID, e.ContentHash)
		}
		if len(worklist) > acct.DownloadsLeft {
			fmt.Printf("\n%d item(s) exceed today's quota and would be parked as pending\n",
				len(worklist)-acct.DownloadsLeft)
		}
		return nil
	}

	hist, err := history.NewStore(historyDir)
	if err != nil {
		return err
	}
	defer hist.Close()

	cfg := types.DownloadConfig{
		OutputDir:     outputDir,
		StateFile:     statePath,
		HistoryDir:    historyDir,
		MaxFailCount:  maxFail,
		DownloadDelay: delay,
	}

	sum, err := download.Run(ctx, worklist, acct.DownloadsLeft, client, led, hist, cfg, os.Stdout)
	if err != nil {
		return err
	}

	downloaded, pending, failed := led.Counts()
	fmt.Printf("ledger totals: %d downloaded, %d pending, %d failed\n", downloaded, pending, failed)
	if sum.Failed > 0 {
		return fmt.Errorf("%d item(s) failed this run", sum.Failed)
	}
	return nil
}
