// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bookbatch/internal/report"
	"github.com/pdiddy/bookbatch/internal/strategy"
	"github.com/pdiddy/bookbatch/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Resolve a batch of bibliographic requests against the catalog",
	Long: `Search reads a request file (a YAML or JSON list of title/author/publisher
queries), resolves each request to downloadable editions using a staged
constraint strategy, and writes a report of candidate versions. Mark a
version in the report with a leading "v" to queue it for download.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("requests", "requests.yaml", "request file (YAML or JSON list)")
	searchCmd.Flags().String("output", "report.txt", "report file to write")
	searchCmd.Flags().String("extension", "epub", "restrict the catalog search to one file format")
	searchCmd.Flags().Int("limit", 50, "candidates requested from the catalog per seed query")
	searchCmd.Flags().Duration("delay", 1*time.Second, "delay between consecutive catalog searches")
	searchCmd.Flags().Duration("timeout", 30*time.Second, "HTTP request timeout")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	requestsPath, _ := cmd.Flags().GetString("requests")
	outputPath, _ := cmd.Flags().GetString("output")
	extension, _ := cmd.Flags().GetString("extension")
	limit, _ := cmd.Flags().GetInt("limit")
	delay, _ := cmd.Flags().GetDuration("delay")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	requests, dups, err := strategy.LoadRequests(requestsPath)
	if err != nil {
		return err
	}
	for _, d := range dups {
		fmt.Fprintf(os.Stderr, "warning: request %d repeats request %d (%s), using the first\n",
			d.Index, d.FirstIndex, d.Request)
	}
	if len(requests) == 0 {
		return fmt.Errorf("no search requests in %s", requestsPath)
	}

	client := newCatalogClient(timeout)
	ctx := context.Background()

	// Account check up front: bad credentials should fail the run before
	// the first real search, and the quota is worth knowing early.
	acct, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("catalog account check failed: %w", err)
	}
	fmt.Printf("account %s, %d of %d downloads left today\n", acct.Name, acct.DownloadsLeft, acct.DownloadsLimit)

	cfg := types.SearchConfig{
		Extension:         extension,
		SeedLimit:         limit,
		InterRequestDelay: delay,
	}

	var results []report.RequestResult
	found := 0
	for i, req := range requests {
		if i > 0 && cfg.InterRequestDelay > 0 {
			time.Sleep(cfg.InterRequestDelay)
		}
		fmt.Printf("[%d/%d] %s\n", i+1, len(requests), req)

		editions, trace, err := strategy.Resolve(ctx, req, client, cfg)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", req, err)
		}
		editions, formatTrace := strategy.ConfirmFormat(ctx, editions, extension, client)
		trace = append(trace, formatTrace...)
		strategy.SortByYear(editions)

		if len(editions) > 0 {
			found++
			fmt.Printf("  found %d version(s)\n", len(editions))
		} else {
			fmt.Println("  not found")
		}
		results = append(results, report.RequestResult{Request: req, Trace: trace, Editions: editions})
	}

	if err := report.WriteFile(outputPath, results, time.Now()); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d requests resolved, report written to %s\n", found, len(requests), outputPath)
	return nil
}
