// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bookbatch CLI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bookbatch/internal/catalog"
	"github.com/pdiddy/bookbatch/internal/secrets"
	"github.com/pdiddy/bookbatch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const defaultUserAgent = "bookbatch/0.1"

// loadedSecrets holds catalog credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the bookbatch CLI.
var rootCmd = &cobra.Command{
	Use:   "bookbatch",
	Short: "Batch search and download editions from a remote book catalog",
	Long: `bookbatch resolves fuzzy bibliographic queries (title, author, publisher)
to concrete catalog editions and downloads the ones a reader marks, keeping
durable progress state so interrupted runs resume where they left off.

The workflow is two commands: search writes a report of candidate versions
per request; the reader marks versions in the report; download fetches the
marked versions under the account's daily quota.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bookbatch.yaml or ~/.config/bookbatch/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bookbatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bookbatch"))
		}
	}

	viper.SetEnvPrefix("BOOKBATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// catalogConfig assembles catalog settings from flags, the config file,
// and the secrets directory, in that order of precedence.
func catalogConfig(timeout time.Duration) types.CatalogConfig {
	cfg := types.CatalogConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		UserID:  viper.GetString("catalog.user_id"),
		UserKey: viper.GetString("catalog.user_key"),
	}
	if cfg.UserID == "" {
		cfg.UserID = loadedSecrets[secrets.CatalogUserID]
	}
	if cfg.UserKey == "" {
		cfg.UserKey = loadedSecrets[secrets.CatalogUserKey]
	}
	return cfg
}

// newCatalogClient builds the HTTP client for a command.
func newCatalogClient(timeout time.Duration) *catalog.Client {
	cfg := catalogConfig(timeout)
	return catalog.New(&http.Client{Timeout: cfg.Timeout}, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
