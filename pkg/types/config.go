// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bookbatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CatalogConfig holds settings for the remote catalog client.
type CatalogConfig struct {
	HTTPConfig `yaml:",inline"`

	// UserID and UserKey authenticate the catalog account. Usually loaded
	// from .secrets/ rather than the config file.
	UserID  string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	UserKey string `json:"user_key,omitempty" yaml:"user_key,omitempty"`
}

// SearchConfig holds settings for the constraint search stage.
type SearchConfig struct {
	// Extension restricts the catalog search to one file format (default "epub").
	Extension string `json:"extension" yaml:"extension"`

	// SeedLimit is the number of candidates requested from the catalog for
	// the single seed query (default 50).
	SeedLimit int `json:"seed_limit" yaml:"seed_limit"`

	// InterRequestDelay is the pause between consecutive catalog searches
	// in a batch run.
	InterRequestDelay time.Duration `json:"inter_request_delay" yaml:"inter_request_delay"`
}

// DownloadConfig holds settings for the download stage.
type DownloadConfig struct {
	// OutputDir is the directory downloaded files are written to.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// StateFile is the path of the durable ledger document.
	StateFile string `json:"state_file" yaml:"state_file"`

	// HistoryDir is the directory holding the attempt history database.
	HistoryDir string `json:"history_dir" yaml:"history_dir"`

	// MaxFailCount skips worklist items that have already failed this many
	// times. Zero means retry without limit.
	MaxFailCount int `json:"max_fail_count" yaml:"max_fail_count"`

	// DownloadDelay is the pause between consecutive downloads.
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`
}

// PipelineConfig groups all stage configurations. Built once in the CLI
// layer and passed into components explicitly; nothing reads global state.
type PipelineConfig struct {
	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Download DownloadConfig `json:"download" yaml:"download"`
}
