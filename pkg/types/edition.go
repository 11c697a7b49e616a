// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bookbatch pipeline.
package types

import "strings"

// Edition identifies one downloadable instance of a work. Two editions with
// equal (WorkID, ContentHash) are the same entity; every other field is
// non-identifying metadata and may differ between redundant reports of the
// same edition.
type Edition struct {
	// WorkID is the catalog identifier of the work.
	WorkID string `json:"id" yaml:"id"`

	// ContentHash is the catalog hash of this particular file.
	ContentHash string `json:"hash" yaml:"hash"`

	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Author    string `json:"author,omitempty" yaml:"author,omitempty"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Year      string `json:"year,omitempty" yaml:"year,omitempty"`
	Language  string `json:"language,omitempty" yaml:"language,omitempty"`

	// FileSize is the human-readable size reported by the catalog ("1.2 MB").
	FileSize string `json:"file_size,omitempty" yaml:"file_size,omitempty"`

	Pages    string `json:"pages,omitempty" yaml:"pages,omitempty"`
	CoverURL string `json:"cover,omitempty" yaml:"cover,omitempty"`
}

// Key returns the full identity of the edition, used for ledger bookkeeping.
func (e Edition) Key() string {
	return e.WorkID + "_" + e.ContentHash
}

// SameEdition reports whether two editions are the same downloadable file.
func SameEdition(a, b Edition) bool {
	return a.WorkID == b.WorkID && a.ContentHash == b.ContentHash
}

// SameWork reports whether two editions belong to the same work, ignoring
// the content hash. Deliberately coarser than SameEdition: a different
// file of an already-obtained work still counts as the same work.
func SameWork(a, b Edition) bool {
	return a.WorkID == b.WorkID
}

// HasIdentity reports whether both identity fields are present.
func (e Edition) HasIdentity() bool {
	return e.WorkID != "" && e.ContentHash != ""
}

// SearchRequest holds the bibliographic constraints for one catalog lookup.
// At least one field must be non-blank for the request to be searchable.
type SearchRequest struct {
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	Author    string `json:"author,omitempty" yaml:"author,omitempty"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
}

// IsEmpty reports whether the request contains no usable search terms.
// Whitespace-only fields count as absent.
func (r SearchRequest) IsEmpty() bool {
	return strings.TrimSpace(r.Title) == "" &&
		strings.TrimSpace(r.Author) == "" &&
		strings.TrimSpace(r.Publisher) == ""
}

// Identity returns the dedup key for the request: the three fields joined
// verbatim, case-sensitive, with empty strings for absent fields.
func (r SearchRequest) Identity() string {
	return r.Title + "|" + r.Author + "|" + r.Publisher
}

// String returns a display form for progress output and report headers.
func (r SearchRequest) String() string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "N/A"
		}
		return s
	}
	return "title: " + orNA(r.Title) + " | author: " + orNA(r.Author) + " | publisher: " + orNA(r.Publisher)
}

// VersionBlock is one edition entry read back from a report, tagged with
// whether the reader marked it for download.
type VersionBlock struct {
	Edition
	Marked bool
}
