// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog is the HTTP client for the remote book catalog and
// account service. It covers the four calls the pipeline needs: search,
// per-edition format info, file download, and the account profile with
// the remaining daily quota.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/bookbatch/internal/httputil"
	"github.com/pdiddy/bookbatch/pkg/types"
)

// BaseURL is the catalog API root. Declared as a var so tests can
// substitute an httptest server.
var BaseURL = "https://zlibrary-global.se"

// ErrQuotaExhausted reports that the account's daily download quota is
// used up. The download loop treats it as a global stop condition, unlike
// per-item failures.
var ErrQuotaExhausted = errors.New("daily download quota exhausted")

// Client talks to the catalog API on behalf of one account.
type Client struct {
	http *http.Client
	cfg  types.CatalogConfig
}

// New returns a client using the given HTTP client and account settings.
func New(httpClient *http.Client, cfg types.CatalogConfig) *Client {
	return &Client{http: httpClient, cfg: cfg}
}

// SearchResponse is the catalog's answer to a search call.
type SearchResponse struct {
	Success  bool
	Message  string
	Editions []types.Edition
}

type searchJSON struct {
	Success intBool    `json:"success"`
	Message string     `json:"message"`
	Books   []bookJSON `json:"books"`
}

type bookJSON struct {
	ID        json.Number `json:"id"`
	Hash      string      `json:"hash"`
	Title     string      `json:"title"`
	Author    string      `json:"author"`
	Publisher string      `json:"publisher"`
	Year      string      `json:"year"`
	Language  string      `json:"language"`
	Pages     json.Number `json:"pages"`
	Cover     string      `json:"cover"`
	FileSize  string      `json:"filesizeString"`
}

// intBool tolerates the API reporting success as 1/0 or true/false.
type intBool bool

func (b *intBool) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	*b = s == "1" || s == "true"
	return nil
}

func (b bookJSON) toEdition() types.Edition {
	return types.Edition{
		WorkID:      b.ID.String(),
		ContentHash: b.Hash,
		Title:       b.Title,
		Author:      b.Author,
		Publisher:   b.Publisher,
		Year:        b.Year,
		Language:    b.Language,
		FileSize:    b.FileSize,
		Pages:       b.Pages.String(),
		CoverURL:    b.Cover,
	}
}

// Search runs one catalog query. extension restricts results to a single
// file format ("epub"); empty means any format. limit caps the number of
// candidates returned.
func (c *Client) Search(ctx context.Context, term, extension string, limit int) (SearchResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{
		"message": {term},
		"limit":   {fmt.Sprintf("%d", limit)},
		"page":    {"1"},
	}
	if extension != "" {
		params.Set("extensions[]", extension)
	}

	var sj searchJSON
	if err := c.getJSON(ctx, "/eapi/book/search?"+params.Encode(), &sj); err != nil {
		return SearchResponse{}, err
	}

	resp := SearchResponse{Success: bool(sj.Success), Message: sj.Message}
	for _, b := range sj.Books {
		resp.Editions = append(resp.Editions, b.toEdition())
	}
	return resp, nil
}

type profileJSON struct {
	Success intBool `json:"success"`
	User    struct {
		Name           string `json:"name"`
		DownloadsToday int    `json:"downloads_today"`
		DownloadsLimit int    `json:"downloads_limit"`
	} `json:"user"`
}

// Account holds the subset of profile data the pipeline uses.
type Account struct {
	Name           string
	DownloadsLeft  int
	DownloadsLimit int
}

// Profile fetches the account profile and the remaining daily quota.
func (c *Client) Profile(ctx context.Context) (Account, error) {
	var pj profileJSON
	if err := c.getJSON(ctx, "/eapi/user/profile", &pj); err != nil {
		return Account{}, err
	}
	if !pj.Success {
		return Account{}, fmt.Errorf("catalog rejected the account credentials")
	}
	left := pj.User.DownloadsLimit - pj.User.DownloadsToday
	if left < 0 {
		left = 0
	}
	return Account{
		Name:           pj.User.Name,
		DownloadsLeft:  left,
		DownloadsLimit: pj.User.DownloadsLimit,
	}, nil
}

type infoJSON struct {
	Success intBool `json:"success"`
	Message string  `json:"message"`
	Book    struct {
		Formats map[string]struct {
			FileSize string `json:"filesize"`
		} `json:"formats"`
	} `json:"book"`
}

// FormatInfo describes one file format an edition is available in.
type FormatInfo struct {
	FileSize string
}

// BookInfo fetches the per-format availability of one edition. The map is
// keyed by extension ("epub", "pdf").
func (c *Client) BookInfo(ctx context.Context, workID, contentHash string) (map[string]FormatInfo, error) {
	var ij infoJSON
	path := fmt.Sprintf("/eapi/book/%s/%s", url.PathEscape(workID), url.PathEscape(contentHash))
	if err := c.getJSON(ctx, path, &ij); err != nil {
		return nil, err
	}
	if !ij.Success {
		msg := ij.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("fetching book info for %s: %s", workID, msg)
	}

	formats := make(map[string]FormatInfo, len(ij.Book.Formats))
	for ext, f := range ij.Book.Formats {
		formats[strings.ToLower(ext)] = FormatInfo{FileSize: f.FileSize}
	}
	return formats, nil
}

type fileJSON struct {
	Success intBool `json:"success"`
	Message string  `json:"message"`
	File    struct {
		DownloadLink  string `json:"downloadLink"`
		AllowDownload *bool  `json:"allowDownload"`
		Description   string `json:"description"`
	} `json:"file"`
}

// Download fetches the file for one edition. It resolves the download
// link first, then streams the file body. A quota refusal is reported as
// ErrQuotaExhausted so the caller can stop the whole run.
func (c *Client) Download(ctx context.Context, workID, contentHash string) (filename string, data []byte, err error) {
	var fj fileJSON
	path := fmt.Sprintf("/eapi/book/%s/%s/file", url.PathEscape(workID), url.PathEscape(contentHash))
	if err := c.getJSON(ctx, path, &fj); err != nil {
		return "", nil, err
	}

	if !fj.Success || fj.File.DownloadLink == "" {
		if quotaMessage(fj.Message) || quotaMessage(fj.File.Description) ||
			(fj.File.AllowDownload != nil && !*fj.File.AllowDownload) {
			return "", nil, ErrQuotaExhausted
		}
		msg := fj.Message
		if msg == "" {
			msg = "no download link in response"
		}
		return "", nil, fmt.Errorf("fetching download link for %s: %s", workID, msg)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fj.File.DownloadLink, nil)
	if err != nil {
		return "", nil, fmt.Errorf("creating file request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return "", nil, fmt.Errorf("file request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("file server returned HTTP %d", resp.StatusCode)
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("reading file body: %w", err)
	}

	filename = filenameFromResponse(resp, fj.File.DownloadLink)
	return filename, data, nil
}

// quotaMessage reports whether a catalog error message describes the
// daily limit rather than a per-item problem.
func quotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "limit") || strings.Contains(m, "quota")
}

// filenameFromResponse derives a filename from the Content-Disposition
// header, falling back to the last path segment of the download link.
func filenameFromResponse(resp *http.Response, link string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		const marker = "filename="
		if idx := strings.Index(cd, marker); idx >= 0 {
			name := strings.Trim(cd[idx+len(marker):], `"; `)
			if name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(link); err == nil {
		if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segs) > 0 && segs[len(segs)-1] != "" {
			return segs[len(segs)-1]
		}
	}
	return "download.bin"
}

// getJSON performs an authenticated GET against the API root and decodes
// the JSON body into out. Rate-limit responses are retried.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.UserID != "" {
		req.AddCookie(&http.Cookie{Name: "remix_userid", Value: c.cfg.UserID})
		req.AddCookie(&http.Cookie{Name: "remix_userkey", Value: c.cfg.UserKey})
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned HTTP %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing catalog response: %w", err)
	}
	return nil
}
