// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package shellcache

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/channi23/OrangeLens/internal/httputil"
)

// Asset is one fetched application shell resource.
type Asset struct {
	Path        string
	Body        []byte
	ContentType string
}

// Fetcher retrieves shell assets for installation.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*Asset, error)
}

// HTTPFetcher fetches assets from a running origin.
type HTTPFetcher struct {
	Origin     string
	Client     *http.Client
	MaxRetries int
}

// Fetch implements Fetcher. Any status other than 200 is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) (*Asset, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.Origin, "/")+p, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", p, err)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, f.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", p, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return &Asset{Path: p, Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// DirFetcher reads assets from a local build directory. The root path maps
// to index.html.
type DirFetcher struct {
	Dir string
}

// Fetch implements Fetcher.
func (f *DirFetcher) Fetch(_ context.Context, p string) (*Asset, error) {
	rel := path.Clean("/" + p)
	if strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}
	full := filepath.Join(f.Dir, filepath.FromSlash(rel))

	body, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", p, err)
	}

	ct := mime.TypeByExtension(filepath.Ext(full))
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	return &Asset{Path: p, Body: body, ContentType: ct}, nil
}
