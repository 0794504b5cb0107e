// Package source opens feeds from local files or http(s) URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/feedwizard/internal/core"
)

// ErrNoLocation is returned when no feed location is given.
var ErrNoLocation = errors.New("no feed content: no file or URL given")

// Feed is an open feed. Close must be called when the run is done.
type Feed struct {
	core.FeedSource
	closer io.Closer
}

// Close releases the underlying file or response body.
func (f *Feed) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// IsURL reports whether location is an http(s) URL.
func IsURL(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Open opens location as a feed. URLs are fetched with client; a nil client
// uses http.DefaultClient.
func Open(ctx context.Context, location string, client *http.Client) (*Feed, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrNoLocation
	}
	if IsURL(location) {
		return fetch(ctx, location, client)
	}
	return openFile(location)
}

func openFile(name string) (*Feed, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat feed: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open feed: %s is a directory", name)
	}
	return &Feed{
		FeedSource: core.FeedSource{
			Name:   filepath.Base(name),
			Reader: f,
			Size:   info.Size(),
		},
		closer: f,
	}, nil
}

func fetch(ctx context.Context, location string, client *http.Client) (*Feed, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch feed: %s returned %s", location, resp.Status)
	}

	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return &Feed{
		FeedSource: core.FeedSource{
			Name:   nameFromResponse(location, resp),
			Format: formatFromContentType(resp.Header.Get("Content-Type")),
			Reader: resp.Body,
			Size:   size,
		},
		closer: resp.Body,
	}, nil
}

// nameFromResponse picks a feed name from Content-Disposition or the URL path.
// Only the base name of a disposition filename is kept.
func nameFromResponse(location string, resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name := path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
			if name != "/" && name != "." {
				return name
			}
		}
	}
	u, err := url.Parse(location)
	if err == nil {
		if base := path.Base(strings.TrimSuffix(u.Path, "/")); base != "" && base != "." && base != "/" {
			return base
		}
		return u.Host
	}
	return location
}

// formatFromContentType returns FormatXLSX for spreadsheet responses, or
// empty to detect from the name.
func formatFromContentType(ct string) core.Format {
	mt, _, err := mime.ParseMediaType(ct)
	if err == nil && mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		return core.FormatXLSX
	}
	return ""
}
