package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/feedwizard/internal/core"
)

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "products.csv")
	content := "id;title;price\n1;Shoe;1\n"
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	feed, err := Open(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer feed.Close()

	if feed.Name != "products.csv" || feed.Size != int64(len(content)) {
		t.Errorf("feed = %+v", feed.FeedSource)
	}
	data, _ := io.ReadAll(feed.Reader)
	if string(data) != content {
		t.Errorf("content = %q", data)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(context.Background(), "  ", nil); err != ErrNoLocation {
		t.Errorf("empty location error = %v, want ErrNoLocation", err)
	}
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open(context.Background(), t.TempDir(), nil); err == nil {
		t.Error("expected error for directory")
	}
}

func TestOpen_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/csv/":
			w.Header().Set("Content-Type", "text/csv")
			io.WriteString(w, "id,title,price\n1,Shoe,1\n")
		case "/export":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", `attachment; filename="produkter.xlsx"`)
			io.WriteString(w, "PK")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		path       string
		wantName   string
		wantFormat core.Format
		wantErr    bool
	}{
		{path: "/csv/", wantName: "csv"},
		{path: "/export", wantName: "produkter.xlsx", wantFormat: core.FormatXLSX},
		{path: "/missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			feed, err := Open(context.Background(), srv.URL+tt.path, srv.Client())
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "404") {
					t.Fatalf("error = %v, want 404", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer feed.Close()

			if feed.Name != tt.wantName || feed.Format != tt.wantFormat {
				t.Errorf("feed = %q/%q, want %q/%q", feed.Name, feed.Format, tt.wantName, tt.wantFormat)
			}
		})
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://hefitness.se/csv/", true},
		{"http://localhost:8080/feed.csv", true},
		{"products.csv", false},
		{"/tmp/products.csv", false},
		{"ftp://example.com/feed.csv", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNameFromResponse(t *testing.T) {
	tests := []struct {
		name        string
		location    string
		disposition string
		want        string
	}{
		{"quoted filename", "https://hefitness.se/csv/", `attachment; filename="produkter.csv"`, "produkter.csv"},
		{"bare filename", "https://hefitness.se/csv/", `attachment; filename=feed.csv`, "feed.csv"},
		{"extended filename", "https://hefitness.se/csv/", `attachment; filename*=UTF-8''tr%C3%A4ning.csv`, "träning.csv"},
		{"filename with semicolon", "https://hefitness.se/csv/", `attachment; filename="a;b.csv"`, "a;b.csv"},
		{"path stripped", "https://hefitness.se/csv/", `attachment; filename="../../etc/feed.csv"`, "feed.csv"},
		{"windows path stripped", "https://hefitness.se/csv/", `attachment; filename="C:\\exports\\feed.csv"`, "feed.csv"},
		{"malformed header", "https://hefitness.se/export/feed.csv", `attachment; filename=`, "feed.csv"},
		{"no header uses path", "https://hefitness.se/export/feed.csv", "", "feed.csv"},
		{"no path uses host", "https://hefitness.se/", "", "hefitness.se"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.disposition != "" {
				resp.Header.Set("Content-Disposition", tt.disposition)
			}
			if got := nameFromResponse(tt.location, resp); got != tt.want {
				t.Errorf("nameFromResponse = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want core.Format
	}{
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", core.FormatXLSX},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet; charset=binary", core.FormatXLSX},
		{"text/csv; charset=utf-8", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := formatFromContentType(tt.ct); got != tt.want {
			t.Errorf("formatFromContentType(%q) = %q, want %q", tt.ct, got, tt.want)
		}
	}
}
