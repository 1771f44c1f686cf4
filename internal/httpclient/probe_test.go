package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fluxdl/internal/dlerror"
)

func TestProbeUsesHeadContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Length", "1048576")
		w.Header().Set("Content-Disposition", `attachment; filename="archive.zip"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	details, err := Probe(NewProbeClient(), srv.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if details.Size != 1048576 {
		t.Errorf("Size = %d, want 1048576", details.Size)
	}
	if details.Filename != "archive.zip" {
		t.Errorf("Filename = %q, want archive.zip", details.Filename)
	}
}

func TestProbeFallsBackToRangedGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Range") != "bytes=0-0" {
			t.Fatalf("expected range probe, got Range=%q", r.Header.Get("Range"))
		}
		w.Header().Set("Content-Length", "2048")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	details, err := Probe(NewProbeClient(), srv.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if details.Size != 2048 {
		t.Errorf("Size = %d, want 2048", details.Size)
	}
}

func TestProbeMissingSizeIsConfigError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := Probe(NewProbeClient(), srv.URL)
	if dlerror.KindOf(err) != dlerror.Config {
		t.Errorf("expected Config error, got %v", err)
	}
}

func TestResolveFilenamePrecedence(t *testing.T) {
	cases := []struct {
		disposition string
		url         string
		want        string
	}{
		{`attachment; filename="report.pdf"`, "https://example.com/x", "report.pdf"},
		{"", "https://example.com/dir/file.tar.gz", "file.tar.gz"},
		{"", "https://example.com/dir/", "dir"},
		{"", "https://example.com/", "download.dat"},
	}
	for _, tc := range cases {
		if got := ResolveFilename(tc.disposition, tc.url); got != tc.want {
			t.Errorf("ResolveFilename(%q, %q) = %q, want %q", tc.disposition, tc.url, got, tc.want)
		}
	}
}

func TestSanitizeStripsUnsafeCharacters(t *testing.T) {
	if got := Sanitize(`weird/../name:<>?.txt`); got == `weird/../name:<>?.txt` {
		t.Error("expected unsafe characters to be stripped")
	}
	if got := Sanitize("   "); got != "download.dat" {
		t.Errorf("Sanitize(blank) = %q, want download.dat", got)
	}
}
