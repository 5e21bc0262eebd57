package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/smotreshka-ripper/internal/metrics"
)

type reply struct {
	status int
	header http.Header
	body   string
}

// get goes through a real server: chi's response wrapper needs the
// io.ReaderFrom of a live connection for ServeContent.
func get(t *testing.T, srv *httptest.Server, path string) reply {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("GET %s: read body: %v", path, err)
	}
	return reply{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func TestServeHandler(t *testing.T) {
	dir := t.TempDir()
	playlist := filepath.Join(dir, "playlist.m3u")
	listing := filepath.Join(dir, "epg.xml")
	if err := os.WriteFile(playlist, []byte("#EXTM3U\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newServeHandler(playlist, listing, time.Hour, metrics.New(), zap.NewNop()))
	defer srv.Close()

	resp := get(t, srv, "/playlist.m3u")
	if resp.status != http.StatusOK || resp.body != "#EXTM3U\n" {
		t.Errorf("playlist: %d %q", resp.status, resp.body)
	}
	if ct := resp.header.Get("Content-Type"); ct != "audio/x-mpegurl; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q", cc)
	}

	if resp := get(t, srv, "/epg.xml"); resp.status != http.StatusNotFound {
		t.Errorf("missing listing: %d", resp.status)
	}
	if resp := get(t, srv, "/healthz"); resp.status != http.StatusServiceUnavailable {
		t.Errorf("healthz without listing: %d", resp.status)
	}
	if err := os.WriteFile(listing, []byte("<tv/>\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	resp = get(t, srv, "/epg.xml")
	if resp.status != http.StatusOK || !strings.HasPrefix(resp.header.Get("Content-Type"), "application/xml") {
		t.Errorf("listing after rip: %d %q", resp.status, resp.header.Get("Content-Type"))
	}

	if resp := get(t, srv, "/healthz"); resp.status != http.StatusOK {
		t.Errorf("healthz: %d", resp.status)
	}
	if resp := get(t, srv, "/nope"); resp.status != http.StatusNotFound {
		t.Errorf("unknown route: %d", resp.status)
	}

	text := get(t, srv, "/metrics").body
	for _, want := range []string{
		`smotreshka_ripper_served_total{code="2xx",path="/playlist.m3u"} 1`,
		`smotreshka_ripper_served_total{code="4xx",path="/epg.xml"} 1`,
		`smotreshka_ripper_served_total{code="2xx",path="/epg.xml"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("/metrics missing %q:\n%s", want, text)
		}
	}
}

func TestServeHandler_rejectsPost(t *testing.T) {
	srv := httptest.NewServer(newServeHandler(filepath.Join(t.TempDir(), "p.m3u"), "", 0, metrics.New(), zap.NewNop()))
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/playlist.m3u", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST = %d", resp.StatusCode)
	}
}
