package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
	"github.com/snapetech/smotreshka-ripper/internal/config"
	"github.com/snapetech/smotreshka-ripper/internal/output"
	"github.com/snapetech/smotreshka-ripper/internal/smotreshka"
)

const (
	testUser = "user@example.com"
	testPass = "s3cret-pass"
)

type fakeProvider struct {
	*httptest.Server
	requests   atomic.Int64
	programs   atomic.Int64
	catalogErr bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("email") != testUser || r.PostForm.Get("password") != testPass {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
	})
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		if p.catalogErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"channels":[
			{"id":"c1","info":{"purchaseInfo":{"bought":true},"metaInfo":{"title":"5_News","genres":["News"]},"mediaInfo":{"thumbnails":[{"url":"http://img/c1.png"}]}}},
			{"id":"c2","info":{"purchaseInfo":{"bought":false},"metaInfo":{"title":"6_Locked","genres":[]},"mediaInfo":{"thumbnails":[{"url":"http://img/c2.png"}]}}},
			{"id":"c3","info":{"purchaseInfo":{"bought":true},"metaInfo":{"title":"7_Match_TV","genres":["Sport","HD"]},"mediaInfo":{"thumbnails":[{"url":"http://img/c3.png"}]}}}
		]}`)
	})
	mux.HandleFunc("/channels/c1/programs", func(w http.ResponseWriter, r *http.Request) {
		p.programs.Add(1)
		fmt.Fprint(w, `{"programs":[{"scheduleInfo":{"start":1700000000,"end":1700003600},"metaInfo":{"title":"Morning","description":"A & B"},"mediaInfo":{"thumbnails":[{"url":"http://img/p1.png"}]}}]}`)
	})
	mux.HandleFunc("/channels/c3/programs", func(w http.ResponseWriter, r *http.Request) {
		p.programs.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/playback-info/c1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"languages":[{"id":"en-US","default":true,"renditions":[{"id":"Auto","default":true,"url":"http://x/stream.m3u8"}]}]}`)
	})
	mux.HandleFunc("/playback-info/c3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"languages":[{"id":"ru-RU","default":true,"renditions":[{"id":"720p","default":true,"url":"http://x/c3-720.m3u8"}]}]}`)
	})
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.requests.Add(1)
		if r.URL.Path != "/login" {
			if ck, err := r.Cookie("session"); err != nil || ck.Value != "ok" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

// isolate clears SMOTRESHKA_* variables and runs the test from an empty
// directory so no .env or defaults leak in.
func isolate(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_ripAll(t *testing.T) {
	dir := isolate(t)
	p := newFakeProvider(t)
	playlist := filepath.Join(dir, "out.m3u")
	listing := filepath.Join(dir, "out.xml")
	snapshot := filepath.Join(dir, "runs.db")
	promFile := filepath.Join(dir, "ripper.prom")

	code, _, stderr := runCLI(t, "--base-url", p.URL, "-u", testUser, "-p", testPass,
		"--m3u-output", playlist, "--xmltv-output", listing,
		"--snapshot", snapshot, "--metrics-file", promFile, "-vv")
	if code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr)
	}
	if strings.Contains(stderr, testPass) {
		t.Error("password leaked into logs")
	}
	if !strings.Contains(stderr, "could not fetch programs") {
		t.Errorf("missing EPG warning for c3:\n%s", stderr)
	}
	if !strings.Contains(stderr, "no default Auto rendition") {
		t.Errorf("missing rendition fallback warning:\n%s", stderr)
	}

	data, err := os.ReadFile(playlist)
	if err != nil {
		t.Fatal(err)
	}
	wantPlaylist := "#EXTM3U\n" +
		`#EXTINF:-1 group-title="News" tvg-chno="5" tvg-id="c1" tvg-logo="http://img/c1.png" tvg-language="en_US",News` + "\n" +
		"http://x/stream.m3u8\n" +
		`#EXTINF:-1 group-title="Sport;HD" tvg-chno="7" tvg-id="c3" tvg-logo="http://img/c3.png" tvg-language="ru_RU",Match_TV` + "\n" +
		"http://x/c3-720.m3u8\n"
	if string(data) != wantPlaylist {
		t.Errorf("playlist:\n%s\nwant:\n%s", data, wantPlaylist)
	}

	data, err = os.ReadFile(listing)
	if err != nil {
		t.Fatal(err)
	}
	xml := string(data)
	for _, want := range []string{
		`generator-info-name="Smotreshka-Live-TV-Ripper-v` + version + `"`,
		`<channel id="c1">`,
		`<channel id="c3">`,
		`channel="c1"`,
		"A &amp; B",
		`<category lang="en_US">News</category>`,
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("listing missing %q:\n%s", want, xml)
		}
	}
	if strings.Count(xml, "<programme ") != 1 {
		t.Errorf("programmes:\n%s", xml)
	}

	prom, err := os.ReadFile(promFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), "smotreshka_ripper_channels 2") {
		t.Errorf("metrics textfile:\n%s", prom)
	}

	code, stdout, stderr := runCLI(t, "history", "--snapshot", snapshot)
	if code != exitOK {
		t.Fatalf("history exit = %d\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "all") || !strings.Contains(strings.ToLower(stdout), "programmes") {
		t.Errorf("history output:\n%s", stdout)
	}
}

func TestRun_modeM3USkipsEPG(t *testing.T) {
	dir := isolate(t)
	p := newFakeProvider(t)
	code, _, stderr := runCLI(t, "--base-url", p.URL, "-u", testUser, "-p", testPass, "-m", "m3u", "-l", "1")
	if code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr)
	}
	if p.programs.Load() != 0 {
		t.Errorf("programs fetched in m3u mode: %d", p.programs.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultXMLTVOutput)); !os.IsNotExist(err) {
		t.Errorf("listing written in m3u mode: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, config.DefaultPlaylistOutput))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Errorf("limit 1 playlist:\n%s", data)
	}
}

func TestRun_existingOutputRefusedBeforeNetwork(t *testing.T) {
	dir := isolate(t)
	p := newFakeProvider(t)
	if err := os.WriteFile(filepath.Join(dir, config.DefaultXMLTVOutput), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, _ := runCLI(t, "--base-url", p.URL, "-u", testUser, "-p", testPass)
	if code != exitCantCreat {
		t.Errorf("exit = %d, want %d", code, exitCantCreat)
	}
	if n := p.requests.Load(); n != 0 {
		t.Errorf("requests before refusing = %d", n)
	}

	code, _, stderr := runCLI(t, "--base-url", p.URL, "-u", testUser, "-p", testPass, "--overwrite")
	if code != exitOK {
		t.Fatalf("overwrite exit = %d\n%s", code, stderr)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, config.DefaultXMLTVOutput)); string(data) == "old" {
		t.Error("listing not overwritten")
	}
}

func TestRun_flagCredentialsSkipCredentialsFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv(config.EnvPrefix+"_CREDENTIALS_FILE", filepath.Join(dir, "missing.txt"))
	p := newFakeProvider(t)
	code, _, stderr := runCLI(t, "--base-url", p.URL, "-u", testUser, "-p", testPass, "-m", "m3u")
	if code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr)
	}
}

func TestRun_exitCodes(t *testing.T) {
	refused := httptest.NewServer(http.NotFoundHandler())
	refusedURL := refused.URL
	refused.Close()

	tests := []struct {
		name     string
		args     func(p *fakeProvider) []string
		catalog5 bool
		want     int
	}{
		{"wrong password", func(p *fakeProvider) []string {
			return []string{"--base-url", p.URL, "-u", testUser, "-p", "nope"}
		}, false, exitDataErr},
		{"missing credentials", func(p *fakeProvider) []string {
			return []string{"--base-url", p.URL}
		}, false, exitDataErr},
		{"connection refused", func(*fakeProvider) []string {
			return []string{"--base-url", refusedURL, "-u", testUser, "-p", testPass}
		}, false, exitUnavailable},
		{"catalog status error", func(p *fakeProvider) []string {
			return []string{"--base-url", p.URL, "-u", testUser, "-p", testPass}
		}, true, exitOSErr},
		{"bad mode", func(p *fakeProvider) []string {
			return []string{"--base-url", p.URL, "-u", testUser, "-p", testPass, "-m", "both"}
		}, false, exitUsage},
		{"unknown flag", func(p *fakeProvider) []string {
			return []string{"--no-such-flag"}
		}, false, exitUsage},
		{"stray argument", func(p *fakeProvider) []string {
			return []string{"extra"}
		}, false, exitUsage},
		{"file base url", func(p *fakeProvider) []string {
			return []string{"--base-url", "file:///etc", "-u", testUser, "-p", testPass}
		}, false, exitDataErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			p := newFakeProvider(t)
			p.catalogErr = tt.catalog5
			code, _, stderr := runCLI(t, tt.args(p)...)
			if code != tt.want {
				t.Errorf("exit = %d, want %d\n%s", code, tt.want, stderr)
			}
		})
	}
}

func TestChannels_json(t *testing.T) {
	isolate(t)
	p := newFakeProvider(t)
	code, stdout, stderr := runCLI(t, "channels", "--json", "--streams", "--base-url", p.URL, "-u", testUser, "-p", testPass)
	if code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr)
	}
	var got []catalog.Channel
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[0].URL != "http://x/stream.m3u8" || got[1].Title != "Match_TV" {
		t.Errorf("channels = %+v", got)
	}
	if p.programs.Load() != 0 {
		t.Error("channels command fetched programs")
	}
}

func TestChannels_table(t *testing.T) {
	dir := isolate(t)
	p := newFakeProvider(t)
	dump := filepath.Join(dir, "channels.json")
	code, stdout, stderr := runCLI(t, "channels", "--save", dump, "--base-url", p.URL, "-u", testUser, "-p", testPass)
	if code != exitOK {
		t.Fatalf("exit = %d\n%s", code, stderr)
	}
	data, err := os.ReadFile(dump)
	if err != nil {
		t.Fatal(err)
	}
	var saved []catalog.Channel
	if err := json.Unmarshal(data, &saved); err != nil || len(saved) != 2 {
		t.Errorf("dump = %s (%v)", data, err)
	}
	for _, want := range []string{"Match_TV", "Sport;HD", "c1"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table missing %q:\n%s", want, stdout)
		}
	}
}

func TestHistory_requiresSnapshot(t *testing.T) {
	isolate(t)
	code, _, _ := runCLI(t, "history")
	if code != exitDataErr {
		t.Errorf("exit = %d", code)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{context.Canceled, exitInterrupted},
		{fmt.Errorf("wrap: %w", output.ErrExists), exitCantCreat},
		{&smotreshka.AuthError{StatusCode: 401}, exitDataErr},
		{&catalog.DataError{Record: "catalog", Err: catalog.ErrEmptyCatalog}, exitDataErr},
		{&smotreshka.NetworkError{Kind: smotreshka.NetworkTimeout, Err: context.DeadlineExceeded}, exitUnavailable},
		{&smotreshka.StatusError{StatusCode: 500}, exitOSErr},
		{&usageError{err: errors.New("bad flag")}, exitUsage},
		{errors.New("boom"), exitOSErr},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
