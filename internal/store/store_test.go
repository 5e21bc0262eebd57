package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "snapshot.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	reg := catalog.NewRegistry()
	a, err := catalog.NewChannel("a", 2, "Alpha", []string{"News", "HD"}, "http://img/a")
	if err != nil {
		t.Fatal(err)
	}
	a.URL = "http://x/a.m3u8"
	a.Language = "en_US"
	a.AddPrograms(
		catalog.Program{ChannelID: "a", Start: 100, Stop: 200, Title: "One", Desc: "first", Category: a.Groups},
		catalog.Program{ChannelID: "a", Start: 200, Stop: 300, Title: "Two", Desc: "", Category: a.Groups, Icon: "http://img/p2"},
	)
	b, err := catalog.NewChannel("b", 1, "Beta", nil, "http://img/b")
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(a)
	reg.Put(b)
	return reg
}

func TestSaveRunAndLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	reg := sampleRegistry(t)
	if err := s.SaveRun(ctx, Run{ID: "r1", StartedAt: 1000, FinishedAt: 1012, Mode: "all"}, reg); err != nil {
		t.Fatal(err)
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	r := runs[0]
	if r.ID != "r1" || r.Channels != 2 || r.Programmes != 2 || r.WithStream != 1 || r.Mode != "all" {
		t.Errorf("run = %+v", r)
	}
	if r.Duration().Seconds() != 12 {
		t.Errorf("Duration = %v", r.Duration())
	}

	got, err := s.LoadRegistry(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	chs := got.Channels()
	if len(chs) != 2 || chs[0].ID != "a" || chs[1].ID != "b" {
		t.Fatalf("order not preserved: %+v", chs)
	}
	if chs[0].URL != "http://x/a.m3u8" || chs[0].Language != "en_US" || len(chs[0].Groups) != 2 {
		t.Errorf("channel a = %+v", chs[0])
	}
	if len(chs[0].Programs) != 2 || chs[0].Programs[1].Icon != "http://img/p2" || chs[0].Programs[1].Category[1] != "HD" {
		t.Errorf("programs = %+v", chs[0].Programs)
	}
	if len(chs[1].Programs) != 0 {
		t.Errorf("channel b programs = %+v", chs[1].Programs)
	}
}

func TestRuns_newestFirstAndLimit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i, id := range []string{"old", "mid", "new"} {
		run := Run{ID: id, StartedAt: int64(1000 * (i + 1)), FinishedAt: int64(1000*(i+1) + 5), Mode: "m3u"}
		if err := s.SaveRun(ctx, run, sampleRegistry(t)); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.Runs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("runs = %+v", runs)
	}
	all, err := s.Runs(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("all runs = %d, %v", len(all), err)
	}
}

func TestSaveRun_duplicateIDRollsBack(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.SaveRun(ctx, Run{ID: "r1", Mode: "all"}, sampleRegistry(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, Run{ID: "r1", Mode: "all"}, sampleRegistry(t)); err == nil {
		t.Fatal("expected error for duplicate run id")
	}
	runs, _ := s.Runs(ctx, 0)
	if len(runs) != 1 {
		t.Errorf("runs after failed save = %d", len(runs))
	}
}

func TestOpen_reopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	ctx := context.Background()
	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, Run{ID: "r1", Mode: "epg"}, sampleRegistry(t)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	runs, err := s2.Runs(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Errorf("runs after reopen = %v, %v", runs, err)
	}
}
