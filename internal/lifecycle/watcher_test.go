package lifecycle

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

func TestWatcher_RunsBatchAndStops(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "x\n")
	proc := &fakeProcessor{}
	m := NewManager(NewSelector(time.Second, nil), proc, nil, defaultOptions(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan BatchResult, 1)
	w := NewWatcher(m, WatcherConfig{
		Params:       model.Params{model.ParamDirectories: dir},
		PollInterval: time.Hour,
		Margin:       time.Second,
		OnBatch: func(res BatchResult) {
			batches <- res
			cancel()
		},
	})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case res := <-batches:
		if len(res.Files) != 1 || res.Files[0].Path != path {
			t.Fatalf("batch = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch ran")
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if exists(path) {
		t.Error("processed file not deleted")
	}
}

func TestWatcher_TriggerRunsAnotherBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	proc := &fakeProcessor{}
	m := NewManager(NewSelector(time.Second, nil), proc, nil, defaultOptions(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	w := NewWatcher(m, WatcherConfig{
		Params:       model.Params{model.ParamDirectories: dir},
		PollInterval: time.Hour,
		OnBatch: func(BatchResult) {
			close(done)
			cancel()
		},
	})
	go func() { _ = w.Run(ctx) }()

	// The first scan finds nothing; a new settled file plus a trigger is
	// picked up without waiting for the poll interval.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "late.csv", "x\n")
	w.Trigger()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not run a batch")
	}
}

func TestWatcher_ConfigErrorStopsRun(t *testing.T) {
	t.Parallel()

	m := NewManager(NewSelector(time.Second, nil), &fakeProcessor{}, nil, defaultOptions(), nil)
	w := NewWatcher(m, WatcherConfig{Params: model.Params{}, PollInterval: time.Hour})
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected config error")
	}
}

func TestWatchDirs(t *testing.T) {
	t.Parallel()

	got := WatchDirs(model.Params{model.ParamFiles: "/in/a.csv, /in/b.csv,/other/c.tsv"})
	want := []string{filepath.Clean("/in"), filepath.Clean("/other")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WatchDirs(files) = %v, want %v", got, want)
	}

	got = WatchDirs(model.Params{model.ParamDirectories: " /a ,, /b"})
	want = []string{"/a", "/b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("WatchDirs(dirs) = %v, want %v", got, want)
	}
}

func TestHasAcceptedSuffix(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"a.csv": true, "B.TSV": true, "a.csv.txt": false, "a.json": false,
	} {
		if got := hasAcceptedSuffix(name); got != want {
			t.Errorf("hasAcceptedSuffix(%q) = %v, want %v", name, got, want)
		}
	}
}
