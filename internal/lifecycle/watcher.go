package lifecycle

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// settleDelay is added to the timestamp margin before a file event triggers
// a scan, so the age gate has passed by the time the scan runs.
const settleDelay = 500 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Params       model.Params
	PollInterval time.Duration
	Margin       time.Duration
	// OnBatch, when set, is called after every batch that touched files.
	OnBatch func(BatchResult)
}

// Watcher runs Manager batches on a poll ticker and shortly after file
// system events in the watched directories.
type Watcher struct {
	manager *Manager
	cfg     WatcherConfig
	trigger chan struct{}
}

func NewWatcher(manager *Manager, cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Watcher{
		manager: manager,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a scan as soon as the current batch, if any, finishes.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run scans until ctx is cancelled or a batch returns an error. A scan runs
// immediately on start.
func (w *Watcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	dirs := WatchDirs(w.cfg.Params)
	if len(dirs) > 0 {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			log.Printf("lifecycle: file events disabled: %v", err)
		} else {
			defer fw.Close()
			for _, dir := range dirs {
				if err := fw.Add(dir); err != nil {
					log.Printf("lifecycle: cannot watch %s: %v", dir, err)
				}
			}
			g.Go(func() error {
				w.watchEvents(gctx, fw)
				return nil
			})
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			res, err := w.manager.RunBatch(gctx, w.cfg.Params)
			if len(res.Files) > 0 && w.cfg.OnBatch != nil {
				w.cfg.OnBatch(res)
			}
			if err != nil {
				return err
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			case <-w.trigger:
			}
		}
	})

	return g.Wait()
}

func (w *Watcher) watchEvents(ctx context.Context, fw *fsnotify.Watcher) {
	delay := w.cfg.Margin + settleDelay
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !hasAcceptedSuffix(ev.Name) {
				continue
			}
			time.AfterFunc(delay, w.Trigger)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Printf("lifecycle: watch error: %v", err)
		}
	}
}

// WatchDirs returns the directories to watch for events: the configured
// directories, or the parents of the configured files.
func WatchDirs(params model.Params) []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	if files := params.Get(model.ParamFiles); files != "" {
		for _, f := range strings.Split(files, ",") {
			if f = strings.TrimSpace(f); f != "" {
				add(filepath.Dir(f))
			}
		}
		return dirs
	}
	for _, d := range strings.Split(params.Get(model.ParamDirectories), ",") {
		add(strings.TrimSpace(d))
	}
	return dirs
}

func hasAcceptedSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range model.FileSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
