package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/duckdb"
	"github.com/codelibs/fess-ds-csv/internal/httpserver"
	"github.com/codelibs/fess-ds-csv/internal/ingest"
	"github.com/codelibs/fess-ds-csv/internal/journal"
	"github.com/codelibs/fess-ds-csv/internal/lifecycle"
	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/selector"
	"github.com/codelibs/fess-ds-csv/internal/stats"
	"github.com/codelibs/fess-ds-csv/internal/transform"
)

// app holds the collaborators shared by the run and watch commands.
type app struct {
	cfg      appConfig
	job      *model.JobConfig
	store    *duckdb.Store
	buffer   *duckdb.DocumentBuffer
	cleaner  *duckdb.RetentionCleaner
	stats    *stats.Helper
	pipeline *ingest.Pipeline
}

func newApp(cfg appConfig) (*app, error) {
	var scripts *transform.ScriptSet
	if cfg.Job.ScriptsFile != "" {
		var err error
		if scripts, err = transform.LoadScripts(cfg.Job.ScriptsFile); err != nil {
			return nil, err
		}
	}

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	store.SetMaxConcurrentQueries(cfg.MaxConcurrentReads)

	var docJournal *journal.Journal
	if cfg.JournalEnabled {
		docJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open document journal: %w", err)
		}
		if err := replayUncommittedJournal(docJournal, store, cfg.InsertBatchSize); err != nil {
			_ = docJournal.Close()
			store.Close()
			return nil, fmt.Errorf("failed to replay document journal: %w", err)
		}
	}

	bufConf := duckdb.DocumentBufferConfig{
		JobID:          cfg.Job.ID,
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
	}
	// A nil *journal.Journal must not become a non-nil interface.
	if docJournal != nil {
		bufConf.Journal = docJournal
	}
	buffer := duckdb.NewDocumentBuffer(store, bufConf)

	job := &model.JobConfig{ID: cfg.Job.ID, Name: cfg.Job.Name}
	helper := stats.NewHelper(cfg.Verbose)

	pcfg := ingest.NewConfig(job, cfg.Job.Params, scripts)
	pcfg.Verbose = cfg.Verbose
	pipeline := ingest.NewPipeline(pcfg, ingest.Deps{
		Sink:      buffer,
		Evaluator: transform.NewCELEvaluator(),
		Failures:  duckdb.NewFailureStore(store),
		Stats:     helper,
	})

	return &app{
		cfg:      cfg,
		job:      job,
		store:    store,
		buffer:   buffer,
		cleaner:  duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{RetentionDays: cfg.FailureRetention}),
		stats:    helper,
		pipeline: pipeline,
	}, nil
}

// Close flushes buffered documents and releases the store.
func (a *app) Close() {
	if a.cleaner != nil {
		a.cleaner.Stop()
	}
	a.buffer.Stop()
	if err := a.store.Close(); err != nil {
		log.Printf("csvds: close store: %v", err)
	}
}

// runOnce is the single-shot mode: select files once, ingest them in order
// and commit.
func (a *app) runOnce(ctx context.Context) (ingest.RunSummary, error) {
	sw := ingest.NewSwitch()
	stop := context.AfterFunc(ctx, sw.Stop)
	defer stop()

	engine := ingest.NewEngine(selector.New(nil), a.pipeline, sw)
	summary, err := engine.Run(ctx, a.cfg.Job.Params)

	// Commit even when interrupted so accepted documents are not lost.
	cerr := a.buffer.Commit(context.WithoutCancel(ctx))
	if cerr != nil {
		cerr = fmt.Errorf("commit documents: %w", cerr)
	}
	return summary, errors.Join(err, cerr)
}

// watch runs lifecycle batches until ctx is cancelled, serving the read API
// when enabled.
func (a *app) watch(ctx context.Context) error {
	sw := ingest.NewSwitch()
	stop := context.AfterFunc(ctx, sw.Stop)
	defer stop()

	opts := lifecycle.OptionsFromParams(a.cfg.Job.Params)
	manager := lifecycle.NewManager(lifecycle.NewSelector(opts.Margin, time.Now), a.pipeline, a.buffer, opts, sw)
	watcher := lifecycle.NewWatcher(manager, lifecycle.WatcherConfig{
		Params:       a.cfg.Job.Params,
		PollInterval: a.cfg.PollInterval,
		Margin:       opts.Margin,
		OnBatch: func(res lifecycle.BatchResult) {
			log.Printf("csvds: batch done files=%d deleted=%d quarantined=%d failed=%d",
				len(res.Files), res.Deleted, res.Quarantined, res.Failed)
		},
	})

	if a.cfg.APIEnabled {
		api := httpserver.NewServer(a.cfg.APIAddr, a.store, a.stats, a.job.ID)
		if err := api.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer api.Stop()
	}

	err := watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func configureRuntimeLogger(path string) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if path == "" {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func replayUncommittedJournal(j *journal.Journal, store *duckdb.Store, batchSize int) error {
	if j == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	batch := make([]*model.StoredDocument, 0, batchSize)
	batchMaxSeq := uint64(0)
	replayed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertDocuments(batch); err != nil {
			return err
		}
		if err := j.Commit(batchMaxSeq); err != nil {
			return err
		}
		replayed += len(batch)
		batch = make([]*model.StoredDocument, 0, batchSize)
		batchMaxSeq = 0
		return nil
	}

	if err := j.Replay(func(seq uint64, doc *model.StoredDocument) error {
		batch = append(batch, doc)
		batchMaxSeq = max(batchMaxSeq, seq)
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	}); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	if replayed > 0 {
		log.Printf("journal: replayed %d uncommitted documents", replayed)
	}
	return nil
}
