// Package lifecycle treats watched directories as an inbound queue: each
// settled file is ingested once and then deleted or quarantined.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codelibs/fess-ds-csv/internal/dialect"
	"github.com/codelibs/fess-ds-csv/internal/ingest"
	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/selector"
)

// QuarantineSuffix is appended to files whose processing failed.
const QuarantineSuffix = ".txt"

// Disposal decides what happens to a file after processing.
type Disposal struct {
	// DeleteOnSuccess removes files that were processed without a file error.
	DeleteOnSuccess bool
	// TolerateFailures quarantines files that failed instead of stopping the job.
	TolerateFailures bool
}

// Options configure a Manager.
type Options struct {
	Threads  int
	Margin   time.Duration
	Disposal Disposal
}

// OptionsFromParams reads number_of_threads, timestamp_margin,
// delete_processed_file and ignore_file_failures.
func OptionsFromParams(params model.Params) Options {
	threads := dialect.ParseInt(params, model.ParamNumberOfThreads, model.DefaultNumberOfThreads)
	if threads < 1 {
		log.Printf("lifecycle: %s=%d is not positive, using %d", model.ParamNumberOfThreads, threads, model.DefaultNumberOfThreads)
		threads = model.DefaultNumberOfThreads
	}
	margin := time.Duration(dialect.ParseInt(params, model.ParamTimestampMargin, int(model.DefaultTimestampMargin/time.Millisecond))) * time.Millisecond
	return Options{
		Threads: threads,
		Margin:  margin,
		Disposal: Disposal{
			DeleteOnSuccess:  dialect.ParseBool(params, model.ParamDeleteProcessed, true),
			TolerateFailures: dialect.ParseBool(params, model.ParamIgnoreFileFailures, true),
		},
	}
}

// NewSelector returns the watch-mode selector: accepted suffixes whose last
// modification is strictly older than margin.
func NewSelector(margin time.Duration, now func() time.Time) *selector.Selector {
	return selector.New(selector.All(
		selector.SuffixFilter(model.FileSuffixes...),
		selector.AgeFilter(margin, now),
	))
}

// BatchResult summarises one RunBatch call.
type BatchResult struct {
	Files       []ingest.FileResult
	Deleted     int
	Quarantined int
	Failed      int
}

// Manager runs the files of one scan through the pipeline on a bounded
// worker pool and disposes of them afterwards.
type Manager struct {
	selector  ingest.FileSelector
	processor ingest.FileProcessor
	committer model.Committer
	opts      Options
	alive     model.Liveness

	remove func(string) error
	rename func(string, string) error
}

func NewManager(sel ingest.FileSelector, proc ingest.FileProcessor, committer model.Committer, opts Options, alive model.Liveness) *Manager {
	if opts.Threads < 1 {
		opts.Threads = model.DefaultNumberOfThreads
	}
	if alive == nil {
		alive = ingest.NewSwitch()
	}
	return &Manager{
		selector:  sel,
		processor: proc,
		committer: committer,
		opts:      opts,
		alive:     alive,
		remove:    os.Remove,
		rename:    os.Rename,
	}
}

// RunBatch selects the currently settled files and processes them. Buffered
// sink writes are committed once every dispatched file has finished, even
// when the batch fails. With TolerateFailures unset the first file error is
// returned and no further files are started; files already in flight run to
// completion.
func (m *Manager) RunBatch(ctx context.Context, params model.Params) (BatchResult, error) {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	files, err := m.selector.Select(params)
	if err != nil {
		return result, err
	}
	if len(files) == 0 {
		return result, nil
	}
	log.Printf("lifecycle: %d file(s) ready, threads=%d", len(files), m.opts.Threads)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Threads)
	for _, f := range files {
		if !m.alive.Alive() || gctx.Err() != nil {
			break
		}
		path := f.Path
		g.Go(func() error {
			// A worker slot can free up after a sibling failed; leave the
			// file untouched for the next scan.
			if gctx.Err() != nil {
				return nil
			}
			res, procErr := m.processor.ProcessFile(ctx, path)
			outcome, err := m.dispose(path, procErr)

			mu.Lock()
			defer mu.Unlock()
			result.Files = append(result.Files, res)
			switch outcome {
			case disposedDeleted:
				result.Deleted++
			case disposedQuarantined:
				result.Quarantined++
			}
			if procErr != nil {
				result.Failed++
			}
			return err
		})
	}
	runErr := g.Wait()

	if m.committer != nil {
		if err := m.committer.Commit(context.WithoutCancel(ctx)); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("commit: %w", err))
		}
	}
	return result, runErr
}

type disposition int

const (
	disposedKept disposition = iota
	disposedDeleted
	disposedQuarantined
)

// dispose applies the disposal policy to path after processing finished
// with procErr. It returns procErr only when failures are not tolerated.
func (m *Manager) dispose(path string, procErr error) (disposition, error) {
	if procErr == nil {
		if !m.opts.Disposal.DeleteOnSuccess {
			return disposedKept, nil
		}
		if err := m.remove(path); err != nil {
			log.Printf("lifecycle: failed to delete %s: %v", path, err)
			return disposedKept, nil
		}
		return disposedDeleted, nil
	}

	if !m.opts.Disposal.TolerateFailures {
		return disposedKept, procErr
	}
	log.Printf("lifecycle: failed to process %s: %v", path, procErr)
	if err := m.rename(path, path+QuarantineSuffix); err != nil {
		if rmErr := m.remove(path); rmErr != nil {
			log.Printf("lifecycle: failed to delete %s: %v", path, rmErr)
			return disposedKept, nil
		}
		return disposedDeleted, nil
	}
	return disposedQuarantined, nil
}
