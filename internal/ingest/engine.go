package ingest

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Switch is the process-wide liveness flag polled between rows.
type Switch struct {
	stopped atomic.Bool
}

func NewSwitch() *Switch { return &Switch{} }

func (s *Switch) Alive() bool { return !s.stopped.Load() }

// Stop clears the flag; files in flight finish their current row and stop.
func (s *Switch) Stop() { s.stopped.Store(true) }

// RunSummary aggregates the results of one Engine run.
type RunSummary struct {
	Files     []FileResult
	Stored    int
	Discarded int
	Failed    int
}

func (s *RunSummary) add(res FileResult) {
	s.Files = append(s.Files, res)
	s.Stored += res.Stored
	s.Discarded += res.Discarded
	s.Failed += res.Failed
}

// Engine is the single-shot ingestion mode: select once, then process each
// file in order. The first file error stops the run.
type Engine struct {
	selector  FileSelector
	processor FileProcessor
	alive     model.Liveness
	logf      func(format string, args ...any)
}

func NewEngine(selector FileSelector, processor FileProcessor, alive model.Liveness) *Engine {
	if alive == nil {
		alive = alwaysAlive{}
	}
	return &Engine{selector: selector, processor: processor, alive: alive, logf: log.Printf}
}

// Run ingests every selected file. A *model.ConfigError from selection and
// any *FileError are returned as is.
func (e *Engine) Run(ctx context.Context, params model.Params) (RunSummary, error) {
	var summary RunSummary
	files, err := e.selector.Select(params)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		e.logf("ingest: no csv file")
		return summary, nil
	}
	for _, f := range files {
		if !e.alive.Alive() || ctx.Err() != nil {
			e.logf("ingest: stopped before %s", f.Path)
			break
		}
		res, err := e.processor.ProcessFile(ctx, f.Path)
		summary.add(res)
		if err != nil {
			return summary, err
		}
	}
	return summary, nil
}
