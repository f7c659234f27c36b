package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/csvreader"
	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/projector"
)

// Pipeline streams the rows of one file at a time through projection,
// transform and the sink. A Pipeline is safe to share across file workers;
// all per-file state lives on the stack of ProcessFile.
type Pipeline struct {
	cfg       Config
	projector *projector.Projector
	sink      model.Sink
	eval      model.Evaluator
	failures  model.FailureRecorder
	stats     model.StatsRecorder
	alive     model.Liveness

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewPipeline creates a pipeline for one job.
func NewPipeline(cfg Config, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		projector: projector.New(cfg.Job, cfg.Params, cfg.Defaults),
		sink:      deps.Sink,
		eval:      deps.Evaluator,
		failures:  deps.Failures,
		stats:     deps.Stats,
		alive:     deps.Liveness,
		sleep:     sleepContext,
		now:       time.Now,
	}
	if p.stats == nil {
		p.stats = noopStats{}
	}
	if p.alive == nil {
		p.alive = alwaysAlive{}
	}
	return p
}

// ProcessFile ingests path. Row failures are recorded and never returned;
// the returned error is always a *FileError and means the file could not be
// fully processed.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	start := p.now()
	res := FileResult{Path: path, State: FileCompleted}
	log.Printf("ingest: loading %s", path)
	ctx = model.WithSourceFile(ctx, path)

	f, err := os.Open(path)
	if err != nil {
		return res, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	src, err := csvreader.Decode(f, p.cfg.Encoding)
	if err != nil {
		return res, &FileError{Path: path, Err: err}
	}
	reader := csvreader.NewReader(src, p.cfg.Dialect)

	var header []string
	if p.cfg.HasHeader {
		row, err := reader.Read()
		switch {
		case errors.Is(err, io.EOF):
			// Empty file; no header and no rows.
		case err != nil:
			return res, &FileError{Path: path, Err: err}
		default:
			header = row.Cells
		}
	}

	for {
		if !p.alive.Alive() || ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Elapsed = p.now().Sub(start)
			return res, &FileError{Path: path, Err: err}
		}
		res.Rows++

		outcome, abort, err := p.processRow(ctx, path, header, row)
		if err != nil {
			res.Failed++
			res.Elapsed = p.now().Sub(start)
			return res, &FileError{Path: path, Err: err}
		}
		switch outcome {
		case model.OutcomeStored:
			res.Stored++
		case model.OutcomeDiscarded:
			res.Discarded++
			continue
		default:
			res.Failed++
		}
		if abort {
			res.State = FileAborted
			break
		}

		if p.cfg.ReadInterval > 0 {
			if err := p.sleep(ctx, p.cfg.ReadInterval); err != nil {
				res.Interrupted = true
				break
			}
		}
	}

	res.Elapsed = p.now().Sub(start)
	log.Printf("ingest: %s %s: rows=%d stored=%d discarded=%d failed=%d in %s",
		res.State, path, res.Rows, res.Stored, res.Discarded, res.Failed, res.Elapsed)
	return res, nil
}

// processRow runs one row to a classified outcome. The returned error is set
// only when a failure could not be persisted.
func (p *Pipeline) processRow(ctx context.Context, path string, header []string, row model.Row) (model.Outcome, bool, error) {
	key := &model.StatsKey{ID: fmt.Sprintf("%s#%d", path, row.Line)}
	p.stats.Begin(key)
	defer p.stats.Done(key)

	rec, empty := p.projector.Project(path, header, row)
	if empty {
		if p.cfg.Verbose {
			log.Printf("ingest: no data in line %s:%d", path, row.Line)
		}
		p.stats.Discard(key)
		return model.OutcomeDiscarded, false, nil
	}

	doc := make(model.Document, len(p.cfg.Defaults)+len(p.cfg.Fields))
	for k, v := range p.cfg.Defaults {
		doc[k] = v
	}

	err := p.transformAndStore(ctx, key, rec, doc)
	if err == nil {
		return model.OutcomeStored, false, nil
	}

	failure := Classify(err, fmt.Sprintf("%s:%d", path, row.Line))
	log.Printf("ingest: %s at %s: %v", failure.Outcome, failure.URL, err)
	if perr, ok := err.(*PanicError); ok && p.cfg.Verbose {
		log.Printf("ingest: %s", perr.Stack)
	}
	if serr := p.failures.StoreFailure(ctx, p.cfg.Job, failure.Kind, failure.URL, failure.Err); serr != nil {
		return failure.Outcome, false, fmt.Errorf("store failure url %s: %w", failure.URL, serr)
	}
	if failure.Outcome == model.OutcomeRecoverable {
		p.stats.Record(key, model.StatsAccessException)
	} else {
		p.stats.Record(key, model.StatsException)
	}
	return failure.Outcome, failure.Abort, nil
}

func (p *Pipeline) transformAndStore(ctx context.Context, key *model.StatsKey, rec model.Record, doc model.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	p.stats.Record(key, model.StatsPrepared)
	if p.cfg.Verbose {
		log.Printf("ingest: record %s: %v", key.ID, rec)
	}

	rec[model.FieldCrawlingContext] = map[string]any{"doc": doc}
	for _, field := range p.cfg.Fields {
		v, err := p.eval.Evaluate(p.cfg.ScriptType, field.Script, rec)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if v != nil {
			doc[field.Name] = v
		}
	}
	p.stats.Record(key, model.StatsEvaluated)
	if p.cfg.Verbose {
		log.Printf("ingest: document %s: %v", key.ID, doc)
	}

	if url, ok := doc[model.FieldURL].(string); ok {
		key.URL = url
	}
	if err := p.sink.Store(ctx, p.cfg.Params, doc); err != nil {
		return err
	}
	p.stats.Record(key, model.StatsFinished)
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
