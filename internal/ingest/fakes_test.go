package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/transform"
)

type recordingSink struct {
	mu   sync.Mutex
	docs []model.Document
	fail func(doc model.Document) error
}

func (s *recordingSink) Store(_ context.Context, _ model.Params, doc model.Document) error {
	if s.fail != nil {
		if err := s.fail(doc); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return nil
}

type storedFailure struct {
	kind string
	url  string
	err  error
}

type recordingFailures struct {
	mu       sync.Mutex
	failures []storedFailure
	err      error
}

func (f *recordingFailures) StoreFailure(_ context.Context, _ *model.JobConfig, kind, url string, cause error) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, storedFailure{kind: kind, url: url, err: cause})
	return nil
}

type recordingStats struct {
	mu     sync.Mutex
	events []string
	counts map[string]int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{counts: map[string]int{}}
}

func (s *recordingStats) add(event string, key *model.StatsKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event+" "+key.ID)
	s.counts[event]++
}

func (s *recordingStats) Begin(key *model.StatsKey) { s.add("begin", key) }
func (s *recordingStats) Record(key *model.StatsKey, a model.StatsAction) {
	s.add(string(a), key)
}
func (s *recordingStats) Discard(key *model.StatsKey) { s.add("discard", key) }
func (s *recordingStats) Done(key *model.StatsKey)    { s.add("done", key) }

type countingEvaluator struct {
	mu    sync.Mutex
	calls int
	next  model.Evaluator
}

func (e *countingEvaluator) Evaluate(scriptType, expr string, rec model.Record) (any, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.next.Evaluate(scriptType, expr, rec)
}

type evaluatorFunc func(scriptType, expr string, rec model.Record) (any, error)

func (f evaluatorFunc) Evaluate(scriptType, expr string, rec model.Record) (any, error) {
	return f(scriptType, expr, rec)
}

type fixture struct {
	sink     *recordingSink
	failures *recordingFailures
	stats    *recordingStats
	eval     *countingEvaluator
	sleeps   int
}

func newFixture() *fixture {
	return &fixture{
		sink:     &recordingSink{},
		failures: &recordingFailures{},
		stats:    newRecordingStats(),
		eval:     &countingEvaluator{next: transform.NewCELEvaluator()},
	}
}

func (fx *fixture) pipeline(cfg Config, alive model.Liveness) *Pipeline {
	p := NewPipeline(cfg, Deps{
		Sink:      fx.sink,
		Evaluator: fx.eval,
		Failures:  fx.failures,
		Stats:     fx.stats,
		Liveness:  alive,
	})
	p.sleep = func(context.Context, time.Duration) error {
		fx.sleeps++
		return nil
	}
	return p
}

func testConfig(params model.Params, fields ...string) Config {
	set := &transform.ScriptSet{Defaults: map[string]any{"config_id": "cfg-1"}}
	for i := 0; i+1 < len(fields); i += 2 {
		set.Fields = append(set.Fields, transform.Field{Name: fields[i], Script: fields[i+1]})
	}
	return NewConfig(&model.JobConfig{ID: "job-1", Name: "csv"}, params, set)
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func lineURL(path string, line int) string {
	return fmt.Sprintf("%s:%d", path, line)
}
