package ingest

import (
	"context"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// FileState is the terminal state of one processed file.
type FileState int

const (
	// FileCompleted means the stream was exhausted or liveness was cleared.
	FileCompleted FileState = iota
	// FileAborted means a row failure asked to stop the rest of the file.
	FileAborted
)

func (s FileState) String() string {
	if s == FileAborted {
		return "aborted"
	}
	return "completed"
}

// FileResult summarises one ProcessFile call.
type FileResult struct {
	Path        string
	State       FileState
	Rows        int
	Stored      int
	Discarded   int
	Failed      int
	Interrupted bool
	Elapsed     time.Duration
}

// FileProcessor ingests one file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (FileResult, error)
}

// FileSelector resolves job parameters into candidate files.
type FileSelector interface {
	Select(params model.Params) ([]model.CandidateFile, error)
}

// Deps are the collaborators a Pipeline reports to. Stats and Liveness are
// optional.
type Deps struct {
	Sink      model.Sink
	Evaluator model.Evaluator
	Failures  model.FailureRecorder
	Stats     model.StatsRecorder
	Liveness  model.Liveness
}

type noopStats struct{}

func (noopStats) Begin(*model.StatsKey)                     {}
func (noopStats) Record(*model.StatsKey, model.StatsAction) {}
func (noopStats) Discard(*model.StatsKey)                   {}
func (noopStats) Done(*model.StatsKey)                      {}

type alwaysAlive struct{}

func (alwaysAlive) Alive() bool { return true }
