package model

import "context"

// Sink receives transformed documents. Implementations must be safe for
// concurrent use by several file workers. Store may return an *AccessError.
type Sink interface {
	Store(ctx context.Context, params Params, doc Document) error
}

// Committer is implemented by sinks that buffer writes.
type Committer interface {
	Commit(ctx context.Context) error
}

// Evaluator evaluates one transform expression against a record.
// A nil value means the field is not set on the target document.
type Evaluator interface {
	Evaluate(scriptType, expression string, record Record) (any, error)
}

// FailureRecorder persists row failures so a human can locate the offending line.
type FailureRecorder interface {
	StoreFailure(ctx context.Context, job *JobConfig, errorName, url string, cause error) error
}

// StatsRecorder tracks per-row processing statistics.
type StatsRecorder interface {
	Begin(key *StatsKey)
	Record(key *StatsKey, action StatsAction)
	Discard(key *StatsKey)
	Done(key *StatsKey)
}

// Liveness is polled between rows; once it reports false the current file
// stops after the row in flight.
type Liveness interface {
	Alive() bool
}
