package model

import (
	"strings"
	"time"
)

// Params holds the job parameters of one ingestion job.
// Keys are the option names listed in defaults.go.
type Params map[string]string

// Get returns the trimmed value for key, or "" when unset.
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Has reports whether key is present with a non-blank value.
func (p Params) Has(key string) bool {
	return p.Get(key) != ""
}

// Clone returns a shallow copy that is safe to mutate.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// JobConfig identifies the job a record belongs to. It is passed through to
// scripts and failure records untouched.
type JobConfig struct {
	ID   string
	Name string
}

// CandidateFile is a file selected for ingestion.
type CandidateFile struct {
	Path    string
	ModTime time.Time
}

// Row is one logical line of a delimited file.
// Line is the 1-based physical line number where the row ended.
type Row struct {
	Line  int
	Cells []string
}

// Record is the projection of one row that scripts are evaluated against.
type Record map[string]any

// Document is the transformed output handed to the sink.
type Document map[string]any

// StoredDocument is a document as persisted by the sink and its journal.
type StoredDocument struct {
	ID         string         `json:"id"`
	JobID      string         `json:"job_id"`
	URL        string         `json:"url,omitempty"`
	SourceFile string         `json:"source_file,omitempty"`
	Fields     map[string]any `json:"fields"`
	IngestedAt time.Time      `json:"ingested_at"`
}

// FailureRecord is one stored row failure.
type FailureRecord struct {
	ID             string    `json:"id"`
	JobID          string    `json:"job_id"`
	URL            string    `json:"url"`
	ErrorName      string    `json:"error_name"`
	ErrorLog       string    `json:"error_log,omitempty"`
	ErrorCount     int       `json:"error_count"`
	LastAccessTime time.Time `json:"last_access_time"`
}

// Outcome classifies what happened to a single row. OutcomeFatal is only
// used for failures that end the whole file.
type Outcome int

const (
	OutcomeStored Outcome = iota
	OutcomeDiscarded
	OutcomeRecoverable
	OutcomeUnclassified
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeRecoverable:
		return "recoverable-failure"
	case OutcomeUnclassified:
		return "unclassified-failure"
	case OutcomeFatal:
		return "fatal-failure"
	default:
		return "unknown"
	}
}

// StatsAction is a phase reported to the statistics recorder.
type StatsAction string

const (
	StatsPrepared        StatsAction = "prepared"
	StatsEvaluated       StatsAction = "evaluated"
	StatsFinished        StatsAction = "finished"
	StatsAccessException StatsAction = "access_exception"
	StatsException       StatsAction = "exception"
)

// StatsKey correlates statistics events of one row. ID has the form path#line.
type StatsKey struct {
	ID  string
	URL string
}
