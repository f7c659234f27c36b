// Package stats tracks per-row processing statistics for ingestion jobs.
package stats

import (
	"log"
	"sync"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Begun      int64                       `json:"begun"`
	Done       int64                       `json:"done"`
	Discarded  int64                       `json:"discarded"`
	InProgress int                         `json:"in_progress"`
	Actions    map[model.StatsAction]int64 `json:"actions"`
	AvgRowTime time.Duration               `json:"avg_row_time_ns"`
	StartedAt  time.Time                   `json:"started_at"`
}

type entry struct {
	begin time.Time
	url   string
}

// Helper implements model.StatsRecorder. It is safe for concurrent use by
// several file workers.
type Helper struct {
	mu         sync.Mutex
	now        func() time.Time
	verbose    bool
	startedAt  time.Time
	inProgress map[string]*entry
	begun      int64
	done       int64
	discarded  int64
	actions    map[model.StatsAction]int64
	total      time.Duration
}

func NewHelper(verbose bool) *Helper {
	h := &Helper{
		now:        time.Now,
		verbose:    verbose,
		inProgress: make(map[string]*entry),
		actions:    make(map[model.StatsAction]int64),
	}
	h.startedAt = h.now()
	return h
}

func (h *Helper) Begin(key *model.StatsKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.begun++
	h.inProgress[key.ID] = &entry{begin: h.now()}
}

func (h *Helper) Record(key *model.StatsKey, action model.StatsAction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[action]++
	if e, ok := h.inProgress[key.ID]; ok && key.URL != "" {
		e.url = key.URL
	}
}

func (h *Helper) Discard(key *model.StatsKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discarded++
}

// Done finalizes a row. Calling it for an unknown key is a no-op apart from
// the done counter.
func (h *Helper) Done(key *model.StatsKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done++
	e, ok := h.inProgress[key.ID]
	if !ok {
		return
	}
	delete(h.inProgress, key.ID)
	elapsed := h.now().Sub(e.begin)
	h.total += elapsed
	if h.verbose {
		url := e.url
		if url == "" {
			url = key.URL
		}
		log.Printf("stats: %s url=%s took %s", key.ID, url, elapsed)
	}
}

// Snapshot returns a copy of the current counters.
func (h *Helper) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	actions := make(map[model.StatsAction]int64, len(h.actions))
	for k, v := range h.actions {
		actions[k] = v
	}
	s := Snapshot{
		Begun:      h.begun,
		Done:       h.done,
		Discarded:  h.discarded,
		InProgress: len(h.inProgress),
		Actions:    actions,
		StartedAt:  h.startedAt,
	}
	if finished := h.done; finished > 0 {
		s.AvgRowTime = h.total / time.Duration(finished)
	}
	return s
}
