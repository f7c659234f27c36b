package duckdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

// ErrBufferStopped is returned by Store and Commit after Stop.
var ErrBufferStopped = errors.New("duckdb: document buffer stopped")

type journaledDoc struct {
	seq uint64
	doc *model.StoredDocument
}

// flushItem is a batch handed off for writing. Tickets are issued in the
// order batches leave the pending buffer.
type flushItem struct {
	ticket uint64
	batch  []journaledDoc
}

// DocumentWriter persists batches of documents.
type DocumentWriter interface {
	InsertDocuments(docs []*model.StoredDocument) error
}

// DocumentJournal is the durable log documents are appended to before they
// are buffered.
type DocumentJournal interface {
	Append(doc *model.StoredDocument) (uint64, error)
	Commit(seq uint64) error
	Close() error
}

// DocumentBufferConfig holds tunable parameters for the document buffer.
type DocumentBufferConfig struct {
	JobID          string
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Journal        DocumentJournal
}

// DocumentBuffer is the ingestion sink. It batches documents and flushes them
// to DuckDB on a background goroutine; Store never blocks on DuckDB unless
// the flush queue is full. Commit is the barrier that waits for every
// document stored so far.
type DocumentBuffer struct {
	writer        DocumentWriter
	jobID         string
	mu            sync.Mutex
	pending       []journaledDoc
	flushChan     chan flushItem
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
	stopped       atomic.Bool
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	journal       DocumentJournal

	// sendMu guards sends on flushChan against Stop closing it.
	sendMu     sync.RWMutex
	chanClosed bool

	// flightMu guards the ticket bookkeeping. Lock order: mu, then flightMu.
	flightMu      sync.Mutex
	nextTicket    uint64
	inFlight      map[uint64]struct{}
	settledSeq    map[uint64]uint64
	journalHold   uint64 // first ticket whose write failed
	flightChanged chan struct{}

	errMu    sync.Mutex
	flushErr error

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// NewDocumentBuffer creates a buffer that flushes to writer.
func NewDocumentBuffer(writer DocumentWriter, conf ...DocumentBufferConfig) *DocumentBuffer {
	batchSize := 500
	flushInterval := 200 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	var c DocumentBufferConfig
	if len(conf) > 0 {
		c = conf[0]
		if c.BatchSize > 0 {
			batchSize = c.BatchSize
		}
		if c.FlushInterval > 0 {
			flushInterval = c.FlushInterval
		}
		if c.FlushQueueSize > 0 {
			flushQueueSize = c.FlushQueueSize
		}
	}

	b := &DocumentBuffer{
		writer:        writer,
		jobID:         c.JobID,
		pending:       make([]journaledDoc, 0, batchSize),
		flushChan:     make(chan flushItem, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		journal:       c.Journal,
		inFlight:      make(map[uint64]struct{}),
		settledSeq:    make(map[uint64]uint64),
		journalHold:   math.MaxUint64,
		flightChanged: make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// NewStoredDocument converts a transformed document into its stored form.
// Documents with a url get a stable id per job so re-ingesting a row replaces
// the earlier version.
func NewStoredDocument(jobID, sourceFile string, doc model.Document) *model.StoredDocument {
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		fields[k] = v
	}
	url, _ := doc[model.FieldURL].(string)
	id := uuid.NewString()
	if url != "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(jobID+"\x00"+url)).String()
	}
	return &model.StoredDocument{
		ID:         id,
		JobID:      jobID,
		URL:        url,
		SourceFile: sourceFile,
		Fields:     fields,
		IngestedAt: time.Now().UTC(),
	}
}

// Store queues doc for insertion. A document that cannot be encoded is
// rejected here so the failure is attributed to its row.
func (b *DocumentBuffer) Store(ctx context.Context, _ model.Params, doc model.Document) error {
	if b.stopped.Load() {
		return ErrBufferStopped
	}
	sd := NewStoredDocument(b.jobID, model.SourceFileFrom(ctx), doc)
	if _, err := json.Marshal(sd.Fields); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	b.mu.Lock()
	// Appending under mu keeps journal sequence order equal to batch order.
	seq := uint64(0)
	if b.journal != nil {
		var err error
		if seq, err = b.journal.Append(sd); err != nil {
			b.mu.Unlock()
			return fmt.Errorf("journal append: %w", err)
		}
	}
	b.pending = append(b.pending, journaledDoc{seq: seq, doc: sd})
	var (
		item flushItem
		full bool
	)
	if len(b.pending) >= b.maxBatch {
		item, full = b.takePendingLocked()
	}
	b.mu.Unlock()

	if full {
		b.enqueue(item)
	}
	return nil
}

// Commit flushes everything stored so far and waits until every batch handed
// off before the call is written, including batches flushed inline by other
// goroutines. It returns the first flush error seen since the previous Commit.
func (b *DocumentBuffer) Commit(ctx context.Context) error {
	if b.stopped.Load() {
		return ErrBufferStopped
	}
	b.mu.Lock()
	item, ok := b.takePendingLocked()
	b.flightMu.Lock()
	barrier := b.nextTicket
	b.flightMu.Unlock()
	b.mu.Unlock()

	if ok {
		b.enqueue(item)
	}

	for {
		b.flightMu.Lock()
		waiting := b.oldestInFlightLocked() < barrier
		changed := b.flightChanged
		b.flightMu.Unlock()
		if !waiting {
			break
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.errMu.Lock()
	defer b.errMu.Unlock()
	err := b.flushErr
	b.flushErr = nil
	return err
}

// takePendingLocked moves the pending documents into a ticketed batch.
// b.mu must be held.
func (b *DocumentBuffer) takePendingLocked() (flushItem, bool) {
	if len(b.pending) == 0 {
		return flushItem{}, false
	}
	item := flushItem{batch: b.pending}
	b.pending = make([]journaledDoc, 0, b.maxBatch)

	b.flightMu.Lock()
	item.ticket = b.nextTicket
	b.nextTicket++
	b.inFlight[item.ticket] = struct{}{}
	b.flightMu.Unlock()
	return item, true
}

func (b *DocumentBuffer) oldestInFlightLocked() uint64 {
	oldest := uint64(math.MaxUint64)
	for t := range b.inFlight {
		oldest = min(oldest, t)
	}
	return oldest
}

// settle retires a ticket and commits the journal up to the highest sequence
// whose batch and all earlier batches were written. The journal stops
// advancing at the first failed batch so its entries are replayed on the
// next start.
func (b *DocumentBuffer) settle(ticket, maxSeq uint64, failed bool) {
	b.flightMu.Lock()
	defer b.flightMu.Unlock()

	delete(b.inFlight, ticket)
	if failed {
		b.journalHold = min(b.journalHold, ticket)
	} else if maxSeq > 0 && ticket < b.journalHold {
		b.settledSeq[ticket] = maxSeq
	}
	oldest := min(b.oldestInFlightLocked(), b.journalHold)
	commitSeq := uint64(0)
	for t, seq := range b.settledSeq {
		if t < oldest {
			commitSeq = max(commitSeq, seq)
			delete(b.settledSeq, t)
		}
	}
	if commitSeq > 0 && b.journal != nil {
		if err := b.journal.Commit(commitSeq); err != nil {
			b.recordErr(fmt.Errorf("journal commit seq=%d: %w", commitSeq, err))
		}
	}

	close(b.flightChanged)
	b.flightChanged = make(chan struct{})
}

func (b *DocumentBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

func (b *DocumentBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: backpressure, %d inline flushes (flush queue full)", count)
	}
}

func (b *DocumentBuffer) drainPending() {
	b.mu.Lock()
	item, ok := b.takePendingLocked()
	b.mu.Unlock()
	if ok {
		b.enqueue(item)
	}
}

// enqueue hands item to the flush worker, flushing inline when the queue is
// full or already closed.
func (b *DocumentBuffer) enqueue(item flushItem) {
	b.sendMu.RLock()
	if !b.chanClosed {
		select {
		case b.flushChan <- item:
			b.sendMu.RUnlock()
			return
		default:
			b.logBackpressure()
		}
	}
	b.sendMu.RUnlock()
	b.flushBatch(item)
}

func (b *DocumentBuffer) flushWorker() {
	defer b.wg.Done()
	for item := range b.flushChan {
		b.flushBatch(item)
	}
}

// Stop flushes remaining documents, waits for all writes and closes the
// journal. It is safe to call more than once.
func (b *DocumentBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)
		b.tickWg.Wait()

		b.sendMu.Lock()
		b.chanClosed = true
		close(b.flushChan)
		b.sendMu.Unlock()
		b.wg.Wait()

		// A Store that raced with Stop may have left documents behind.
		b.drainPending()
		if b.journal != nil {
			if err := b.journal.Close(); err != nil {
				log.Printf("duckdb: journal close error: %v", err)
			}
		}
	})
}

// flushBatch writes item and records any error before retiring its ticket,
// so a waiting Commit always sees the outcome.
func (b *DocumentBuffer) flushBatch(item flushItem) {
	maxSeq, err := b.writeBatch(item.batch)
	if err != nil {
		log.Printf("duckdb: flush error: %v", err)
		b.recordErr(err)
	}
	b.settle(item.ticket, maxSeq, err != nil)
}

func (b *DocumentBuffer) recordErr(err error) {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.flushErr == nil {
		b.flushErr = err
	}
}

// writeBatch inserts batch and returns its highest journal sequence, or 0
// when the write failed and the entries must stay uncommitted.
func (b *DocumentBuffer) writeBatch(batch []journaledDoc) (uint64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	docs := make([]*model.StoredDocument, 0, len(batch))
	maxSeq := uint64(0)
	for _, item := range batch {
		docs = append(docs, item.doc)
		maxSeq = max(maxSeq, item.seq)
	}

	if err := b.writer.InsertDocuments(docs); err != nil {
		return 0, err
	}
	return maxSeq, nil
}
