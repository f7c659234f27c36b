package duckdb

import (
	"log"
	"sync"
	"time"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	Interval      time.Duration
}

// RetentionCleaner periodically deletes failure records that have not
// recurred within the retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	now           func() time.Time
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner starts a cleaner. It returns nil when retention is
// disabled (RetentionDays <= 0).
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}
	if conf.Interval <= 0 {
		conf.Interval = time.Hour
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: conf.RetentionDays,
		interval:      conf.Interval,
		now:           time.Now,
		done:          make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()
	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() int64 {
	cutoff := rc.now().Add(-time.Duration(rc.retentionDays) * 24 * time.Hour)

	rows, err := rc.store.DeleteFailuresBefore(cutoff)
	if err != nil {
		log.Printf("duckdb: retention cleanup error: %v", err)
		return 0
	}
	if rows > 0 {
		log.Printf("duckdb: retention cleanup deleted %d failure urls (older than %d days)", rows, rc.retentionDays)
	}
	return rows
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
