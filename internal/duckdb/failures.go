package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

const maxErrorLogLength = 4000

// FailureStore records row failures in the failure_urls table. A repeated
// failure of the same url for the same job increments its error count.
type FailureStore struct {
	store *Store
	now   func() time.Time
}

func NewFailureStore(store *Store) *FailureStore {
	return &FailureStore{store: store, now: time.Now}
}

// StoreFailure implements model.FailureRecorder.
func (f *FailureStore) StoreFailure(ctx context.Context, job *model.JobConfig, errorName, url string, cause error) error {
	jobID := ""
	if job != nil {
		jobID = job.ID
	}
	errorLog := ""
	if cause != nil {
		errorLog = cause.Error()
	}
	if len(errorLog) > maxErrorLogLength {
		errorLog = errorLog[:maxErrorLogLength]
	}
	return f.store.UpsertFailure(ctx, &model.FailureRecord{
		JobID:          jobID,
		URL:            url,
		ErrorName:      errorName,
		ErrorLog:       errorLog,
		LastAccessTime: f.now().UTC(),
	})
}

// UpsertFailure inserts rec or, when (job_id, url) already failed, bumps its
// error count and refreshes the error details.
func (s *Store) UpsertFailure(ctx context.Context, rec *model.FailureRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM failure_urls WHERE job_id = ? AND url = ?`, rec.JobID, rec.URL).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec.ID = uuid.NewString()
		rec.ErrorCount = 1
		_, err = tx.ExecContext(ctx,
			`INSERT INTO failure_urls (id, job_id, url, error_name, error_log, error_count, last_access_time) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.JobID, rec.URL, rec.ErrorName, rec.ErrorLog, rec.ErrorCount, rec.LastAccessTime)
	case err == nil:
		rec.ID = id
		_, err = tx.ExecContext(ctx,
			`UPDATE failure_urls SET error_name = ?, error_log = ?, error_count = error_count + 1, last_access_time = ? WHERE id = ?`,
			rec.ErrorName, rec.ErrorLog, rec.LastAccessTime, id)
		if err == nil {
			err = tx.QueryRowContext(ctx, `SELECT error_count FROM failure_urls WHERE id = ?`, id).Scan(&rec.ErrorCount)
		}
	}
	if err != nil {
		return fmt.Errorf("store failure url %s: %w", rec.URL, err)
	}
	return tx.Commit()
}

// DeleteFailuresBefore removes failure records last seen before cutoff.
func (s *Store) DeleteFailuresBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM failure_urls WHERE last_access_time < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
