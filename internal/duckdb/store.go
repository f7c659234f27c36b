// Package duckdb persists ingested documents and row failures in an embedded
// DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/codelibs/fess-ds-csv/internal/duckdb/migrate"
)

const defaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection. Writes are serialized; reads share
// the lock and are bounded by SetMaxConcurrentQueries.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	readSlots    chan struct{}
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies migrations.
// If dbPath is empty, an in-memory database is used.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	qt := defaultQueryTimeout
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), qt)
	defer cancel()
	if err := migrate.NewRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// SetMaxConcurrentQueries bounds concurrent ad-hoc reads. n <= 0 removes the bound.
func (s *Store) SetMaxConcurrentQueries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		s.readSlots = nil
		return
	}
	s.readSlots = make(chan struct{}, n)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// DBPath returns the configured database path; empty means in-memory.
func (s *Store) DBPath() string {
	return s.dbPath
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}
