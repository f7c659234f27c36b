// Package migrate applies the embedded, numbered SQL schema files to a
// DuckDB database.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Runner applies versioned migrations named NNN_description.sql.
type Runner struct {
	db   *sql.DB
	fsys fs.FS
}

// NewRunner creates a runner for the embedded migrations.
func NewRunner(db *sql.DB) *Runner {
	sub, _ := fs.Sub(embedded, "migrations")
	return &Runner{db: db, fsys: sub}
}

// Status describes the schema version of a database.
type Status struct {
	Current int
	Latest  int
	Pending int
}

type migration struct {
	version int
	name    string
	sql     string
}

func (r *Runner) load() ([]migration, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var migs []migration
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		ver, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("parsing version from %s: %w", e.Name(), err)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", ver, prev, e.Name())
		}
		seen[ver] = e.Name()
		data, err := fs.ReadFile(r.fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		migs = append(migs, migration{version: ver, name: e.Name(), sql: string(data)})
	}

	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })
	return migs, nil
}

func (r *Runner) bootstrap(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT current_timestamp
	)`)
	return err
}

func (r *Runner) current(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// Run applies all pending migrations in version order, each in its own
// transaction.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}
	migs, err := r.load()
	if err != nil {
		return err
	}
	current, err := r.current(ctx)
	if err != nil {
		return fmt.Errorf("reading applied version: %w", err)
	}

	for _, m := range migs {
		if m.version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return err
		}
		log.Printf("migrate: applied %s", m.name)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("recording %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.name, err)
	}
	return nil
}

// Status reports the applied and latest schema versions.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	var st Status
	if err := r.bootstrap(ctx); err != nil {
		return st, fmt.Errorf("bootstrap schema_migrations: %w", err)
	}
	current, err := r.current(ctx)
	if err != nil {
		return st, fmt.Errorf("reading applied version: %w", err)
	}
	migs, err := r.load()
	if err != nil {
		return st, err
	}
	st.Current = current
	for _, m := range migs {
		if m.version > st.Latest {
			st.Latest = m.version
		}
		if m.version > current {
			st.Pending++
		}
	}
	return st, nil
}
