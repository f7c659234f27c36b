package duckdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// maxQueryRows caps the rows returned by ExecuteQuery.
const maxQueryRows = 1000

// dangerousKeywordPattern matches write or side-effecting SQL keywords at
// word boundaries, so "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET)\b`,
)

// fileAccessPattern matches table functions and replacement scans that read
// from the local file system, e.g. read_csv('/etc/passwd') or FROM 'x.csv'.
var fileAccessPattern = regexp.MustCompile(
	`(?i)\b(read_\w+|glob|getenv|parquet_\w+|sniff_csv)\s*\(|\b(FROM|JOIN)\s*\(?\s*['"]`,
)

var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// ValidateReadOnly rejects anything but a single SELECT or WITH statement.
func ValidateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("query must not contain semicolons")
	}
	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT/WITH queries are allowed")
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("query contains disallowed keyword: %s", strings.ToUpper(match))
	}
	if match := fileAccessPattern.FindString(stripped); match != "" {
		return fmt.Errorf("query must not access files: %s", strings.TrimSpace(match))
	}
	return nil
}

// ExecuteQuery runs a read-only query and returns at most maxQueryRows rows.
func (s *Store) ExecuteQuery(query string) ([]map[string]any, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	slots := s.readSlots
	s.mu.RUnlock()
	if slots != nil {
		slots <- struct{}{}
		defer func() { <-slots }()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for rows.Next() && len(results) < maxQueryRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.Printf("duckdb: scan error (ExecuteQuery): %v", err)
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable schema description.
func (s *Store) GetSchemaDescription() string {
	return `Table 'documents': id (VARCHAR), job_id (VARCHAR), url (VARCHAR), ` +
		`source_file (VARCHAR), fields (JSON), ingested_at (TIMESTAMP). ` +
		`Table 'failure_urls': id (VARCHAR), job_id (VARCHAR), url (VARCHAR), ` +
		`error_name (VARCHAR), error_log (VARCHAR), error_count (INTEGER), last_access_time (TIMESTAMP).`
}

// TableRowCounts returns the row count of each known table.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	tables := []string{"documents", "failure_urls"}
	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var count int64
		// Table names are constants, not user input.
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}

// DocumentCount returns the number of stored documents, optionally for one job.
func (s *Store) DocumentCount(jobID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := "SELECT COUNT(*) FROM documents"
	var args []any
	if jobID != "" {
		query += " WHERE job_id = ?"
		args = append(args, jobID)
	}
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// RecentDocuments returns the most recently ingested documents.
func (s *Store) RecentDocuments(limit int) ([]model.StoredDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, url, source_file, CAST(fields AS VARCHAR), ingested_at
		 FROM documents ORDER BY ingested_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.StoredDocument
	for rows.Next() {
		var (
			d           model.StoredDocument
			url, source sql.NullString
			fields      string
		)
		if err := rows.Scan(&d.ID, &d.JobID, &url, &source, &fields, &d.IngestedAt); err != nil {
			return nil, err
		}
		d.URL = url.String
		d.SourceFile = source.String
		if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
			log.Printf("duckdb: bad fields json for %s: %v", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ListFailures returns failure records, most recent first, optionally for one job.
func (s *Store) ListFailures(jobID string, limit int) ([]model.FailureRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := `SELECT id, job_id, url, error_name, error_log, error_count, last_access_time FROM failure_urls`
	var args []any
	if jobID != "" {
		query += " WHERE job_id = ?"
		args = append(args, jobID)
	}
	query += " ORDER BY last_access_time DESC, url LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailureRecord
	for rows.Next() {
		var (
			f        model.FailureRecord
			errorLog sql.NullString
			last     time.Time
		)
		if err := rows.Scan(&f.ID, &f.JobID, &f.URL, &f.ErrorName, &errorLog, &f.ErrorCount, &last); err != nil {
			return nil, err
		}
		f.ErrorLog = errorLog.String
		f.LastAccessTime = last
		out = append(out, f)
	}
	return out, rows.Err()
}
