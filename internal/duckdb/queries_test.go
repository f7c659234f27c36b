package duckdb

import (
	"strings"
	"testing"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

func TestValidateReadOnly(t *testing.T) {
	tests := []struct {
		query   string
		wantErr string
	}{
		{"SELECT * FROM documents", ""},
		{"  with x as (select 1) select * from x", ""},
		{"SELECT 'reset' AS word", ""},
		{"SELECT 1; DROP TABLE documents", "semicolons"},
		{"DELETE FROM documents", "only SELECT/WITH"},
		{"/* SELECT */ DROP TABLE documents", "only SELECT/WITH"},
		{"SELECT * FROM documents WHERE id IN (SELECT id FROM x) -- \n UNION SELECT 1 FROM (DELETE FROM documents)", "DELETE"},
		{"SELECT 1 FROM x WHERE a = 1 AND SET", "SET"},
		{"SELECT * FROM read_text('/etc/passwd')", "access files"},
		{"SELECT * FROM READ_CSV ('/tmp/x.csv')", "access files"},
		{"SELECT * FROM glob('/home/*')", "access files"},
		{"SELECT getenv('HOME')", "access files"},
		{"SELECT * FROM '/etc/passwd.csv'", "access files"},
		{"SELECT d.id FROM documents d JOIN \"/tmp/x.parquet\" p ON true", "access files"},
		{"SELECT thread_count, spread_id FROM documents", ""},
	}
	for _, tt := range tests {
		err := ValidateReadOnly(tt.query)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("ValidateReadOnly(%q) = %v, want nil", tt.query, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("ValidateReadOnly(%q) = %v, want error containing %q", tt.query, err, tt.wantErr)
		}
	}
}

func TestExecuteQuery(t *testing.T) {
	store := newTestStore(t)
	store.SetMaxConcurrentQueries(2)
	docs := []*model.StoredDocument{
		testDoc("job-1", "https://example.com/1", map[string]any{"title": "a"}),
		testDoc("job-1", "https://example.com/2", map[string]any{"title": "b"}),
	}
	if err := store.InsertDocuments(docs); err != nil {
		t.Fatalf("InsertDocuments: %v", err)
	}

	rows, err := store.ExecuteQuery("SELECT url FROM documents ORDER BY url")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(rows) != 2 || rows[0]["url"] != "https://example.com/1" {
		t.Fatalf("rows = %v", rows)
	}

	if _, err := store.ExecuteQuery("DROP TABLE documents"); err == nil {
		t.Fatal("expected write query to be rejected")
	}
	if _, err := store.ExecuteQuery("SELECT * FROM read_text('/etc/passwd')"); err == nil {
		t.Fatal("expected file read to be rejected")
	}
}

func TestExecuteQuery_RowCap(t *testing.T) {
	store := newTestStore(t)
	rows, err := store.ExecuteQuery("SELECT * FROM range(5000)")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(rows) != maxQueryRows {
		t.Fatalf("rows = %d, want %d", len(rows), maxQueryRows)
	}
}
