package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// InsertDocuments upserts a batch of documents in a single transaction. If
// the batch fails it is retried document by document so one bad document
// does not drop the rest.
func (s *Store) InsertDocuments(docs []*model.StoredDocument) error {
	if len(docs) == 0 {
		return nil
	}
	docs = dedupeDocuments(docs)

	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertDocumentsTx(ctx, docs)
	if err == nil {
		return nil
	}

	var failed int
	for _, d := range docs {
		if rerr := s.insertDocumentsTx(ctx, []*model.StoredDocument{d}); rerr != nil {
			failed++
			log.Printf("duckdb: dropping document (id=%s url=%s): %v", d.ID, d.URL, rerr)
		}
	}
	if failed == len(docs) {
		return fmt.Errorf("insert documents: %w", err)
	}
	if failed > 0 {
		log.Printf("duckdb: batch partially failed: %d/%d documents dropped", failed, len(docs))
	}
	return nil
}

func (s *Store) insertDocumentsTx(ctx context.Context, docs []*model.StoredDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents (id, job_id, url, source_file, fields, ingested_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range docs {
		fields, err := json.Marshal(d.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields of %s: %w", d.ID, err)
		}
		var url, source any
		if d.URL != "" {
			url = d.URL
		}
		if d.SourceFile != "" {
			source = d.SourceFile
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.JobID, url, source, string(fields), d.IngestedAt); err != nil {
			return fmt.Errorf("document insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// dedupeDocuments keeps the last document for each id, preserving order.
func dedupeDocuments(docs []*model.StoredDocument) []*model.StoredDocument {
	last := make(map[string]int, len(docs))
	for i, d := range docs {
		last[d.ID] = i
	}
	if len(last) == len(docs) {
		return docs
	}
	out := make([]*model.StoredDocument, 0, len(last))
	for i, d := range docs {
		if last[d.ID] == i {
			out = append(out, d)
		}
	}
	return out
}
