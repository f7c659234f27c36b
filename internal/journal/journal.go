package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

type entry struct {
	Seq uint64                `json:"seq"`
	Doc *model.StoredDocument `json:"doc"`
}

// Journal is a durable append-only log of documents accepted by the sink
// but not yet written to the database. Entries are JSON lines; the highest
// committed sequence lives in a sidecar file next to the journal.
type Journal struct {
	mu         sync.Mutex
	path       string
	commitPath string
	file       *os.File
	nextSeq    uint64
	committed  uint64
	pending    int
}

// Open creates or opens the journal at path. Committed entries are compacted
// away and a partially written trailing line is dropped.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	commitPath := path + ".commit"
	committed, err := readCommitted(commitPath)
	if err != nil {
		return nil, err
	}

	maxSeq, kept, err := compact(path, committed)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	return &Journal{
		path:       path,
		commitPath: commitPath,
		file:       f,
		nextSeq:    max(maxSeq, committed) + 1,
		committed:  committed,
		pending:    kept,
	}, nil
}

// Append persists doc and returns its sequence number.
func (j *Journal) Append(doc *model.StoredDocument) (uint64, error) {
	if doc == nil {
		return 0, errors.New("journal: nil document")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return 0, errors.New("journal: closed")
	}

	seq := j.nextSeq
	line, err := json.Marshal(entry{Seq: seq, Doc: doc})
	if err != nil {
		return 0, fmt.Errorf("journal: marshal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.file.Write(line); err != nil {
		return 0, fmt.Errorf("journal: write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("journal: sync entry: %w", err)
	}
	j.nextSeq++
	j.pending++
	return seq, nil
}

// Commit marks every entry up to seq as written.
func (j *Journal) Commit(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if seq <= j.committed {
		return nil
	}
	if err := writeCommitted(j.commitPath, seq); err != nil {
		return err
	}
	j.pending -= int(seq - j.committed)
	if j.pending < 0 {
		j.pending = 0
	}
	j.committed = seq
	return nil
}

// Committed returns the highest committed sequence number.
func (j *Journal) Committed() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

// Pending is the number of appended entries not yet committed.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pending
}

// Replay calls fn for each uncommitted entry in sequence order.
func (j *Journal) Replay(fn func(seq uint64, doc *model.StoredDocument) error) error {
	if fn == nil {
		return errors.New("journal: replay callback is nil")
	}

	j.mu.Lock()
	path, committed := j.path, j.committed
	j.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("journal: open for replay: %w", err)
	}
	defer f.Close()

	return scanEntries(f, func(e entry, _ []byte) error {
		if e.Seq <= committed || e.Doc == nil {
			return nil
		}
		return fn(e.Seq, e.Doc)
	})
}

// Close closes the journal file. Later appends fail.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// scanEntries feeds complete, well-formed lines to fn. Scanning stops
// silently at a partial trailing line or the first malformed entry.
func scanEntries(r io.Reader, fn func(e entry, line []byte) error) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("journal: read: %w", err)
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			return nil
		}
		var e entry
		if json.Unmarshal(line, &e) != nil {
			return nil
		}
		if ferr := fn(e, line); ferr != nil {
			return ferr
		}
		if err != nil {
			return nil
		}
	}
}

func readCommitted(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("journal: read commit file: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("journal: parse commit seq: %w", err)
	}
	return seq, nil
}

// writeCommitted replaces the commit file atomically.
func writeCommitted(path string, seq uint64) error {
	return replaceFile(path, func(f *os.File) error {
		_, err := f.WriteString(strconv.FormatUint(seq, 10) + "\n")
		return err
	})
}

// compact rewrites the journal keeping only uncommitted entries. It returns
// the highest sequence seen and the number of entries kept.
func compact(path string, committed uint64) (uint64, int, error) {
	src, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, defaultFileMode)
	if err != nil {
		return 0, 0, fmt.Errorf("journal: open source for compact: %w", err)
	}
	defer src.Close()

	var maxSeq uint64
	kept := 0
	err = replaceFile(path, func(dst *os.File) error {
		return scanEntries(src, func(e entry, line []byte) error {
			maxSeq = max(maxSeq, e.Seq)
			if e.Seq <= committed {
				return nil
			}
			kept++
			_, werr := dst.Write(line)
			return werr
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("journal: compact: %w", err)
	}
	return maxSeq, kept, nil
}

// replaceFile writes a sibling temp file through write, syncs it and renames
// it over path.
func replaceFile(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_RDWR, defaultFileMode)
	if err != nil {
		return fmt.Errorf("journal: open %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: rename %s: %w", tmp, err)
	}
	return nil
}
