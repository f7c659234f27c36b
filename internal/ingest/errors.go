package ingest

import "fmt"

// FileError is a fatal error for one file: it could not be opened, decoded
// or read, or a row failure could not be persisted.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to crawl data when reading csv file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// PanicError is a panic raised by a collaborator while processing a row.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
