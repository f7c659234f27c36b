// Package selector resolves the configured files or directories of a job into
// the ordered list of files to ingest.
package selector

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Filter decides whether a regular file is a candidate.
type Filter func(path string, info fs.FileInfo) bool

// SuffixFilter accepts files whose name ends with one of suffixes, ignoring case.
func SuffixFilter(suffixes ...string) Filter {
	lower := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		lower = append(lower, strings.ToLower(s))
	}
	return func(_ string, info fs.FileInfo) bool {
		name := strings.ToLower(info.Name())
		for _, s := range lower {
			if strings.HasSuffix(name, s) {
				return true
			}
		}
		return false
	}
}

// AgeFilter accepts files last modified strictly more than margin before now.
// A file still being written by a producer keeps moving its modification time
// forward and is picked up on a later scan.
func AgeFilter(margin time.Duration, now func() time.Time) Filter {
	if now == nil {
		now = time.Now
	}
	return func(_ string, info fs.FileInfo) bool {
		return now().Sub(info.ModTime()) > margin
	}
}

// All combines filters; a file must pass every one of them.
func All(filters ...Filter) Filter {
	return func(path string, info fs.FileInfo) bool {
		for _, f := range filters {
			if !f(path, info) {
				return false
			}
		}
		return true
	}
}

// Selector lists candidate files for a job.
type Selector struct {
	accept Filter
}

// New returns a Selector accepting files that pass filter. A nil filter
// accepts the default .csv/.tsv suffixes.
func New(filter Filter) *Selector {
	if filter == nil {
		filter = SuffixFilter(model.FileSuffixes...)
	}
	return &Selector{accept: filter}
}

// Select returns the files named by the files parameter or, when that is
// blank, the files inside the directories parameter ordered by modification
// time. It fails only when both parameters are blank.
func (s *Selector) Select(params model.Params) ([]model.CandidateFile, error) {
	if value := params.Get(model.ParamFiles); value != "" {
		log.Printf("selector: %s=%s", model.ParamFiles, value)
		files := s.fromFiles(splitList(value))
		if len(files) == 0 {
			log.Printf("selector: no csv files in %s", value)
		}
		return files, nil
	}

	value := params.Get(model.ParamDirectories)
	if value == "" {
		return nil, &model.ConfigError{Err: model.ErrNoInput}
	}
	log.Printf("selector: %s=%s", model.ParamDirectories, value)
	files := s.fromDirectories(splitList(value))
	if len(files) == 0 {
		log.Printf("selector: no csv files in %s", value)
	}
	return files, nil
}

func (s *Selector) fromFiles(paths []string) []model.CandidateFile {
	var files []model.CandidateFile
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || !s.accept(path, info) {
			log.Printf("selector: %s is not found.", path)
			continue
		}
		files = append(files, candidate(path, info))
	}
	return files
}

func (s *Selector) fromDirectories(dirs []string) []model.CandidateFile {
	var files []model.CandidateFile
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			log.Printf("selector: %s is not a directory.", dir)
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Printf("selector: failed to list %s: %v", dir, err)
			continue
		}

		var found []model.CandidateFile
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			fi, err := e.Info()
			if err != nil {
				// Removed between listing and stat.
				continue
			}
			path := filepath.Join(dir, e.Name())
			if s.accept(path, fi) {
				found = append(found, candidate(path, fi))
			}
		}
		sort.SliceStable(found, func(i, j int) bool {
			return found[i].ModTime.Before(found[j].ModTime)
		})
		files = append(files, found...)
	}
	return files
}

func candidate(path string, info fs.FileInfo) model.CandidateFile {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return model.CandidateFile{Path: path, ModTime: info.ModTime()}
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
