package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

type staticSelector struct {
	files []model.CandidateFile
	err   error
}

func (s staticSelector) Select(model.Params) ([]model.CandidateFile, error) {
	return s.files, s.err
}

type scriptedProcessor struct {
	seen []string
	errs map[string]error
	stop func()
}

func (p *scriptedProcessor) ProcessFile(_ context.Context, path string) (FileResult, error) {
	p.seen = append(p.seen, path)
	if p.stop != nil {
		p.stop()
	}
	if err := p.errs[path]; err != nil {
		return FileResult{Path: path}, err
	}
	return FileResult{Path: path, Stored: 2, Discarded: 1}, nil
}

func candidates(paths ...string) []model.CandidateFile {
	out := make([]model.CandidateFile, len(paths))
	for i, p := range paths {
		out[i] = model.CandidateFile{Path: p}
	}
	return out
}

func TestEngineRun(t *testing.T) {
	t.Parallel()

	proc := &scriptedProcessor{}
	e := NewEngine(staticSelector{files: candidates("a.csv", "b.csv")}, proc, nil)
	summary, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(proc.seen) != 2 || proc.seen[0] != "a.csv" {
		t.Fatalf("seen = %v", proc.seen)
	}
	if summary.Stored != 4 || summary.Discarded != 2 || len(summary.Files) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestEngineRun_NoFilesLogged(t *testing.T) {
	t.Parallel()

	var logged []string
	proc := &scriptedProcessor{}
	e := NewEngine(staticSelector{}, proc, nil)
	e.logf = func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	summary, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(proc.seen) != 0 || len(summary.Files) != 0 {
		t.Fatalf("seen = %v, summary = %+v", proc.seen, summary)
	}
	if len(logged) != 1 || logged[0] != "ingest: no csv file" {
		t.Errorf("logged = %q, want [ingest: no csv file]", logged)
	}
}

func TestEngineRun_ConfigErrorPropagates(t *testing.T) {
	t.Parallel()

	cfgErr := &model.ConfigError{Err: model.ErrNoInput}
	proc := &scriptedProcessor{}
	_, err := NewEngine(staticSelector{err: cfgErr}, proc, nil).Run(context.Background(), nil)
	if !errors.Is(err, model.ErrNoInput) {
		t.Fatalf("error = %v, want ErrNoInput", err)
	}
	if len(proc.seen) != 0 {
		t.Fatalf("processed %v after config error", proc.seen)
	}
}

func TestEngineRun_FileErrorStopsRun(t *testing.T) {
	t.Parallel()

	fileErr := &FileError{Path: "a.csv", Err: errors.New("broken")}
	proc := &scriptedProcessor{errs: map[string]error{"a.csv": fileErr}}
	_, err := NewEngine(staticSelector{files: candidates("a.csv", "b.csv")}, proc, nil).Run(context.Background(), nil)
	if !errors.Is(err, fileErr) {
		t.Fatalf("error = %v, want %v", err, fileErr)
	}
	if len(proc.seen) != 1 {
		t.Fatalf("seen = %v, want only a.csv", proc.seen)
	}
}

func TestEngineRun_StopsWhenNotAlive(t *testing.T) {
	t.Parallel()

	sw := NewSwitch()
	proc := &scriptedProcessor{stop: sw.Stop}
	_, err := NewEngine(staticSelector{files: candidates("a.csv", "b.csv")}, proc, sw).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(proc.seen) != 1 {
		t.Fatalf("seen = %v, want only a.csv", proc.seen)
	}
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	params := model.Params{
		model.ParamHasHeaderLine: "true",
		model.ParamReadInterval:  "250",
		model.ParamFileEncoding:  "Shift_JIS",
		model.ParamScriptType:    "CEL",
	}
	cfg := NewConfig(nil, params, nil)
	if !cfg.HasHeader || cfg.ReadInterval.Milliseconds() != 250 || cfg.Encoding != "Shift_JIS" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ScriptType != "CEL" || cfg.Job == nil || cfg.Defaults == nil {
		t.Fatalf("cfg = %+v", cfg)
	}

	bad := NewConfig(nil, model.Params{model.ParamReadInterval: "soon", model.ParamHasHeaderLine: "yes"}, nil)
	if bad.ReadInterval != 0 || bad.HasHeader {
		t.Fatalf("invalid values not defaulted: %+v", bad)
	}
	if bad.Encoding != model.DefaultEncoding || bad.ScriptType != model.DefaultScriptType {
		t.Fatalf("defaults = %+v", bad)
	}
}
