// Package projector maps parsed rows onto the records transform scripts see.
package projector

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Projector builds records for one job. It is read-only after construction
// and may be shared across file workers.
type Projector struct {
	job      *model.JobConfig
	params   model.Params
	defaults map[string]any
}

func New(job *model.JobConfig, params model.Params, defaults map[string]any) *Projector {
	return &Projector{job: job, params: params, defaults: defaults}
}

// Project builds the record for row read from path. The record carries the
// default fields, the job parameters, the file identity and one cell<N> key
// per cell. When header is non-nil and names column i, the header name is
// set as well; duplicate header names keep the right-most value.
//
// empty reports that every cell is blank after trimming; such rows carry no
// usable data and are discarded by the caller.
func (p *Projector) Project(path string, header []string, row model.Row) (rec model.Record, empty bool) {
	rec = make(model.Record, len(p.defaults)+len(p.params)+2*len(row.Cells)+4)
	for k, v := range p.defaults {
		rec[k] = v
	}
	for k, v := range p.params {
		rec[k] = v
	}
	rec[model.FieldCSVFile] = path
	rec[model.FieldCSVFileName] = filepath.Base(path)
	rec[model.FieldCrawlingConfig] = p.job

	empty = true
	for i, value := range row.Cells {
		if strings.TrimSpace(value) != "" {
			empty = false
		}
		if i < len(header) {
			if name := header[i]; strings.TrimSpace(name) != "" {
				rec[name] = value
			}
		}
		rec[CellKey(i)] = value
	}
	return rec, empty
}

// CellKey returns the positional key for the zero-based column i.
func CellKey(i int) string {
	return model.CellPrefix + strconv.Itoa(i+1)
}
