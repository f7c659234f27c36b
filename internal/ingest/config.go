package ingest

import (
	"strings"
	"time"

	"github.com/codelibs/fess-ds-csv/internal/dialect"
	"github.com/codelibs/fess-ds-csv/internal/model"
	"github.com/codelibs/fess-ds-csv/internal/transform"
)

// Config is the read-only per-job configuration of a Pipeline.
type Config struct {
	Job          *model.JobConfig
	Params       model.Params
	Dialect      dialect.Config
	Encoding     string
	HasHeader    bool
	ReadInterval time.Duration
	ScriptType   string
	Fields       []transform.Field
	Defaults     map[string]any
	Verbose      bool
}

// NewConfig derives a Config from job parameters and the job's scripts.
// The script_type parameter overrides the scripts file.
func NewConfig(job *model.JobConfig, params model.Params, scripts *transform.ScriptSet) Config {
	if job == nil {
		job = &model.JobConfig{}
	}
	cfg := Config{
		Job:          job,
		Params:       params,
		Dialect:      dialect.Parse(params),
		Encoding:     model.DefaultEncoding,
		HasHeader:    dialect.ParseBool(params, model.ParamHasHeaderLine, false),
		ReadInterval: time.Duration(dialect.ParseInt(params, model.ParamReadInterval, 0)) * time.Millisecond,
		ScriptType:   model.DefaultScriptType,
		Defaults:     map[string]any{},
	}
	if v := params.Get(model.ParamFileEncoding); v != "" {
		cfg.Encoding = v
	}
	if scripts != nil {
		cfg.Fields = scripts.Fields
		if scripts.Defaults != nil {
			cfg.Defaults = scripts.Defaults
		}
		if st := strings.TrimSpace(scripts.ScriptType); st != "" {
			cfg.ScriptType = st
		}
	}
	if v := params.Get(model.ParamScriptType); v != "" {
		cfg.ScriptType = v
	}
	return cfg
}
