package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

const (
	defaultQueryTimeout        = 30 * time.Second
	defaultMaxConcurrentReads  = 8
	defaultInsertBatchSize     = 500
	defaultInsertFlushInterval = 200 * time.Millisecond
	defaultInsertFlushQueue    = 16
	defaultFailureRetention    = 30 // days, 0 = disabled
	defaultAPIAddr             = "127.0.0.1:8484"
	defaultPollInterval        = 30 * time.Second
	defaultJobID               = "csv"
)

// appConfig is internal runtime configuration.
type appConfig struct {
	DBPath              string        `mapstructure:"db-path"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	MaxConcurrentReads  int           `mapstructure:"max-concurrent-queries"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	JournalEnabled      bool          `mapstructure:"journal-enabled"`
	JournalPath         string        `mapstructure:"journal-path"`
	FailureRetention    int           `mapstructure:"failure-retention"`
	APIEnabled          bool          `mapstructure:"api-enabled"`
	APIAddr             string        `mapstructure:"api-addr"`
	PollInterval        time.Duration `mapstructure:"poll-interval"`
	Verbose             bool          `mapstructure:"verbose"`
	LogFile             string        `mapstructure:"log-file"`

	Job        jobConfig `mapstructure:"-"`
	ConfigPath string    `mapstructure:"-"` // not from config file
}

// jobConfig is the job section of the config file.
type jobConfig struct {
	ID          string
	Name        string
	ScriptsFile string
	Params      model.Params
}

// loadConfig reads the .env file (if any), the YAML config file and CSVDS_*
// environment variables. paramOverrides are key=value pairs applied on top
// of job.params.
func loadConfig(configPath, envFile string, paramOverrides []string) (appConfig, error) {
	var cfg appConfig

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "share", "csvds")

	v := viper.New()
	v.SetEnvPrefix("CSVDS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db-path", filepath.Join(dataDir, "csvds.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("max-concurrent-queries", defaultMaxConcurrentReads)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("journal-enabled", true)
	v.SetDefault("journal-path", filepath.Join(dataDir, "documents.journal"))
	v.SetDefault("failure-retention", defaultFailureRetention)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("verbose", false)
	v.SetDefault("log-file", filepath.Join(home, ".local", "state", "csvds", "csvds.log"))
	v.SetDefault("job.id", defaultJobID)
	v.SetDefault("job.name", "")
	v.SetDefault("job.scripts-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "csvds", "config.yml"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return cfg, err
		}
		if configPath != "" {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	cfg.Job = jobConfig{
		ID:          v.GetString("job.id"),
		Name:        v.GetString("job.name"),
		ScriptsFile: v.GetString("job.scripts-file"),
		Params:      model.Params(v.GetStringMapString("job.params")),
	}
	if cfg.Job.Params == nil {
		cfg.Job.Params = model.Params{}
	}
	for _, kv := range paramOverrides {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return cfg, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		cfg.Job.Params[key] = value
	}

	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.JournalPath = expandHome(cfg.JournalPath, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)
	cfg.Job.ScriptsFile = expandHome(cfg.Job.ScriptsFile, home)
	return cfg, nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
