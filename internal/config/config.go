// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/runledger/internal/domain/model"
)

const envPrefix = "RUNLEDGER_"

var (
	// ErrNoPersistenceTarget indicates neither a SQLite path nor a Postgres URL is set.
	ErrNoPersistenceTarget = errors.New("no persistence target: set RUNLEDGER_DB_PATH or RUNLEDGER_DATABASE_URL")

	// ErrIncompleteSaaS indicates a SaaS URL without the key or project it needs.
	ErrIncompleteSaaS = errors.New("RUNLEDGER_SAAS_URL requires RUNLEDGER_SAAS_API_KEY and RUNLEDGER_SAAS_PROJECT_ID")
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath              string
	DatabaseURL         string
	MaxConns            int32
	WriteTimeout        time.Duration
	MaxConcurrentWrites int
	ListenAddr          string
	ExportDir           string
	SaaSURL             string
	SaaSAPIKey          string
	SaaSProjectID       string
	LogLevel            slog.Level

	// Run metadata, falling back to CI provider variables.
	Project     string
	Branch      string
	Commit      string
	CIProvider  string
	CIBuildID   string
	Environment string

	// RootDir is the project root that absolute test file paths are made
	// relative to.
	RootDir string
}

// UsePostgres returns true when a Postgres URL is configured. It takes
// precedence over DBPath.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// HasSaaS returns true when uploads to the hosted dashboard are configured.
func (c *Config) HasSaaS() bool {
	return c.SaaSURL != ""
}

// Validate reports configuration that makes the recorder unusable.
func (c *Config) Validate() error {
	if c.DBPath == "" && c.DatabaseURL == "" {
		return ErrNoPersistenceTarget
	}
	if c.SaaSURL != "" && (c.SaaSAPIKey == "" || c.SaaSProjectID == "") {
		return ErrIncompleteSaaS
	}
	return nil
}

// RunMetadata returns the run attributes for a run expecting total tests.
func (c *Config) RunMetadata(total int) model.RunMetadata {
	return model.RunMetadata{
		ProjectName: c.Project,
		BranchName:  c.Branch,
		CommitSHA:   c.Commit,
		CIProvider:  c.CIProvider,
		CIBuildID:   c.CIBuildID,
		Environment: c.Environment,
		TotalTests:  total,
		RootDir:     c.RootDir,
	}
}

// Load reads configuration from RUNLEDGER_* environment variables and returns
// a Config. It does not call Validate; commands validate what they need.
// Defaults: DB_PATH (runledger.db), MAX_CONNS (10), WRITE_TIMEOUT (10s),
// MAX_CONCURRENT_WRITES (10), LISTEN_ADDR (127.0.0.1:8080),
// EXPORT_DIR (test-results/runledger), ENVIRONMENT (local), LOG_LEVEL (info).
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:              "runledger.db",
		MaxConns:            10,
		WriteTimeout:        10 * time.Second,
		MaxConcurrentWrites: 10,
		ListenAddr:          "127.0.0.1:8080",
		ExportDir:           "test-results/runledger",
		Environment:         "local",
		LogLevel:            slog.LevelInfo,
	}

	if v, ok := lookup("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := lookup("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := lookup("EXPORT_DIR"); ok {
		cfg.ExportDir = v
	}
	if v, ok := lookup("ROOT_DIR"); ok {
		cfg.RootDir = v
	}
	if v, ok := lookup("ENVIRONMENT"); ok && v != "" {
		cfg.Environment = v
	}
	cfg.SaaSURL = strings.TrimRight(os.Getenv(envPrefix+"SAAS_URL"), "/")
	cfg.SaaSAPIKey = os.Getenv(envPrefix + "SAAS_API_KEY")
	cfg.SaaSProjectID = os.Getenv(envPrefix + "SAAS_PROJECT_ID")

	if v, ok := lookup("WRITE_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("RUNLEDGER_WRITE_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("RUNLEDGER_WRITE_TIMEOUT must be positive, got %s", parsed)
		}
		cfg.WriteTimeout = parsed
	}

	if v, ok := lookup("MAX_CONCURRENT_WRITES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("RUNLEDGER_MAX_CONCURRENT_WRITES must be a positive integer, got %q", v)
		}
		cfg.MaxConcurrentWrites = n
	}

	if v, ok := lookup("MAX_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("RUNLEDGER_MAX_CONNS must be a positive integer, got %q", v)
		}
		cfg.MaxConns = int32(n)
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("RUNLEDGER_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	cfg.CIProvider = firstNonEmpty(os.Getenv(envPrefix+"CI_PROVIDER"), detectCIProvider())
	cfg.Project = firstEnv(envPrefix+"PROJECT", "GITHUB_REPOSITORY", "CI_PROJECT_PATH", "CIRCLE_PROJECT_REPONAME")
	cfg.Branch = firstEnv(envPrefix+"BRANCH", "GITHUB_HEAD_REF", "GITHUB_REF_NAME", "CI_COMMIT_REF_NAME", "CIRCLE_BRANCH")
	cfg.Commit = firstEnv(envPrefix+"COMMIT", "GITHUB_SHA", "CI_COMMIT_SHA", "CIRCLE_SHA1")
	cfg.CIBuildID = firstEnv(envPrefix+"CI_BUILD_ID", "GITHUB_RUN_ID", "CI_PIPELINE_ID", "CIRCLE_BUILD_NUM")

	return cfg, nil
}

func lookup(key string) (string, bool) {
	return os.LookupEnv(envPrefix + key)
}

// detectCIProvider names the CI system from its well-known marker variable.
func detectCIProvider() string {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		return "github-actions"
	case os.Getenv("GITLAB_CI") != "":
		return "gitlab"
	case os.Getenv("CIRCLECI") != "":
		return "circleci"
	default:
		return "local"
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
