// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/mllabeler/internal/blob"
	"github.com/matthewbaird/mllabeler/internal/history"
	"github.com/matthewbaird/mllabeler/internal/labelsource"
	"github.com/matthewbaird/mllabeler/internal/similar"
	"github.com/matthewbaird/mllabeler/internal/taxonomy"
	"github.com/matthewbaird/mllabeler/internal/types"
)

// Blob backends.
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendAzure  = "azure"
)

// ErrInvalid is returned for settings that cannot start a server.
var ErrInvalid = errors.New("invalid configuration")

// Blob selects where predictions and labels are stored.
type Blob struct {
	Backend     string                 `yaml:"backend"`
	AccountName string                 `yaml:"account_name"`
	SASToken    string                 `yaml:"sas_token"`
	Source      labelsource.BlobConfig `yaml:",inline"`
}

// Config holds all server settings.
type Config struct {
	Port         int            `yaml:"port"`
	DatabaseURL  string         `yaml:"database_url"`
	TaxonomyFile string         `yaml:"taxonomy_file"`
	HistoryCap   int            `yaml:"history_cap"`
	Blob         Blob           `yaml:"blob"`
	Finder       similar.Config `yaml:"finder"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:        8080,
		DatabaseURL: "file:labeler.db?_pragma=foreign_keys(1)",
		HistoryCap:  history.DefaultCap,
		Blob:        Blob{Backend: BackendSQL},
		Finder:      similar.DefaultConfig(),
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from environment variables read with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if p := getenv("PORT"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: PORT %q", ErrInvalid, p)
		}
		c.Port = v
	}
	if p := getenv("LABELER_HISTORY_CAP"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: LABELER_HISTORY_CAP %q", ErrInvalid, p)
		}
		c.HistoryCap = v
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.DatabaseURL, "DATABASE_URL")
	set(&c.TaxonomyFile, "LABELER_TAXONOMY")
	set(&c.Blob.Backend, "LABELER_BLOB_BACKEND")
	set(&c.Blob.AccountName, "LABELER_ACCOUNT_NAME")
	set(&c.Blob.SASToken, "LABELER_SAS_TOKEN")
	set(&c.Blob.Source.ProjectID, "LABELER_PROJECT_ID")
	set(&c.Blob.Source.IModelID, "LABELER_IMODEL_ID")
	set(&c.Blob.Source.RevisionID, "LABELER_REVISION_ID")
	set(&c.Blob.Source.PredictionSuffix, "LABELER_PRED_SUFFIX")
	return nil
}

// Validate checks that the settings can start a server.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalid, c.Port)
	}
	switch c.Blob.Backend {
	case BackendMemory, BackendSQL:
	case BackendAzure:
		if c.Blob.AccountName == "" {
			return fmt.Errorf("%w: azure backend needs an account name", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: blob backend %q", ErrInvalid, c.Blob.Backend)
	}
	if err := c.Finder.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// BlobStore opens the configured blob backend. db backs the sql backend.
func (c Config) BlobStore(ctx context.Context, db *sql.DB) (blob.Store, error) {
	switch c.Blob.Backend {
	case BackendMemory:
		return blob.NewMemoryStore(), nil
	case BackendAzure:
		return blob.NewAzureStore(c.Blob.AccountName, c.Blob.SASToken), nil
	case BackendSQL:
		return blob.NewSQLStore(ctx, db)
	}
	return nil, fmt.Errorf("%w: blob backend %q", ErrInvalid, c.Blob.Backend)
}

// Taxonomy loads the label definitions, falling back to the built-in set.
func (c Config) Taxonomy() (types.LabelDefinitions, error) {
	if c.TaxonomyFile == "" {
		return taxonomy.Builtin()
	}
	return taxonomy.LoadFile(c.TaxonomyFile)
}
