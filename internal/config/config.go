// Package config loads corpusforge's processing configuration from a file,
// environment variables, and flags, grounded on the teacher's
// cli/root.go initConfig/viper wiring.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"corpusforge.dev/common"
	"corpusforge.dev/internal/contentsource"
)

// SourceConfig is one configured content source as the coordinator needs
// it, plus the raw factory config used to instantiate it.
type SourceConfig struct {
	Name         string                 `mapstructure:"name"`
	Type         string                 `mapstructure:"type"`
	Settings     map[string]any         `mapstructure:"settings"`
	MaxLinkDepth int                    `mapstructure:"max_link_depth"`
}

// FactoryConfig converts this entry into the shape contentsource.New takes.
func (s SourceConfig) FactoryConfig() contentsource.Config {
	return contentsource.Config{
		Type:     contentsource.SourceType(s.Type),
		Name:     s.Name,
		Settings: s.Settings,
	}
}

// EmbeddingConfig controls whether and how per-element embeddings are
// generated.
type EmbeddingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// OntologyConfig points at the domain ontology files to load for
// relationship detection (C8).
type OntologyConfig struct {
	Paths []string `mapstructure:"paths"`
}

// RunConfig controls worker and coordinator runtime behavior.
type RunConfig struct {
	WorkerID        string `mapstructure:"worker_id"`
	MaxDocuments    int    `mapstructure:"max_documents"`
	MaxRetries      int    `mapstructure:"max_retries"`
	MaxLinkDepth    int    `mapstructure:"max_link_depth"`
}

// AdminConfig controls the optional admin HTTP surface (status, dead-letter
// listing, Prometheus metrics, WebSocket status-stream). It is worker-local
// like RunConfig.WorkerID: two processes running the same processing
// config but different admin addresses still share one run_id.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config is the root configuration document. ProcessingRelevant picks the
// subset runqueue.ComputeRunID hashes; RunConfig's WorkerID is left out of
// that subset.
type Config struct {
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
	Database  string           `mapstructure:"database"`
	Redis     string           `mapstructure:"redis"`
	Sources   []SourceConfig   `mapstructure:"sources"`
	Embedding EmbeddingConfig  `mapstructure:"embedding"`
	Ontology  OntologyConfig   `mapstructure:"ontology"`
	Run       RunConfig        `mapstructure:"run"`
	Admin     AdminConfig      `mapstructure:"admin"`
}

// Load reads configuration from cfgFile (if non-empty), environment
// variables prefixed CORPUSFORGE_, and the defaults below, mirroring the
// teacher's initConfig search order (explicit file, then $HOME/./.,
// then env).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("corpusforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("run.max_retries", 3)
	v.SetDefault("run.max_link_depth", 1)
	v.SetDefault("embedding.model", "embeddinggemma")
	v.SetDefault("admin.addr", ":8090")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName(".corpusforge")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Redacted returns a log-safe view of the connection strings a Config
// carries, masking anything that looks like embedded credentials (e.g. a
// Postgres DSN's password or a Redis AUTH token) the way the teacher masks
// secrets before logging them.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"database": common.MaskSecret(c.Database),
		"redis":    common.MaskSecret(c.Redis),
	}
}

// ProcessingRelevant returns the config subset runqueue.ComputeRunID
// hashes: content sources, storage, embedding, ontology settings, and
// run.max_link_depth.
// Worker-local fields (worker_id, log level/format) are excluded so a
// fleet sharing the same processing config agrees on one run_id, per
// spec.md §4.1.
func (c *Config) ProcessingRelevant() map[string]any {
	return map[string]any{
		"sources":       c.Sources,
		"database":      c.Database,
		"embedding":     c.Embedding,
		"ontology":      c.Ontology,
		"max_link_depth": c.Run.MaxLinkDepth,
	}
}
