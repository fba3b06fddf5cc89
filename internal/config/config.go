// Package config loads the server's JSON configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/nidhogg/findit/internal/embedding"
	"github.com/nidhogg/findit/internal/match"
	"github.com/nidhogg/findit/internal/service"
	"github.com/nidhogg/findit/internal/vectorstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/findit.json"

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Database  DatabaseConfig   `json:"database"`
	Embedding embedding.Config `json:"embedding"`
	Matching  MatchingConfig   `json:"matching"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
	// MigrationsDir holds the *.up.sql files applied at startup.
	MigrationsDir string `json:"migrations_dir"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig           `json:"postgres"`
	Neo4j    Neo4jConfig              `json:"neo4j"`
	Redis    RedisConfig              `json:"redis"`
	Qdrant   vectorstore.QdrantConfig `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
	// StreamMaxLen caps the match event stream. Zero leaves it unbounded.
	StreamMaxLen int64 `json:"stream_max_len"`
}

// MatchingConfig is the scoring and candidate-pool configuration.
type MatchingConfig struct {
	Preset  string             `json:"preset"`
	Weights map[string]float64 `json:"weights,omitempty"`
	// Threshold is nil when omitted so the default of 40 applies.
	Threshold *float64 `json:"threshold,omitempty"`
	Workers   int      `json:"workers"`
	StemTerms bool     `json:"stem_terms"`

	CandidateLimit      int `json:"candidate_limit"`
	CandidateWindowDays int `json:"candidate_window_days"`
	VectorPrefilterK    int `json:"vector_prefilter_k"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw JSON after environment substitution.
func Parse(data []byte) (*Config, error) {
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(m string) string {
		parts := envVarRe.FindStringSubmatch(m)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MigrationsDir == "" {
		cfg.Server.MigrationsDir = "migrations"
	}
	return &cfg, nil
}

// MatchOptions converts the matching section into a validated engine config.
func (c *Config) MatchOptions() (match.Config, error) {
	m := c.Matching
	mc := match.Config{
		Preset:    m.Preset,
		Threshold: match.DefaultThreshold,
		Workers:   m.Workers,
		StemTerms: m.StemTerms,
	}
	if m.Threshold != nil {
		mc.Threshold = *m.Threshold
	}
	if len(m.Weights) > 0 {
		w, err := match.ParseWeights(m.Weights)
		if err != nil {
			return match.Config{}, fmt.Errorf("matching.weights: %w", err)
		}
		mc.Weights = w
		mc.Preset = match.PresetCustom
	}
	valid, err := mc.Validate()
	if err != nil {
		return match.Config{}, fmt.Errorf("matching: %w", err)
	}
	return valid, nil
}

// ServiceOptions returns the candidate-pool settings.
func (c *Config) ServiceOptions() service.Options {
	return service.Options{
		CandidateLimit: c.Matching.CandidateLimit,
		WindowDays:     c.Matching.CandidateWindowDays,
		PrefilterK:     c.Matching.VectorPrefilterK,
	}
}

// Logger builds a production zap logger at server.log_level.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Server.LogLevel != "" {
		level, err := zapcore.ParseLevel(c.Server.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("server.log_level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
