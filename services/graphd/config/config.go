// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads graphd configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/services/graphd/telemetry"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete graphd configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Pull      PullConfig       `yaml:"pull"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the API listen address.
	Addr string `yaml:"addr" validate:"required"`

	// MetricsAddr serves /metrics on a separate listener. Empty mounts
	// /metrics on the API router.
	MetricsAddr string `yaml:"metrics_addr"`

	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// MaxBodyBytes caps push and pull request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`
}

// StorageConfig controls the BadgerDB journal.
type StorageConfig struct {
	// Path is the journal directory. Ignored when InMemory is set.
	Path       string        `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// PullConfig controls projection.
type PullConfig struct {
	// MaxExpansionDepth bounds select-all edge expansion.
	MaxExpansionDepth int `yaml:"max_expansion_depth" validate:"gt=0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    8 << 20,
			RateLimit:       0,
			RateBurst:       50,
		},
		Storage: StorageConfig{
			Path:       "./graphd-data",
			GCInterval: 5 * time.Minute,
		},
		Pull: PullConfig{
			MaxExpansionDepth: 32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
//
// Description:
//
//	An empty path skips the file. Fields missing from the file keep their
//	default values. Environment variables win over the file.
//
// Inputs:
//
//	path - YAML file, or "".
//
// Outputs:
//
//	*Config - The loaded configuration.
//	error - Read, parse or validation failure. Validation failures wrap
//	ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel returns the configured level.
func (l LogConfig) SlogLevel() slog.Level {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides file values. Unparseable numbers and booleans are
// errors rather than silently ignored.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("GRAPHD_ADDR", &cfg.Server.Addr)
	str("GRAPHD_METRICS_ADDR", &cfg.Server.MetricsAddr)
	float("GRAPHD_RATE_LIMIT", &cfg.Server.RateLimit)
	str("GRAPHD_DB_PATH", &cfg.Storage.Path)
	boolean("GRAPHD_DB_IN_MEMORY", &cfg.Storage.InMemory)
	boolean("GRAPHD_DB_SYNC_WRITES", &cfg.Storage.SyncWrites)
	str("GRAPHD_LOG_LEVEL", &cfg.Log.Level)
	str("GRAPHD_LOG_FORMAT", &cfg.Log.Format)

	str("OTEL_SERVICE_NAME", &cfg.Telemetry.ServiceName)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	boolean("OTEL_EXPORTER_OTLP_INSECURE", &cfg.Telemetry.OTLPInsecure)
	str("OTEL_TRACES_EXPORTER", &cfg.Telemetry.TraceExporter)
	str("OTEL_METRICS_EXPORTER", &cfg.Telemetry.MetricExporter)

	return errors.Join(errs...)
}
