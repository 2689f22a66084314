// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.yaml")
	writeFile(t, path, `
server:
  addr: ":9999"
  shutdown_timeout: 3s
storage:
  in_memory: true
  path: ""
pull:
  max_expansion_depth: 4
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 4, cfg.Pull.MaxExpansionDepth)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	// untouched sections keep defaults
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(8<<20), cfg.Server.MaxBodyBytes)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.yaml")
	writeFile(t, path, "server:\n  addr: \":1111\"\n")

	t.Setenv("GRAPHD_ADDR", ":2222")
	t.Setenv("GRAPHD_DB_IN_MEMORY", "true")
	t.Setenv("OTEL_SERVICE_NAME", "graphd-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.Server.Addr)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "graphd-test", cfg.Telemetry.ServiceName)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("GRAPHD_DB_SYNC_WRITES", "maybe")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRAPHD_DB_SYNC_WRITES")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log level", "log:\n  level: loud\n"},
		{"depth", "pull:\n  max_expansion_depth: 0\n"},
		{"exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"storage path", "storage:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "graphd.yaml")
			writeFile(t, path, tt.body)
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.yaml")
	writeFile(t, path, "server: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { changes <- c })
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "log:\n  level: debug\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_SkipsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphd.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, nil, func(c *Config) { changes <- c })
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "log:\n  level: loud\n")

	select {
	case <-changes:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(500 * time.Millisecond):
	}
}
