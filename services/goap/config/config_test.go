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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGOAP/pkg/logging"
	"github.com/AleutianAI/AleutianGOAP/services/goap/planning"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Planner.MaxPlanDepth)
	assert.Equal(t, 10000, cfg.Planner.MaxExpansions)
	assert.Equal(t, 5*time.Second, cfg.Planner.PlanningTimeout)
	assert.Equal(t, 3, cfg.Reactive.MaxReplans)
	assert.Equal(t, uint32(10000), cfg.Budget.DefaultTokenBudget)
	assert.Equal(t, uint32(100), cfg.Budget.TokenBudgetCritical)
	assert.Equal(t, uint32(200), cfg.Budget.MinimumViableBudget)
	assert.Equal(t, 70.0, cfg.Cache.PatternConfidenceThreshold)
	assert.Equal(t, planning.DefaultWeights(), cfg.Weights())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"depth zero", func(c *Config) { c.Planner.MaxPlanDepth = 0 }},
		{"depth too large", func(c *Config) { c.Planner.MaxPlanDepth = 1001 }},
		{"expansions too large", func(c *Config) { c.Planner.MaxExpansions = 1_000_001 }},
		{"timeout too short", func(c *Config) { c.Planner.PlanningTimeout = time.Microsecond }},
		{"timeout too long", func(c *Config) { c.Planner.PlanningTimeout = 6 * time.Minute }},
		{"too many replans", func(c *Config) { c.Reactive.MaxReplans = 11 }},
		{"negative replans", func(c *Config) { c.Reactive.MaxReplans = -1 }},
		{"threshold above 100", func(c *Config) { c.Cache.PatternConfidenceThreshold = 101 }},
		{"weights do not sum to one", func(c *Config) { c.Heuristic.Alpha = 0.7 }},
		{"negative weight", func(c *Config) {
			c.Heuristic.Alpha, c.Heuristic.Beta, c.Heuristic.Gamma = 1.1, -0.1, 0
		}},
		{"floor not below threshold", func(c *Config) { c.Cache.ConfidenceFloor = 70 }},
		{"critical not below minimum", func(c *Config) { c.Budget.TokenBudgetCritical = 200 }},
		{"default below minimum", func(c *Config) { c.Budget.DefaultTokenBudget = 150 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"badger without path", func(c *Config) { c.Storage.Backend = StorageBadger }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "ollama" }},
		{"unknown heuristic", func(c *Config) { c.Heuristic.Kind = "manhattan" }},
		{"empty address", func(c *Config) { c.Server.Addr = "" }},
		{"unknown trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_Validate_ZeroHeuristicIgnoresWeights(t *testing.T) {
	cfg := Default()
	cfg.Heuristic.Kind = HeuristicZero
	cfg.Heuristic.Alpha = 0
	require.NoError(t, cfg.Validate())

	h := cfg.HeuristicFactory()(nil)
	assert.Zero(t, h.Estimate(nil, nil))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Planner, cfg.Planner)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Server.Addr)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
planner:
  max_plan_depth: 12
  planning_timeout: 250ms
heuristic:
  alpha: 0.5
  beta: 0.4
  gamma: 0.1
reactive:
  max_replans: 5
storage:
  backend: badger
  path: /tmp/goap-test
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Planner.MaxPlanDepth)
	assert.Equal(t, 10000, cfg.Planner.MaxExpansions, "unset fields keep their defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Planner.PlanningTimeout)
	assert.Equal(t, 5, cfg.Reactive.MaxReplans)
	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
	assert.Equal(t, "/tmp/goap-test", cfg.BadgerConfig().Path)
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"budget": {"default_token_budget": 5000}, "server": {"addr": ":9000"}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), cfg.Budget.DefaultTokenBudget)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("planner: [unclosed"), 0o600))
	_, err := Load(bad)
	assert.Error(t, err)

	outOfRange := filepath.Join(dir, "range.yaml")
	require.NoError(t, os.WriteFile(outOfRange, []byte("planner:\n  max_plan_depth: 5000\n"), 0o600))
	_, err = Load(outOfRange)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reactive:\n  max_replans: 5\n"), 0o600))

	t.Setenv("GOAP_MAX_REPLANS", "2")
	t.Setenv("GOAP_PLANNING_TIMEOUT", "1s")
	t.Setenv("GOAP_LOG_LEVEL", "warn")
	t.Setenv("GOAP_REPLANNING_ENABLED", "false")
	t.Setenv("GOAP_PATTERN_CONFIDENCE_THRESHOLD", "80")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Reactive.MaxReplans, "environment wins over the file")
	assert.Equal(t, time.Second, cfg.Planner.PlanningTimeout)
	assert.Equal(t, logging.LevelWarn, cfg.Logging.Level)
	assert.Equal(t, 80.0, cfg.Cache.PatternConfidenceThreshold)
	assert.Zero(t, cfg.ReactiveConfig().MaxReplans, "disabled replanning converts to zero replans")
}

func TestApplyEnv_Errors(t *testing.T) {
	env := map[string]string{
		"GOAP_MAX_REPLANS":      "three",
		"GOAP_PLANNING_TIMEOUT": "soon",
	}
	err := applyEnv(Default(), func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "GOAP_MAX_REPLANS")
	assert.Contains(t, err.Error(), "GOAP_PLANNING_TIMEOUT")
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Cache.PatternConfidenceThreshold = 80
	cfg.Executor.DurationSlack = 2

	pc := cfg.PlannerConfig()
	require.NoError(t, pc.Validate())
	assert.Equal(t, cfg.Planner.MaxPlanDepth, pc.MaxDepth)

	patterns := cfg.PatternCacheConfig()
	require.NoError(t, patterns.Validate())
	assert.Equal(t, 80.0, patterns.ConfidenceThreshold)
	assert.Equal(t, 80.0, patterns.InitialConfidence, "new patterns start at the reuse threshold")

	require.NoError(t, cfg.ExecutorConfig().Validate())
	assert.Equal(t, 2.0, cfg.ExecutorConfig().DurationSlack)
	require.NoError(t, cfg.ReactiveConfig().Validate())
	assert.Equal(t, cfg.Cache.SchemaCapacity, cfg.SchemaCacheConfig().Capacity)
}
