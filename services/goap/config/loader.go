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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGOAP/pkg/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOAP_"

// Load reads the configuration.
//
// Description:
//
//	Starts from Default(), overlays the file at path when it exists, then
//	applies GOAP_* environment overrides and validates the result. An
//	empty path or a missing file is not an error. JSON files are accepted
//	as well, since JSON is a subset of YAML.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Read, parse, override or validation failure.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(c *Config, v string) error
}

var envOverrides = []envOverride{
	{"LOG_LEVEL", func(c *Config, v string) error {
		l, err := logging.ParseLevel(v)
		c.Logging.Level = l
		return err
	}},
	{"LOG_FORMAT", func(c *Config, v string) error {
		c.Logging.Format = logging.Format(strings.ToLower(v))
		return nil
	}},
	{"LOG_DIR", func(c *Config, v string) error { c.Logging.LogDir = v; return nil }},
	{"MAX_PLAN_DEPTH", intVar(func(c *Config) *int { return &c.Planner.MaxPlanDepth })},
	{"MAX_EXPANSIONS", intVar(func(c *Config) *int { return &c.Planner.MaxExpansions })},
	{"PLANNING_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Planner.PlanningTimeout })},
	{"MAX_REPLANS", intVar(func(c *Config) *int { return &c.Reactive.MaxReplans })},
	{"REPLANNING_ENABLED", boolVar(func(c *Config) *bool { return &c.Reactive.Enabled })},
	{"DEFAULT_TOKEN_BUDGET", uint32Var(func(c *Config) *uint32 { return &c.Budget.DefaultTokenBudget })},
	{"TOKEN_BUDGET_CRITICAL", uint32Var(func(c *Config) *uint32 { return &c.Budget.TokenBudgetCritical })},
	{"MINIMUM_VIABLE_BUDGET", uint32Var(func(c *Config) *uint32 { return &c.Budget.MinimumViableBudget })},
	{"CACHE_ENABLED", boolVar(func(c *Config) *bool { return &c.Cache.Enabled })},
	{"PATTERN_CONFIDENCE_THRESHOLD", floatVar(func(c *Config) *float64 { return &c.Cache.PatternConfidenceThreshold })},
	{"ACTION_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Executor.ActionTimeout })},
	{"STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"STORAGE_PATH", func(c *Config, v string) error { c.Storage.Path = v; return nil }},
	{"LLM_PROVIDER", func(c *Config, v string) error { c.LLM.Provider = v; return nil }},
	{"LLM_MODEL", func(c *Config, v string) error { c.LLM.OpenAI.Model = v; return nil }},
	{"LLM_BASE_URL", func(c *Config, v string) error { c.LLM.OpenAI.BaseURL = v; return nil }},
	{"SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
}

// applyEnv overlays the environment. lookup is os.LookupEnv outside tests.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := lookup(EnvPrefix + o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func uint32Var(field func(*Config) *uint32) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		*field(c) = uint32(n)
		return nil
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
