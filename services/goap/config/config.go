// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the GOAP service configuration.
//
// Precedence, lowest first: Default(), the config file, GOAP_* environment
// variables. The loaded Config is read-only; each component receives its own
// config struct through the converter methods.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianGOAP/pkg/logging"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/llm"
	"github.com/AleutianAI/AleutianGOAP/services/goap/planning"
	"github.com/AleutianAI/AleutianGOAP/services/goap/reactive"
	badgerstore "github.com/AleutianAI/AleutianGOAP/services/goap/storage/badger"
	"github.com/AleutianAI/AleutianGOAP/services/goap/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
)

// Generation providers.
const (
	ProviderTemplate = "template"
	ProviderOpenAI   = "openai"
)

// Heuristic kinds.
const (
	HeuristicWeighted = "weighted"
	HeuristicZero     = "zero"
)

// Config is the complete service configuration.
type Config struct {
	Planner   PlannerConfig    `json:"planner" yaml:"planner"`
	Heuristic HeuristicConfig  `json:"heuristic" yaml:"heuristic"`
	Reactive  ReactiveConfig   `json:"reactive" yaml:"reactive"`
	Budget    BudgetConfig     `json:"budget" yaml:"budget"`
	Cache     CacheConfig      `json:"cache" yaml:"cache"`
	Executor  ExecutorConfig   `json:"executor" yaml:"executor"`
	Storage   StorageConfig    `json:"storage" yaml:"storage"`
	LLM       LLMConfig        `json:"llm" yaml:"llm"`
	Telemetry telemetry.Config `json:"telemetry" yaml:"telemetry"`
	Server    ServerConfig     `json:"server" yaml:"server"`
	Logging   logging.Config   `json:"logging" yaml:"logging"`
}

// PlannerConfig bounds the A* search.
type PlannerConfig struct {
	MaxPlanDepth    int           `json:"max_plan_depth" yaml:"max_plan_depth" validate:"min=1,max=1000"`
	MaxExpansions   int           `json:"max_expansions" yaml:"max_expansions" validate:"min=1,max=1000000"`
	PlanningTimeout time.Duration `json:"planning_timeout" yaml:"planning_timeout" validate:"min=1ms,max=5m"`
}

// HeuristicConfig selects and weighs the planning heuristic.
type HeuristicConfig struct {
	// Kind is "weighted" (default) or "zero" for uniform-cost search.
	Kind  string  `json:"kind" yaml:"kind" validate:"omitempty,oneof=weighted zero"`
	Alpha float64 `json:"alpha" yaml:"alpha" validate:"gte=0,lte=1"`
	Beta  float64 `json:"beta" yaml:"beta" validate:"gte=0,lte=1"`
	Gamma float64 `json:"gamma" yaml:"gamma" validate:"gte=0,lte=1"`
}

// ReactiveConfig configures replanning.
type ReactiveConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	MaxReplans        int           `json:"max_replans" yaml:"max_replans" validate:"min=0,max=10"`
	MinReplanInterval time.Duration `json:"min_replan_interval" yaml:"min_replan_interval" validate:"min=0"`
}

// BudgetConfig holds the token budget limits.
type BudgetConfig struct {
	DefaultTokenBudget  uint32 `json:"default_token_budget" yaml:"default_token_budget" validate:"min=1"`
	TokenBudgetCritical uint32 `json:"token_budget_critical" yaml:"token_budget_critical"`
	MinimumViableBudget uint32 `json:"minimum_viable_budget" yaml:"minimum_viable_budget" validate:"min=1"`
	MaxRequestBytes     int    `json:"max_request_bytes" yaml:"max_request_bytes" validate:"min=1"`
}

// CacheConfig configures the pattern and schema caches.
type CacheConfig struct {
	Enabled                    bool          `json:"enabled" yaml:"enabled"`
	Capacity                   int           `json:"capacity" yaml:"capacity" validate:"min=1"`
	MinSimilarity              float64       `json:"min_similarity" yaml:"min_similarity" validate:"gte=0,lte=1"`
	PatternConfidenceThreshold float64       `json:"pattern_confidence_threshold" yaml:"pattern_confidence_threshold" validate:"gte=0,lte=100"`
	ConfidenceFloor            float64       `json:"confidence_floor" yaml:"confidence_floor" validate:"gte=0,lte=100"`
	DecayPerDay                float64       `json:"decay_per_day" yaml:"decay_per_day" validate:"gte=0,lt=1"`
	EvictOnFull                bool          `json:"evict_on_full" yaml:"evict_on_full"`
	SweepInterval              time.Duration `json:"sweep_interval" yaml:"sweep_interval" validate:"min=0"`
	SchemaCapacity             int64         `json:"schema_capacity" yaml:"schema_capacity" validate:"min=1"`
	SchemaTTL                  time.Duration `json:"schema_ttl" yaml:"schema_ttl" validate:"min=0"`
	Namespace                  string        `json:"namespace" yaml:"namespace" validate:"required"`
}

// ExecutorConfig configures step execution.
type ExecutorConfig struct {
	ActionTimeout time.Duration `json:"action_timeout" yaml:"action_timeout" validate:"min=1ms"`
	DurationSlack float64       `json:"duration_slack" yaml:"duration_slack" validate:"gte=0"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "memory" (default) or "badger".
	Backend        string        `json:"backend" yaml:"backend" validate:"oneof=memory badger"`
	Path           string        `json:"path" yaml:"path" validate:"required_if=Backend badger"`
	SyncWrites     bool          `json:"sync_writes" yaml:"sync_writes"`
	EntryTTL       time.Duration `json:"entry_ttl" yaml:"entry_ttl" validate:"min=0"`
	GCInterval     time.Duration `json:"gc_interval" yaml:"gc_interval" validate:"min=0"`
	GCDiscardRatio float64       `json:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"gte=0,lte=1"`
}

// LLMConfig selects the generation collaborator.
type LLMConfig struct {
	// Provider is "template" (default, offline) or "openai".
	Provider string            `json:"provider" yaml:"provider" validate:"oneof=template openai"`
	OpenAI   llm.OpenAIConfig  `json:"openai" yaml:"openai"`
	Guard    llm.GuardConfig   `json:"guard" yaml:"guard"`
	Template map[string]string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// Default returns the default configuration.
func Default() *Config {
	weights := planning.DefaultWeights()
	patterns := cache.DefaultPatternCacheConfig()
	schemas := cache.DefaultSchemaCacheConfig()
	return &Config{
		Planner: PlannerConfig{
			MaxPlanDepth:    20,
			MaxExpansions:   10000,
			PlanningTimeout: 5 * time.Second,
		},
		Heuristic: HeuristicConfig{
			Kind:  HeuristicWeighted,
			Alpha: weights.Alpha,
			Beta:  weights.Beta,
			Gamma: weights.Gamma,
		},
		Reactive: ReactiveConfig{Enabled: true, MaxReplans: 3},
		Budget: BudgetConfig{
			DefaultTokenBudget:  10000,
			TokenBudgetCritical: 100,
			MinimumViableBudget: 200,
			MaxRequestBytes:     execution.MaxRequestBytes,
		},
		Cache: CacheConfig{
			Enabled:                    true,
			Capacity:                   patterns.Capacity,
			MinSimilarity:              patterns.MinSimilarity,
			PatternConfidenceThreshold: patterns.ConfidenceThreshold,
			ConfidenceFloor:            patterns.ConfidenceFloor,
			DecayPerDay:                patterns.DecayPerDay,
			EvictOnFull:                patterns.EvictOnFull,
			SweepInterval:              time.Hour,
			SchemaCapacity:             schemas.Capacity,
			SchemaTTL:                  schemas.TTL,
			Namespace:                  patterns.Namespace,
		},
		Executor: ExecutorConfig{ActionTimeout: 5 * time.Second},
		Storage: StorageConfig{
			Backend:        StorageMemory,
			SyncWrites:     true,
			GCInterval:     5 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		LLM: LLMConfig{
			Provider: ProviderTemplate,
			OpenAI:   llm.OpenAIConfig{Temperature: 0.2, MaxTokens: 2048},
			Guard:    llm.GuardConfig{RequestsPerSecond: 5, Burst: 5, Breaker: llm.DefaultBreakerConfig()},
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: logging.Config{Level: logging.LevelInfo, Service: "goap"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the constraints between fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(msgs...))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Heuristic.Kind != HeuristicZero {
		if err := c.Weights().Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Cache.ConfidenceFloor >= c.Cache.PatternConfidenceThreshold {
		return fmt.Errorf("%w: cache.confidence_floor (%.1f) must be below pattern_confidence_threshold (%.1f)",
			ErrInvalidConfig, c.Cache.ConfidenceFloor, c.Cache.PatternConfidenceThreshold)
	}
	if c.Budget.TokenBudgetCritical >= c.Budget.MinimumViableBudget {
		return fmt.Errorf("%w: budget.token_budget_critical (%d) must be below minimum_viable_budget (%d)",
			ErrInvalidConfig, c.Budget.TokenBudgetCritical, c.Budget.MinimumViableBudget)
	}
	if c.Budget.DefaultTokenBudget < c.Budget.MinimumViableBudget {
		return fmt.Errorf("%w: budget.default_token_budget (%d) is below minimum_viable_budget (%d)",
			ErrInvalidConfig, c.Budget.DefaultTokenBudget, c.Budget.MinimumViableBudget)
	}
	return nil
}

// Weights returns the heuristic weights.
func (c *Config) Weights() planning.Weights {
	return planning.Weights{Alpha: c.Heuristic.Alpha, Beta: c.Heuristic.Beta, Gamma: c.Heuristic.Gamma}
}

// HeuristicFactory returns the configured heuristic.
func (c *Config) HeuristicFactory() planning.HeuristicFactory {
	if c.Heuristic.Kind == HeuristicZero {
		return planning.ZeroFactory
	}
	return planning.WeightedFactory(c.Weights())
}

// PlannerConfig converts the planner section.
func (c *Config) PlannerConfig() *planning.Config {
	return &planning.Config{
		MaxDepth:      c.Planner.MaxPlanDepth,
		MaxExpansions: c.Planner.MaxExpansions,
		Timeout:       c.Planner.PlanningTimeout,
	}
}

// ReactiveConfig converts the reactive section. A disabled controller never
// replans.
func (c *Config) ReactiveConfig() reactive.Config {
	cfg := reactive.Config{
		MaxReplans:        c.Reactive.MaxReplans,
		MinReplanInterval: c.Reactive.MinReplanInterval,
	}
	if !c.Reactive.Enabled {
		cfg.MaxReplans = 0
	}
	return cfg
}

// ExecutorConfig converts the executor section.
func (c *Config) ExecutorConfig() execution.Config {
	return execution.Config{
		ActionTimeout: c.Executor.ActionTimeout,
		DurationSlack: c.Executor.DurationSlack,
	}
}

// PatternCacheConfig converts the cache section, keeping the confidence
// steps at their defaults.
func (c *Config) PatternCacheConfig() cache.PatternCacheConfig {
	cfg := cache.DefaultPatternCacheConfig()
	cfg.Capacity = c.Cache.Capacity
	cfg.MinSimilarity = c.Cache.MinSimilarity
	cfg.ConfidenceThreshold = c.Cache.PatternConfidenceThreshold
	cfg.ConfidenceFloor = c.Cache.ConfidenceFloor
	cfg.DecayPerDay = c.Cache.DecayPerDay
	cfg.EvictOnFull = c.Cache.EvictOnFull
	cfg.Namespace = c.Cache.Namespace
	if cfg.InitialConfidence < cfg.ConfidenceThreshold {
		cfg.InitialConfidence = cfg.ConfidenceThreshold
	}
	return cfg
}

// SchemaCacheConfig converts the schema part of the cache section.
func (c *Config) SchemaCacheConfig() cache.SchemaCacheConfig {
	return cache.SchemaCacheConfig{
		Capacity:  c.Cache.SchemaCapacity,
		TTL:       c.Cache.SchemaTTL,
		Namespace: c.Cache.Namespace,
	}
}

// BadgerConfig converts the storage section for the badger backend.
func (c *Config) BadgerConfig() badgerstore.Config {
	cfg := badgerstore.DefaultConfig(c.Storage.Path)
	cfg.SyncWrites = c.Storage.SyncWrites
	cfg.EntryTTL = c.Storage.EntryTTL
	cfg.GCInterval = c.Storage.GCInterval
	cfg.GCDiscardRatio = c.Storage.GCDiscardRatio
	return cfg
}
