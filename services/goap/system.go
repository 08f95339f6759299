// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package goap is the goal-oriented action planning engine.
//
// A System owns the long-lived collaborators (planner, executor, reactive
// controller, pattern and schema caches, the store below them, metrics) and
// turns each PlanRequest into a fresh world state, catalog and blackboard.
// Requests are independent; the pattern cache is the only state they share.
//
// # Usage
//
//	sys, err := goap.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer sys.Close()
//	result, err := sys.Process(ctx, goap.PlanRequest{Text: "k8s deployment for nginx"})
package goap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/config"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/llm"
	"github.com/AleutianAI/AleutianGOAP/services/goap/metrics"
	"github.com/AleutianAI/AleutianGOAP/services/goap/planning"
	"github.com/AleutianAI/AleutianGOAP/services/goap/reactive"
	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
	badgerstore "github.com/AleutianAI/AleutianGOAP/services/goap/storage/badger"
	"github.com/AleutianAI/AleutianGOAP/services/goap/telemetry"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

var tracer = otel.Tracer("goap.system")

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses store instead of the configured backend. The caller keeps
// ownership and closes it after the System.
func WithStore(store storage.Store) Option {
	return func(s *System) { s.store = store }
}

// WithGenerator replaces the configured generation provider. The template
// generator still backs GenerateFromTemplate.
func WithGenerator(g llm.Generator) Option {
	return func(s *System) { s.generator = g }
}

// WithSchemaFetcher replaces the built-in schema skeletons.
func WithSchemaFetcher(f cache.SchemaFetcher) Option {
	return func(s *System) { s.fetcher = f }
}

// WithCollector shares a metrics collector between systems.
func WithCollector(c *metrics.Collector) Option {
	return func(s *System) { s.metrics = c }
}

// System processes planning requests.
//
// Thread Safety: Safe for concurrent use.
type System struct {
	cfg    *config.Config
	logger *slog.Logger

	store     storage.Store
	ownsStore bool
	generator llm.Generator
	fetcher   cache.SchemaFetcher

	planner    *planning.Planner
	executor   *execution.Executor
	controller *reactive.Controller
	patterns   *cache.PatternCache
	schemas    *cache.SchemaCache
	metrics    *metrics.Collector

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a System from cfg.
//
// Description:
//
//	Opens the configured store unless WithStore supplied one, rebuilds the
//	pattern cache from it, starts the decay sweeper, and wires the default
//	action handlers to the schema cache and the generation provider.
//
// Outputs:
//   - *System: Ready to process requests. Call Close when done.
//   - error: Invalid config, or a store or generator that could not start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}
	if s.fetcher == nil {
		s.fetcher = cache.BuiltinSchemas()
	}

	if s.store == nil {
		store, err := openStore(cfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.store, s.ownsStore = store, true
	}

	templates, err := llm.NewTemplateGenerator(cfg.LLM.Template)
	if err != nil {
		s.closeStore()
		return nil, fmt.Errorf("template generator: %w", err)
	}
	if s.generator == nil {
		gen, err := newGenerator(cfg, templates, s.logger)
		if err != nil {
			s.closeStore()
			return nil, err
		}
		s.generator = gen
	}

	s.schemas, err = cache.NewSchemaCache(cfg.SchemaCacheConfig(), s.store, s.fetcher, s.logger)
	if err != nil {
		s.closeStore()
		return nil, fmt.Errorf("schema cache: %w", err)
	}

	collector := s.metrics
	s.patterns, err = cache.NewPatternCache(cfg.PatternCacheConfig(),
		cache.WithStore(s.store),
		cache.WithLogger(s.logger),
		cache.WithEvictionHook(func(_ string, reason cache.EvictionReason) {
			if reason != cache.EvictDeleted {
				collector.RecordEviction(string(reason))
			}
		}),
	)
	if err != nil {
		s.schemas.Close()
		s.closeStore()
		return nil, fmt.Errorf("pattern cache: %w", err)
	}
	if _, err := s.patterns.Load(ctx); err != nil {
		s.schemas.Close()
		s.closeStore()
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	s.metrics.SetPatternCacheSize(s.patterns.Len())
	s.patterns.StartSweeper(cfg.Cache.SweepInterval)

	handlers := execution.NewDefaultHandlers(execution.HandlerDeps{
		Schemas:   s.schemas,
		Patterns:  s.patterns,
		Generator: s.generator,
		Templates: templates,
		Logger:    s.logger,
	})
	s.executor = execution.NewExecutor(cfg.ExecutorConfig(), handlers, execution.WithLogger(s.logger))
	s.planner = planning.NewPlanner(cfg.PlannerConfig(),
		planning.WithHeuristic(cfg.HeuristicFactory()),
		planning.WithLogger(s.logger),
	)
	s.controller = reactive.NewController(s.planner, s.executor, cfg.ReactiveConfig(),
		reactive.WithLogger(s.logger),
	)
	return s, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBadger:
		bc := cfg.BadgerConfig()
		bc.Logger = logger
		store, err := badgerstore.Open(bc)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func newGenerator(cfg *config.Config, templates llm.Generator, logger *slog.Logger) (llm.Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		gen, err := llm.NewOpenAIGenerator(cfg.LLM.OpenAI, logger)
		if err != nil {
			return nil, fmt.Errorf("openai generator: %w", err)
		}
		return llm.NewGuarded(gen, cfg.LLM.Guard, logger), nil
	default:
		return templates, nil
	}
}

// Config returns the configuration.
func (s *System) Config() *config.Config { return s.cfg }

// Metrics returns a snapshot of request metrics.
func (s *System) Metrics() metrics.Snapshot { return s.metrics.Snapshot() }

// PatternStats returns pattern cache activity.
func (s *System) PatternStats() cache.PatternStats { return s.patterns.Stats() }

// Process plans and executes one request.
//
// Description:
//
//	The request is validated before anything else. A similar, confident
//	pattern in the cache is replayed without planning, with its generation
//	step served from the pattern. Otherwise the planner builds a plan and the
//	reactive controller runs it. A successful planned run is learned as a
//	pattern; a replayed one updates its pattern's confidence.
//
//	Staged requests pursue their sub-goals in order against one shared
//	state and never replay patterns. Every goal runs under a context bounded
//	by its own timeout; a goal that misses it fails with goals.ErrGoalTimeout.
//
// Outputs:
//   - *execution.ExecutionResult: Always non-nil once validation passed,
//     including for aborted runs.
//   - error: A *ValidationError before planning, or the run's terminal
//     error (a *reactive.AbortError, wrapped with goals.ErrGoalTimeout when
//     a goal ran out of time) when the goal was not reached.
func (s *System) Process(ctx context.Context, req PlanRequest) (*execution.ExecutionResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "goap.System.Process",
		trace.WithAttributes(attribute.Int("request_bytes", len(req.Text))),
	)
	defer span.End()

	budget, err := s.check(req)
	if err != nil {
		s.metrics.RecordRejected(Classify(err))
		telemetry.RecordError(span, err)
		return nil, err
	}
	stages, err := stagesFor(req)
	if err != nil {
		s.metrics.RecordRejected(Classify(err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	state := s.newState(budget, req.Text)
	schemaType := cache.DetectSchemaType(req.Text)
	board := execution.NewBlackboard()
	board.Set(execution.KeySchemaType, schemaType)
	catalog := actions.DefaultCatalog(schemaType)
	controller := s.controllerFor(req)

	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(
		slog.String("goal", stages.Name),
		slog.String("schema_type", schemaType),
	)
	span.SetAttributes(
		attribute.String("goal", stages.Name),
		attribute.Int("stages", len(stages.Steps)),
		attribute.String("schema_type", schemaType),
		attribute.Int64("token_budget", int64(budget)),
	)

	orch := goals.NewOrchestrator()
	result := &execution.ExecutionResult{
		Success:         true,
		GoalsSatisfied:  true,
		TokensRemaining: state.TokensRemaining(),
	}
	source := metrics.SourcePlanner
	for range stages.Steps {
		next := stages.Next(state)
		if next == nil {
			break
		}
		goal := next.Clone()
		goal.CreatedAt = time.Now()
		if err := orch.Add(goal); err != nil {
			return nil, err
		}
		stageCtx, cancel := goalContext(ctx, goal)

		var r *execution.ExecutionResult
		if s.cfg.Cache.Enabled && len(stages.Steps) == 1 {
			r = s.replay(stageCtx, logger, req.Text, catalog, state, goal, board, controller)
			if r != nil {
				source = metrics.SourceCache
			}
		}
		if r == nil {
			r = s.plan(stageCtx, logger, catalog, state, goal, board, controller)
		}
		s.finishStage(ctx, stageCtx, logger, orch, goal, r)
		cancel()

		result.Merge(r)
		if !r.Success {
			break
		}
	}
	result.GoalsSatisfied = stages.IsSatisfied(state)
	result.CompletedGoals = orch.Completed()
	result.FailedGoals = orch.Failed()
	progress := orch.Progress()
	span.SetAttributes(
		attribute.Int("goals_completed", progress.Completed),
		attribute.Int("goals_failed", progress.Failed),
	)
	if result.Success && source == metrics.SourcePlanner && s.cfg.Cache.Enabled {
		s.learn(context.WithoutCancel(ctx), logger, req.Text, schemaType, result)
	}
	result.Duration = time.Since(start)

	rec := metrics.Request{
		Success:    result.Success,
		Source:     source,
		TokensUsed: result.TokensUsed,
		Duration:   result.Duration,
	}
	for _, r := range result.Replans {
		rec.Replans = append(rec.Replans, r.Reason.String())
	}
	if !result.Success {
		rec.ErrorCategory = Classify(result.Err)
	}
	saved := s.metrics.RecordRequest(rec)
	s.metrics.SetPatternCacheSize(s.patterns.Len())

	span.SetAttributes(
		attribute.Bool("success", result.Success),
		attribute.Bool("from_cache", result.FromCache),
		attribute.Int("replans", result.ReplanCount),
		attribute.Int64("tokens_used", int64(result.TokensUsed)),
	)
	if !result.Success {
		telemetry.RecordError(span, result.Err)
		logger.ErrorContext(ctx, "request aborted",
			slog.String("error", result.Error),
			slog.Int("replans", result.ReplanCount),
			slog.Duration("duration", result.Duration),
		)
		return result, result.Err
	}
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "request processed",
		slog.Bool("from_cache", result.FromCache),
		slog.Int("steps", result.StepsCompleted),
		slog.Int("replans", result.ReplanCount),
		slog.Int("tokens_used", int(result.TokensUsed)),
		slog.Uint64("tokens_saved", saved),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// newState is the world state a request starts from.
func (s *System) newState(budget uint32, text string) *world.State {
	state := world.NewWithThreshold(budget, text, s.cfg.Budget.TokenBudgetCritical)
	state.Set(world.RequestValidated, true)
	state.RecordBudget()
	return state
}

// goalContext bounds ctx by the goal's timeout. A zero timeout leaves ctx
// unbounded.
func goalContext(ctx context.Context, goal *goals.GoalState) (context.Context, context.CancelFunc) {
	if goal.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, goal.CreatedAt.Add(goal.Timeout))
}

// finishStage records the stage outcome with the orchestrator and marks a
// failure caused by the goal's own deadline as ErrGoalTimeout.
func (s *System) finishStage(ctx, stageCtx context.Context, logger *slog.Logger, orch *goals.Orchestrator, goal *goals.GoalState, r *execution.ExecutionResult) {
	if r.Success {
		_ = orch.Complete(goal.Name)
		return
	}
	timedOut := slices.Contains(orch.CheckTimeouts(time.Now()), goal.Name)
	if !timedOut {
		_ = orch.Fail(goal.Name)
		timedOut = ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded)
	}
	if !timedOut {
		return
	}
	err := fmt.Errorf("%w: %s after %v", goals.ErrGoalTimeout, goal.Name, goal.Timeout)
	if r.Err != nil {
		err = fmt.Errorf("%w: %w", err, r.Err)
	}
	r.SetError(err)
	logger.WarnContext(ctx, "goal timed out",
		slog.String("stage", goal.Name),
		slog.Duration("timeout", goal.Timeout),
	)
}

func (s *System) controllerFor(req PlanRequest) *reactive.Controller {
	switch {
	case req.DisableReplanning:
		return s.controller.WithMaxReplans(0)
	case req.MaxReplans != nil:
		return s.controller.WithMaxReplans(*req.MaxReplans)
	default:
		return s.controller
	}
}

// replay runs a cached pattern's sequence. It returns nil on a cache miss or
// when the pattern cannot be replayed against this request's catalog.
func (s *System) replay(ctx context.Context, logger *slog.Logger, text string, catalog *actions.Catalog, state *world.State, goal *goals.GoalState, board *execution.Blackboard, controller *reactive.Controller) *execution.ExecutionResult {
	match, err := s.patterns.FindSimilar(ctx, text, 0)
	if err != nil {
		s.metrics.RecordPatternLookup(false)
		if errors.Is(err, cache.ErrPatternNotFound) {
			logger.DebugContext(ctx, "no similar pattern")
		} else {
			logger.WarnContext(ctx, "pattern lookup failed", slog.String("error", err.Error()))
		}
		return nil
	}
	s.metrics.RecordPatternLookup(true)
	p := match.Pattern

	catalog.Add(actions.PatternAction(p.ID))
	plan, err := catalog.Resolve(reuseSequence(p))
	if err != nil {
		logger.WarnContext(ctx, "cached pattern does not fit this request",
			slog.String("pattern_id", p.ID),
			slog.String("error", fmt.Errorf("%w: %w", execution.ErrInvalidSequence, err).Error()),
		)
		if _, err := s.patterns.RecordUse(context.WithoutCancel(ctx), p.ID, cache.Outcome{}); err != nil {
			logger.WarnContext(ctx, "pattern update failed", slog.String("error", err.Error()))
		}
		return nil
	}

	state.Set(world.PatternAvailable(p.ID), true)
	state.Set(world.PatternConfidence(p.ID, uint32(p.Confidence)), true)
	board.Set(execution.KeyPatternID, p.ID)
	board.Set(execution.KeyPatternSample, p.Sample)
	logger.InfoContext(ctx, "replaying cached pattern",
		slog.String("pattern_id", p.ID),
		slog.Float64("confidence", p.Confidence),
		slog.Float64("similarity", match.Similarity),
	)

	result := controller.Run(ctx, plan, catalog, state, goal, board)
	result.FromCache = true
	result.PatternID = p.ID

	outcome := cache.Outcome{Success: result.Success, TokensUsed: result.TokensUsed, Duration: result.Duration}
	if _, err := s.patterns.RecordUse(context.WithoutCancel(ctx), p.ID, outcome); err != nil {
		logger.WarnContext(ctx, "pattern update failed",
			slog.String("pattern_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	return result
}

// reuseSequence is the pattern's sequence with every generation step served
// from the pattern itself.
func reuseSequence(p *cache.SuccessPattern) []actions.Type {
	seq := make([]actions.Type, len(p.ActionSequence))
	for i, t := range p.ActionSequence {
		if t.Kind.Terminal() {
			t = actions.GenerateFromPattern(p.ID)
		}
		seq[i] = t
	}
	return seq
}

func (s *System) plan(ctx context.Context, logger *slog.Logger, catalog *actions.Catalog, state *world.State, goal *goals.GoalState, board *execution.Blackboard, controller *reactive.Controller) *execution.ExecutionResult {
	started := time.Now()
	plan, err := s.planner.FindPlan(ctx, catalog, state, goal)
	if err != nil {
		var expansions int
		var pe *planning.PlanError
		if errors.As(err, &pe) {
			expansions = pe.Expansions
		}
		s.metrics.RecordPlanning(time.Since(started), 0, expansions, err)

		unsatisfied := goal.Unsatisfied(state)
		result := &execution.ExecutionResult{
			TokensRemaining: state.TokensRemaining(),
			Unsatisfied:     unsatisfied,
		}
		result.SetError(&reactive.AbortError{Reason: err, Unsatisfied: unsatisfied})
		logger.WarnContext(ctx, "planning failed", slog.String("error", err.Error()))
		return result
	}
	s.metrics.RecordPlanning(plan.Duration, plan.Len(), plan.Expansions, nil)
	logger.DebugContext(ctx, "plan found",
		slog.String("plan", plan.String()),
		slog.Int("expansions", plan.Expansions),
	)
	return controller.Run(ctx, plan.Actions, catalog, state, goal, board)
}

func (s *System) learn(ctx context.Context, logger *slog.Logger, text, schemaType string, result *execution.ExecutionResult) {
	seq := result.ExecutedTypes()
	if len(seq) == 0 {
		return
	}
	outcome := cache.Outcome{TokensUsed: result.TokensUsed, Duration: result.Duration}
	p, created, err := s.patterns.Learn(ctx, text, schemaType, seq, outcome)
	if err != nil {
		logger.WarnContext(ctx, "pattern learning failed", slog.String("error", err.Error()))
		return
	}
	logger.DebugContext(ctx, "pattern recorded",
		slog.String("pattern_id", p.ID),
		slog.Bool("created", created),
		slog.Float64("confidence", p.Confidence),
	)
}

// ListPatterns returns cached patterns at or above minConfidence, most
// confident first.
func (s *System) ListPatterns(minConfidence float64) []*cache.SuccessPattern {
	return s.patterns.List(minConfidence)
}

// GetPattern returns one pattern. Unknown IDs yield cache.ErrPatternNotFound.
func (s *System) GetPattern(id string) (*cache.SuccessPattern, error) {
	return s.patterns.Get(id)
}

// DeletePattern removes a pattern from memory and the store.
func (s *System) DeletePattern(ctx context.Context, id string) error {
	if err := s.patterns.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.SetPatternCacheSize(s.patterns.Len())
	return nil
}

// Close stops background work and closes the store if the System opened it.
// It is safe to call more than once.
func (s *System) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		errs = append(errs, s.patterns.Close())
		s.schemas.Close()
		errs = append(errs, s.closeStore())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *System) closeStore() error {
	if !s.ownsStore || s.store == nil {
		return nil
	}
	return s.store.Close()
}
