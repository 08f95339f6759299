// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execution runs plans against a world state.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

var (
	tracer = otel.Tracer("goap.execution")
	meter  = otel.Meter("goap.execution")
)

// Config configures the executor.
type Config struct {
	// ActionTimeout bounds each handler call (default: 5s).
	ActionTimeout time.Duration `json:"action_timeout" yaml:"action_timeout"`

	// DurationSlack fails a step whose measured duration exceeds its
	// estimate times this factor. Zero disables the check.
	DurationSlack float64 `json:"duration_slack" yaml:"duration_slack"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{ActionTimeout: 5 * time.Second}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ActionTimeout <= 0 {
		return fmt.Errorf("action_timeout must be positive, got %v", c.ActionTimeout)
	}
	if c.DurationSlack < 0 {
		return fmt.Errorf("duration_slack must not be negative, got %v", c.DurationSlack)
	}
	return nil
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Executor walks a plan one action at a time.
//
// Description:
//
//	For each action the executor checks preconditions against the live
//	state, checks the budget, runs the action's handler under a timeout,
//	and only then charges the cost, applies the effects and advances the
//	step counter. A step that fails leaves the state exactly as it was
//	before that step. Execution stops at the first failure; recovery is the
//	reactive controller's job.
//
// Thread Safety: Safe for concurrent use on distinct states.
type Executor struct {
	config   Config
	handlers *Registry
	logger   *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce    sync.Once
	actionLatency  metric.Float64Histogram
	actionFailures metric.Int64Counter
}

// NewExecutor creates an executor. A nil registry runs every action as a
// pure state transition.
func NewExecutor(config Config, handlers *Registry, opts ...Option) *Executor {
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = DefaultConfig().ActionTimeout
	}
	if handlers == nil {
		handlers = NewRegistry()
	}
	e := &Executor{config: config, handlers: handlers, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handlers returns the handler registry.
func (e *Executor) Handlers() *Registry { return e.handlers }

// Execute runs plan against state.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - plan: The actions to run, in order.
//   - state: The request's world state. Modified in place.
//   - board: Artifacts shared between handlers. Nil allocates a fresh one.
//
// Outputs:
//   - *ExecutionResult: Steps, tokens and the first failure. Success is true
//     when every action ran; goal satisfaction is the caller's concern.
func (e *Executor) Execute(ctx context.Context, plan []actions.Action, state *world.State, board *Blackboard) *ExecutionResult {
	if board == nil {
		board = NewBlackboard()
	}
	ctx, span := tracer.Start(ctx, "execution.Executor.Execute",
		trace.WithAttributes(attribute.Int("goap.plan_length", len(plan))),
	)
	defer span.End()

	start := time.Now()
	result := &ExecutionResult{
		TotalSteps: len(plan),
		Steps:      make([]ExecutionStep, 0, len(plan)),
	}

	for i, a := range plan {
		step, failure := e.runStep(ctx, i, a, state, board)
		result.Steps = append(result.Steps, step)
		span.AddEvent("step", trace.WithAttributes(
			attribute.String("goap.action", a.String()),
			attribute.String("goap.status", string(step.Status)),
		))
		if failure != nil {
			result.Failure = failure
			result.SetError(failure)
			span.RecordError(failure)
			span.SetStatus(codes.Error, failure.Error())
			e.logger.WarnContext(ctx, "action failed",
				slog.String("action", a.String()),
				slog.Int("step", i),
				slog.String("kind", failure.Kind.String()),
				slog.String("error", failure.Err.Error()),
			)
			break
		}
		result.StepsCompleted++
		result.TokensUsed += step.TokensUsed
	}

	result.Success = result.Failure == nil
	result.TokensRemaining = state.TokensRemaining()
	result.Response = board.Value(KeyResponse)
	result.Duration = time.Since(start)
	if result.Success {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.Int("goap.steps_completed", result.StepsCompleted),
		attribute.Int64("goap.tokens_used", int64(result.TokensUsed)),
	)
	return result
}

func (e *Executor) runStep(ctx context.Context, i int, a actions.Action, state *world.State, board *Blackboard) (ExecutionStep, *StepError) {
	step := ExecutionStep{Action: a.Type(), Status: StatusFailed}
	fail := func(kind FailureKind, err error) (ExecutionStep, *StepError) {
		step.Error = err.Error()
		return step, &StepError{Kind: kind, Action: a.Type(), Step: i, Err: err}
	}

	if err := ctx.Err(); err != nil {
		step.Status = StatusSkipped
		return fail(FailureCancelled, err)
	}
	if !a.CanExecute(state) {
		return fail(FailurePreconditionViolated,
			fmt.Errorf("%w: missing %v", ErrPreconditionViolated, state.Missing(a.Preconditions())))
	}
	cost := a.Cost()
	if cost > 0 && !state.TokensAvailable() {
		return fail(FailureBudgetCritical,
			fmt.Errorf("%w: %d remaining, threshold %d", ErrBudgetCritical, state.TokensRemaining(), state.CriticalThreshold()))
	}
	if cost > state.TokensRemaining() {
		return fail(FailureBudgetExceeded,
			fmt.Errorf("%w: need %d, have %d", ErrBudgetExceeded, cost, state.TokensRemaining()))
	}

	start := time.Now()
	err := e.invoke(ctx, a, state, board, i)
	step.Duration = time.Since(start)
	e.observe(ctx, a, step.Duration, err)

	switch {
	case err != nil && ctx.Err() != nil:
		return fail(FailureCancelled, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrActionTimeout):
		step.Status = StatusTimedOut
		return fail(FailureActionTimeout, fmt.Errorf("%w: %s after %v", ErrActionTimeout, a, step.Duration))
	case err != nil:
		return fail(FailureActionError, fmt.Errorf("%w: %w", ErrActionFailed, err))
	case step.Duration > e.config.ActionTimeout:
		step.Status = StatusTimedOut
		return fail(FailureActionTimeout, fmt.Errorf("%w: %s took %v", ErrActionTimeout, a, step.Duration))
	case e.config.DurationSlack > 0 && a.Duration() > 0 &&
		step.Duration > time.Duration(float64(a.Duration())*e.config.DurationSlack):
		step.Status = StatusTimedOut
		return fail(FailureActionTimeout,
			fmt.Errorf("%w: %s took %v, estimate %v", ErrActionTimeout, a, step.Duration, a.Duration()))
	}

	if err := state.Consume(cost); err != nil {
		return fail(FailureBudgetExceeded, err)
	}
	a.Apply(state)
	state.RecordBudget()
	state.AdvanceStep()

	step.Status = StatusCompleted
	step.TokensUsed = cost
	e.logger.DebugContext(ctx, "action completed",
		slog.String("action", a.String()),
		slog.Int("step", i),
		slog.Uint64("tokens", uint64(cost)),
		slog.Duration("duration", step.Duration),
	)
	return step, nil
}

func (e *Executor) invoke(ctx context.Context, a actions.Action, state *world.State, board *Blackboard, i int) error {
	h, ok := e.handlers.Lookup(a.Kind())
	if !ok {
		return nil
	}
	hctx, cancel := context.WithTimeout(ctx, e.config.ActionTimeout)
	defer cancel()
	return h.Handle(hctx, Call{Action: a, State: state, Board: board, Step: i})
}

// initMetrics creates the OpenTelemetry instruments. Failures degrade
// observability only.
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string
		var err error
		e.actionLatency, err = meter.Float64Histogram("goap_action_duration_seconds",
			metric.WithDescription("Time spent in action handlers"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "action_latency: "+err.Error())
		}
		e.actionFailures, err = meter.Int64Counter("goap_action_handler_failures_total",
			metric.WithDescription("Number of action handler errors"),
		)
		if err != nil {
			initErrors = append(initErrors, "action_failures: "+err.Error())
		}
		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize executor metrics (observability degraded)",
				slog.Any("errors", initErrors),
			)
		}
	})
}

func (e *Executor) observe(ctx context.Context, a actions.Action, d time.Duration, err error) {
	e.initMetrics()
	attrs := metric.WithAttributes(attribute.String("action", a.Kind().String()))
	if e.actionLatency != nil {
		e.actionLatency.Record(ctx, d.Seconds(), attrs)
	}
	if err != nil && e.actionFailures != nil {
		e.actionFailures.Add(ctx, 1, attrs)
	}
}
