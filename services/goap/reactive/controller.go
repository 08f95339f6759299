// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reactive recovers from execution failures by replanning.
//
// The controller runs a plan through the executor. When a step fails it
// asks the planner for a new plan from the current world state, with the
// failed actions removed from the catalog, and continues. Replanning is
// bounded by MaxReplans; once exhausted the run aborts with
// ErrMaxReplansExceeded.
package reactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/planning"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

var tracer = otel.Tracer("goap.reactive")

// ErrMaxReplansExceeded indicates the replan budget ran out before the goal held.
var ErrMaxReplansExceeded = errors.New("max replans exceeded")

// AbortError is the terminal error of an aborted run.
type AbortError struct {
	// Reason is ErrMaxReplansExceeded, a planning error, or the failure
	// that could not be replanned.
	Reason error

	// Cause is the step failure that led to the abort, if different from Reason.
	Cause error

	Unsatisfied  []world.Property
	ReplanCount  int
	FailedAction actions.Type
}

func (e *AbortError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "aborted after %d replans: %v", e.ReplanCount, e.Reason)
	if e.Cause != nil && e.Cause != e.Reason {
		fmt.Fprintf(&b, " (last failure: %v)", e.Cause)
	}
	if len(e.Unsatisfied) > 0 {
		names := make([]string, len(e.Unsatisfied))
		for i, p := range e.Unsatisfied {
			names[i] = p.String()
		}
		fmt.Fprintf(&b, "; unsatisfied: %s", strings.Join(names, ", "))
	}
	return b.String()
}

// Unwrap exposes both the reason and the cause to errors.Is.
func (e *AbortError) Unwrap() []error {
	if e.Cause == nil || e.Cause == e.Reason {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

// Config configures the controller.
type Config struct {
	// MaxReplans bounds replanning per run (default: 3). Zero disables it.
	MaxReplans int `json:"max_replans" yaml:"max_replans"`

	// MinReplanInterval is the least time between two replans. Zero means
	// replan immediately.
	MinReplanInterval time.Duration `json:"min_replan_interval" yaml:"min_replan_interval"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{MaxReplans: 3}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxReplans < 0 {
		return fmt.Errorf("max_replans must not be negative, got %d", c.MaxReplans)
	}
	if c.MinReplanInterval < 0 {
		return fmt.Errorf("min_replan_interval must not be negative, got %v", c.MinReplanInterval)
	}
	return nil
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTransitionHook registers fn to observe every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller drives a plan to its goal, replanning on failure.
//
// Description:
//
//	Run moves through Executing, FailureDetected, Replanning and back to
//	Executing until the goal holds (Succeeded) or recovery is impossible
//	(Aborted). Replans start from the state the failed run left behind;
//	effects of completed steps are kept and a failed step changes nothing.
//
//	Each replan walks a ladder of catalogs: first without every action that
//	has failed during the run, then without only the latest failure, then
//	the full catalog. The first rung that yields a plan wins. All rungs of
//	one replan count once against MaxReplans.
//
// Thread Safety: Safe for concurrent use on distinct states.
type Controller struct {
	planner      *planning.Planner
	executor     *execution.Executor
	config       Config
	logger       *slog.Logger
	onTransition func(from, to State)
}

// NewController creates a controller.
func NewController(planner *planning.Planner, executor *execution.Executor, config Config, opts ...Option) *Controller {
	if config.MaxReplans < 0 {
		config.MaxReplans = 0
	}
	c := &Controller{
		planner:  planner,
		executor: executor,
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config { return c.config }

// WithMaxReplans returns a copy of the controller with a different replan budget.
func (c *Controller) WithMaxReplans(n int) *Controller {
	cp := *c
	cp.config.MaxReplans = max(n, 0)
	return &cp
}

// run is the bookkeeping of one Run call.
type run struct {
	state      State
	replans    int
	failed     []actions.Type
	lastReplan time.Time
}

// Run executes plan and recovers from failures until goal holds.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - plan: The initial plan.
//   - catalog: The catalog replans draw from.
//   - state: The request's world state. Modified in place.
//   - goal: The goal that defines success.
//   - board: Artifacts shared between handlers. Nil allocates a fresh one.
//
// Outputs:
//   - *execution.ExecutionResult: Every attempted step across all plans,
//     the replan history and, on abort, an *AbortError in Err.
func (c *Controller) Run(ctx context.Context, plan []actions.Action, catalog *actions.Catalog, state *world.State, goal *goals.GoalState, board *execution.Blackboard) *execution.ExecutionResult {
	if board == nil {
		board = execution.NewBlackboard()
	}
	ctx, span := tracer.Start(ctx, "reactive.Controller.Run",
		trace.WithAttributes(
			attribute.String("goap.goal", goal.Name),
			attribute.Int("goap.plan_length", len(plan)),
			attribute.Int("goap.max_replans", c.config.MaxReplans),
		),
	)
	defer span.End()

	start := time.Now()
	result := &execution.ExecutionResult{TotalSteps: len(plan)}
	r := &run{state: Executing}
	current := plan

	for {
		out := c.executor.Execute(ctx, current, state, board)
		for _, s := range out.Steps {
			s.Attempt = r.replans
			result.Steps = append(result.Steps, s)
		}
		result.StepsCompleted += out.StepsCompleted
		result.TokensUsed += out.TokensUsed

		failure := out.Failure
		if failure == nil {
			if goal.IsSatisfied(state) {
				c.transition(ctx, r, Succeeded)
				break
			}
			failure = &execution.StepError{
				Kind: execution.FailureGoalNotSatisfied,
				Step: state.Step(),
				Err:  fmt.Errorf("%w: %s", execution.ErrGoalNotSatisfied, goal.Name),
			}
		}
		c.transition(ctx, r, FailureDetected)
		result.Failure = failure

		if !failure.Replannable() {
			c.abort(ctx, r, result, failure, nil, state, goal)
			break
		}
		if r.replans >= c.config.MaxReplans {
			c.abort(ctx, r, result, fmt.Errorf("%w: limit %d", ErrMaxReplansExceeded, c.config.MaxReplans), failure, state, goal)
			break
		}

		c.transition(ctx, r, Replanning)
		if err := c.pace(ctx, r); err != nil {
			c.abort(ctx, r, result, err, failure, state, goal)
			break
		}
		r.replans++
		if failure.Kind != execution.FailureGoalNotSatisfied && !slices.Contains(r.failed, failure.Action) {
			r.failed = append(r.failed, failure.Action)
		}

		next, excluded, err := c.replan(ctx, catalog, state, goal, r.failed, failure.Action)
		record := execution.Replan{
			Attempt:      r.replans,
			Reason:       failure.Kind,
			FailedAction: failure.Action,
			Excluded:     excluded,
			At:           r.lastReplan,
		}
		if next != nil {
			record.PlanLength = next.Len()
		}
		result.Replans = append(result.Replans, record)
		span.AddEvent("replan", trace.WithAttributes(
			attribute.Int("goap.attempt", r.replans),
			attribute.String("goap.reason", failure.Kind.String()),
			attribute.String("goap.failed_action", failure.Action.String()),
		))
		c.logger.WarnContext(ctx, "replanning",
			slog.Int("attempt", r.replans),
			slog.String("reason", failure.Kind.String()),
			slog.String("failed_action", failure.Action.String()),
			slog.Int("excluded", len(excluded)),
		)
		if err != nil {
			c.abort(ctx, r, result, err, failure, state, goal)
			break
		}

		c.transition(ctx, r, Executing)
		current = next.Actions
		result.TotalSteps = result.StepsCompleted + next.Len()
	}

	result.ReplanCount = r.replans
	result.Success = r.state == Succeeded
	result.GoalsSatisfied = goal.IsSatisfied(state)
	result.Unsatisfied = goal.Unsatisfied(state)
	result.TokensRemaining = state.TokensRemaining()
	result.Response = board.Value(execution.KeyResponse)
	result.Duration = time.Since(start)
	if result.Success {
		result.Failure = nil
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Error)
	}
	span.SetAttributes(
		attribute.Int("goap.replan_count", r.replans),
		attribute.Bool("goap.success", result.Success),
	)
	return result
}

// replan walks the exclusion ladder and returns the first plan found.
func (c *Controller) replan(ctx context.Context, catalog *actions.Catalog, state *world.State, goal *goals.GoalState, failed []actions.Type, latest actions.Type) (*planning.Plan, []actions.Type, error) {
	rungs := [][]actions.Type{slices.Clone(failed)}
	if len(failed) > 1 && slices.Contains(failed, latest) {
		rungs = append(rungs, []actions.Type{latest})
	}
	if len(failed) > 0 {
		rungs = append(rungs, nil)
	}

	var lastErr error
	for _, excluded := range rungs {
		plan, err := c.planner.FindPlan(ctx, catalog.Without(excluded...), state, goal)
		if err == nil {
			return plan, excluded, nil
		}
		lastErr = err
		if !planning.IsRecoverable(err) {
			return nil, excluded, err
		}
	}
	return nil, rungs[len(rungs)-1], lastErr
}

func (c *Controller) pace(ctx context.Context, r *run) error {
	if c.config.MinReplanInterval > 0 && !r.lastReplan.IsZero() {
		if wait := c.config.MinReplanInterval - time.Since(r.lastReplan); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.lastReplan = time.Now()
	return nil
}

func (c *Controller) abort(ctx context.Context, r *run, result *execution.ExecutionResult, reason, cause error, state *world.State, goal *goals.GoalState) {
	c.transition(ctx, r, Aborted)
	abortErr := &AbortError{
		Reason:      reason,
		Cause:       cause,
		Unsatisfied: goal.Unsatisfied(state),
		ReplanCount: r.replans,
	}
	var stepErr *execution.StepError
	if errors.As(reason, &stepErr) || errors.As(cause, &stepErr) {
		abortErr.FailedAction = stepErr.Action
	}
	result.SetError(abortErr)
	c.logger.ErrorContext(ctx, "execution aborted",
		slog.String("goal", goal.Name),
		slog.Int("replans", r.replans),
		slog.String("error", abortErr.Error()),
	)
}

func (c *Controller) transition(ctx context.Context, r *run, to State) {
	from := r.state
	if !CanTransition(from, to) {
		c.logger.ErrorContext(ctx, "invalid controller transition",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	}
	r.state = to
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
