// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planning

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// -----------------------------------------------------------------------------
// A* Planner
// -----------------------------------------------------------------------------

// Config configures the planner.
type Config struct {
	// MaxDepth is the longest plan the planner will build (default: 20).
	MaxDepth int

	// MaxExpansions caps the number of expanded nodes (default: 10000).
	MaxExpansions int

	// Timeout is the wall-clock planning budget (default: 5s).
	Timeout time.Duration
}

// DefaultConfig returns the default planner configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxDepth:      20,
		MaxExpansions: 10000,
		Timeout:       5 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be positive, got %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.MaxExpansions < 1 {
		return fmt.Errorf("%w: max_expansions must be positive, got %d", ErrInvalidConfig, c.MaxExpansions)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Plan is an ordered sequence of actions that reaches a goal.
type Plan struct {
	// Actions are the steps in execution order.
	Actions []actions.Action

	// EstimatedCost is the sum of each action's EstimateCost.
	EstimatedCost uint32

	// TokenCost is the sum of each action's token cost.
	TokenCost uint32

	// Expansions is the number of nodes expanded to find the plan.
	Expansions int

	// Duration is how long the search took.
	Duration time.Duration
}

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.Actions) }

// Types returns the action types in order.
func (p *Plan) Types() []actions.Type {
	out := make([]actions.Type, len(p.Actions))
	for i, a := range p.Actions {
		out[i] = a.Type()
	}
	return out
}

// String renders the plan as a -> separated list.
func (p *Plan) String() string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.String()
	}
	return strings.Join(names, " -> ")
}

// NewPlan builds a plan from an already-chosen action sequence.
func NewPlan(seq []actions.Action) *Plan {
	p := &Plan{Actions: seq}
	for _, a := range seq {
		p.EstimatedCost += a.EstimateCost()
		p.TokenCost += a.Cost()
	}
	return p
}

// Option configures a Planner.
type Option func(*Planner)

// WithHeuristic sets the heuristic factory (default: WeightedFactory(DefaultWeights())).
func WithHeuristic(f HeuristicFactory) Option {
	return func(p *Planner) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// Planner finds minimum-cost plans with A* search.
//
// Description:
//
//	Search nodes live in an arena slice and refer to their parent by index.
//	The frontier is a min-heap ordered by f = g + h, then by lower h, then
//	by insertion order, which makes the returned plan reproducible.
//
//	An action is eligible from a node when its preconditions hold and the
//	simulated budget can afford it (see world.State.CanAfford). Successor
//	states consume the action's token cost so that budget exhaustion is
//	visible to the search. Revisits of a property set are skipped unless
//	the new path is cheaper or leaves more budget than every earlier one,
//	so an admissible but inconsistent heuristic only costs re-expansions.
//
//	The timeout is checked cooperatively before each expansion.
//
// Thread Safety: Safe for concurrent use. Each FindPlan call owns its search.
type Planner struct {
	config  *Config
	factory HeuristicFactory
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewPlanner creates a planner. A nil config uses DefaultConfig.
func NewPlanner(config *Config, opts ...Option) *Planner {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Planner{
		config:  config,
		factory: WeightedFactory(DefaultWeights()),
		logger:  slog.Default(),
		tracer:  otel.Tracer("goap.planning"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return *p.config }

// FindPlan searches for the cheapest plan from initial to goal.
//
// Inputs:
//   - ctx: Context for cancellation. Its deadline and Config.Timeout both apply.
//   - catalog: The actions available to this attempt.
//   - initial: The starting state. It is never modified.
//   - goal: The goal to reach.
//
// Outputs:
//   - *Plan: The plan. Empty when initial already satisfies goal.
//   - error: A *PlanError wrapping ErrInvalidGoal, ErrNoActionsAvailable,
//     ErrNoPathFound, ErrMaxDepthExceeded or ErrTimeout.
func (p *Planner) FindPlan(ctx context.Context, catalog *actions.Catalog, initial *world.State, goal *goals.GoalState) (*Plan, error) {
	goalName := ""
	if goal != nil {
		goalName = goal.Name
	}
	ctx, span := p.tracer.Start(ctx, "planning.Planner.FindPlan",
		trace.WithAttributes(
			attribute.String("goap.goal", goalName),
			attribute.Int("goap.catalog_size", catalogLen(catalog)),
		),
	)
	defer span.End()

	plan, err := p.search(ctx, catalog, initial, goal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.DebugContext(ctx, "planning failed",
			slog.String("goal", goalName),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("goap.plan_length", plan.Len()),
		attribute.Int("goap.expansions", plan.Expansions),
		attribute.Int64("goap.plan_cost", int64(plan.EstimatedCost)),
	)
	span.SetStatus(codes.Ok, "")
	p.logger.DebugContext(ctx, "plan found",
		slog.String("goal", goalName),
		slog.String("plan", plan.String()),
		slog.Int("expansions", plan.Expansions),
		slog.Duration("duration", plan.Duration),
	)
	return plan, nil
}

type node struct {
	state  *world.State
	key    string
	parent int
	action int
	g      float64
	depth  int
}

// label is one non-dominated (cost, budget) pair reached for a property set.
type label struct {
	g      float64
	tokens uint32
}

// closedSet keeps, per property set, the labels no other path dominates.
// A path dominates another when it is no more expensive and leaves at
// least as many tokens.
type closedSet map[string][]label

// admit records l under key unless an existing label dominates it.
func (c closedSet) admit(key string, l label) bool {
	kept := c[key][:0:0]
	for _, old := range c[key] {
		if old.g <= l.g && old.tokens >= l.tokens {
			return false
		}
		if !(l.g <= old.g && l.tokens >= old.tokens) {
			kept = append(kept, old)
		}
	}
	c[key] = append(kept, l)
	return true
}

// live reports whether l is still a non-dominated label for key.
func (c closedSet) live(key string, l label) bool {
	for _, old := range c[key] {
		if old == l {
			return true
		}
	}
	return false
}

func (p *Planner) search(ctx context.Context, catalog *actions.Catalog, initial *world.State, goal *goals.GoalState) (*Plan, error) {
	start := time.Now()

	if err := goal.Validate(); err != nil {
		return nil, &PlanError{Operation: "validate", Err: err}
	}
	if initial == nil {
		return nil, &PlanError{Operation: "validate", Goal: goal.Name, Err: fmt.Errorf("%w: nil initial state", ErrInvalidInput)}
	}
	if goal.IsSatisfied(initial) {
		return &Plan{Duration: time.Since(start)}, nil
	}
	fail := func(op string, expansions int, err error) (*Plan, error) {
		return nil, &PlanError{
			Operation:   op,
			Goal:        goal.Name,
			Unsatisfied: goal.Unsatisfied(initial),
			Expansions:  expansions,
			Err:         err,
		}
	}
	if catalogLen(catalog) == 0 {
		return fail("search", 0, ErrNoActionsAvailable)
	}

	acts := catalog.Actions()
	h := p.factory(catalog)
	h0 := h.Estimate(initial, goal)
	if math.IsInf(h0, 1) {
		return fail("search", 0, ErrNoPathFound)
	}

	deadline := start.Add(p.config.Timeout)
	root := initial.Clone()
	arena := []node{{state: root, key: root.Key(), parent: -1, action: -1}}
	closed := closedSet{}
	closed.admit(arena[0].key, label{g: 0, tokens: root.TokensRemaining()})

	frontier := &frontierHeap{}
	heap.Push(frontier, frontierItem{idx: 0, f: h0, h: h0, seq: 0})

	expansions := 0
	depthPruned := false

	for frontier.Len() > 0 {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fail("search", expansions, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
			}
			return fail("search", expansions, ctx.Err())
		default:
		}
		if time.Now().After(deadline) {
			return fail("search", expansions, fmt.Errorf("%w after %v", ErrTimeout, p.config.Timeout))
		}

		item := heap.Pop(frontier).(frontierItem)
		n := arena[item.idx]
		if !closed.live(n.key, label{g: n.g, tokens: n.state.TokensRemaining()}) {
			continue
		}
		if goal.IsSatisfied(n.state) {
			plan := p.reconstruct(arena, item.idx, acts)
			plan.Expansions = expansions
			plan.Duration = time.Since(start)
			return plan, nil
		}
		if n.depth >= p.config.MaxDepth {
			depthPruned = true
			continue
		}
		if expansions >= p.config.MaxExpansions {
			return fail("search", expansions, fmt.Errorf("%w: %d expansions", ErrMaxDepthExceeded, expansions))
		}
		expansions++

		for ai, a := range acts {
			if !a.CanExecute(n.state) || !n.state.CanAfford(a.Cost()) {
				continue
			}
			next := n.state.Clone()
			if err := next.Consume(a.Cost()); err != nil {
				continue
			}
			a.Apply(next)
			next.AdvanceStep()

			key := next.Key()
			g := n.g + float64(a.EstimateCost())
			hv := h.Estimate(next, goal)
			if math.IsInf(hv, 1) {
				continue
			}
			if !closed.admit(key, label{g: g, tokens: next.TokensRemaining()}) {
				continue
			}
			arena = append(arena, node{
				state:  next,
				key:    key,
				parent: item.idx,
				action: ai,
				g:      g,
				depth:  n.depth + 1,
			})
			heap.Push(frontier, frontierItem{idx: len(arena) - 1, f: g + hv, h: hv, seq: len(arena) - 1})
		}
	}

	if depthPruned {
		return fail("search", expansions, fmt.Errorf("%w: limit %d", ErrMaxDepthExceeded, p.config.MaxDepth))
	}
	return fail("search", expansions, ErrNoPathFound)
}

// reconstruct walks parent links from idx back to the root.
func (p *Planner) reconstruct(arena []node, idx int, acts []actions.Action) *Plan {
	var rev []actions.Action
	for i := idx; arena[i].parent >= 0; i = arena[i].parent {
		rev = append(rev, acts[arena[i].action])
	}
	seq := make([]actions.Action, len(rev))
	for i, a := range rev {
		seq[len(rev)-1-i] = a
	}
	return NewPlan(seq)
}

func catalogLen(c *actions.Catalog) int {
	if c == nil {
		return 0
	}
	return c.Len()
}

// frontierItem is one heap entry. The ordering keys are copied out of the
// arena so the arena can grow without invalidating the heap.
type frontierItem struct {
	idx int
	f   float64
	h   float64
	seq int
}

type frontierHeap []frontierItem

func (fh frontierHeap) Len() int { return len(fh) }

func (fh frontierHeap) Less(i, j int) bool {
	a, b := fh[i], fh[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (fh frontierHeap) Swap(i, j int) { fh[i], fh[j] = fh[j], fh[i] }

func (fh *frontierHeap) Push(x any) { *fh = append(*fh, x.(frontierItem)) }

func (fh *frontierHeap) Pop() any {
	old := *fh
	n := len(old)
	item := old[n-1]
	*fh = old[:n-1]
	return item
}
