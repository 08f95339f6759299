// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package goals

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

const (
	// MinPriority is the lowest valid goal priority.
	MinPriority = 1

	// MaxPriority is the highest valid goal priority.
	MaxPriority = 10
)

var (
	// ErrInvalidGoal indicates a goal that cannot be planned for.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrGoalTimeout indicates a goal that was not reached before its timeout.
	ErrGoalTimeout = errors.New("goal timed out")
)

// GoalState is a named set of properties that must all hold.
//
// Thread Safety: Safe for concurrent reads once built.
type GoalState struct {
	Name      string           `json:"name"`
	Required  []world.Property `json:"required"`
	Priority  int              `json:"priority"`
	Timeout   time.Duration    `json:"timeout"`
	CreatedAt time.Time        `json:"created_at"`
}

// New creates a goal requiring every property in required.
func New(name string, priority int, timeout time.Duration, required ...world.Property) *GoalState {
	return &GoalState{
		Name:      name,
		Required:  dedupe(required),
		Priority:  priority,
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}
}

// IsSatisfied reports whether every required property holds in state.
func (g *GoalState) IsSatisfied(state *world.State) bool {
	return state.Satisfies(g.Required)
}

// Unsatisfied returns the required properties that do not hold in state.
func (g *GoalState) Unsatisfied(state *world.State) []world.Property {
	return state.Missing(g.Required)
}

// Validate checks that the goal can be planned for.
func (g *GoalState) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil goal", ErrInvalidGoal)
	}
	if len(g.Required) == 0 {
		return fmt.Errorf("%w: %q has no required properties", ErrInvalidGoal, g.Name)
	}
	if g.Priority < MinPriority || g.Priority > MaxPriority {
		return fmt.Errorf("%w: %q priority %d outside %d-%d", ErrInvalidGoal, g.Name, g.Priority, MinPriority, MaxPriority)
	}
	if g.Timeout < 0 {
		return fmt.Errorf("%w: %q has negative timeout", ErrInvalidGoal, g.Name)
	}
	for _, p := range g.Required {
		if p.Kind == world.KindUnknown {
			return fmt.Errorf("%w: %q requires an unknown property", ErrInvalidGoal, g.Name)
		}
	}
	return nil
}

// Expired reports whether the goal's timeout has elapsed at now.
// A zero timeout never expires.
func (g *GoalState) Expired(now time.Time) bool {
	if g.Timeout == 0 {
		return false
	}
	return now.After(g.CreatedAt.Add(g.Timeout))
}

// Clone returns an independent copy of the goal.
func (g *GoalState) Clone() *GoalState {
	c := *g
	c.Required = slices.Clone(g.Required)
	return &c
}

// EfficiencyFocused produces a validated response at the lowest cost.
func EfficiencyFocused() *GoalState {
	return New("efficiency_focused", 5, 30*time.Second,
		world.ResponseGenerated, world.ResponseValidated)
}

// PatternReuse produces a response after consulting the pattern cache.
func PatternReuse() *GoalState {
	return New("pattern_reuse", 8, 15*time.Second,
		world.PatternCacheChecked, world.ResponseGenerated)
}

// QualityFocused pre-validates the request and validates the response.
func QualityFocused() *GoalState {
	return New("quality_focused", 10, 45*time.Second,
		world.RequestPreValidated, world.ResponseGenerated, world.ResponseValidated)
}

// Preset returns a named preset goal.
func Preset(name string) (*GoalState, error) {
	switch name {
	case "", "efficiency_focused", "efficiency":
		return EfficiencyFocused(), nil
	case "pattern_reuse":
		return PatternReuse(), nil
	case "quality_focused", "quality":
		return QualityFocused(), nil
	default:
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidGoal, name)
	}
}

// Lookup returns the named goal preset as a composite. Single-goal presets
// come back as one-step composites.
func Lookup(name string) (*Composite, error) {
	switch name {
	case "staged_quality", "staged":
		return StagedQuality(), nil
	}
	g, err := Preset(name)
	if err != nil {
		return nil, err
	}
	return Single(g), nil
}

// StagedQuality first prepares the request, then produces a validated
// response. Each stage runs under its own timeout.
func StagedQuality() *Composite {
	return &Composite{Name: "staged_quality", Steps: []*GoalState{
		New("prepare", 10, 15*time.Second, world.RequestPreValidated, world.SchemaTypeDetected),
		New("respond", 10, 30*time.Second, world.ResponseGenerated, world.ResponseValidated),
	}}
}

// Composite is an ordered decomposition of a larger goal into sub-goals.
type Composite struct {
	Name  string
	Steps []*GoalState
}

// Single wraps g as a one-step composite.
func Single(g *GoalState) *Composite {
	return &Composite{Name: g.Name, Steps: []*GoalState{g}}
}

// Validate checks every sub-goal and rejects empty composites and
// duplicate sub-goal names.
func (c *Composite) Validate() error {
	if c == nil || len(c.Steps) == 0 {
		return fmt.Errorf("%w: composite has no sub-goals", ErrInvalidGoal)
	}
	seen := make(map[string]bool, len(c.Steps))
	for _, g := range c.Steps {
		if err := g.Validate(); err != nil {
			return err
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: %q appears twice in %q", ErrInvalidGoal, g.Name, c.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// IsSatisfied reports whether every sub-goal is satisfied.
func (c *Composite) IsSatisfied(state *world.State) bool {
	for _, g := range c.Steps {
		if !g.IsSatisfied(state) {
			return false
		}
	}
	return true
}

// Next returns the first sub-goal not yet satisfied, or nil if none remain.
func (c *Composite) Next(state *world.State) *GoalState {
	for _, g := range c.Steps {
		if !g.IsSatisfied(state) {
			return g
		}
	}
	return nil
}

func dedupe(props []world.Property) []world.Property {
	out := make([]world.Property, 0, len(props))
	for _, p := range props {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
