// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package actions

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// ErrUnknownAction indicates a Type that is not in the catalog.
var ErrUnknownAction = errors.New("unknown action")

// Catalog is an ordered set of actions unique by Type.
//
// Description:
//
//	Iteration order is insertion order, which keeps planning deterministic.
//	Catalogs are treated as values once built: Without returns a new
//	catalog and leaves the receiver untouched, so a replanning attempt can
//	narrow the set without affecting the original.
//
// Thread Safety: Safe for concurrent reads. Add must not race with readers.
type Catalog struct {
	actions []Action
	index   map[Type]int
}

// NewCatalog creates a catalog holding the given actions. A later action
// with the same Type replaces an earlier one.
func NewCatalog(actions ...Action) *Catalog {
	c := &Catalog{index: make(map[Type]int, len(actions))}
	for _, a := range actions {
		c.Add(a)
	}
	return c
}

// Add inserts a, replacing any action with the same Type in place.
func (c *Catalog) Add(a Action) {
	if i, ok := c.index[a.Type()]; ok {
		c.actions[i] = a
		return
	}
	c.index[a.Type()] = len(c.actions)
	c.actions = append(c.actions, a)
}

// Get returns the action with the given Type.
func (c *Catalog) Get(t Type) (Action, bool) {
	i, ok := c.index[t]
	if !ok {
		return Action{}, false
	}
	return c.actions[i], true
}

// Actions returns the actions in insertion order.
func (c *Catalog) Actions() []Action {
	return slices.Clone(c.actions)
}

// Len returns the number of actions.
func (c *Catalog) Len() int { return len(c.actions) }

// Without returns a copy of the catalog minus the given types.
func (c *Catalog) Without(types ...Type) *Catalog {
	out := &Catalog{index: make(map[Type]int, len(c.actions))}
	for _, a := range c.actions {
		if slices.Contains(types, a.Type()) {
			continue
		}
		out.Add(a)
	}
	return out
}

// Eligible returns the actions whose preconditions hold in state, in catalog order.
func (c *Catalog) Eligible(state *world.State) []Action {
	var out []Action
	for _, a := range c.actions {
		if a.CanExecute(state) {
			out = append(out, a)
		}
	}
	return out
}

// Achievers returns the actions that have p as an effect.
func (c *Catalog) Achievers(p world.Property) []Action {
	var out []Action
	for _, a := range c.actions {
		if a.Achieves(p) {
			out = append(out, a)
		}
	}
	return out
}

// Resolve maps a sequence of types to the catalog's actions.
//
// Outputs:
//   - []Action: The actions in sequence order.
//   - error: ErrUnknownAction wrapping the first type the catalog lacks.
func (c *Catalog) Resolve(types []Type) ([]Action, error) {
	out := make([]Action, 0, len(types))
	for _, t := range types {
		a, ok := c.Get(t)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAction, t)
		}
		out = append(out, a)
	}
	return out, nil
}

// DefaultCatalog returns the standard actions for a request whose schema
// type was detected as schemaType.
//
// The generate-with-schema route is the cheapest way to a response. The
// template route skips the schema fetch but costs more, so the planner only
// falls back to it when the primary generator is ruled out.
func DefaultCatalog(schemaType string) *Catalog {
	return NewCatalog(
		New(Of(KindPreValidateRequest)).
			Requires(world.RequestValidated).
			Produces(world.RequestPreValidated).
			WithCost(5).WithDuration(20*time.Millisecond),
		New(Of(KindDetectSchemaType)).
			Requires(world.RequestValidated).
			Produces(world.SchemaTypeDetected).
			WithCost(10).WithDuration(50*time.Millisecond),
		New(FetchSchema(schemaType)).
			Requires(world.SchemaTypeDetected).
			Produces(world.SchemaAvailable(schemaType)).
			WithCost(20).WithDuration(100*time.Millisecond).WithConfidence(95),
		New(Of(KindCheckPatternCache)).
			Requires(world.RequestValidated).
			Produces(world.PatternCacheChecked).
			WithCost(5).WithDuration(20*time.Millisecond),
		New(Of(KindCompressRequest)).
			Requires(world.RequestValidated).
			Produces(world.RequestCompressed).
			WithCost(15).WithDuration(50*time.Millisecond),
		New(Of(KindGenerateResponse)).
			Requires(world.RequestValidated, world.SchemaAvailable(schemaType)).
			Produces(world.ResponseGenerated).
			WithCost(100).WithDuration(500*time.Millisecond).WithConfidence(90),
		New(Of(KindGenerateFromTemplate)).
			Requires(world.RequestValidated, world.SchemaTypeDetected).
			Produces(world.ResponseGenerated).
			WithCost(150).WithDuration(300*time.Millisecond).WithConfidence(75),
		New(Of(KindPostValidateResponse)).
			Requires(world.ResponseGenerated).
			Produces(world.ResponseValidated).
			WithCost(15).WithDuration(75*time.Millisecond),
		New(Of(KindFixValidationErrors)).
			Requires(world.ResponseGenerated).
			Produces(world.ResponseValidated, world.ResponseFixed).
			WithCost(80).WithDuration(300*time.Millisecond).WithConfidence(80),
		New(Of(KindLearnSuccessPattern)).
			Requires(world.ResponseValidated).
			Produces(world.PatternLearned).
			WithCost(10).WithDuration(50*time.Millisecond),
		New(Of(KindUpdateMetrics)).
			Requires(world.ResponseGenerated).
			Produces(world.MetricsUpdated).
			WithCost(1).WithDuration(5*time.Millisecond),
		New(Of(KindRequestClarification)).
			Requires(world.RequestValidated).
			Produces(world.ClarificationRequested).
			WithCost(5).WithDuration(20*time.Millisecond),
	)
}

// PatternAction returns the action that generates a response from a cached
// pattern. It only becomes eligible once PatternAvailable(patternID) holds.
func PatternAction(patternID string) Action {
	return New(GenerateFromPattern(patternID)).
		Requires(world.RequestValidated, world.PatternAvailable(patternID)).
		Produces(world.ResponseGenerated).
		WithCost(30).WithDuration(150 * time.Millisecond).WithConfidence(85)
}
