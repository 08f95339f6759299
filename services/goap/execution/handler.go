// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"context"
	"slices"
	"sync"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// Call is what a handler receives for one step.
type Call struct {
	Action actions.Action

	// State is the world state before the action's effects. Handlers read
	// it; only the executor writes it.
	State *world.State

	Board *Blackboard
	Step  int
}

// Handler performs the side effect of an action.
type Handler interface {
	Handle(ctx context.Context, call Call) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call Call) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, call Call) error { return f(ctx, call) }

// Registry maps action kinds to handlers. A kind without a handler is a
// pure state transition: its effects apply and its cost is charged.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[actions.Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[actions.Kind]Handler)}
}

// Register sets the handler for kind, replacing any previous one.
func (r *Registry) Register(kind actions.Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind actions.Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []actions.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]actions.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
