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
	"sort"
	"sync"
	"time"
)

// ErrGoalNotFound indicates an operation on a goal the orchestrator does not track.
var ErrGoalNotFound = errors.New("goal not found")

// Progress summarizes the orchestrator's goals.
type Progress struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Orchestrator tracks the goals of one request.
//
// Description:
//
//	Goals move from active to either completed or failed. A goal fails
//	when the caller says so or when CheckTimeouts finds it past its
//	timeout.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	mu        sync.RWMutex
	active    map[string]*GoalState
	completed []string
	failed    []string
}

// NewOrchestrator creates an empty orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{active: make(map[string]*GoalState)}
}

// Add registers a goal. It replaces any active goal with the same name.
func (o *Orchestrator) Add(g *GoalState) error {
	if err := g.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	o.active[g.Name] = g
	return nil
}

// Complete moves an active goal to the completed set.
func (o *Orchestrator) Complete(name string) error {
	return o.finish(name, &o.completed)
}

// Fail moves an active goal to the failed set.
func (o *Orchestrator) Fail(name string) error {
	return o.finish(name, &o.failed)
}

func (o *Orchestrator) finish(name string, into *[]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.active[name]; !ok {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, name)
	}
	delete(o.active, name)
	*into = append(*into, name)
	return nil
}

// CheckTimeouts fails every active goal that has expired at now and
// returns their names.
func (o *Orchestrator) CheckTimeouts(now time.Time) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var expired []string
	for _, g := range o.sortedLocked() {
		if g.Expired(now) {
			delete(o.active, g.Name)
			o.failed = append(o.failed, g.Name)
			expired = append(expired, g.Name)
		}
	}
	return expired
}

// Completed returns the names of completed goals in completion order.
func (o *Orchestrator) Completed() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.completed)
}

// Failed returns the names of failed goals in failure order.
func (o *Orchestrator) Failed() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.failed)
}

// Progress returns counts of active, completed and failed goals.
func (o *Orchestrator) Progress() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Progress{
		Active:    len(o.active),
		Completed: len(o.completed),
		Failed:    len(o.failed),
	}
}

func (o *Orchestrator) sortedLocked() []*GoalState {
	out := make([]*GoalState, 0, len(o.active))
	for _, g := range o.active {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
