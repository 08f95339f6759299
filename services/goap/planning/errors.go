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
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

var (
	// ErrNoPathFound indicates the search space was exhausted without reaching the goal.
	ErrNoPathFound = errors.New("no path found")

	// ErrMaxDepthExceeded indicates the search stopped at its depth or expansion limit.
	ErrMaxDepthExceeded = errors.New("max plan depth exceeded")

	// ErrTimeout indicates the planning timeout elapsed.
	ErrTimeout = errors.New("planning timeout")

	// ErrInvalidGoal indicates a goal that cannot be planned for.
	ErrInvalidGoal = goals.ErrInvalidGoal

	// ErrNoActionsAvailable indicates an empty catalog.
	ErrNoActionsAvailable = errors.New("no actions available")

	// ErrInvalidInput indicates a nil state or catalog.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a planner configuration outside its valid range.
	ErrInvalidConfig = errors.New("invalid planner config")
)

// PlanError describes a failed planning attempt.
type PlanError struct {
	// Operation is the planner step that failed.
	Operation string

	// Goal is the name of the goal being planned for.
	Goal string

	// Unsatisfied lists the goal properties that did not hold in the initial state.
	Unsatisfied []world.Property

	// Expansions is the number of nodes expanded before failing.
	Expansions int

	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "planning %s", e.Operation)
	if e.Goal != "" {
		fmt.Fprintf(&b, " for goal %q", e.Goal)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if len(e.Unsatisfied) > 0 {
		names := make([]string, len(e.Unsatisfied))
		for i, p := range e.Unsatisfied {
			names[i] = p.String()
		}
		fmt.Fprintf(&b, " (unsatisfied: %s)", strings.Join(names, ", "))
	}
	if e.Expansions > 0 {
		fmt.Fprintf(&b, " after %d expansions", e.Expansions)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *PlanError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether a different catalog might let planning succeed.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoPathFound) || errors.Is(err, ErrMaxDepthExceeded)
}
