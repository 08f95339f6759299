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
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// Status is the outcome of one step.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusSkipped   Status = "skipped"
)

// ExecutionStep records one attempted action.
type ExecutionStep struct {
	Action     actions.Type  `json:"action"`
	Status     Status        `json:"status"`
	TokensUsed uint32        `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`

	// Attempt is 0 for the first plan and n for the plan built by the n-th replan.
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// Replan records one reactive replanning attempt.
type Replan struct {
	Attempt      int            `json:"attempt"`
	Reason       FailureKind    `json:"reason"`
	FailedAction actions.Type   `json:"failed_action"`
	Excluded     []actions.Type `json:"excluded"`
	PlanLength   int            `json:"plan_length"`
	At           time.Time      `json:"at"`
}

// ExecutionResult is the outcome of running a request's plan, including any
// reactive replans. It is not modified after it is returned.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	StepsCompleted  int              `json:"steps_completed"`
	TotalSteps      int              `json:"total_steps"`
	TokensUsed      uint32           `json:"tokens_used"`
	TokensRemaining uint32           `json:"tokens_remaining"`
	Steps           []ExecutionStep  `json:"steps"`
	GoalsSatisfied  bool             `json:"goals_satisfied"`
	Unsatisfied     []world.Property `json:"unsatisfied,omitempty"`
	ReplanCount     int              `json:"replan_count"`
	Replans         []Replan         `json:"replans,omitempty"`
	FromCache       bool             `json:"from_cache"`
	PatternID       string           `json:"pattern_id,omitempty"`
	Response        string           `json:"response,omitempty"`
	Duration        time.Duration    `json:"duration"`
	Error           string           `json:"error,omitempty"`

	// CompletedGoals and FailedGoals name the sub-goals of a staged request
	// by outcome.
	CompletedGoals []string `json:"completed_goals,omitempty"`
	FailedGoals    []string `json:"failed_goals,omitempty"`

	// Failure is the step that stopped the last run, if any.
	Failure *StepError `json:"-"`

	// Err is the terminal error. Nil on success.
	Err error `json:"-"`
}

// SetError records err as the terminal error.
func (r *ExecutionResult) SetError(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Error = ""
	}
}

// ExecutedTypes returns the types of the completed steps in order.
func (r *ExecutionResult) ExecutedTypes() []actions.Type {
	var out []actions.Type
	for _, s := range r.Steps {
		if s.Status == StatusCompleted {
			out = append(out, s.Action)
		}
	}
	return out
}

// Merge folds the result of a later stage into r. Counters and step
// histories accumulate; the outcome, remaining budget and error come from
// next.
func (r *ExecutionResult) Merge(next *ExecutionResult) {
	r.Success = next.Success
	r.StepsCompleted += next.StepsCompleted
	r.TotalSteps += next.TotalSteps
	r.TokensUsed += next.TokensUsed
	r.TokensRemaining = next.TokensRemaining
	r.Steps = append(r.Steps, next.Steps...)
	r.GoalsSatisfied = next.GoalsSatisfied
	r.Unsatisfied = next.Unsatisfied
	r.ReplanCount += next.ReplanCount
	r.Replans = append(r.Replans, next.Replans...)
	r.FromCache = r.FromCache || next.FromCache
	if next.PatternID != "" {
		r.PatternID = next.PatternID
	}
	if next.Response != "" {
		r.Response = next.Response
	}
	r.Failure = next.Failure
	r.SetError(next.Err)
}
