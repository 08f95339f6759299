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
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

var (
	// ErrActionFailed indicates an action's handler reported an error.
	ErrActionFailed = errors.New("action failed")

	// ErrPreconditionViolated indicates an action's preconditions did not hold at run time.
	ErrPreconditionViolated = errors.New("precondition violated")

	// ErrBudgetExceeded indicates an action cost more than the remaining budget.
	ErrBudgetExceeded = world.ErrBudgetExceeded

	// ErrBudgetCritical indicates a cost-bearing action met a budget at or below the critical threshold.
	ErrBudgetCritical = errors.New("token budget critical")

	// ErrActionTimeout indicates an action overran its time budget.
	ErrActionTimeout = errors.New("action timed out")

	// ErrInvalidSequence indicates a plan or cached sequence that cannot be executed as given.
	ErrInvalidSequence = errors.New("invalid action sequence")

	// ErrGoalNotSatisfied indicates a plan ran to completion without reaching its goal.
	ErrGoalNotSatisfied = errors.New("goal not satisfied")

	// ErrValidationFailed indicates a generated response did not pass validation.
	ErrValidationFailed = errors.New("response failed validation")
)

// FailureKind classifies why a step failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailurePreconditionViolated
	FailureBudgetCritical
	FailureBudgetExceeded
	FailureActionError
	FailureActionTimeout
	FailureGoalNotSatisfied
	FailureCancelled
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailurePreconditionViolated:
		return "precondition_violated"
	case FailureBudgetCritical:
		return "budget_critical"
	case FailureBudgetExceeded:
		return "budget_exceeded"
	case FailureActionError:
		return "action_error"
	case FailureActionTimeout:
		return "action_timeout"
	case FailureGoalNotSatisfied:
		return "goal_not_satisfied"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// StepError describes the step that stopped a run.
type StepError struct {
	Kind   FailureKind
	Action actions.Type
	Step   int
	Err    error
}

func (e *StepError) Error() string {
	if e.Kind == FailureGoalNotSatisfied {
		return fmt.Sprintf("after %d steps: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Replannable reports whether the failure is one the reactive controller
// may recover from. Cancellation is not.
func (e *StepError) Replannable() bool {
	return e.Kind != FailureCancelled && e.Kind != FailureNone
}
