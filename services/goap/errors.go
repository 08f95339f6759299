// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package goap

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/planning"
	"github.com/AleutianAI/AleutianGOAP/services/goap/reactive"
)

var (
	// ErrMalformedRequest indicates a request with no usable text.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrRequestTooLong indicates request text above the size limit.
	ErrRequestTooLong = errors.New("request too long")

	// ErrBudgetBelowMinimum indicates a token budget too small to produce anything.
	ErrBudgetBelowMinimum = errors.New("token budget below minimum viable")

	// ErrClosed indicates a call after Close.
	ErrClosed = errors.New("goap system closed")
)

// Error categories reported by Classify.
const (
	CategoryPlanning   = "planning"
	CategoryExecution  = "execution"
	CategoryCache      = "cache"
	CategoryValidation = "validation"
	CategoryInternal   = "internal"
)

// ValidationError describes a request rejected before planning.
type ValidationError struct {
	Field  string
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Classify maps err to one of the Category constants. Nil maps to "".
//
// An abort after exhausted replans is an execution error even when its last
// cause was a planning failure.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRequest),
		errors.Is(err, ErrRequestTooLong),
		errors.Is(err, ErrBudgetBelowMinimum):
		return CategoryValidation
	case errors.Is(err, goals.ErrGoalTimeout),
		errors.Is(err, reactive.ErrMaxReplansExceeded),
		errors.Is(err, execution.ErrActionFailed),
		errors.Is(err, execution.ErrPreconditionViolated),
		errors.Is(err, execution.ErrBudgetExceeded),
		errors.Is(err, execution.ErrBudgetCritical),
		errors.Is(err, execution.ErrActionTimeout),
		errors.Is(err, execution.ErrInvalidSequence),
		errors.Is(err, execution.ErrGoalNotSatisfied),
		errors.Is(err, execution.ErrValidationFailed):
		return CategoryExecution
	case errors.Is(err, planning.ErrNoPathFound),
		errors.Is(err, planning.ErrMaxDepthExceeded),
		errors.Is(err, planning.ErrTimeout),
		errors.Is(err, planning.ErrInvalidGoal),
		errors.Is(err, planning.ErrNoActionsAvailable),
		errors.Is(err, planning.ErrInvalidInput):
		return CategoryPlanning
	case errors.Is(err, cache.ErrPatternNotFound),
		errors.Is(err, cache.ErrCacheFull),
		errors.Is(err, cache.ErrCorruptionDetected),
		errors.Is(err, cache.ErrSchemaNotFound):
		return CategoryCache
	default:
		return CategoryInternal
	}
}
