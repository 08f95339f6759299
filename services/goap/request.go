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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
)

// PlanRequest is one request to the engine.
type PlanRequest struct {
	// Text is the natural-language request. Required.
	Text string `json:"text" validate:"required"`

	// TokenBudget caps the tokens the request may spend. Zero uses the
	// configured default.
	TokenBudget uint32 `json:"token_budget,omitempty"`

	// Goal overrides the default efficiency-focused goal.
	Goal *goals.GoalState `json:"-"`

	// Stages replaces Goal with sub-goals pursued in order, each under its
	// own timeout. Setting both is an error.
	Stages *goals.Composite `json:"-"`

	// MaxReplans overrides the configured replan limit when set.
	MaxReplans *int `json:"max_replans,omitempty" validate:"omitempty,min=0,max=10"`

	// DisableReplanning aborts on the first failure.
	DisableReplanning bool `json:"disable_replanning,omitempty"`
}

// PatternMatch summarises the cached pattern a request would reuse.
type PatternMatch struct {
	ID              string  `json:"id"`
	Confidence      float64 `json:"confidence"`
	Similarity      float64 `json:"similarity"`
	UsageCount      uint32  `json:"usage_count"`
	EstimatedTokens uint32  `json:"estimated_tokens"`
}

// ValidationReport is the result of a dry-run validation.
type ValidationReport struct {
	Valid           bool          `json:"valid"`
	EstimatedTokens uint32        `json:"estimated_tokens"`
	TokenBudget     uint32        `json:"token_budget"`
	SchemaType      string        `json:"schema_type"`
	PatternMatch    *PatternMatch `json:"pattern_match,omitempty"`
	Issues          []string      `json:"issues,omitempty"`
}

var requestValidate = validator.New()

// check validates req and resolves its token budget.
func (s *System) check(req PlanRequest) (uint32, error) {
	if err := requestValidate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Field())
			return 0, &ValidationError{Field: field, Detail: fmt.Sprintf("failed %q", verrs[0].Tag()), Err: ErrMalformedRequest}
		}
		return 0, &ValidationError{Field: "request", Err: ErrMalformedRequest, Detail: err.Error()}
	}
	if strings.TrimSpace(req.Text) == "" {
		return 0, &ValidationError{Field: "text", Detail: "blank", Err: ErrMalformedRequest}
	}
	if limit := s.cfg.Budget.MaxRequestBytes; len(req.Text) > limit {
		return 0, &ValidationError{
			Field:  "text",
			Detail: fmt.Sprintf("%d bytes exceeds %d", len(req.Text), limit),
			Err:    ErrRequestTooLong,
		}
	}
	budget := req.TokenBudget
	if budget == 0 {
		budget = s.cfg.Budget.DefaultTokenBudget
	}
	if minimum := s.cfg.Budget.MinimumViableBudget; budget < minimum {
		return 0, &ValidationError{
			Field:  "token_budget",
			Detail: fmt.Sprintf("%d is below %d", budget, minimum),
			Err:    ErrBudgetBelowMinimum,
		}
	}
	return budget, nil
}

// stagesFor resolves the goals req pursues, in order.
func stagesFor(req PlanRequest) (*goals.Composite, error) {
	var stages *goals.Composite
	switch {
	case req.Goal != nil && req.Stages != nil:
		return nil, &ValidationError{Field: "goal", Detail: "set either goal or stages", Err: ErrMalformedRequest}
	case req.Stages != nil:
		stages = req.Stages
	case req.Goal != nil:
		stages = goals.Single(req.Goal)
	default:
		stages = goals.Single(goals.EfficiencyFocused())
	}
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	return stages, nil
}

// reachable plans every stage against a scratch state without executing
// anything. Budgets above the minimum can still be too small for the goal
// once the critical reserve is held back.
func (s *System) reachable(ctx context.Context, budget uint32, text, schemaType string, stages *goals.Composite) error {
	state := s.newState(budget, text)
	catalog := actions.DefaultCatalog(schemaType)
	for range stages.Steps {
		goal := stages.Next(state)
		if goal == nil {
			return nil
		}
		plan, err := s.planner.FindPlan(ctx, catalog, state, goal)
		if err != nil {
			return fmt.Errorf("no plan reaches goal %s within the budget of %d: %w", goal.Name, budget, err)
		}
		for _, a := range plan.Actions {
			if err := state.Consume(a.Cost()); err != nil {
				return fmt.Errorf("no plan reaches goal %s within the budget of %d: %w", goal.Name, budget, err)
			}
			a.Apply(state)
		}
	}
	return nil
}

// EstimateTokens is the rough token cost of handling text.
func EstimateTokens(text string) uint32 {
	return uint32(float64(len(text)) * 1.5)
}

// Validate checks req without executing it and reports the pattern it
// would reuse. Invalid requests yield a report with Valid false, not an error.
func (s *System) Validate(ctx context.Context, req PlanRequest) (ValidationReport, error) {
	if s.closed.Load() {
		return ValidationReport{}, ErrClosed
	}
	ctx, span := tracer.Start(ctx, "goap.System.Validate")
	defer span.End()

	report := ValidationReport{
		EstimatedTokens: EstimateTokens(req.Text),
		SchemaType:      cache.DetectSchemaType(req.Text),
	}
	budget, err := s.check(req)
	if err != nil {
		report.Issues = append(report.Issues, err.Error())
		return report, nil
	}
	stages, err := stagesFor(req)
	if err != nil {
		report.Issues = append(report.Issues, err.Error())
		return report, nil
	}
	report.Valid = true
	report.TokenBudget = budget
	if report.EstimatedTokens > budget {
		report.Issues = append(report.Issues,
			fmt.Sprintf("estimated %d tokens exceeds the budget of %d", report.EstimatedTokens, budget))
	}
	if err := s.reachable(ctx, budget, req.Text, report.SchemaType, stages); err != nil {
		report.Valid = false
		report.Issues = append(report.Issues, err.Error())
	}

	if !s.cfg.Cache.Enabled {
		return report, nil
	}
	match, err := s.patterns.FindSimilar(ctx, req.Text, 0)
	switch {
	case err == nil:
		report.PatternMatch = &PatternMatch{
			ID:              match.Pattern.ID,
			Confidence:      match.Pattern.Confidence,
			Similarity:      match.Similarity,
			UsageCount:      match.Pattern.UsageCount,
			EstimatedTokens: uint32(match.Pattern.AvgTokens),
		}
	case errors.Is(err, cache.ErrPatternNotFound):
	default:
		return report, err
	}
	return report, nil
}
