// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/execution"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// ProcessRequest is the body of POST /v1/goap/process and /v1/goap/validate.
type ProcessRequest struct {
	Text              string `json:"text" binding:"required"`
	TokenBudget       uint32 `json:"token_budget,omitempty"`
	MaxReplans        *int   `json:"max_replans,omitempty"`
	DisableReplanning bool   `json:"disable_replanning,omitempty"`

	// Goal names a preset goal: efficiency_focused (default), pattern_reuse,
	// quality_focused, or the two-stage staged_quality.
	Goal string `json:"goal,omitempty"`
}

// ProcessResponse wraps an execution result with its error category.
type ProcessResponse struct {
	*execution.ExecutionResult
	Category string `json:"category,omitempty"`
}

// PatternListResponse is returned by GET /v1/goap/patterns.
type PatternListResponse struct {
	Patterns []*cache.SuccessPattern `json:"patterns"`
	Count    int                     `json:"count"`
}

// HealthResponse is returned by GET /v1/goap/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Patterns int    `json:"patterns"`
}

// ErrorResponse is the body of every non-2xx response without a result.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Category string `json:"category,omitempty"`
}

func (r ProcessRequest) planRequest() goap.PlanRequest {
	return goap.PlanRequest{
		Text:              r.Text,
		TokenBudget:       r.TokenBudget,
		MaxReplans:        r.MaxReplans,
		DisableReplanning: r.DisableReplanning,
	}
}
