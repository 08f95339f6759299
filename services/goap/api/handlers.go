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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGOAP/services/goap"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
)

// Handlers serves the GOAP HTTP API.
type Handlers struct {
	sys    *goap.System
	logger *slog.Logger
}

// NewHandlers creates handlers backed by sys. A nil logger uses slog.Default.
func NewHandlers(sys *goap.System, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{sys: sys, logger: logger}
}

// HandleProcess handles POST /v1/goap/process.
//
// Description:
//
//	Plans and executes one request, reusing a cached pattern when one
//	matches.
//
// Request Body:
//
//	ProcessRequest
//
// Response:
//
//	200 OK: ProcessResponse
//	400 Bad Request: Malformed body, request or goal
//	422 Unprocessable Entity: ProcessResponse for a run that aborted
//	500 Internal Server Error: Unexpected failure
func (h *Handlers) HandleProcess(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleProcess")

	req, ok := h.bind(c, logger)
	if !ok {
		return
	}
	result, err := h.sys.Process(c.Request.Context(), req)
	if err != nil && result == nil {
		h.fail(c, logger, err)
		return
	}
	resp := ProcessResponse{ExecutionResult: result}
	if err != nil {
		resp.Category = goap.Classify(err)
		logger.Warn("Request aborted", "error", err, "category", resp.Category)
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleValidate handles POST /v1/goap/validate.
//
// Response:
//
//	200 OK: goap.ValidationReport, including for invalid requests
//	400 Bad Request: Malformed body
func (h *Handlers) HandleValidate(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleValidate")

	req, ok := h.bind(c, logger)
	if !ok {
		return
	}
	report, err := h.sys.Validate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleListPatterns handles GET /v1/goap/patterns?min_confidence=N.
func (h *Handlers) HandleListPatterns(c *gin.Context) {
	minConfidence := 0.0
	if raw := c.Query("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 100 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "min_confidence must be a number between 0 and 100",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		minConfidence = v
	}
	patterns := h.sys.ListPatterns(minConfidence)
	c.JSON(http.StatusOK, PatternListResponse{Patterns: patterns, Count: len(patterns)})
}

// HandleGetPattern handles GET /v1/goap/patterns/:id.
func (h *Handlers) HandleGetPattern(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleGetPattern")
	p, err := h.sys.GetPattern(c.Param("id"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// HandleDeletePattern handles DELETE /v1/goap/patterns/:id.
func (h *Handlers) HandleDeletePattern(c *gin.Context) {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", "HandleDeletePattern")
	id := c.Param("id")
	if err := h.sys.DeletePattern(c.Request.Context(), id); err != nil {
		h.fail(c, logger, err)
		return
	}
	logger.Info("Pattern deleted", "pattern_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

// HandleMetrics handles GET /v1/goap/metrics/snapshot.
func (h *Handlers) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.sys.Metrics())
}

// HandleHealth handles GET /v1/goap/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Patterns: h.sys.PatternStats().Size,
	})
}

func (h *Handlers) bind(c *gin.Context, logger *slog.Logger) (goap.PlanRequest, bool) {
	var body ProcessRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:    "Invalid request body",
			Code:     "INVALID_REQUEST",
			Category: goap.CategoryValidation,
		})
		return goap.PlanRequest{}, false
	}
	req := body.planRequest()
	if body.Goal != "" {
		stages, err := goals.Lookup(body.Goal)
		if err != nil {
			logger.Warn("Unknown goal", "goal", body.Goal)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:    err.Error(),
				Code:     "INVALID_GOAL",
				Category: goap.CategoryValidation,
			})
			return goap.PlanRequest{}, false
		}
		req.Stages = stages
	}
	return req, true
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	category := goap.Classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "category", category)
	} else {
		logger.Warn("Request rejected", "error", err, "category", category)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Category: category})
}

// statusFor maps an engine error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, cache.ErrPatternNotFound):
		return http.StatusNotFound, "PATTERN_NOT_FOUND"
	case errors.Is(err, goap.ErrClosed):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	case errors.Is(err, goals.ErrInvalidGoal):
		return http.StatusBadRequest, "INVALID_GOAL"
	case errors.Is(err, goap.ErrRequestTooLong):
		return http.StatusBadRequest, "REQUEST_TOO_LONG"
	case errors.Is(err, goap.ErrBudgetBelowMinimum):
		return http.StatusBadRequest, "BUDGET_TOO_SMALL"
	case goap.Classify(err) == goap.CategoryValidation:
		return http.StatusBadRequest, "INVALID_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
