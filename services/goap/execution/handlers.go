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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/cache"
	"github.com/AleutianAI/AleutianGOAP/services/goap/llm"
)

// MaxRequestBytes is the longest request PreValidateRequest accepts.
const MaxRequestBytes = 32 << 10

// HandlerDeps are the collaborators the default handlers call.
type HandlerDeps struct {
	// Schemas serves FetchSchema. Required when plans fetch schemas.
	Schemas *cache.SchemaCache

	// Patterns serves CheckPatternCache and pattern samples. Optional.
	Patterns *cache.PatternCache

	// Generator produces responses for the three generate actions and
	// FixValidationErrors.
	Generator llm.Generator

	// Templates backs GenerateFromTemplate. Defaults to Generator.
	Templates llm.Generator

	Logger *slog.Logger
}

type defaultHandlers struct {
	deps HandlerDeps
}

// NewDefaultHandlers returns a registry with a handler for every action
// that has a side effect. LearnSuccessPattern and UpdateMetrics stay pure
// transitions; the caller does both once the goal is known to hold.
func NewDefaultHandlers(deps HandlerDeps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Templates == nil {
		deps.Templates = deps.Generator
	}
	h := &defaultHandlers{deps: deps}

	r := NewRegistry()
	r.Register(actions.KindDetectSchemaType, HandlerFunc(h.detectSchemaType))
	r.Register(actions.KindFetchSchema, HandlerFunc(h.fetchSchema))
	r.Register(actions.KindCheckPatternCache, HandlerFunc(h.checkPatternCache))
	r.Register(actions.KindCompressRequest, HandlerFunc(h.compressRequest))
	r.Register(actions.KindPreValidateRequest, HandlerFunc(h.preValidateRequest))
	r.Register(actions.KindGenerateResponse, HandlerFunc(h.generate(llm.ModeSchema)))
	r.Register(actions.KindGenerateFromTemplate, HandlerFunc(h.generate(llm.ModeTemplate)))
	r.Register(actions.KindGenerateFromPattern, HandlerFunc(h.generate(llm.ModePattern)))
	r.Register(actions.KindPostValidateResponse, HandlerFunc(h.postValidate))
	r.Register(actions.KindFixValidationErrors, HandlerFunc(h.fixValidationErrors))
	r.Register(actions.KindRequestClarification, HandlerFunc(h.requestClarification))
	return r
}

func (h *defaultHandlers) detectSchemaType(_ context.Context, call Call) error {
	if _, ok := call.Board.Get(KeySchemaType); ok {
		return nil
	}
	call.Board.Set(KeySchemaType, cache.DetectSchemaType(call.State.Request()))
	return nil
}

func (h *defaultHandlers) fetchSchema(ctx context.Context, call Call) error {
	if h.deps.Schemas == nil {
		return fmt.Errorf("fetch schema: %w", cache.ErrSchemaNotFound)
	}
	schemaType := call.Action.Type().Target
	if schemaType == "" {
		schemaType = call.Board.Value(KeySchemaType)
	}
	s, err := h.deps.Schemas.GetOrFetch(ctx, schemaType)
	if err != nil {
		return fmt.Errorf("fetch schema %s: %w", schemaType, err)
	}
	call.Board.Set(KeySchema, s.Body)
	return nil
}

func (h *defaultHandlers) checkPatternCache(ctx context.Context, call Call) error {
	if h.deps.Patterns == nil {
		return nil
	}
	if _, ok := call.Board.Get(KeyPatternID); ok {
		return nil
	}
	m, err := h.deps.Patterns.FindSimilar(ctx, call.State.Request(), 0)
	if errors.Is(err, cache.ErrPatternNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	call.Board.Set(KeyPatternID, m.Pattern.ID)
	call.Board.Set(KeyPatternSample, m.Pattern.Sample)
	return nil
}

func (h *defaultHandlers) compressRequest(_ context.Context, call Call) error {
	call.Board.Set(KeyCompressedRequest, strings.Join(strings.Fields(call.State.Request()), " "))
	return nil
}

func (h *defaultHandlers) preValidateRequest(_ context.Context, call Call) error {
	req := call.State.Request()
	switch {
	case strings.TrimSpace(req) == "":
		return errors.New("request is blank")
	case len(req) > MaxRequestBytes:
		return fmt.Errorf("request is %d bytes, limit %d", len(req), MaxRequestBytes)
	}
	return nil
}

func (h *defaultHandlers) generate(mode llm.Mode) func(context.Context, Call) error {
	return func(ctx context.Context, call Call) error {
		gen := h.deps.Generator
		if mode == llm.ModeTemplate {
			gen = h.deps.Templates
		}
		if gen == nil {
			return fmt.Errorf("%s: %w", call.Action, llm.ErrNotConfigured)
		}

		req := h.request(call)
		req.Mode = mode
		if mode == llm.ModePattern {
			req.PatternSample = h.patternSample(call)
		}

		out, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = llm.StripFences(out)
		if out == "" {
			return llm.ErrEmptyResponse
		}
		call.Board.Set(KeyResponse, out)
		call.Board.Set(KeyGenerationStrategy, string(mode))
		call.Board.Delete(KeyValidationIssues)
		return nil
	}
}

func (h *defaultHandlers) postValidate(_ context.Context, call Call) error {
	issues := ValidateResponse(call.Board.Value(KeySchemaType), call.Board.Value(KeyResponse))
	if len(issues) == 0 {
		call.Board.Delete(KeyValidationIssues)
		return nil
	}
	call.Board.Set(KeyValidationIssues, strings.Join(issues, "\n"))
	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(issues, "; "))
}

func (h *defaultHandlers) fixValidationErrors(ctx context.Context, call Call) error {
	schemaType := call.Board.Value(KeySchemaType)
	previous := call.Board.Value(KeyResponse)
	issues := ValidateResponse(schemaType, previous)
	if len(issues) == 0 {
		return nil
	}
	if h.deps.Generator == nil {
		return fmt.Errorf("%s: %w", call.Action, llm.ErrNotConfigured)
	}

	req := h.request(call)
	req.Mode = llm.ModeRepair
	req.Previous = previous
	req.Issues = issues
	out, err := h.deps.Generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	out = llm.StripFences(out)
	if remaining := ValidateResponse(schemaType, out); len(remaining) > 0 {
		call.Board.Set(KeyValidationIssues, strings.Join(remaining, "\n"))
		return fmt.Errorf("%w after repair: %s", ErrValidationFailed, strings.Join(remaining, "; "))
	}
	call.Board.Set(KeyResponse, out)
	call.Board.Delete(KeyValidationIssues)
	h.deps.Logger.InfoContext(ctx, "response repaired",
		slog.String("schema_type", schemaType),
		slog.Int("issues", len(issues)),
	)
	return nil
}

func (h *defaultHandlers) requestClarification(_ context.Context, call Call) error {
	schemaType := call.Board.Value(KeySchemaType)
	if schemaType == "" {
		schemaType = cache.DetectSchemaType(call.State.Request())
	}
	call.Board.Set(KeyClarification, fmt.Sprintf(
		"The request could not be answered as a %s configuration. Please describe the resources, names and settings you need.",
		schemaType))
	return nil
}

func (h *defaultHandlers) request(call Call) llm.Request {
	text := call.Board.Value(KeyCompressedRequest)
	if text == "" {
		text = call.State.Request()
	}
	schemaType := call.Board.Value(KeySchemaType)
	if schemaType == "" {
		schemaType = cache.DetectSchemaType(call.State.Request())
	}
	return llm.Request{
		Text:       text,
		SchemaType: schemaType,
		Schema:     call.Board.Value(KeySchema),
		MaxTokens:  int(call.State.TokensRemaining()),
	}
}

func (h *defaultHandlers) patternSample(call Call) string {
	if s := call.Board.Value(KeyPatternSample); s != "" {
		return s
	}
	if h.deps.Patterns == nil {
		return ""
	}
	p, err := h.deps.Patterns.Get(call.Action.Type().Target)
	if err != nil {
		return ""
	}
	return p.Sample
}
