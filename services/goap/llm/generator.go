// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the generation collaborator used by terminal actions.
//
// The engine only knows the Generator interface. Concrete generators call an
// OpenAI-compatible endpoint or render built-in templates, and Guarded wraps
// either one with rate limiting and a circuit breaker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a response is produced.
type Mode string

const (
	ModeSchema   Mode = "schema"
	ModeTemplate Mode = "template"
	ModePattern  Mode = "pattern"
	ModeRepair   Mode = "repair"
)

var (
	// ErrEmptyResponse indicates the generator returned no content.
	ErrEmptyResponse = errors.New("generator returned empty response")

	// ErrCircuitOpen indicates the circuit breaker rejected the call.
	ErrCircuitOpen = errors.New("generator circuit open")

	// ErrNotConfigured indicates a generator is missing required settings.
	ErrNotConfigured = errors.New("generator not configured")
)

// Request is everything a generator may use to produce a response.
type Request struct {
	Mode       Mode
	Text       string
	SchemaType string
	Schema     string

	// PatternSample is the normalised text of the request a reused pattern learned from.
	PatternSample string

	// Previous and Issues drive ModeRepair.
	Previous string
	Issues   []string

	MaxTokens int
}

// Generator produces a response for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// EstimateTokens is the planning-time token estimate for text: 1.5 per byte.
func EstimateTokens(text string) uint32 {
	return uint32(float64(len(text)) * 1.5)
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = ""
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// BuildPrompt renders the user prompt for req.
func BuildPrompt(req Request) string {
	var b strings.Builder
	switch req.Mode {
	case ModeRepair:
		b.WriteString("The configuration below failed validation. Return a corrected version only.\n\n")
		if len(req.Issues) > 0 {
			b.WriteString("Problems:\n")
			for _, issue := range req.Issues {
				fmt.Fprintf(&b, "- %s\n", issue)
			}
			b.WriteString("\n")
		}
		b.WriteString("Configuration:\n")
		b.WriteString(req.Previous)
		b.WriteString("\n\nOriginal request:\n")
		b.WriteString(req.Text)
		return b.String()
	case ModePattern:
		b.WriteString("A closely related request was answered successfully before:\n")
		b.WriteString(req.PatternSample)
		b.WriteString("\n\nAnswer the new request the same way.\n\n")
	}

	if req.SchemaType != "" {
		fmt.Fprintf(&b, "Produce a %s configuration.\n", req.SchemaType)
	}
	if req.Schema != "" {
		b.WriteString("It must follow this structure:\n")
		b.WriteString(req.Schema)
		b.WriteString("\n")
	}
	b.WriteString("Return only the configuration, without commentary.\n\nRequest:\n")
	b.WriteString(req.Text)
	return b.String()
}
