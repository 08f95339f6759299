// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package actions

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// Kind identifies what an action does.
type Kind int

const (
	KindUnknown Kind = iota
	KindDetectSchemaType
	KindFetchSchema
	KindCheckPatternCache
	KindCompressRequest
	KindPreValidateRequest
	KindGenerateResponse
	KindGenerateFromPattern
	KindGenerateFromTemplate
	KindPostValidateResponse
	KindFixValidationErrors
	KindLearnSuccessPattern
	KindUpdateMetrics
	KindRequestClarification
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindDetectSchemaType:     "detect_schema_type",
	KindFetchSchema:          "fetch_schema",
	KindCheckPatternCache:    "check_pattern_cache",
	KindCompressRequest:      "compress_request",
	KindPreValidateRequest:   "pre_validate_request",
	KindGenerateResponse:     "generate_response",
	KindGenerateFromPattern:  "generate_from_pattern",
	KindGenerateFromTemplate: "generate_from_template",
	KindPostValidateResponse: "post_validate_response",
	KindFixValidationErrors:  "fix_validation_errors",
	KindLearnSuccessPattern:  "learn_success_pattern",
	KindUpdateMetrics:        "update_metrics",
	KindRequestClarification: "request_clarification",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "action(" + strconv.Itoa(int(k)) + ")"
}

// Terminal reports whether actions of this kind produce the answer.
func (k Kind) Terminal() bool {
	switch k {
	case KindGenerateResponse, KindGenerateFromPattern, KindGenerateFromTemplate:
		return true
	default:
		return false
	}
}

// ParseKind resolves a snake_case kind name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown action kind %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Type is the identity of an action.
//
// Kind selects the behavior and Target carries the one piece of data some
// kinds need: the schema for FetchSchema and the pattern id for
// GenerateFromPattern. Type is comparable.
type Type struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
}

// Of returns the Type for a kind without a target.
func Of(k Kind) Type { return Type{Kind: k} }

// FetchSchema returns the Type for fetching the named schema.
func FetchSchema(schema string) Type { return Type{Kind: KindFetchSchema, Target: schema} }

// GenerateFromPattern returns the Type for generating from the given pattern.
func GenerateFromPattern(patternID string) Type {
	return Type{Kind: KindGenerateFromPattern, Target: patternID}
}

// String renders the type as kind or kind(target).
func (t Type) String() string {
	if t.Target == "" {
		return t.Kind.String()
	}
	return t.Kind.String() + "(" + t.Target + ")"
}

const (
	// DefaultCost is the token cost of an action built without WithCost.
	DefaultCost uint32 = 100

	// DefaultDuration is the duration estimate of an action built without WithDuration.
	DefaultDuration = 100 * time.Millisecond

	// DefaultConfidence is the confidence of an action built without WithConfidence.
	DefaultConfidence uint8 = 100
)

// Action is an immutable precondition/effect pair with a cost estimate.
//
// Description:
//
//	An action may run when every precondition holds. Running it makes every
//	effect hold and consumes Cost tokens. Builder methods return modified
//	copies so an Action can be shared freely between catalogs.
//
// Thread Safety: Safe for concurrent use (immutable).
type Action struct {
	typ           Type
	preconditions []world.Property
	effects       []world.Property
	cost          uint32
	confidence    uint8
	duration      time.Duration
}

// New creates an action of the given type with default cost, confidence and duration.
func New(t Type) Action {
	return Action{
		typ:        t,
		cost:       DefaultCost,
		confidence: DefaultConfidence,
		duration:   DefaultDuration,
	}
}

// Requires returns a copy with the given preconditions added.
func (a Action) Requires(props ...world.Property) Action {
	a.preconditions = mergeProps(a.preconditions, props)
	return a
}

// Produces returns a copy with the given effects added.
func (a Action) Produces(props ...world.Property) Action {
	a.effects = mergeProps(a.effects, props)
	return a
}

// WithCost returns a copy with the given token cost.
func (a Action) WithCost(cost uint32) Action {
	a.cost = cost
	return a
}

// WithConfidence returns a copy with the given confidence, clamped to 100.
func (a Action) WithConfidence(confidence uint8) Action {
	a.confidence = min(confidence, 100)
	return a
}

// WithDuration returns a copy with the given duration estimate.
func (a Action) WithDuration(d time.Duration) Action {
	if d < 0 {
		d = 0
	}
	a.duration = d
	return a
}

// Type returns the action's identity.
func (a Action) Type() Type { return a.typ }

// Kind returns the action's kind.
func (a Action) Kind() Kind { return a.typ.Kind }

// Preconditions returns a copy of the preconditions.
func (a Action) Preconditions() []world.Property { return slices.Clone(a.preconditions) }

// Effects returns a copy of the effects.
func (a Action) Effects() []world.Property { return slices.Clone(a.effects) }

// Cost returns the static token cost.
func (a Action) Cost() uint32 { return a.cost }

// Confidence returns the 0-100 likelihood the action succeeds.
func (a Action) Confidence() uint8 { return a.confidence }

// Duration returns the duration estimate.
func (a Action) Duration() time.Duration { return a.duration }

// CanExecute reports whether every precondition holds in state.
func (a Action) CanExecute(state *world.State) bool {
	return state.Satisfies(a.preconditions)
}

// EstimateCost puts token cost and duration on one scale: cost + duration_ms/100.
func (a Action) EstimateCost() uint32 {
	return a.cost + uint32(a.duration.Milliseconds()/100)
}

// Achieves reports whether p is one of the action's effects.
func (a Action) Achieves(p world.Property) bool {
	return slices.Contains(a.effects, p)
}

// Apply makes every effect hold in state. It does not touch the budget.
func (a Action) Apply(state *world.State) {
	for _, p := range a.effects {
		state.Set(p, true)
	}
}

// String returns the action type name.
func (a Action) String() string { return a.typ.String() }

// mergeProps appends props to dst skipping duplicates, keeping canonical order.
func mergeProps(dst, props []world.Property) []world.Property {
	out := slices.Clone(dst)
	for _, p := range props {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, world.Compare)
	return out
}
