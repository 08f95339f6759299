// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package world

import (
	"cmp"
	"fmt"
	"strconv"
)

// Kind identifies the kind of fact a Property describes.
type Kind int

const (
	// KindUnknown is the zero value and never held by a valid property.
	KindUnknown Kind = iota

	// Boolean facts.
	KindRequestValidated
	KindRequestPreValidated
	KindRequestCompressed
	KindSchemaTypeDetected
	KindPatternCacheChecked
	KindResponseGenerated
	KindResponseValidated
	KindResponseFixed
	KindPatternLearned
	KindMetricsUpdated
	KindClarificationRequested
	KindTokenBudgetCritical

	// Parameterized facts.
	KindSchemaAvailable
	KindPatternAvailable
	KindPatternConfidence
	KindTokenBudgetRemaining
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindRequestValidated:       "request_validated",
	KindRequestPreValidated:    "request_pre_validated",
	KindRequestCompressed:      "request_compressed",
	KindSchemaTypeDetected:     "schema_type_detected",
	KindPatternCacheChecked:    "pattern_cache_checked",
	KindResponseGenerated:      "response_generated",
	KindResponseValidated:      "response_validated",
	KindResponseFixed:          "response_fixed",
	KindPatternLearned:         "pattern_learned",
	KindMetricsUpdated:         "metrics_updated",
	KindClarificationRequested: "clarification_requested",
	KindTokenBudgetCritical:    "token_budget_critical",
	KindSchemaAvailable:        "schema_available",
	KindPatternAvailable:       "pattern_available",
	KindPatternConfidence:      "pattern_confidence",
	KindTokenBudgetRemaining:   "token_budget_remaining",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Parameterized reports whether properties of this kind carry parameters.
func (k Kind) Parameterized() bool {
	return k >= KindSchemaAvailable
}

// ParseKind resolves a snake_case kind name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown property kind %q", s)
}

// Property is a single fact about a request.
//
// Description:
//
//	Property is a tagged variant: Kind selects the fact and Param/Value
//	carry the data parameterized kinds need. Boolean kinds leave both
//	empty. Two properties are the same fact only when all three fields
//	match, so SchemaAvailable("a") and SchemaAvailable("b") are distinct.
//
//	Property is comparable and is used directly as a map key.
type Property struct {
	Kind  Kind   `json:"kind"`
	Param string `json:"param,omitempty"`
	Value uint32 `json:"value,omitempty"`
}

// Flag returns the boolean property of the given kind.
func Flag(k Kind) Property {
	return Property{Kind: k}
}

// SchemaAvailable is the fact that the schema with the given id was loaded.
func SchemaAvailable(schemaID string) Property {
	return Property{Kind: KindSchemaAvailable, Param: schemaID}
}

// PatternAvailable is the fact that the cached pattern with the given id matched.
func PatternAvailable(patternID string) Property {
	return Property{Kind: KindPatternAvailable, Param: patternID}
}

// PatternConfidence is the fact that a pattern matched with the given score.
// Scores above 100 are clamped.
func PatternConfidence(patternID string, score uint32) Property {
	if score > 100 {
		score = 100
	}
	return Property{Kind: KindPatternConfidence, Param: patternID, Value: score}
}

// TokenBudgetRemaining is the fact that exactly n tokens were left when it was recorded.
func TokenBudgetRemaining(n uint32) Property {
	return Property{Kind: KindTokenBudgetRemaining, Value: n}
}

// Convenience values for the boolean facts used by the default catalog.
var (
	RequestValidated       = Flag(KindRequestValidated)
	RequestPreValidated    = Flag(KindRequestPreValidated)
	RequestCompressed      = Flag(KindRequestCompressed)
	SchemaTypeDetected     = Flag(KindSchemaTypeDetected)
	PatternCacheChecked    = Flag(KindPatternCacheChecked)
	ResponseGenerated      = Flag(KindResponseGenerated)
	ResponseValidated      = Flag(KindResponseValidated)
	ResponseFixed          = Flag(KindResponseFixed)
	PatternLearned         = Flag(KindPatternLearned)
	MetricsUpdated         = Flag(KindMetricsUpdated)
	ClarificationRequested = Flag(KindClarificationRequested)
	TokenBudgetCritical    = Flag(KindTokenBudgetCritical)
)

// String renders the property as kind, kind(param) or kind(param,value).
func (p Property) String() string {
	switch p.Kind {
	case KindSchemaAvailable, KindPatternAvailable:
		return p.Kind.String() + "(" + p.Param + ")"
	case KindPatternConfidence:
		return p.Kind.String() + "(" + p.Param + "," + strconv.FormatUint(uint64(p.Value), 10) + ")"
	case KindTokenBudgetRemaining:
		return p.Kind.String() + "(" + strconv.FormatUint(uint64(p.Value), 10) + ")"
	default:
		return p.Kind.String()
	}
}

// Compare orders properties by kind, then param, then value.
func Compare(a, b Property) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Param, b.Param); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
