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
	"maps"
	"sync"
)

// Well-known blackboard keys.
const (
	KeySchemaType         = "schema_type"
	KeySchema             = "schema"
	KeyRequest            = "request"
	KeyCompressedRequest  = "compressed_request"
	KeyResponse           = "response"
	KeyValidationIssues   = "validation_issues"
	KeyPatternID          = "pattern_id"
	KeyPatternSample      = "pattern_sample"
	KeyClarification      = "clarification"
	KeyGenerationStrategy = "generation_strategy"
)

// Blackboard holds the artifacts actions hand to each other within one
// request: the detected schema type, the fetched schema, the response.
// World state says which facts hold; the blackboard holds their payloads.
//
// Thread Safety: Safe for concurrent use.
type Blackboard struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{values: make(map[string]string)}
}

// Set stores value under key.
func (b *Blackboard) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Get returns the value under key.
func (b *Blackboard) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Value returns the value under key, or "" if absent.
func (b *Blackboard) Value(key string) string {
	v, _ := b.Get(key)
	return v
}

// Delete removes key.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}

// Snapshot returns a copy of every entry.
func (b *Blackboard) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.values)
}
