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
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultCriticalThreshold is the token count at or below which the budget
// is considered critical.
const DefaultCriticalThreshold uint32 = 100

// ErrBudgetExceeded indicates a consumption that would drive the budget below zero.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// State is the world model for a single request.
//
// Description:
//
//	State maps properties to a "holds" flag and tracks the token budget.
//	Only properties set to true hold; setting a property to false is the
//	same as never having set it. The budget can only shrink through
//	Consume, which rejects any consumption larger than what remains.
//
// Thread Safety: Not safe for concurrent use. Each request owns its State.
type State struct {
	props     map[Property]bool
	request   string
	budget    uint32
	used      uint32
	critical  uint32
	step      int
	createdAt time.Time
}

// New creates a State with the given budget and the default critical threshold.
func New(tokenBudget uint32, request string) *State {
	return NewWithThreshold(tokenBudget, request, DefaultCriticalThreshold)
}

// NewWithThreshold creates a State with an explicit critical threshold.
func NewWithThreshold(tokenBudget uint32, request string, critical uint32) *State {
	return &State{
		props:     make(map[Property]bool),
		request:   request,
		budget:    tokenBudget,
		critical:  critical,
		createdAt: time.Now(),
	}
}

// Request returns the original request text.
func (s *State) Request() string { return s.request }

// Has reports whether p holds.
func (s *State) Has(p Property) bool {
	return s.props[p]
}

// Set records whether p holds.
func (s *State) Set(p Property, holds bool) {
	if holds {
		s.props[p] = true
		return
	}
	delete(s.props, p)
}

// Properties returns the held properties in canonical order.
func (s *State) Properties() []Property {
	out := make([]Property, 0, len(s.props))
	for p := range s.props {
		out = append(out, p)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Satisfies reports whether every property in required holds.
func (s *State) Satisfies(required []Property) bool {
	for _, p := range required {
		if !s.props[p] {
			return false
		}
	}
	return true
}

// Missing returns the properties in required that do not hold, in input order.
func (s *State) Missing(required []Property) []Property {
	var out []Property
	for _, p := range required {
		if !s.props[p] {
			out = append(out, p)
		}
	}
	return out
}

// TokenBudget returns the budget the request started with.
func (s *State) TokenBudget() uint32 { return s.budget }

// TokensUsed returns the tokens consumed so far.
func (s *State) TokensUsed() uint32 { return s.used }

// TokensRemaining returns the tokens still available.
func (s *State) TokensRemaining() uint32 { return s.budget - s.used }

// CriticalThreshold returns the configured critical threshold.
func (s *State) CriticalThreshold() uint32 { return s.critical }

// TokensAvailable reports whether the remaining budget is above the critical threshold.
// Callers check this before committing an action that consumes tokens.
func (s *State) TokensAvailable() bool {
	return s.TokensRemaining() > s.critical
}

// CanAfford reports whether an action costing cost tokens may run now.
// Free actions always may; cost-bearing ones need TokensAvailable and
// enough remaining budget to cover the cost.
func (s *State) CanAfford(cost uint32) bool {
	if cost == 0 {
		return true
	}
	return s.TokensAvailable() && cost <= s.TokensRemaining()
}

// Consume deducts n tokens from the budget.
//
// Outputs:
//   - error: ErrBudgetExceeded if n exceeds the remaining budget. The state
//     is left unchanged in that case.
func (s *State) Consume(n uint32) error {
	if n > s.TokensRemaining() {
		return fmt.Errorf("%w: need %d, have %d", ErrBudgetExceeded, n, s.TokensRemaining())
	}
	s.used += n
	return nil
}

// RecordBudget replaces the TokenBudgetRemaining fact with the current
// remaining budget and sets TokenBudgetCritical while the budget is at or
// below the critical threshold.
func (s *State) RecordBudget() {
	for p := range s.props {
		if p.Kind == KindTokenBudgetRemaining {
			delete(s.props, p)
		}
	}
	s.props[TokenBudgetRemaining(s.TokensRemaining())] = true
	s.Set(TokenBudgetCritical, !s.TokensAvailable())
}

// Step returns the number of actions applied to this state.
func (s *State) Step() int { return s.step }

// AdvanceStep records that one more action was applied.
func (s *State) AdvanceStep() { s.step++ }

// Elapsed returns the time since the state was created.
func (s *State) Elapsed() time.Duration { return time.Since(s.createdAt) }

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	props := make(map[Property]bool, len(s.props))
	for p, v := range s.props {
		props[p] = v
	}
	return &State{
		props:     props,
		request:   s.request,
		budget:    s.budget,
		used:      s.used,
		critical:  s.critical,
		step:      s.step,
		createdAt: s.createdAt,
	}
}

// Key returns a canonical key over the held properties only. States that
// differ only in budget share a Key.
func (s *State) Key() string {
	var b strings.Builder
	for _, p := range s.Properties() {
		b.WriteString(p.String())
		b.WriteByte(';')
	}
	return b.String()
}

// Fingerprint returns a canonical key over the held properties and the
// remaining budget. It does not depend on the order properties were set in.
func (s *State) Fingerprint() string {
	return s.Key() + "tokens=" + strconv.FormatUint(uint64(s.TokensRemaining()), 10)
}

// Difference returns the properties that hold in other but not in s.
func (s *State) Difference(other *State) []Property {
	var out []Property
	for _, p := range other.Properties() {
		if !s.props[p] {
			out = append(out, p)
		}
	}
	return out
}
