// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
)

const (
	// MaxConfidence is the top of the confidence scale.
	MaxConfidence = 100.0

	// ReuseSuccessRate is the success rate a pattern needs to count as Valid.
	ReuseSuccessRate = 0.8

	minSuccessRate = 1e-6
	sampleLimit    = 512
)

// SuccessPattern is a learned mapping from a kind of request to an action
// sequence that previously satisfied it.
type SuccessPattern struct {
	ID             string         `json:"id"`
	Signature      Signature      `json:"signature"`
	Sample         string         `json:"sample,omitempty"`
	SchemaType     string         `json:"schema_type,omitempty"`
	ActionSequence []actions.Type `json:"action_sequence"`
	Confidence     float64        `json:"confidence"`
	SuccessRate    float64        `json:"success_rate"`
	AvgTokens      float64        `json:"avg_tokens"`
	AvgDuration    time.Duration  `json:"avg_duration"`
	UsageCount     uint32         `json:"usage_count"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUsed       time.Time      `json:"last_used"`
}

// Outcome is the result of one use of a pattern.
type Outcome struct {
	Success    bool
	TokensUsed uint32
	Duration   time.Duration
}

// Valid reports whether the pattern is trustworthy enough to reuse.
func (p *SuccessPattern) Valid(threshold float64) bool {
	return p.Confidence >= threshold && p.SuccessRate >= ReuseSuccessRate
}

// DecayedConfidence is the confidence after exponential decay since LastUsed.
// A non-positive rate or an unset LastUsed disables decay.
func (p *SuccessPattern) DecayedConfidence(now time.Time, ratePerDay float64) float64 {
	if ratePerDay <= 0 || p.LastUsed.IsZero() || !now.After(p.LastUsed) {
		return p.Confidence
	}
	days := now.Sub(p.LastUsed).Hours() / 24
	return p.Confidence * math.Pow(1-ratePerDay, days)
}

// Clone returns a deep copy.
func (p *SuccessPattern) Clone() *SuccessPattern {
	c := *p
	c.Signature = slices.Clone(p.Signature)
	c.ActionSequence = slices.Clone(p.ActionSequence)
	return &c
}

// check enforces the invariants a stored or inserted pattern must hold.
func (p *SuccessPattern) check() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidPattern)
	case len(p.ActionSequence) == 0:
		return fmt.Errorf("%w: %s has no actions", ErrInvalidPattern, p.ID)
	case p.Confidence < 0 || p.Confidence > MaxConfidence || math.IsNaN(p.Confidence):
		return fmt.Errorf("%w: %s confidence %.2f out of range", ErrInvalidPattern, p.ID, p.Confidence)
	case p.UsageCount > 0 && p.SuccessRate <= 0:
		return fmt.Errorf("%w: %s used %d times with zero success rate", ErrInvalidPattern, p.ID, p.UsageCount)
	}
	return nil
}

// confidencePolicy controls how outcomes move a pattern's numbers.
type confidencePolicy struct {
	successStep  float64
	failureStep  float64
	learningRate float64
}

// apply folds one outcome into p.
func (cp confidencePolicy) apply(p *SuccessPattern, o Outcome, now time.Time) {
	if o.Success {
		p.Confidence = math.Min(MaxConfidence, p.Confidence+cp.successStep)
	} else {
		p.Confidence = math.Max(0, p.Confidence-cp.failureStep)
	}

	p.UsageCount++
	target := 0.0
	if o.Success {
		target = 1
	}
	if p.UsageCount == 1 {
		p.SuccessRate = target
	} else {
		p.SuccessRate = p.SuccessRate*(1-cp.learningRate) + target*cp.learningRate
	}
	if p.SuccessRate < minSuccessRate {
		p.SuccessRate = minSuccessRate
	}

	n := float64(p.UsageCount)
	p.AvgTokens += (float64(o.TokensUsed) - p.AvgTokens) / n
	p.AvgDuration += time.Duration((float64(o.Duration) - float64(p.AvgDuration)) / n)
	p.LastUsed = now
}

func truncateSample(text string) string {
	s := Normalize(text)
	if len(s) > sampleLimit {
		s = s[:sampleLimit]
	}
	return s
}
