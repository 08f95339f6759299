// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// BreakerClosed passes calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of trial calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is consecutive failures before opening (default: 3).
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// SuccessThreshold is trial successes needed to close again (default: 2).
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`

	// OpenDuration is the cool-down before probing (default: 30s).
	OpenDuration time.Duration `json:"open_duration" yaml:"open_duration"`

	// HalfOpenMax is the number of concurrent trial calls (default: 1).
	HalfOpenMax int `json:"half_open_max" yaml:"half_open_max"`
}

// DefaultBreakerConfig returns the defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenDuration:     30 * time.Second,
		HalfOpenMax:      1,
	}
}

// BreakerStats is a snapshot of breaker activity.
type BreakerStats struct {
	State           string    `json:"state"`
	Calls           int64     `json:"calls"`
	Failures        int64     `json:"failures"`
	Rejections      int64     `json:"rejections"`
	CurrentFailures int       `json:"current_failures"`
	LastStateChange time.Time `json:"last_state_change"`
}

// Breaker stops calling a failing generator for a cool-down period.
//
// Thread Safety: Safe for concurrent use.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           BreakerState
	failures        int
	successes       int
	halfOpenActive  int
	lastStateChange time.Time

	calls      int64
	failTotal  int64
	rejections int64
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = def.OpenDuration
	}
	if config.HalfOpenMax <= 0 {
		config.HalfOpenMax = def.HalfOpenMax
	}
	b := &Breaker{config: config, now: time.Now}
	b.lastStateChange = b.now()
	return b
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. When it returns true the caller
// must call done with the call's error. context.Canceled is not counted
// either way.
func (b *Breaker) Allow() (bool, func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	switch b.state {
	case BreakerClosed:
		return true, b.record
	case BreakerOpen:
		if b.now().Sub(b.lastStateChange) < b.config.OpenDuration {
			b.rejections++
			return false, nil
		}
		b.transitionTo(BreakerHalfOpen)
	}

	if b.halfOpenActive >= b.config.HalfOpenMax {
		b.rejections++
		return false, nil
	}
	b.halfOpenActive++
	return true, func(err error) {
		b.mu.Lock()
		b.halfOpenActive--
		b.mu.Unlock()
		b.record(err)
	}
}

func (b *Breaker) record(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state == BreakerHalfOpen {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.transitionTo(BreakerClosed)
			}
		}
		return
	}

	b.failTotal++
	b.failures++
	b.successes = 0
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transitionTo(BreakerOpen)
	}
}

// transitionTo changes state. Caller holds mu.
func (b *Breaker) transitionTo(s BreakerState) {
	b.state = s
	b.lastStateChange = b.now()
	b.failures = 0
	b.successes = 0
}

// Stats returns a snapshot.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:           b.state.String(),
		Calls:           b.calls,
		Failures:        b.failTotal,
		Rejections:      b.rejections,
		CurrentFailures: b.failures,
		LastStateChange: b.lastStateChange,
	}
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(BreakerClosed)
	b.halfOpenActive = 0
}
