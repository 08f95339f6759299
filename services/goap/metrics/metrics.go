// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics records GOAP request metrics.
//
// Two views are kept: Prometheus series registered with the default
// registry (served on /metrics), and an in-process Snapshot that the CLI
// and the snapshot endpoint report without a Prometheus server.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "goap"

var (
	// requestsTotal counts processed requests.
	// Labels: outcome (success, aborted, rejected), source (cache, planner, none)
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Requests processed by outcome and plan source",
	}, []string{"outcome", "source"})

	// requestDuration measures end-to-end request time.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "End-to-end request duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source"})

	// planningDuration measures A* search time.
	// Labels: status (found, failed)
	planningDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "duration_seconds",
		Help:      "Planning time in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"status"})

	planLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "plan_length",
		Help:      "Number of actions in found plans",
		Buckets:   prometheus.LinearBuckets(0, 2, 11),
	})

	planExpansions = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "expansions",
		Help:      "Nodes expanded per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// replansTotal counts reactive replans.
	// Labels: reason (failure kind)
	replansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reactive",
		Name:      "replans_total",
		Help:      "Replanning attempts by failure kind",
	}, []string{"reason"})

	tokensUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tokens_used",
		Help:      "Tokens charged per request",
		Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
	}, []string{"source"})

	tokensSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_saved_total",
		Help:      "Tokens saved by reusing cached patterns",
	})

	// patternLookups counts pattern cache lookups.
	// Labels: result (hit, miss)
	patternLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pattern_cache",
		Name:      "lookups_total",
		Help:      "Pattern cache lookups by result",
	}, []string{"result"})

	patternEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pattern_cache",
		Name:      "evictions_total",
		Help:      "Pattern cache evictions by reason",
	}, []string{"reason"})

	patternCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pattern_cache",
		Name:      "patterns",
		Help:      "Patterns currently cached",
	})

	// errorsTotal counts terminal errors.
	// Labels: category (planning, execution, cache, validation, internal)
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Terminal errors by category",
	}, []string{"category"})
)

// Source names where a request's plan came from.
type Source string

const (
	SourceCache   Source = "cache"
	SourcePlanner Source = "planner"
	SourceNone    Source = "none"
)

// Request describes one finished request.
type Request struct {
	Success    bool
	Source     Source
	TokensUsed uint32
	Replans    []string
	Duration   time.Duration

	// ErrorCategory is set when the request failed.
	ErrorCategory string
}

// Snapshot is a point-in-time view of the collector.
type Snapshot struct {
	TotalRequests      uint64        `json:"total_requests"`
	SuccessfulRequests uint64        `json:"successful_requests"`
	FailedRequests     uint64        `json:"failed_requests"`
	RejectedRequests   uint64        `json:"rejected_requests"`
	CacheHits          uint64        `json:"cache_hits"`
	CacheMisses        uint64        `json:"cache_misses"`
	CacheHitRate       float64       `json:"cache_hit_rate"`
	SuccessRate        float64       `json:"success_rate"`
	TotalReplans       uint64        `json:"total_replans"`
	TotalTokensUsed    uint64        `json:"total_tokens_used"`
	TokensSaved        uint64        `json:"tokens_saved"`
	AvgPlannedTokens   float64       `json:"avg_planned_tokens"`
	AvgPlanningTime    time.Duration `json:"avg_planning_time"`
	Plans              uint64        `json:"plans"`
	PlanningFailures   uint64        `json:"planning_failures"`
	PatternCacheSize   int           `json:"pattern_cache_size"`
	Evictions          uint64        `json:"evictions"`

	// Errors counts terminal errors by category.
	Errors map[string]uint64 `json:"errors,omitempty"`
}

// Collector aggregates request metrics and mirrors them to Prometheus.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	mu sync.Mutex
	s  Snapshot

	plannedRequests uint64
	planningTime    time.Duration
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{s: Snapshot{Errors: make(map[string]uint64)}}
}

// RecordPlanning records one search.
func (c *Collector) RecordPlanning(d time.Duration, length, expansions int, err error) {
	status := "found"
	if err != nil {
		status = "failed"
	}
	planningDuration.WithLabelValues(status).Observe(d.Seconds())
	if err == nil {
		planLength.Observe(float64(length))
	}
	planExpansions.Observe(float64(expansions))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Plans++
	if err != nil {
		c.s.PlanningFailures++
	}
	c.planningTime += d
}

// RecordPatternLookup records a pattern cache lookup.
func (c *Collector) RecordPatternLookup(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		patternLookups.WithLabelValues("hit").Inc()
		c.s.CacheHits++
	} else {
		patternLookups.WithLabelValues("miss").Inc()
		c.s.CacheMisses++
	}
}

// RecordEviction records a pattern eviction.
func (c *Collector) RecordEviction(reason string) {
	patternEvictions.WithLabelValues(reason).Inc()
	c.mu.Lock()
	c.s.Evictions++
	c.mu.Unlock()
}

// SetPatternCacheSize records the current number of cached patterns.
func (c *Collector) SetPatternCacheSize(n int) {
	patternCacheSize.Set(float64(n))
	c.mu.Lock()
	c.s.PatternCacheSize = n
	c.mu.Unlock()
}

// RecordRejected records a request refused before planning.
func (c *Collector) RecordRejected(category string) {
	requestsTotal.WithLabelValues("rejected", string(SourceNone)).Inc()
	errorsTotal.WithLabelValues(category).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.TotalRequests++
	c.s.RejectedRequests++
	c.s.Errors[category]++
}

// RecordRequest records a finished request and returns the tokens it saved.
//
// Description:
//
//	Successful planned requests feed a running average of tokens per
//	request. A successful cached request saves the difference between that
//	average and what it actually used, never less than zero.
func (c *Collector) RecordRequest(r Request) uint64 {
	source := r.Source
	if source == "" {
		source = SourceNone
	}
	outcome := "success"
	if !r.Success {
		outcome = "aborted"
	}
	requestsTotal.WithLabelValues(outcome, string(source)).Inc()
	requestDuration.WithLabelValues(string(source)).Observe(r.Duration.Seconds())
	tokensUsed.WithLabelValues(string(source)).Observe(float64(r.TokensUsed))
	for _, reason := range r.Replans {
		replansTotal.WithLabelValues(reason).Inc()
	}
	if r.ErrorCategory != "" {
		errorsTotal.WithLabelValues(r.ErrorCategory).Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.TotalRequests++
	c.s.TotalTokensUsed += uint64(r.TokensUsed)
	c.s.TotalReplans += uint64(len(r.Replans))
	if r.ErrorCategory != "" {
		c.s.Errors[r.ErrorCategory]++
	}
	if !r.Success {
		c.s.FailedRequests++
		return 0
	}
	c.s.SuccessfulRequests++

	var saved uint64
	switch source {
	case SourcePlanner:
		c.plannedRequests++
		c.s.AvgPlannedTokens += (float64(r.TokensUsed) - c.s.AvgPlannedTokens) / float64(c.plannedRequests)
	case SourceCache:
		if diff := c.s.AvgPlannedTokens - float64(r.TokensUsed); diff > 0 {
			saved = uint64(math.Round(diff))
		}
	}
	if saved > 0 {
		c.s.TokensSaved += saved
		tokensSaved.Add(float64(saved))
	}
	return saved
}

// Snapshot returns a copy of the current totals.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.s
	s.Errors = make(map[string]uint64, len(c.s.Errors))
	for k, v := range c.s.Errors {
		s.Errors[k] = v
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	if finished := s.SuccessfulRequests + s.FailedRequests; finished > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(finished)
	}
	if s.Plans > 0 {
		s.AvgPlanningTime = c.planningTime / time.Duration(s.Plans)
	}
	return s
}
