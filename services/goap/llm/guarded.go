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
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// GuardConfig configures Guarded.
type GuardConfig struct {
	// RequestsPerSecond limits call rate. Zero disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the limiter burst size (default: 1).
	Burst int `json:"burst" yaml:"burst"`

	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`
}

// Guarded rate-limits and circuit-breaks another generator.
//
// Description:
//
//	Each call first waits for the limiter, honouring ctx, then asks the
//	breaker for permission. Cancellation by the caller does not count as a
//	generator failure.
//
// Thread Safety: Safe for concurrent use.
type Guarded struct {
	inner   Generator
	limiter *rate.Limiter
	breaker *Breaker
	logger  *slog.Logger
}

// NewGuarded wraps inner.
func NewGuarded(inner Generator, cfg GuardConfig, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Guarded{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		breaker: NewBreaker(cfg.Breaker),
		logger:  logger,
	}
}

// Generate implements Generator.
func (g *Guarded) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("generator rate limit: %w", err)
	}
	ok, done := g.breaker.Allow()
	if !ok {
		return "", ErrCircuitOpen
	}

	out, err := g.inner.Generate(ctx, req)
	done(err)
	if err != nil {
		g.logger.WarnContext(ctx, "generator call failed",
			slog.String("mode", string(req.Mode)),
			slog.String("breaker", g.breaker.State().String()),
			slog.String("error", err.Error()))
		return "", err
	}
	return out, nil
}

// Stats returns the breaker statistics.
func (g *Guarded) Stats() BreakerStats { return g.breaker.Stats() }
