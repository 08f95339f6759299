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
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
)

const patternBucket = "patterns"

// EvictionReason says why a pattern left the cache.
type EvictionReason string

const (
	EvictLRU     EvictionReason = "lru"
	EvictDecayed EvictionReason = "decayed"
	EvictDeleted EvictionReason = "deleted"
)

// PatternCacheConfig configures a PatternCache.
type PatternCacheConfig struct {
	// Capacity is the maximum number of patterns held in memory.
	Capacity int `json:"capacity" yaml:"capacity"`

	// MinSimilarity is the default similarity floor for lookups.
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity"`

	// ConfidenceThreshold is the confidence a pattern needs before it is reused.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// ConfidenceFloor is the decayed confidence below which Sweep drops a pattern.
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidence_floor"`

	// InitialConfidence is assigned to newly learned patterns.
	InitialConfidence float64 `json:"initial_confidence" yaml:"initial_confidence"`

	SuccessStep  float64 `json:"success_step" yaml:"success_step"`
	FailureStep  float64 `json:"failure_step" yaml:"failure_step"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// DecayPerDay is the fractional confidence loss per idle day.
	DecayPerDay float64 `json:"decay_per_day" yaml:"decay_per_day"`

	// EvictOnFull evicts the least recently used pattern when full. When
	// false, Insert returns ErrCacheFull instead.
	EvictOnFull bool `json:"evict_on_full" yaml:"evict_on_full"`

	// Namespace prefixes persisted keys.
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultPatternCacheConfig returns the defaults.
func DefaultPatternCacheConfig() PatternCacheConfig {
	return PatternCacheConfig{
		Capacity:            10000,
		MinSimilarity:       0.75,
		ConfidenceThreshold: 70,
		ConfidenceFloor:     30,
		InitialConfidence:   70,
		SuccessStep:         5,
		FailureStep:         15,
		LearningRate:        0.1,
		DecayPerDay:         0.05,
		EvictOnFull:         true,
		Namespace:           "goap",
	}
}

// Validate checks the configuration.
func (c PatternCacheConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	case c.MinSimilarity < 0 || c.MinSimilarity > 1:
		return fmt.Errorf("%w: min_similarity must be in [0,1]", ErrInvalidConfig)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > MaxConfidence:
		return fmt.Errorf("%w: confidence_threshold must be in [0,100]", ErrInvalidConfig)
	case c.ConfidenceFloor < 0 || c.ConfidenceFloor > c.ConfidenceThreshold:
		return fmt.Errorf("%w: confidence_floor must be in [0,confidence_threshold]", ErrInvalidConfig)
	case c.InitialConfidence < 0 || c.InitialConfidence > MaxConfidence:
		return fmt.Errorf("%w: initial_confidence must be in [0,100]", ErrInvalidConfig)
	case c.SuccessStep < 0 || c.FailureStep < 0:
		return fmt.Errorf("%w: confidence steps must not be negative", ErrInvalidConfig)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0,1]", ErrInvalidConfig)
	case c.DecayPerDay < 0 || c.DecayPerDay >= 1:
		return fmt.Errorf("%w: decay_per_day must be in [0,1)", ErrInvalidConfig)
	case c.Namespace == "":
		return fmt.Errorf("%w: namespace is required", ErrInvalidConfig)
	}
	return nil
}

// Match is a lookup result.
type Match struct {
	Pattern    *SuccessPattern
	Similarity float64
}

// PatternStats is a point-in-time view of cache activity.
type PatternStats struct {
	Size        int   `json:"size"`
	Capacity    int   `json:"capacity"`
	Lookups     int64 `json:"lookups"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Inserts     int64 `json:"inserts"`
	Evictions   int64 `json:"evictions"`
	Corruptions int64 `json:"corruptions"`
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s PatternStats) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

// PatternCacheOption configures optional PatternCache collaborators.
type PatternCacheOption func(*PatternCache)

// WithStore persists patterns through s.
func WithStore(s storage.Store) PatternCacheOption {
	return func(c *PatternCache) { c.store = s }
}

// WithSimilarity replaces the default MinHash similarity.
func WithSimilarity(sim Similarity) PatternCacheOption {
	return func(c *PatternCache) { c.sim = sim }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PatternCacheOption {
	return func(c *PatternCache) { c.logger = l }
}

// WithClock overrides time.Now. Tests use it to exercise decay.
func WithClock(now func() time.Time) PatternCacheOption {
	return func(c *PatternCache) { c.now = now }
}

// WithEvictionHook is called, under the cache lock, whenever a pattern is
// removed. The hook must not call back into the cache.
func WithEvictionHook(fn func(id string, reason EvictionReason)) PatternCacheOption {
	return func(c *PatternCache) { c.onEvict = fn }
}

type patternEntry struct {
	pattern *SuccessPattern
	elem    *list.Element
}

// PatternCache stores learned request patterns and finds similar ones.
//
// Description:
//
//	Patterns are kept in memory, indexed for similarity lookup, and ordered
//	by recency for LRU eviction. When a store is attached every mutation is
//	written through before the call returns, and Load rebuilds the memory
//	tier from it.
//
//	Lookups hand out copies. Mutations go through RecordUse, Insert and
//	Delete, which run under the write lock, so a read-modify-write on one
//	pattern is never interleaved with another.
//
// Thread Safety: Safe for concurrent use. Share one instance.
type PatternCache struct {
	cfg     PatternCacheConfig
	policy  confidencePolicy
	sim     Similarity
	store   storage.Store
	keys    storage.Keyspace
	logger  *slog.Logger
	now     func() time.Time
	onEvict func(string, EvictionReason)

	mu      sync.RWMutex
	entries map[string]*patternEntry
	lru     *list.List // front is most recent
	index   candidateIndex

	lookups     atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	inserts     atomic.Int64
	evictions   atomic.Int64
	corruptions atomic.Int64

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewPatternCache creates an empty cache.
//
// Outputs:
//   - *PatternCache: The cache. Call Close to stop a running sweeper.
//   - error: ErrInvalidConfig if cfg fails validation.
func NewPatternCache(cfg PatternCacheConfig, opts ...PatternCacheOption) (*PatternCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &PatternCache{
		cfg: cfg,
		policy: confidencePolicy{
			successStep:  cfg.SuccessStep,
			failureStep:  cfg.FailureStep,
			learningRate: cfg.LearningRate,
		},
		keys:    storage.Keyspace{Namespace: cfg.Namespace},
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]*patternEntry),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sim == nil {
		c.sim = DefaultMinHash()
	}
	c.index = newIndex(c.sim)
	return c, nil
}

// Config returns the configuration.
func (c *PatternCache) Config() PatternCacheConfig { return c.cfg }

// Signature hashes text with the cache's similarity scheme.
func (c *PatternCache) Signature(text string) Signature { return c.sim.Signature(text) }

// FindSimilar returns the most confident pattern similar to text.
//
// Description:
//
//	Candidates come from the similarity index. A candidate qualifies when
//	its similarity is at least minSimilarity, its confidence is at least
//	the reuse threshold, and its decayed confidence has not fallen below
//	the floor. The highest confidence wins; ties go to the higher
//	similarity and then to the lower ID. A non-positive minSimilarity uses
//	the configured default.
//
// Outputs:
//   - Match: A copy of the winning pattern and its similarity.
//   - error: ErrPatternNotFound when nothing qualifies, or ctx.Err().
func (c *PatternCache) FindSimilar(ctx context.Context, text string, minSimilarity float64) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}
	if minSimilarity <= 0 {
		minSimilarity = c.cfg.MinSimilarity
	}
	sig := c.sim.Signature(text)
	c.lookups.Add(1)
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *SuccessPattern
	bestSim := 0.0
	for _, id := range c.index.candidates(sig) {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		p := e.pattern
		if p.Confidence < c.cfg.ConfidenceThreshold || c.decayedLocked(p, now) {
			continue
		}
		s := c.sim.Similarity(sig, p.Signature)
		if s < minSimilarity {
			continue
		}
		if best == nil || better(p, s, best, bestSim) {
			best, bestSim = p, s
		}
	}
	if best == nil {
		c.misses.Add(1)
		return Match{}, ErrPatternNotFound
	}
	c.hits.Add(1)
	return Match{Pattern: best.Clone(), Similarity: bestSim}, nil
}

func better(p *SuccessPattern, s float64, best *SuccessPattern, bestSim float64) bool {
	if p.Confidence != best.Confidence {
		return p.Confidence > best.Confidence
	}
	if s != bestSim {
		return s > bestSim
	}
	return p.ID < best.ID
}

// Insert adds or replaces a pattern.
//
// Description:
//
//	A missing signature is computed from Sample; a missing ID is generated.
//	Confidence is clamped to [0, 100]. Inserting a new ID into a full cache
//	evicts the least recently used pattern, or fails with ErrCacheFull when
//	eviction is disabled. The pattern is copied; later changes to p do not
//	affect the cache.
func (c *PatternCache) Insert(ctx context.Context, p *SuccessPattern) error {
	if p == nil {
		return fmt.Errorf("%w: nil pattern", ErrInvalidPattern)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := p.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if len(cp.Signature) == 0 {
		cp.Signature = c.sim.Signature(cp.Sample)
	}
	cp.Confidence = min(max(cp.Confidence, 0), MaxConfidence)
	now := c.now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	if cp.LastUsed.IsZero() {
		cp.LastUsed = cp.CreatedAt
	}
	if err := cp.check(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(ctx, cp, true)
}

// insertLocked writes p to the store before touching memory, so a failed
// write leaves the cache as it was.
func (c *PatternCache) insertLocked(ctx context.Context, p *SuccessPattern, persist bool) error {
	old, exists := c.entries[p.ID]
	if !exists && len(c.entries) >= c.cfg.Capacity {
		if !c.cfg.EvictOnFull {
			return fmt.Errorf("%w: %d patterns", ErrCacheFull, len(c.entries))
		}
		if err := c.evictOldestLocked(ctx); err != nil {
			return err
		}
	}
	if persist {
		if err := c.persistLocked(ctx, p); err != nil {
			return err
		}
	}
	if exists {
		c.index.remove(p.ID, old.pattern.Signature)
		old.pattern = p
		c.lru.MoveToFront(old.elem)
	} else {
		c.entries[p.ID] = &patternEntry{pattern: p, elem: c.lru.PushFront(p.ID)}
	}
	c.index.add(p.ID, p.Signature)
	c.inserts.Add(1)
	return nil
}

func (c *PatternCache) evictOldestLocked(ctx context.Context) error {
	back := c.lru.Back()
	if back == nil {
		return nil
	}
	return c.removeLocked(ctx, back.Value.(string), EvictLRU)
}

func (c *PatternCache) removeLocked(ctx context.Context, id string, reason EvictionReason) error {
	e, ok := c.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	if c.store != nil {
		if err := c.store.Delete(ctx, c.keys.Key(patternBucket, id)); err != nil {
			return fmt.Errorf("delete pattern %s: %w", id, err)
		}
	}
	c.index.remove(id, e.pattern.Signature)
	c.lru.Remove(e.elem)
	delete(c.entries, id)
	if reason != EvictDeleted {
		c.evictions.Add(1)
	}
	if c.onEvict != nil {
		c.onEvict(id, reason)
	}
	c.logger.Debug("pattern removed",
		slog.String("pattern_id", id),
		slog.String("reason", string(reason)))
	return nil
}

func (c *PatternCache) persistLocked(ctx context.Context, p *SuccessPattern) error {
	if c.store == nil {
		return nil
	}
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, c.keys.Key(patternBucket, p.ID), data); err != nil {
		return fmt.Errorf("persist pattern %s: %w", p.ID, err)
	}
	return nil
}

// Learn records a successful execution.
//
// Description:
//
//	If a pattern with the same action sequence is already similar enough to
//	text, it is credited with a successful use. Otherwise a new pattern is
//	created at the initial confidence with one recorded success.
//
// Outputs:
//   - *SuccessPattern: A copy of the learned or reinforced pattern.
//   - bool: True if a new pattern was created.
//   - error: Non-nil on invalid input, a full cache, or a storage failure.
func (c *PatternCache) Learn(ctx context.Context, text, schemaType string, seq []actions.Type, outcome Outcome) (*SuccessPattern, bool, error) {
	if len(seq) == 0 {
		return nil, false, fmt.Errorf("%w: empty action sequence", ErrInvalidPattern)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	outcome.Success = true
	sig := c.sim.Signature(text)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.index.candidates(sig) {
		e, ok := c.entries[id]
		if !ok || !slices.Equal(e.pattern.ActionSequence, seq) {
			continue
		}
		if c.sim.Similarity(sig, e.pattern.Signature) < c.cfg.MinSimilarity {
			continue
		}
		updated := e.pattern.Clone()
		c.policy.apply(updated, outcome, now)
		if err := c.persistLocked(ctx, updated); err != nil {
			return nil, false, err
		}
		e.pattern = updated
		c.lru.MoveToFront(e.elem)
		return updated.Clone(), false, nil
	}

	p := &SuccessPattern{
		ID:             uuid.NewString(),
		Signature:      sig,
		Sample:         truncateSample(text),
		SchemaType:     schemaType,
		ActionSequence: slices.Clone(seq),
		Confidence:     c.cfg.InitialConfidence,
		CreatedAt:      now,
	}
	c.policy.apply(p, outcome, now)
	// The first success sets the starting point; it does not add a step.
	p.Confidence = c.cfg.InitialConfidence
	if err := c.insertLocked(ctx, p, true); err != nil {
		return nil, false, err
	}
	c.logger.Info("pattern learned",
		slog.String("pattern_id", p.ID),
		slog.String("schema_type", schemaType),
		slog.Int("actions", len(seq)))
	return p.Clone(), true, nil
}

// RecordUse folds one outcome into a pattern: success adds SuccessStep to
// its confidence, failure subtracts FailureStep, both clamped to [0, 100].
//
// Outputs:
//   - *SuccessPattern: A copy of the updated pattern.
//   - error: ErrPatternNotFound if id is unknown, or a storage failure.
func (c *PatternCache) RecordUse(ctx context.Context, id string, outcome Outcome) (*SuccessPattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	updated := e.pattern.Clone()
	c.policy.apply(updated, outcome, c.now())
	if err := c.persistLocked(ctx, updated); err != nil {
		return nil, err
	}
	e.pattern = updated
	c.lru.MoveToFront(e.elem)
	return updated.Clone(), nil
}

// Get returns a copy of a pattern by ID.
func (c *PatternCache) Get(id string) (*SuccessPattern, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	return e.pattern.Clone(), nil
}

// Delete removes a pattern from memory and the store.
func (c *PatternCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(ctx, id, EvictDeleted)
}

// List returns copies of all patterns with confidence at least minConfidence,
// most confident first.
func (c *PatternCache) List(minConfidence float64) []*SuccessPattern {
	c.mu.RLock()
	out := make([]*SuccessPattern, 0, len(c.entries))
	for _, e := range c.entries {
		if e.pattern.Confidence >= minConfidence {
			out = append(out, e.pattern.Clone())
		}
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b *SuccessPattern) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache activity.
func (c *PatternCache) Stats() PatternStats {
	return PatternStats{
		Size:        c.Len(),
		Capacity:    c.cfg.Capacity,
		Lookups:     c.lookups.Load(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Inserts:     c.inserts.Load(),
		Evictions:   c.evictions.Load(),
		Corruptions: c.corruptions.Load(),
	}
}

// Sweep drops patterns whose decayed confidence fell below the floor.
//
// Outputs:
//   - int: Number of patterns removed.
//   - error: First storage error, if any. Sweeping continues past it.
func (c *PatternCache) Sweep(ctx context.Context) (int, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(ctx, now)
}

func (c *PatternCache) sweepLocked(ctx context.Context, now time.Time) (int, error) {
	var stale []string
	for id, e := range c.entries {
		if c.decayedLocked(e.pattern, now) {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)

	removed := 0
	var firstErr error
	for _, id := range stale {
		if err := c.removeLocked(ctx, id, EvictDecayed); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// decayedLocked reports whether p has decayed below the confidence floor.
func (c *PatternCache) decayedLocked(p *SuccessPattern, now time.Time) bool {
	return p.DecayedConfidence(now, c.cfg.DecayPerDay) < c.cfg.ConfidenceFloor
}

// Load rebuilds the memory tier from the store.
//
// Description:
//
//	Entries are decoded in parallel. An entry that fails its integrity check
//	is logged, counted, and removed from the store; the rest load normally.
//	Patterns are inserted oldest first so recency order survives a restart,
//	and capacity is enforced as usual. Patterns that decayed below the
//	floor while the cache was down are swept before Load returns.
//
// Outputs:
//   - int: Number of patterns loaded and kept.
//   - error: Non-nil only if the store itself fails.
func (c *PatternCache) Load(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	type raw struct {
		key  string
		data []byte
	}
	var raws []raw
	err := c.store.Scan(ctx, c.keys.Prefix(patternBucket), func(key string, value []byte) error {
		raws = append(raws, raw{key: key, data: value})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan patterns: %w", err)
	}

	decoded := make([]*SuccessPattern, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, r := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := decodePattern(r.data)
			if err != nil {
				// Leave decoded[i] nil; corrupt entries are handled below.
				return nil
			}
			decoded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	valid := make([]*SuccessPattern, 0, len(decoded))
	for i, p := range decoded {
		if p != nil {
			valid = append(valid, p)
			continue
		}
		c.corruptions.Add(1)
		c.logger.Warn("discarding corrupt pattern entry",
			slog.String("key", raws[i].key),
			slog.String("error", ErrCorruptionDetected.Error()))
		if err := c.store.Delete(ctx, raws[i].key); err != nil {
			c.logger.Warn("failed to delete corrupt pattern entry",
				slog.String("key", raws[i].key),
				slog.String("error", err.Error()))
		}
	}
	slices.SortFunc(valid, func(a, b *SuccessPattern) int {
		return a.LastUsed.Compare(b.LastUsed)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := 0
	for _, p := range valid {
		if err := c.insertLocked(ctx, p, false); err != nil {
			if errors.Is(err, ErrCacheFull) {
				break
			}
			return loaded, err
		}
		loaded++
	}
	swept, err := c.sweepLocked(ctx, c.now())
	if err != nil {
		c.logger.Warn("pattern sweep after load failed", slog.String("error", err.Error()))
	}
	loaded -= swept
	c.logger.Info("pattern cache loaded",
		slog.Int("patterns", loaded),
		slog.Int("decayed", swept),
		slog.Int64("corrupt", c.corruptions.Load()))
	return loaded, nil
}

// StartSweeper runs Sweep every interval until Close. Calling it twice is a no-op.
func (c *PatternCache) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.sweepStop != nil {
		return
	}
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := c.Sweep(context.Background())
				if err != nil {
					c.logger.Warn("pattern sweep failed", slog.String("error", err.Error()))
				}
				if n > 0 {
					c.logger.Debug("pattern sweep", slog.Int("removed", n))
				}
			}
		}
	}(c.sweepStop, c.sweepDone)
}

// Close stops the sweeper. The store is owned by the caller and stays open.
func (c *PatternCache) Close() error {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.sweepStop != nil {
		close(c.sweepStop)
		<-c.sweepDone
		c.sweepStop = nil
	}
	return nil
}
