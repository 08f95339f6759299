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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
)

var testSequence = []actions.Type{
	actions.Of(actions.KindDetectSchemaType),
	actions.FetchSchema("kubernetes"),
	actions.Of(actions.KindGenerateResponse),
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, cfg PatternCacheConfig, opts ...PatternCacheOption) *PatternCache {
	t.Helper()
	c, err := NewPatternCache(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pattern(id string, confidence float64) *SuccessPattern {
	return &SuccessPattern{
		ID:             id,
		Sample:         "create a kubernetes deployment",
		SchemaType:     "kubernetes",
		ActionSequence: testSequence,
		Confidence:     confidence,
		SuccessRate:    1,
		UsageCount:     1,
	}
}

func TestPatternCacheConfig_Validate(t *testing.T) {
	mutate := func(fn func(*PatternCacheConfig)) PatternCacheConfig {
		c := DefaultPatternCacheConfig()
		fn(&c)
		return c
	}
	tests := []struct {
		name    string
		cfg     PatternCacheConfig
		wantErr bool
	}{
		{"defaults", DefaultPatternCacheConfig(), false},
		{"zero capacity", mutate(func(c *PatternCacheConfig) { c.Capacity = 0 }), true},
		{"similarity above one", mutate(func(c *PatternCacheConfig) { c.MinSimilarity = 1.2 }), true},
		{"floor above threshold", mutate(func(c *PatternCacheConfig) { c.ConfidenceFloor = 80 }), true},
		{"zero learning rate", mutate(func(c *PatternCacheConfig) { c.LearningRate = 0 }), true},
		{"decay of one", mutate(func(c *PatternCacheConfig) { c.DecayPerDay = 1 }), true},
		{"no namespace", mutate(func(c *PatternCacheConfig) { c.Namespace = "" }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPatternCache_FindSimilar(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig(), WithSimilarity(fixedSimilarity(0.9)))

	require.NoError(t, c.Insert(ctx, pattern("p-85", 85)))
	require.NoError(t, c.Insert(ctx, pattern("p-90", 90)))
	require.NoError(t, c.Insert(ctx, pattern("p-60", 60)))

	t.Run("most confident qualifying pattern wins", func(t *testing.T) {
		m, err := c.FindSimilar(ctx, "anything", 0.75)
		require.NoError(t, err)
		assert.Equal(t, "p-90", m.Pattern.ID)
		assert.Equal(t, 0.9, m.Similarity)
	})

	t.Run("similarity floor", func(t *testing.T) {
		_, err := c.FindSimilar(ctx, "anything", 0.95)
		assert.True(t, errors.Is(err, ErrPatternNotFound))
	})

	t.Run("result is a copy", func(t *testing.T) {
		m, err := c.FindSimilar(ctx, "anything", 0)
		require.NoError(t, err)
		m.Pattern.Confidence = 0
		m.Pattern.ActionSequence[0] = actions.Of(actions.KindUpdateMetrics)

		again, err := c.Get("p-90")
		require.NoError(t, err)
		assert.Equal(t, 90.0, again.Confidence)
		assert.Equal(t, testSequence, again.ActionSequence)
	})

	stats := c.Stats()
	assert.Equal(t, int64(3), stats.Lookups)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestPatternCache_FindSimilar_BelowThreshold(t *testing.T) {
	c := newTestCache(t, DefaultPatternCacheConfig(), WithSimilarity(fixedSimilarity(1)))
	require.NoError(t, c.Insert(context.Background(), pattern("weak", 69.9)))

	_, err := c.FindSimilar(context.Background(), "x", 0.5)
	assert.True(t, errors.Is(err, ErrPatternNotFound))
}

func TestPatternCache_FindSimilar_TieBreak(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig(), WithSimilarity(fixedSimilarity(0.8)))
	require.NoError(t, c.Insert(ctx, pattern("b", 80)))
	require.NoError(t, c.Insert(ctx, pattern("a", 80)))

	for i := 0; i < 5; i++ {
		m, err := c.FindSimilar(ctx, "x", 0)
		require.NoError(t, err)
		assert.Equal(t, "a", m.Pattern.ID)
	}
}

func TestPatternCache_FindSimilar_MinHash(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig())

	p := pattern("gha", 85)
	p.Sample = "create a github workflow that runs go tests on every push to the main branch"
	require.NoError(t, c.Insert(ctx, p))

	m, err := c.FindSimilar(ctx, "Create a GitHub workflow that runs Go tests on every push to the main branch, please", 0)
	require.NoError(t, err)
	assert.Equal(t, "gha", m.Pattern.ID)
	assert.GreaterOrEqual(t, m.Similarity, 0.75)

	_, err = c.FindSimilar(ctx, "ansible playbook that installs nginx", 0)
	assert.True(t, errors.Is(err, ErrPatternNotFound))
}

func TestPatternCache_Insert(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig())

	t.Run("rejects invalid", func(t *testing.T) {
		assert.True(t, errors.Is(c.Insert(ctx, nil), ErrInvalidPattern))
		p := pattern("empty", 80)
		p.ActionSequence = nil
		assert.True(t, errors.Is(c.Insert(ctx, p), ErrInvalidPattern))
	})

	t.Run("fills id and signature, clamps confidence", func(t *testing.T) {
		p := pattern("", 250)
		require.NoError(t, c.Insert(ctx, p))
		list := c.List(0)
		require.Len(t, list, 1)
		got := list[0]
		assert.NotEmpty(t, got.ID)
		assert.Len(t, got.Signature, DefaultNumHashes)
		assert.Equal(t, MaxConfidence, got.Confidence)
		assert.Empty(t, p.ID, "caller's pattern is not modified")
	})

	t.Run("replace keeps size", func(t *testing.T) {
		id := c.List(0)[0].ID
		p := pattern(id, 75)
		require.NoError(t, c.Insert(ctx, p))
		assert.Equal(t, 1, c.Len())
		got, err := c.Get(id)
		require.NoError(t, err)
		assert.Equal(t, 75.0, got.Confidence)
	})
}

func TestPatternCache_RecordUse(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(t, DefaultPatternCacheConfig(), WithClock(clock.Now))

	require.NoError(t, c.Insert(ctx, pattern("p", 70)))

	clock.Advance(time.Minute)
	p, err := c.RecordUse(ctx, "p", Outcome{Success: true, TokensUsed: 300, Duration: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 75.0, p.Confidence)
	assert.Equal(t, uint32(2), p.UsageCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 1e-9)
	assert.Equal(t, 150.0, p.AvgTokens)
	assert.Equal(t, clock.Now(), p.LastUsed)

	p, err = c.RecordUse(ctx, "p", Outcome{Success: false})
	require.NoError(t, err)
	assert.Equal(t, 60.0, p.Confidence)
	assert.InDelta(t, 0.9, p.SuccessRate, 1e-9)

	t.Run("clamped at bounds", func(t *testing.T) {
		require.NoError(t, c.Insert(ctx, pattern("high", 98)))
		got, err := c.RecordUse(ctx, "high", Outcome{Success: true})
		require.NoError(t, err)
		assert.Equal(t, 100.0, got.Confidence)

		require.NoError(t, c.Insert(ctx, pattern("low", 10)))
		got, err = c.RecordUse(ctx, "low", Outcome{Success: false})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Confidence)
		assert.Greater(t, got.SuccessRate, 0.0)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := c.RecordUse(ctx, "missing", Outcome{Success: true})
		assert.True(t, errors.Is(err, ErrPatternNotFound))
	})
}

func TestPatternCache_RecordUse_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig())
	require.NoError(t, c.Insert(ctx, pattern("p", 0)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.RecordUse(ctx, "p", Outcome{Success: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := c.Get("p")
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Confidence)
	assert.Equal(t, uint32(11), got.UsageCount)
}

func TestPatternCache_Learn(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig())
	text := "create a kubernetes deployment for nginx with three replicas"

	first, created, err := c.Learn(ctx, text, "kubernetes", testSequence, Outcome{TokensUsed: 200})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 70.0, first.Confidence)
	assert.Equal(t, uint32(1), first.UsageCount)
	assert.Equal(t, 1.0, first.SuccessRate)
	assert.Equal(t, 200.0, first.AvgTokens)
	assert.Equal(t, Normalize(text), first.Sample)

	second, created, err := c.Learn(ctx, text+" please", "kubernetes", testSequence, Outcome{TokensUsed: 100})
	require.NoError(t, err)
	assert.False(t, created, "similar request with the same plan reinforces")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 75.0, second.Confidence)
	assert.Equal(t, uint32(2), second.UsageCount)

	other := []actions.Type{actions.Of(actions.KindDetectSchemaType), actions.Of(actions.KindGenerateFromTemplate)}
	third, created, err := c.Learn(ctx, text, "kubernetes", other, Outcome{})
	require.NoError(t, err)
	assert.True(t, created, "a different plan is a different pattern")
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, 2, c.Len())

	_, _, err = c.Learn(ctx, text, "kubernetes", nil, Outcome{})
	assert.True(t, errors.Is(err, ErrInvalidPattern))
}

func TestPatternCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultPatternCacheConfig()
	cfg.Capacity = 2

	var evicted []string
	c := newTestCache(t, cfg, WithEvictionHook(func(id string, reason EvictionReason) {
		if reason == EvictLRU {
			evicted = append(evicted, id)
		}
	}))

	require.NoError(t, c.Insert(ctx, pattern("a", 80)))
	require.NoError(t, c.Insert(ctx, pattern("b", 80)))
	_, err := c.RecordUse(ctx, "a", Outcome{Success: true})
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, pattern("c", 80)))

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())
	_, err = c.Get("b")
	assert.True(t, errors.Is(err, ErrPatternNotFound))
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestPatternCache_FullWithoutEviction(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultPatternCacheConfig()
	cfg.Capacity = 1
	cfg.EvictOnFull = false
	c := newTestCache(t, cfg)

	require.NoError(t, c.Insert(ctx, pattern("a", 80)))
	assert.True(t, errors.Is(c.Insert(ctx, pattern("b", 80)), ErrCacheFull))
	assert.NoError(t, c.Insert(ctx, pattern("a", 90)), "replacing is not growth")
}

func TestPatternCache_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, DefaultPatternCacheConfig())
	require.NoError(t, c.Insert(ctx, pattern("low", 40)))
	require.NoError(t, c.Insert(ctx, pattern("high", 95)))
	require.NoError(t, c.Insert(ctx, pattern("mid", 80)))

	var ids []string
	for _, p := range c.List(50) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"high", "mid"}, ids)

	require.NoError(t, c.Delete(ctx, "mid"))
	assert.True(t, errors.Is(c.Delete(ctx, "mid"), ErrPatternNotFound))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions, "deletes are not evictions")
}

func TestPatternCache_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(t, DefaultPatternCacheConfig(), WithClock(clock.Now))

	require.NoError(t, c.Insert(ctx, pattern("fading", 40)))
	require.NoError(t, c.Insert(ctx, pattern("strong", 100)))

	n, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 40 * 0.95^10 ≈ 23.9 falls under the floor; 100 * 0.95^10 ≈ 59.9 does not.
	clock.Advance(10 * 24 * time.Hour)
	n, err = c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.Get("fading")
	assert.True(t, errors.Is(err, ErrPatternNotFound))
	_, err = c.Get("strong")
	assert.NoError(t, err)
}

func TestPatternCache_FindSimilar_SkipsDecayed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newTestCache(t, DefaultPatternCacheConfig(), WithClock(clock.Now))
	require.NoError(t, c.Insert(ctx, pattern("idle", 75)))

	_, err := c.FindSimilar(ctx, "create a kubernetes deployment", 0)
	require.NoError(t, err)

	// 75 * 0.95^60 ≈ 3.5, far under the floor of 30.
	clock.Advance(60 * 24 * time.Hour)
	_, err = c.FindSimilar(ctx, "create a kubernetes deployment", 0)
	assert.True(t, errors.Is(err, ErrPatternNotFound))
}

func TestPatternCache_LoadSweepsDecayed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := storage.NewMemoryStore()
	ks := storage.Keyspace{Namespace: "goap"}

	c := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store), WithClock(clock.Now))
	require.NoError(t, c.Insert(ctx, pattern("idle", 75)))
	require.NoError(t, c.Insert(ctx, pattern("busy", 90)))

	clock.Advance(60 * 24 * time.Hour)
	_, err := c.RecordUse(ctx, "busy", Outcome{Success: true})
	require.NoError(t, err)

	var evicted []string
	restored := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store), WithClock(clock.Now),
		WithEvictionHook(func(id string, reason EvictionReason) {
			if reason == EvictDecayed {
				evicted = append(evicted, id)
			}
		}))
	n, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"idle"}, evicted)

	_, err = restored.Get("idle")
	assert.True(t, errors.Is(err, ErrPatternNotFound))
	_, found, err := store.Get(ctx, ks.Key(patternBucket, "idle"))
	require.NoError(t, err)
	assert.False(t, found, "decayed patterns are removed from the store")
	_, err = restored.Get("busy")
	assert.NoError(t, err)
}

// flakyStore fails writes on demand.
type flakyStore struct {
	*storage.MemoryStore
	failPut    atomic.Bool
	failDelete atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if s.failPut.Load() {
		return errDiskFull
	}
	return s.MemoryStore.Put(ctx, key, value)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.failDelete.Load() {
		return errDiskFull
	}
	return s.MemoryStore.Delete(ctx, key)
}

func TestPatternCache_StoreFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	c := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store))

	store.failPut.Store(true)
	_, _, err := c.Learn(ctx, "create a kubernetes deployment", "kubernetes", testSequence, Outcome{})
	assert.True(t, errors.Is(err, errDiskFull))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Stats().Inserts)
	_, err = c.FindSimilar(ctx, "create a kubernetes deployment", 0)
	assert.True(t, errors.Is(err, ErrPatternNotFound), "failed insert is not indexed")

	store.failPut.Store(false)
	require.NoError(t, c.Insert(ctx, pattern("a", 80)))

	store.failPut.Store(true)
	_, err = c.RecordUse(ctx, "a", Outcome{Success: true})
	assert.True(t, errors.Is(err, errDiskFull))
	got, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Confidence)
	assert.Equal(t, uint32(1), got.UsageCount)

	store.failDelete.Store(true)
	assert.True(t, errors.Is(c.Delete(ctx, "a"), errDiskFull))
	_, err = c.Get("a")
	assert.NoError(t, err, "failed delete keeps the pattern")
	assert.Equal(t, 1, store.Len())
}

func TestSuccessPattern_DecayedConfidence(t *testing.T) {
	now := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
	p := &SuccessPattern{Confidence: 80, LastUsed: now.Add(-24 * time.Hour)}

	assert.InDelta(t, 76.0, p.DecayedConfidence(now, 0.05), 1e-9)
	assert.Equal(t, 80.0, p.DecayedConfidence(now, 0))
	assert.Equal(t, 80.0, p.DecayedConfidence(p.LastUsed, 0.05))
}

func TestSuccessPattern_Valid(t *testing.T) {
	p := &SuccessPattern{Confidence: 70, SuccessRate: 0.8}
	assert.True(t, p.Valid(70))
	assert.False(t, p.Valid(71))
	p.SuccessRate = 0.79
	assert.False(t, p.Valid(70))
}

func TestPatternCache_Persistence(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := storage.NewMemoryStore()

	c := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store), WithClock(clock.Now))
	learned, _, err := c.Learn(ctx, "create a kubernetes deployment", "kubernetes", testSequence, Outcome{TokensUsed: 120})
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, pattern("manual", 90)))
	require.NoError(t, c.Delete(ctx, "manual"))

	restored := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store), WithClock(clock.Now))
	n, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restored.Get(learned.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(learned, got); diff != "" {
		t.Errorf("restored pattern mismatch (-want +got):\n%s", diff)
	}

	m, err := restored.FindSimilar(ctx, "create a kubernetes deployment", 0)
	require.NoError(t, err, "restored patterns are indexed")
	assert.Equal(t, learned.ID, m.Pattern.ID)
}

func TestPatternCache_LoadDiscardsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ks := storage.Keyspace{Namespace: "goap"}

	good, err := encodePattern(pattern("good", 80))
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, ks.Key(patternBucket, "good"), good))

	tampered, err := encodePattern(pattern("tampered", 80))
	require.NoError(t, err)
	tampered[len(tampered)-10] ^= 0x01
	require.NoError(t, store.Put(ctx, ks.Key(patternBucket, "tampered"), tampered))
	require.NoError(t, store.Put(ctx, ks.Key(patternBucket, "garbage"), []byte("{not json")))

	c := newTestCache(t, DefaultPatternCacheConfig(), WithStore(store))
	n, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(2), c.Stats().Corruptions)

	_, found, err := store.Get(ctx, ks.Key(patternBucket, "garbage"))
	require.NoError(t, err)
	assert.False(t, found, "corrupt entries are removed from the store")
}

func TestDecodePattern(t *testing.T) {
	data, err := encodePattern(pattern("p", 80))
	require.NoError(t, err)

	p, err := decodePattern(data)
	require.NoError(t, err)
	assert.Equal(t, "p", p.ID)

	t.Run("bad checksum", func(t *testing.T) {
		bad := []byte(`{"version":1,"sha256":"00","payload":{"id":"p"}}`)
		_, err := decodePattern(bad)
		assert.True(t, errors.Is(err, ErrCorruptionDetected))
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := decodePattern([]byte(`{"version":9,"sha256":"","payload":{}}`))
		assert.True(t, errors.Is(err, ErrCorruptionDetected))
	})

	t.Run("valid checksum, broken invariant", func(t *testing.T) {
		broken := pattern("p", 80)
		broken.SuccessRate = 0
		data, err := encodeEnvelope(broken)
		require.NoError(t, err)
		_, err = decodePattern(data)
		assert.True(t, errors.Is(err, ErrCorruptionDetected))
	})
}

func TestPatternCache_Sweeper(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	ctx := context.Background()
	clock := newFakeClock()
	c, err := NewPatternCache(DefaultPatternCacheConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, c.Insert(ctx, pattern("fading", 31)))

	c.StartSweeper(5 * time.Millisecond)
	c.StartSweeper(5 * time.Millisecond)
	clock.Advance(24 * time.Hour)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	goleak.VerifyNone(t, ignore)
}
