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
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
)

const schemaBucket = "schemas"

// Schema is the reference document for one kind of generated config.
type Schema struct {
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	Source    string    `json:"source,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SchemaFetcher retrieves schemas the cache does not have.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, schemaType string) (Schema, error)
}

// SchemaFetcherFunc adapts a function to SchemaFetcher.
type SchemaFetcherFunc func(ctx context.Context, schemaType string) (Schema, error)

// FetchSchema implements SchemaFetcher.
func (f SchemaFetcherFunc) FetchSchema(ctx context.Context, schemaType string) (Schema, error) {
	return f(ctx, schemaType)
}

// StaticFetcher serves schemas from a fixed table keyed by type.
type StaticFetcher map[string]string

// FetchSchema implements SchemaFetcher.
func (f StaticFetcher) FetchSchema(_ context.Context, schemaType string) (Schema, error) {
	body, ok := f[schemaType]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaType)
	}
	return Schema{Type: schemaType, Body: body, Source: "builtin"}, nil
}

// BuiltinSchemas returns skeleton schemas for the schema types DetectSchemaType knows.
func BuiltinSchemas() StaticFetcher {
	return StaticFetcher{
		"github_actions": "name: string\non: {push|pull_request|workflow_dispatch}\njobs:\n  <id>:\n    runs-on: string\n    steps: [{name, uses|run, with}]\n",
		"kubernetes":     "apiVersion: string\nkind: string\nmetadata: {name, namespace, labels}\nspec: object\n",
		"docker_compose": "services:\n  <name>:\n    image: string\n    ports: [string]\n    environment: map\nvolumes: map\n",
		"terraform":      "terraform: {required_providers}\nprovider <name>: object\nresource <type> <name>: object\n",
		"ansible":        "- hosts: string\n  become: bool\n  tasks: [{name, module: args}]\n",
		"generic_yaml":   "<key>: <value>\n",
	}
}

var schemaKeywords = []struct {
	schemaType string
	keywords   []string
}{
	{"github_actions", []string{"github action", "workflow", "ci pipeline", "runs-on"}},
	{"kubernetes", []string{"kubernetes", "k8s", "deployment", "pod", "helm", "ingress"}},
	{"docker_compose", []string{"docker compose", "docker-compose", "compose file", "container"}},
	{"terraform", []string{"terraform", "hcl", "provider"}},
	{"ansible", []string{"ansible", "playbook"}},
}

// DetectSchemaType guesses the schema type from request text by keyword.
// Requests that match nothing are "generic_yaml".
func DetectSchemaType(text string) string {
	lower := strings.ToLower(text)
	for _, st := range schemaKeywords {
		for _, kw := range st.keywords {
			if strings.Contains(lower, kw) {
				return st.schemaType
			}
		}
	}
	return "generic_yaml"
}

// SchemaCacheConfig configures a SchemaCache.
type SchemaCacheConfig struct {
	// Capacity is the number of schemas held in memory.
	Capacity int64 `json:"capacity" yaml:"capacity"`

	// TTL bounds how long a schema stays in memory. Zero keeps it until evicted.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Namespace prefixes persisted keys.
	Namespace string `json:"namespace" yaml:"namespace"`
}

// DefaultSchemaCacheConfig returns the defaults.
func DefaultSchemaCacheConfig() SchemaCacheConfig {
	return SchemaCacheConfig{Capacity: 1000, TTL: time.Hour, Namespace: "goap"}
}

// SchemaStats is a point-in-time view of schema cache activity.
type SchemaStats struct {
	Hits      int64 `json:"hits"`
	StoreHits int64 `json:"store_hits"`
	Misses    int64 `json:"misses"`
	Fetches   int64 `json:"fetches"`
}

// SchemaCache is a two-tier schema cache: ristretto in memory, the store
// below it, and the fetcher behind both. Concurrent misses for the same type
// share one fetch.
//
// Thread Safety: Safe for concurrent use.
type SchemaCache struct {
	cfg     SchemaCacheConfig
	mem     *ristretto.Cache[string, Schema]
	store   storage.Store
	keys    storage.Keyspace
	fetcher SchemaFetcher
	group   singleflight.Group
	logger  *slog.Logger

	hits      atomic.Int64
	storeHits atomic.Int64
	misses    atomic.Int64
	fetches   atomic.Int64
}

// NewSchemaCache creates a schema cache. store and fetcher may be nil.
func NewSchemaCache(cfg SchemaCacheConfig, store storage.Store, fetcher SchemaFetcher, logger *slog.Logger) (*SchemaCache, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: schema capacity must be positive", ErrInvalidConfig)
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("%w: schema ttl must not be negative", ErrInvalidConfig)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "goap"
	}
	if logger == nil {
		logger = slog.Default()
	}
	mem, err := ristretto.NewCache(&ristretto.Config[string, Schema]{
		NumCounters: cfg.Capacity * 10,
		MaxCost:     cfg.Capacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaCache{
		cfg:     cfg,
		mem:     mem,
		store:   store,
		keys:    storage.Keyspace{Namespace: cfg.Namespace},
		fetcher: fetcher,
		logger:  logger,
	}, nil
}

// Get looks a schema up in memory, then in the store. A store hit is
// promoted to memory.
func (c *SchemaCache) Get(ctx context.Context, schemaType string) (Schema, bool, error) {
	if s, ok := c.mem.Get(schemaType); ok {
		c.hits.Add(1)
		return s, true, nil
	}
	if c.store != nil {
		data, found, err := c.store.Get(ctx, c.keys.Key(schemaBucket, schemaType))
		if err != nil {
			return Schema{}, false, fmt.Errorf("load schema %s: %w", schemaType, err)
		}
		if found {
			var s Schema
			if err := decodeEnvelope(data, &s); err != nil {
				c.logger.Warn("discarding corrupt schema entry",
					slog.String("schema_type", schemaType),
					slog.String("error", err.Error()))
				_ = c.store.Delete(ctx, c.keys.Key(schemaBucket, schemaType))
			} else {
				c.storeHits.Add(1)
				c.remember(s)
				return s, true, nil
			}
		}
	}
	c.misses.Add(1)
	return Schema{}, false, nil
}

// Put stores a schema in both tiers.
func (c *SchemaCache) Put(ctx context.Context, s Schema) error {
	if s.Type == "" {
		return fmt.Errorf("%w: empty schema type", ErrInvalidSchema)
	}
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now()
	}
	c.remember(s)
	if c.store == nil {
		return nil
	}
	data, err := encodeEnvelope(s)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, c.keys.Key(schemaBucket, s.Type), data); err != nil {
		return fmt.Errorf("persist schema %s: %w", s.Type, err)
	}
	return nil
}

func (c *SchemaCache) remember(s Schema) {
	if c.cfg.TTL > 0 {
		c.mem.SetWithTTL(s.Type, s, 1, c.cfg.TTL)
	} else {
		c.mem.Set(s.Type, s, 1)
	}
	c.mem.Wait()
}

// GetOrFetch returns a cached schema or fetches, stores and returns it.
//
// Outputs:
//   - Schema: The schema.
//   - error: ErrSchemaNotFound if no fetcher is configured or the fetcher
//     has nothing for the type; otherwise the fetch or storage error.
func (c *SchemaCache) GetOrFetch(ctx context.Context, schemaType string) (Schema, error) {
	if s, ok, err := c.Get(ctx, schemaType); err != nil || ok {
		return s, err
	}
	if c.fetcher == nil {
		return Schema{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaType)
	}

	// Waiters share the leader's fetch, so it must outlive the leader's ctx.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(schemaType, func() (any, error) {
		c.fetches.Add(1)
		s, err := c.fetcher.FetchSchema(fetchCtx, schemaType)
		if err != nil {
			return Schema{}, err
		}
		if s.Type == "" {
			s.Type = schemaType
		}
		if s.FetchedAt.IsZero() {
			s.FetchedAt = time.Now()
		}
		if err := c.Put(fetchCtx, s); err != nil {
			return Schema{}, err
		}
		return s, nil
	})
	if err != nil {
		return Schema{}, err
	}
	c.logger.Debug("schema fetched",
		slog.String("schema_type", schemaType),
		slog.Bool("shared", shared))
	return v.(Schema), nil
}

// Invalidate drops a schema from both tiers.
func (c *SchemaCache) Invalidate(ctx context.Context, schemaType string) error {
	c.mem.Del(schemaType)
	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, c.keys.Key(schemaBucket, schemaType))
}

// Stats returns a snapshot of cache activity.
func (c *SchemaCache) Stats() SchemaStats {
	return SchemaStats{
		Hits:      c.hits.Load(),
		StoreHits: c.storeHits.Load(),
		Misses:    c.misses.Load(),
		Fetches:   c.fetches.Load(),
	}
}

// Close releases the memory tier. The store is owned by the caller.
func (c *SchemaCache) Close() {
	c.mem.Close()
}
