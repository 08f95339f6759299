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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
)

func newTestSchemaCache(t *testing.T, store storage.Store, fetcher SchemaFetcher) *SchemaCache {
	t.Helper()
	c, err := NewSchemaCache(DefaultSchemaCacheConfig(), store, fetcher, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestDetectSchemaType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Create a GitHub Actions workflow for Go", "github_actions"},
		{"k8s deployment for nginx", "kubernetes"},
		{"docker-compose file with redis and postgres", "docker_compose"},
		{"Terraform module for an S3 bucket", "terraform"},
		{"ansible playbook to install nginx", "ansible"},
		{"a yaml list of my favourite books", "generic_yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSchemaType(tt.text))
		})
	}
}

func TestBuiltinSchemas_CoverDetectedTypes(t *testing.T) {
	builtin := BuiltinSchemas()
	for _, st := range schemaKeywords {
		assert.Contains(t, builtin, st.schemaType)
	}
	assert.Contains(t, builtin, "generic_yaml")
}

func TestSchemaCache_GetOrFetch(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	fetcher := SchemaFetcherFunc(func(ctx context.Context, schemaType string) (Schema, error) {
		calls.Add(1)
		return BuiltinSchemas().FetchSchema(ctx, schemaType)
	})
	store := storage.NewMemoryStore()
	c := newTestSchemaCache(t, store, fetcher)

	s, err := c.GetOrFetch(ctx, "kubernetes")
	require.NoError(t, err)
	assert.Equal(t, "kubernetes", s.Type)
	assert.Contains(t, s.Body, "apiVersion")
	assert.False(t, s.FetchedAt.IsZero())

	_, err = c.GetOrFetch(ctx, "kubernetes")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from cache")

	_, err = c.GetOrFetch(ctx, "cobol_copybook")
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
	assert.Equal(t, int64(2), c.Stats().Fetches)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSchemaCache_ConcurrentFetch(t *testing.T) {
	ctx := context.Background()
	c := newTestSchemaCache(t, storage.NewMemoryStore(), BuiltinSchemas())

	var wg sync.WaitGroup
	results := make([]Schema, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.GetOrFetch(ctx, "terraform")
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	wg.Wait()
	for _, s := range results {
		assert.Equal(t, "terraform", s.Type)
	}
	assert.GreaterOrEqual(t, c.Stats().Fetches, int64(1))
}

func TestSchemaCache_FetchOutlivesCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value
	fetcher := SchemaFetcherFunc(func(fctx context.Context, schemaType string) (Schema, error) {
		close(started)
		<-release
		if err := fctx.Err(); err != nil {
			fetchErr.Store(err)
			return Schema{}, err
		}
		return Schema{Type: schemaType, Body: "name: string"}, nil
	})
	c := newTestSchemaCache(t, storage.NewMemoryStore(), fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "custom")
		done <- err
	}()
	<-started
	cancel()
	close(release)

	require.NoError(t, <-done)
	assert.Nil(t, fetchErr.Load(), "fetch ran under a cancelled context")

	s, err := c.GetOrFetch(context.Background(), "custom")
	require.NoError(t, err)
	assert.Equal(t, "name: string", s.Body)
	assert.False(t, s.FetchedAt.IsZero(), "fetched schemas are stamped")
	assert.Equal(t, int64(1), c.Stats().Fetches)
}

func TestSchemaCache_PutRejectsEmptyType(t *testing.T) {
	c := newTestSchemaCache(t, nil, nil)
	err := c.Put(context.Background(), Schema{Body: "a: b"})
	assert.True(t, errors.Is(err, ErrInvalidSchema))
	assert.False(t, errors.Is(err, ErrInvalidPattern))
}

func TestSchemaCache_StoreTier(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := newTestSchemaCache(t, store, nil)
	require.NoError(t, first.Put(ctx, Schema{Type: "custom", Body: "a: b"}))

	second := newTestSchemaCache(t, store, nil)
	s, found, err := second.Get(ctx, "custom")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a: b", s.Body)
	assert.Equal(t, int64(1), second.Stats().StoreHits)

	require.NoError(t, second.Invalidate(ctx, "custom"))
	_, err = second.GetOrFetch(ctx, "custom")
	assert.True(t, errors.Is(err, ErrSchemaNotFound), "no fetcher configured")
}

func TestSchemaCache_CorruptStoreEntry(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ks := storage.Keyspace{Namespace: "goap"}
	require.NoError(t, store.Put(ctx, ks.Key(schemaBucket, "kubernetes"), []byte("garbage")))

	c := newTestSchemaCache(t, store, BuiltinSchemas())
	s, err := c.GetOrFetch(ctx, "kubernetes")
	require.NoError(t, err, "corrupt entry falls through to the fetcher")
	assert.Equal(t, "kubernetes", s.Type)
}

func TestNewSchemaCache_InvalidConfig(t *testing.T) {
	_, err := NewSchemaCache(SchemaCacheConfig{}, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
