// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyspace(t *testing.T) {
	ks := Keyspace{Namespace: "goap"}
	assert.Equal(t, "goap/patterns/", ks.Prefix("patterns"))
	assert.Equal(t, "goap/patterns/abc", ks.Key("patterns", "abc"))
	assert.Equal(t, "abc", ks.ID("patterns", "goap/patterns/abc"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("get missing", func(t *testing.T) {
		v, found, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, v)
	})

	t.Run("put copies value", func(t *testing.T) {
		buf := []byte("one")
		require.NoError(t, s.Put(ctx, "goap/patterns/1", buf))
		buf[0] = 'X'

		v, found, err := s.Get(ctx, "goap/patterns/1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "one", string(v))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.True(t, errors.Is(s.Put(ctx, "", nil), ErrEmptyKey))
	})

	t.Run("scan by prefix in order", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "goap/patterns/3", []byte("three")))
		require.NoError(t, s.Put(ctx, "goap/patterns/2", []byte("two")))
		require.NoError(t, s.Put(ctx, "goap/schemas/k8s", []byte("schema")))

		var keys []string
		err := s.Scan(ctx, "goap/patterns/", func(k string, _ []byte) error {
			keys = append(keys, k)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"goap/patterns/1", "goap/patterns/2", "goap/patterns/3"}, keys)
	})

	t.Run("scan stops on callback error", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := s.Scan(ctx, "goap/", func(string, []byte) error {
			calls++
			return stop
		})
		assert.True(t, errors.Is(err, stop))
		assert.Equal(t, 1, calls)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "goap/patterns/2"))
		require.NoError(t, s.Delete(ctx, "goap/patterns/2"))
		_, found, _ := s.Get(ctx, "goap/patterns/2")
		assert.False(t, found)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, s.Close())
		_, _, err := s.Get(ctx, "goap/patterns/1")
		assert.True(t, errors.Is(err, ErrClosed))
		assert.True(t, errors.Is(s.Put(ctx, "k", nil), ErrClosed))
	})
}
