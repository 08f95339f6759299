// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGOAP/services/goap/storage"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"in memory", InMemoryConfig(), false},
		{"default with path", DefaultConfig("/tmp/goap"), false},
		{"missing path", Config{}, true},
		{"negative ttl", Config{InMemory: true, EntryTTL: -time.Second}, true},
		{"bad ratio", Config{InMemory: true, GCDiscardRatio: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ks := storage.Keyspace{Namespace: "goap"}

	_, found, err := s.Get(ctx, ks.Key("patterns", "missing"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, ks.Key("patterns", "b"), []byte("B")))
	require.NoError(t, s.Put(ctx, ks.Key("patterns", "a"), []byte("A")))
	require.NoError(t, s.Put(ctx, ks.Key("schemas", "kubernetes"), []byte("K")))

	v, found, err := s.Get(ctx, ks.Key("patterns", "a"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("A"), v)

	var ids []string
	err = s.Scan(ctx, ks.Prefix("patterns"), func(key string, value []byte) error {
		ids = append(ids, ks.ID("patterns", key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete(ctx, ks.Key("patterns", "a")))
	_, found, err = s.Get(ctx, ks.Key("patterns", "a"))
	require.NoError(t, err)
	assert.False(t, found)

	assert.True(t, errors.Is(s.Put(ctx, "", []byte("x")), storage.ErrEmptyKey))
}

func TestStore_ScanStopsOnError(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	for _, k := range []string{"p/1", "p/2", "p/3"} {
		require.NoError(t, s.Put(ctx, k, []byte(k)))
	}

	stop := errors.New("stop")
	calls := 0
	err = s.Scan(ctx, "p/", func(string, []byte) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.True(t, errors.Is(err, stop))
	assert.Equal(t, 2, calls)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncWrites = false
	cfg.GCInterval = 50 * time.Millisecond

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "goap/patterns/keep", []byte("kept")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.Get(ctx, "goap/patterns/keep")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "kept", string(v))
}

func TestStore_Closed(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "k")
	assert.True(t, errors.Is(err, storage.ErrClosed), "got %v", err)
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(s.Put(ctx, "k", nil), context.Canceled))
}
