// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the key/value contract the caches persist through.
//
// Keys are plain strings namespaced by a prefix unique to the planning
// domain (see Keyspace). Every operation is atomic per key. Implementations
// live in this package (MemoryStore) and in storage/badger.
package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrClosed indicates use of a store after Close.
	ErrClosed = errors.New("store closed")

	// ErrEmptyKey indicates an empty key.
	ErrEmptyKey = errors.New("empty key")
)

// Store is the persistence collaborator.
type Store interface {
	// Get returns the value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan calls fn for every key with the given prefix in key order.
	// A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error

	// Close releases the store.
	Close() error
}

// Keyspace builds namespaced keys of the form "<namespace>/<bucket>/<id>".
type Keyspace struct {
	Namespace string
}

// Prefix returns the scan prefix for a bucket.
func (k Keyspace) Prefix(bucket string) string {
	return k.Namespace + "/" + bucket + "/"
}

// Key returns the key for id in bucket.
func (k Keyspace) Key(bucket, id string) string {
	return k.Prefix(bucket) + id
}

// ID strips the bucket prefix from key.
func (k Keyspace) ID(bucket, key string) string {
	return strings.TrimPrefix(key, k.Prefix(bucket))
}

// MemoryStore is an in-process Store backed by a map.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = slices.Clone(value)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Scan implements Store. It iterates over a snapshot, so fn may call back
// into the store.
func (m *MemoryStore) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = slices.Clone(m.data[k])
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
