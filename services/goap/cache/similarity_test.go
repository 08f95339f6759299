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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShingles(t *testing.T) {
	got := Shingles("Deploy the app, deploy!")
	assert.Equal(t, []string{"app", "app deploy", "deploy", "deploy the", "the", "the app"}, got)
	assert.Empty(t, Shingles("  ,;  "))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "create a k8s deployment", Normalize("  Create a K8s-Deployment! "))
}

func TestMinHash_Similarity(t *testing.T) {
	m := DefaultMinHash()
	base := "create a github workflow that runs go tests on every push to the main branch"

	t.Run("identical text", func(t *testing.T) {
		assert.Equal(t, 1.0, m.Similarity(m.Signature(base), m.Signature(base)))
	})

	t.Run("case and punctuation ignored", func(t *testing.T) {
		other := "Create a GitHub workflow, that runs Go tests on every push to the main branch."
		assert.Equal(t, 1.0, m.Similarity(m.Signature(base), m.Signature(other)))
	})

	t.Run("near duplicate", func(t *testing.T) {
		near := base + " nightly"
		s := m.Similarity(m.Signature(base), m.Signature(near))
		assert.GreaterOrEqual(t, s, 0.75)
		assert.Less(t, s, 1.0)
	})

	t.Run("unrelated", func(t *testing.T) {
		other := "terraform provider for postgres databases with replicas"
		assert.Less(t, m.Similarity(m.Signature(base), m.Signature(other)), 0.2)
	})

	t.Run("empty text matches nothing", func(t *testing.T) {
		assert.Equal(t, 0.0, m.Similarity(m.Signature(""), m.Signature("")))
	})

	t.Run("width mismatch", func(t *testing.T) {
		small := NewMinHash(16, 4, 4)
		assert.Equal(t, 0.0, m.Similarity(m.Signature(base), small.Signature(base)))
	})
}

func TestMinHash_BandKeys(t *testing.T) {
	m := DefaultMinHash()
	sig := m.Signature("deploy nginx to kubernetes")
	keys := m.BandKeys(sig)
	require.Len(t, keys, DefaultBands)
	assert.Equal(t, keys, m.BandKeys(m.Signature("Deploy NGINX to Kubernetes")))
	assert.Nil(t, m.BandKeys(sig[:8]))

	// Bands that would overrun the signature are trimmed.
	trimmed := NewMinHash(16, 32, 4)
	assert.Len(t, trimmed.BandKeys(trimmed.Signature("x")), 4)
}

func TestLSHIndex(t *testing.T) {
	m := DefaultMinHash()
	idx := newIndex(m)
	_, isLSH := idx.(*lshIndex)
	require.True(t, isLSH)

	a := m.Signature("create a kubernetes deployment for nginx with three replicas")
	b := m.Signature("terraform module for an s3 bucket with versioning")
	idx.add("a", a)
	idx.add("b", b)

	q := m.Signature("create a kubernetes deployment for nginx with three replicas please")
	assert.Contains(t, idx.candidates(q), "a")

	idx.remove("a", a)
	assert.NotContains(t, idx.candidates(q), "a")

	lsh := idx.(*lshIndex)
	idx.remove("b", b)
	assert.Empty(t, lsh.buckets, "empty buckets are dropped")
}

func TestScanIndex(t *testing.T) {
	idx := newIndex(fixedSimilarity(0.5))
	idx.add("b", nil)
	idx.add("a", nil)
	assert.Equal(t, []string{"a", "b"}, idx.candidates(nil))
	idx.remove("a", nil)
	assert.Equal(t, []string{"b"}, idx.candidates(nil))
}

// fixedSimilarity scores every pair the same.
type fixedSimilarity float64

func (f fixedSimilarity) Signature(string) Signature      { return Signature{1} }
func (f fixedSimilarity) Similarity(_, _ Signature) float64 { return float64(f) }
