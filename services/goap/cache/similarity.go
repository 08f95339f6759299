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
	"hash/fnv"
	"math"
	"slices"
	"strings"
	"unicode"
)

// Signature is a fixed-width similarity hash of a request.
type Signature []uint64

// Similarity turns request text into signatures and compares them.
type Similarity interface {
	// Signature hashes text.
	Signature(text string) Signature

	// Similarity estimates how alike two signatures are, from 0 to 1.
	Similarity(a, b Signature) float64
}

// bander is implemented by similarity schemes that support LSH banding.
type bander interface {
	BandKeys(sig Signature) []uint64
}

// -----------------------------------------------------------------------------
// MinHash
// -----------------------------------------------------------------------------

const (
	// DefaultNumHashes is the signature width.
	DefaultNumHashes = 128

	// DefaultBands is the number of LSH bands.
	DefaultBands = 32

	// DefaultRowsPerBand is the number of signature rows per band.
	DefaultRowsPerBand = 4
)

// MinHash estimates Jaccard similarity over word shingles.
//
// Description:
//
//	Text is lower-cased and split on anything that is not a letter or digit.
//	The shingle set holds every word and every adjacent word pair, so word
//	order counts for something without dominating. Each shingle is hashed
//	with FNV-64a and passed through NumHashes universal hash functions
//	h(x) = a·x + b; the signature keeps the minimum per function. The
//	fraction of equal positions in two signatures estimates the Jaccard
//	similarity of their shingle sets.
//
//	For candidate retrieval the signature is cut into bands of rows. Two
//	requests collide in a band when all its rows match; with 32 bands of 4
//	rows a pair at similarity 0.7 collides in at least one band with
//	probability above 0.999 while a pair at 0.3 collides about 23% of the
//	time.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type MinHash struct {
	numHashes int
	bands     int
	rows      int
	coeffs    []uint64
}

// NewMinHash creates a MinHash with the given width and banding. Invalid
// values fall back to the defaults; bands*rows is capped at numHashes.
func NewMinHash(numHashes, bands, rows int) *MinHash {
	if numHashes <= 0 {
		numHashes = DefaultNumHashes
	}
	if bands <= 0 {
		bands = DefaultBands
	}
	if rows <= 0 {
		rows = DefaultRowsPerBand
	}
	if bands*rows > numHashes {
		bands = numHashes / rows
	}
	coeffs := make([]uint64, numHashes*2)
	for i := range coeffs {
		// Odd multipliers keep a·x a bijection mod 2^64.
		coeffs[i] = uint64(i*0x9e3779b9+0x6c62272e) | 1
	}
	return &MinHash{numHashes: numHashes, bands: bands, rows: rows, coeffs: coeffs}
}

// DefaultMinHash returns a MinHash with 128 hashes in 32 bands of 4 rows.
func DefaultMinHash() *MinHash {
	return NewMinHash(DefaultNumHashes, DefaultBands, DefaultRowsPerBand)
}

// Signature implements Similarity. Text without words yields an all-max
// signature, which is similar to nothing.
func (m *MinHash) Signature(text string) Signature {
	sig := make(Signature, m.numHashes)
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, shingle := range Shingles(text) {
		x := hash64(shingle)
		for i := 0; i < m.numHashes; i++ {
			h := m.coeffs[i*2]*x + m.coeffs[i*2+1]
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// Similarity implements Similarity. Signatures of different widths score 0.
func (m *MinHash) Similarity(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] && a[i] != math.MaxUint64 {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// BandKeys returns one hash per band, salted with the band index.
func (m *MinHash) BandKeys(sig Signature) []uint64 {
	if len(sig) < m.bands*m.rows {
		return nil
	}
	keys := make([]uint64, m.bands)
	for b := 0; b < m.bands; b++ {
		var hash uint64 = 0x9e3779b97f4a7c15 ^ uint64(b)
		for _, v := range sig[b*m.rows : (b+1)*m.rows] {
			hash ^= v
			hash *= 0x6c62272e07bb0142
		}
		keys[b] = hash
	}
	return keys
}

// Shingles returns the sorted, de-duplicated word and word-pair shingles of text.
func Shingles(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words)*2)
	for i, w := range words {
		out = append(out, w)
		if i > 0 {
			out = append(out, words[i-1]+" "+w)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Normalize collapses text to its lower-case words separated by single spaces.
func Normalize(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// -----------------------------------------------------------------------------
// Candidate indexes
// -----------------------------------------------------------------------------

// candidateIndex narrows the patterns worth comparing against a query.
type candidateIndex interface {
	add(id string, sig Signature)
	remove(id string, sig Signature)
	candidates(sig Signature) []string
}

// newIndex picks an LSH index when the similarity supports banding.
func newIndex(sim Similarity) candidateIndex {
	if b, ok := sim.(bander); ok {
		return &lshIndex{bander: b, buckets: make(map[bandKey]map[string]struct{})}
	}
	return &scanIndex{ids: make(map[string]struct{})}
}

type bandKey struct {
	band int
	hash uint64
}

// lshIndex maps each band hash to the patterns that produced it.
type lshIndex struct {
	bander  bander
	buckets map[bandKey]map[string]struct{}
}

func (x *lshIndex) add(id string, sig Signature) {
	for b, h := range x.bander.BandKeys(sig) {
		k := bandKey{band: b, hash: h}
		bucket, ok := x.buckets[k]
		if !ok {
			bucket = make(map[string]struct{})
			x.buckets[k] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (x *lshIndex) remove(id string, sig Signature) {
	for b, h := range x.bander.BandKeys(sig) {
		k := bandKey{band: b, hash: h}
		if bucket, ok := x.buckets[k]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(x.buckets, k)
			}
		}
	}
}

func (x *lshIndex) candidates(sig Signature) []string {
	seen := make(map[string]struct{})
	for b, h := range x.bander.BandKeys(sig) {
		for id := range x.buckets[bandKey{band: b, hash: h}] {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// scanIndex returns every pattern; used when the similarity cannot band.
type scanIndex struct {
	ids map[string]struct{}
}

func (x *scanIndex) add(id string, _ Signature)    { x.ids[id] = struct{}{} }
func (x *scanIndex) remove(id string, _ Signature) { delete(x.ids, id) }

func (x *scanIndex) candidates(Signature) []string {
	out := make([]string, 0, len(x.ids))
	for id := range x.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
