// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package actions

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

func TestAction_Builder(t *testing.T) {
	base := New(Of(KindGenerateResponse))
	assert.Equal(t, DefaultCost, base.Cost())
	assert.Equal(t, DefaultDuration, base.Duration())
	assert.Equal(t, DefaultConfidence, base.Confidence())

	tuned := base.
		Requires(world.SchemaAvailable("x"), world.SchemaAvailable("x")).
		Produces(world.ResponseGenerated).
		WithCost(400).
		WithDuration(0).
		WithConfidence(250)

	t.Run("builder copies", func(t *testing.T) {
		assert.Empty(t, base.Preconditions())
		assert.Equal(t, DefaultCost, base.Cost())
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		assert.Equal(t, []world.Property{world.SchemaAvailable("x")}, tuned.Preconditions())
	})

	t.Run("confidence clamps", func(t *testing.T) {
		assert.Equal(t, uint8(100), tuned.Confidence())
	})

	t.Run("returned slices are copies", func(t *testing.T) {
		eff := tuned.Effects()
		eff[0] = world.PatternLearned
		assert.Equal(t, []world.Property{world.ResponseGenerated}, tuned.Effects())
	})
}

func TestAction_EstimateCost(t *testing.T) {
	tests := []struct {
		name     string
		cost     uint32
		duration time.Duration
		want     uint32
	}{
		{"no duration", 400, 0, 400},
		{"whole hundreds", 100, 500 * time.Millisecond, 105},
		{"sub hundred truncates", 10, 50 * time.Millisecond, 10},
		{"long action", 0, 3 * time.Second, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Of(KindUpdateMetrics)).WithCost(tt.cost).WithDuration(tt.duration)
			if got := a.EstimateCost(); got != tt.want {
				t.Errorf("EstimateCost() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAction_CanExecuteAndApply(t *testing.T) {
	a := New(Of(KindGenerateResponse)).
		Requires(world.SchemaAvailable("x")).
		Produces(world.ResponseGenerated)

	s := world.New(1000, "req")
	assert.False(t, a.CanExecute(s))

	s.Set(world.SchemaAvailable("y"), true)
	assert.False(t, a.CanExecute(s), "different parameter is a different fact")

	s.Set(world.SchemaAvailable("x"), true)
	require.True(t, a.CanExecute(s))

	a.Apply(s)
	assert.True(t, s.Has(world.ResponseGenerated))
	assert.Equal(t, uint32(1000), s.TokensRemaining(), "Apply never touches the budget")
}

func TestType_JSON(t *testing.T) {
	data, err := json.Marshal([]Type{Of(KindDetectSchemaType), FetchSchema("kubernetes")})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"kind":"detect_schema_type"},{"kind":"fetch_schema","target":"kubernetes"}]`, string(data))

	var back []Type
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []Type{Of(KindDetectSchemaType), FetchSchema("kubernetes")}, back)

	assert.Error(t, json.Unmarshal([]byte(`[{"kind":"teleport"}]`), &back))
}

func TestCatalog(t *testing.T) {
	detect := New(Of(KindDetectSchemaType)).Produces(world.SchemaAvailable("x")).WithCost(50)
	gen := New(Of(KindGenerateResponse)).Requires(world.SchemaAvailable("x")).Produces(world.ResponseGenerated)
	tmpl := New(Of(KindGenerateFromTemplate)).Produces(world.ResponseGenerated)

	c := NewCatalog(detect, gen, tmpl)

	t.Run("insertion order", func(t *testing.T) {
		var kinds []Kind
		for _, a := range c.Actions() {
			kinds = append(kinds, a.Kind())
		}
		assert.Equal(t, []Kind{KindDetectSchemaType, KindGenerateResponse, KindGenerateFromTemplate}, kinds)
	})

	t.Run("add replaces in place", func(t *testing.T) {
		c2 := NewCatalog(detect, gen)
		c2.Add(detect.WithCost(7))
		got, ok := c2.Get(Of(KindDetectSchemaType))
		require.True(t, ok)
		assert.Equal(t, uint32(7), got.Cost())
		assert.Equal(t, KindDetectSchemaType, c2.Actions()[0].Kind())
		assert.Equal(t, 2, c2.Len())
	})

	t.Run("without leaves original", func(t *testing.T) {
		reduced := c.Without(Of(KindGenerateResponse))
		assert.Equal(t, 2, reduced.Len())
		assert.Equal(t, 3, c.Len())
		_, ok := reduced.Get(Of(KindGenerateResponse))
		assert.False(t, ok)
	})

	t.Run("eligible and achievers", func(t *testing.T) {
		s := world.New(1000, "req")
		assert.Len(t, c.Eligible(s), 2)
		assert.Len(t, c.Achievers(world.ResponseGenerated), 2)
	})

	t.Run("resolve", func(t *testing.T) {
		seq, err := c.Resolve([]Type{Of(KindDetectSchemaType), Of(KindGenerateResponse)})
		require.NoError(t, err)
		assert.Len(t, seq, 2)

		_, err = c.Resolve([]Type{FetchSchema("nope")})
		assert.True(t, errors.Is(err, ErrUnknownAction))
	})
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog("kubernetes")

	fetch, ok := c.Get(FetchSchema("kubernetes"))
	require.True(t, ok)
	assert.True(t, fetch.Achieves(world.SchemaAvailable("kubernetes")))

	gen, _ := c.Get(Of(KindGenerateResponse))
	tmpl, _ := c.Get(Of(KindGenerateFromTemplate))
	assert.True(t, gen.Kind().Terminal())
	assert.True(t, tmpl.Kind().Terminal())
	assert.Less(t, gen.EstimateCost()+fetch.EstimateCost(), tmpl.EstimateCost(),
		"schema route must stay cheaper than the template fallback")

	p := PatternAction("p1")
	assert.Equal(t, GenerateFromPattern("p1"), p.Type())
	assert.Contains(t, p.Preconditions(), world.PatternAvailable("p1"))
}
