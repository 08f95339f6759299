// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planning

import (
	"fmt"
	"math"

	"github.com/AleutianAI/AleutianGOAP/services/goap/actions"
	"github.com/AleutianAI/AleutianGOAP/services/goap/goals"
	"github.com/AleutianAI/AleutianGOAP/services/goap/world"
)

// -----------------------------------------------------------------------------
// Heuristic
// -----------------------------------------------------------------------------

// Heuristic estimates the remaining cost from state to goal.
//
// Implementations must be admissible: the estimate never exceeds the cost
// of the cheapest plan from state to goal. Returning +Inf marks a state
// from which the goal cannot be reached.
type Heuristic interface {
	Estimate(state *world.State, goal *goals.GoalState) float64
}

// HeuristicFunc adapts a function to the Heuristic interface.
type HeuristicFunc func(state *world.State, goal *goals.GoalState) float64

// Estimate calls f.
func (f HeuristicFunc) Estimate(state *world.State, goal *goals.GoalState) float64 {
	return f(state, goal)
}

// HeuristicFactory builds a heuristic for one catalog. The planner calls it
// once per search because the catalog can change between replanning attempts.
type HeuristicFactory func(catalog *actions.Catalog) Heuristic

// ZeroHeuristic always estimates zero, turning A* into uniform-cost search.
var ZeroHeuristic Heuristic = HeuristicFunc(func(*world.State, *goals.GoalState) float64 { return 0 })

// ZeroFactory returns ZeroHeuristic for any catalog.
func ZeroFactory(*actions.Catalog) Heuristic { return ZeroHeuristic }

// Weights are the coefficients of the weighted heuristic.
type Weights struct {
	// Alpha weighs the token-cost lower bound.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Beta weighs the time-cost lower bound.
	Beta float64 `json:"beta" yaml:"beta"`

	// Gamma weighs the failure-risk term.
	Gamma float64 `json:"gamma" yaml:"gamma"`
}

// WeightTolerance is how far the weights may sum from 1.0.
const WeightTolerance = 1e-6

// DefaultWeights returns α=0.6, β=0.3, γ=0.1.
func DefaultWeights() Weights {
	return Weights{Alpha: 0.6, Beta: 0.3, Gamma: 0.1}
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		return fmt.Errorf("heuristic weights must be non-negative, got %+v", w)
	}
	if sum := w.Alpha + w.Beta + w.Gamma; math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("heuristic weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// propertyBound caches the cheapest way to make one property hold.
type propertyBound struct {
	minTokens     float64
	minTime       float64
	maxConfidence float64
}

// WeightedHeuristic combines token cost, time cost and failure risk.
//
// Description:
//
//	For every unsatisfied required property p the catalog gives:
//
//	  tokenLB(p) = min cost over actions producing p
//	  timeLB(p)  = min duration_ms/100 over actions producing p
//
//	Any plan must contain an action producing p, and every action's
//	estimated cost is cost + duration_ms/100, so each bound alone never
//	exceeds the remaining cost. With a = max tokenLB, b = max timeLB and
//	m = max(a, b) the estimate is
//
//	  h = α·a + β·b + γ·(1 − p_success)·m
//
//	where p_success is the lowest best-confidence among the unsatisfied
//	properties. Every term is at most m and α+β+γ = 1, so h ≤ m, which is
//	itself a lower bound. A property nothing produces makes h = +Inf.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type WeightedHeuristic struct {
	weights Weights
	bounds  map[world.Property]propertyBound
}

// NewWeightedHeuristic precomputes per-property bounds for catalog.
func NewWeightedHeuristic(weights Weights, catalog *actions.Catalog) *WeightedHeuristic {
	bounds := make(map[world.Property]propertyBound)
	for _, a := range catalog.Actions() {
		tokens := float64(a.Cost())
		elapsed := float64(a.Duration().Milliseconds() / 100)
		confidence := float64(a.Confidence()) / 100
		for _, p := range a.Effects() {
			b, ok := bounds[p]
			if !ok {
				bounds[p] = propertyBound{minTokens: tokens, minTime: elapsed, maxConfidence: confidence}
				continue
			}
			b.minTokens = math.Min(b.minTokens, tokens)
			b.minTime = math.Min(b.minTime, elapsed)
			b.maxConfidence = math.Max(b.maxConfidence, confidence)
			bounds[p] = b
		}
	}
	return &WeightedHeuristic{weights: weights, bounds: bounds}
}

// WeightedFactory returns a factory building WeightedHeuristic with weights.
func WeightedFactory(weights Weights) HeuristicFactory {
	return func(catalog *actions.Catalog) Heuristic {
		return NewWeightedHeuristic(weights, catalog)
	}
}

// Estimate implements Heuristic.
func (h *WeightedHeuristic) Estimate(state *world.State, goal *goals.GoalState) float64 {
	var tokenLB, timeLB float64
	success := 1.0
	unsatisfied := false

	for _, p := range goal.Required {
		if state.Has(p) {
			continue
		}
		unsatisfied = true
		b, ok := h.bounds[p]
		if !ok {
			return math.Inf(1)
		}
		tokenLB = math.Max(tokenLB, b.minTokens)
		timeLB = math.Max(timeLB, b.minTime)
		success = math.Min(success, b.maxConfidence)
	}
	if !unsatisfied {
		return 0
	}

	m := math.Max(tokenLB, timeLB)
	return h.weights.Alpha*tokenLB + h.weights.Beta*timeLB + h.weights.Gamma*(1-success)*m
}
