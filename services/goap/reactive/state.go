// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reactive

import (
	"fmt"
	"slices"
)

// State is a phase of the controller's run loop.
type State int

const (
	Executing State = iota
	Succeeded
	FailureDetected
	Replanning
	Aborted
)

func (s State) String() string {
	switch s {
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case FailureDetected:
		return "failure_detected"
	case Replanning:
		return "replanning"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Aborted
}

var transitions = map[State][]State{
	Executing:       {Succeeded, FailureDetected},
	FailureDetected: {Replanning, Aborted},
	Replanning:      {Executing, Aborted},
}

// CanTransition reports whether the controller may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
