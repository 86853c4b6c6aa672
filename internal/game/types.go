// internal/game/types.go
//
// Core type definitions for the tree-matching game engine.
// Defines:
//   - Placement: per-node correctness flag (unset/correct/incorrect).
//   - Status: derived session status (playing/completed).
//   - Feedback: the transient message shown after an attempt.
//   - NodeState / Snapshot: read-only views handed to the presentation layer.
//   - Result: outcome of AttemptPlacement.

package game

import "github.com/robalobadob/oceantree/internal/catalog"

// Placement is the tri-state correctness flag of a tree node.
type Placement string

const (
	PlacementUnset     Placement = "unset"
	PlacementCorrect   Placement = "correct"
	PlacementIncorrect Placement = "incorrect"
)

// Status is derived from the available collection; it is never stored.
type Status string

const (
	StatusPlaying   Status = "playing"
	StatusCompleted Status = "completed"
)

// FeedbackKind selects how the board styles a message.
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
)

// Feedback is a transient message tied to one placement attempt.
// Seq identifies the attempt so late timers only touch their own message.
type Feedback struct {
	Seq  uint64       `json:"seq"`
	Kind FeedbackKind `json:"kind"`
	Text string       `json:"text"`
}

// NodeState is a tree node as seen in a snapshot.
// CorrectSpecies is kept out of JSON so clients never receive the answers.
type NodeState struct {
	ID             string           `json:"id"`
	Label          string           `json:"label"`
	X              float64          `json:"x"`
	Y              float64          `json:"y"`
	CorrectSpecies []string         `json:"-"`
	Placed         *catalog.Species `json:"placedSpecies,omitempty"`
	Placement      Placement        `json:"placement"`
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Version             uint64            `json:"version"`
	Nodes               []NodeState       `json:"nodes"`
	Available           []catalog.Species `json:"availableSpecies"`
	Score               int               `json:"score"`
	CorrectPlacements   int               `json:"correctPlacements"`
	TotalPlacements     int               `json:"totalPlacements"`
	IncorrectPlacements int               `json:"incorrectPlacements"`
	TotalSpecies        int               `json:"totalSpecies"`
	Status              Status            `json:"status"`
	Progress            float64           `json:"progress"` // percent, 0..100
	Feedback            *Feedback         `json:"feedback,omitempty"`
}

// Result reports whether an attempt changed state and whether it was right.
type Result struct {
	Accepted bool `json:"accepted"`
	Correct  bool `json:"correct"`
}

// Progress is the percentage of answerable nodes holding a correct species.
// Nodes with an empty answer set are not counted; with none left the
// progress is 0.
func Progress(nodes []NodeState) float64 {
	var done, answerable int
	for _, n := range nodes {
		if len(n.CorrectSpecies) == 0 {
			continue
		}
		answerable++
		if n.Placed != nil && n.Placement == PlacementCorrect {
			done++
		}
	}
	if answerable == 0 {
		return 0
	}
	return float64(done) / float64(answerable) * 100
}
