// Package narrative turns structured outcomes into player-facing
// text. It runs strictly after a mutation has committed: a failure
// here degrades the description, never the game state.
package narrative

import (
	"context"
)

// Event is the structured context handed to a describer after an
// action commits.
type Event struct {
	Kind string `json:"kind"`

	ActorID    string `json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`

	Damage   int   `json:"damage,omitempty"`
	Defeated bool  `json:"defeated,omitempty"`
	Credits  int64 `json:"credits,omitempty"`
	Level    int   `json:"level,omitempty"`

	Items []string `json:"items,omitempty"`

	Detail map[string]any `json:"detail,omitempty"`
}

// Describer renders an event into prose.
type Describer interface {
	Describe(ctx context.Context, ev *Event) (string, error)
}
