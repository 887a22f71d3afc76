package party

import (
	"slices"
	"time"

	"github.com/latchko/go-uprising/internal/combat"
)

// State is a raid party's lifecycle state.
type State string

const (
	StateForming   State = "forming"
	StatePlanning  State = "planning"
	StateReady     State = "ready"
	StateExecuting State = "executing"
	StateCompleted State = "completed"
	StateDisbanded State = "disbanded"
)

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateDisbanded
}

// Party is one raid party. All access goes through the Manager's lock.
type Party struct {
	ID          string
	LeaderID    string
	CorpID      string
	FormationID string

	State State

	members map[string]bool
	ready   map[string]bool

	CreatedAt   time.Time
	CompletedAt time.Time

	Result *combat.TeamOutcome
}

// memberIDs returns the member set in ascending order.
func (p *Party) memberIDs() []string {
	ids := make([]string, 0, len(p.members))
	for id := range p.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// allReady reports whether every member has toggled ready.
func (p *Party) allReady() bool {
	for id := range p.members {
		if !p.ready[id] {
			return false
		}
	}
	return true
}

// View is a copy of a party's state safe to hand to callers.
type View struct {
	ID          string              `json:"id"`
	LeaderID    string              `json:"leader_id"`
	CorpID      string              `json:"corp_id"`
	FormationID string              `json:"formation_id"`
	State       State               `json:"state"`
	Members     []string            `json:"members"`
	Ready       []string            `json:"ready"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
	Result      *combat.TeamOutcome `json:"result,omitempty"`
}

func (p *Party) view() *View {
	v := &View{
		ID:          p.ID,
		LeaderID:    p.LeaderID,
		CorpID:      p.CorpID,
		FormationID: p.FormationID,
		State:       p.State,
		Members:     p.memberIDs(),
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
		Result:      p.Result,
	}
	for id := range p.ready {
		if p.ready[id] {
			v.Ready = append(v.Ready, id)
		}
	}
	slices.Sort(v.Ready)
	return v
}
