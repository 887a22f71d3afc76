package world

// GlobalEvent is a world-wide objective rebels contribute to, e.g. a
// coordinated strike against a corporation. Contributions accumulate
// per participant; the event completes when progress reaches target.
type GlobalEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	CorpID string `json:"corp_id,omitempty"`

	// Contributions maps rebel id to accumulated contribution.
	Contributions map[string]int64 `json:"contributions"`

	Target   int64  `json:"target"`
	Progress int64  `json:"progress"`
	Reward   Reward `json:"reward"`
	Status   string `json:"status"`
}

// Reward describes what participants receive when an event completes.
type Reward struct {
	Credits int64 `json:"credits"`
	Loyalty int   `json:"loyalty"`
}

// Event lifecycle states.
const (
	EventActive    = "active"
	EventCompleted = "completed"
)

// Contribute records a participant's contribution and reports whether
// this contribution completed the event.
func (e *GlobalEvent) Contribute(rebelID string, amount int64) (completed bool) {
	if e.Status != EventActive {
		return false
	}
	if e.Contributions == nil {
		e.Contributions = map[string]int64{}
	}
	e.Contributions[rebelID] += amount
	e.Progress += amount
	if e.Progress >= e.Target {
		e.Status = EventCompleted
		return true
	}
	return false
}
