package combat

import "github.com/latchko/go-uprising/internal/world"

// RaidOutcome reports everything a single raid changed. All fields are
// copies decided inside the mutation section; callers may hand the
// outcome to collaborators without touching live state.
type RaidOutcome struct {
	RebelID string `json:"rebel_id"`
	CorpID  string `json:"corp_id"`

	Damage   int  `json:"damage"`
	Defeated bool `json:"defeated"`

	LoyaltyGained    int  `json:"loyalty_gained"`
	ExperienceGained int  `json:"experience_gained"`
	LeveledUp        bool `json:"leveled_up"`
	Level            int  `json:"level"`
	EnergyLeft       int  `json:"energy_left"`

	Loot []*world.Item `json:"loot,omitempty"`

	// LootDropped counts loot rolls lost to a full inventory.
	LootDropped int `json:"loot_dropped,omitempty"`

	Countermeasure *world.Countermeasure `json:"countermeasure,omitempty"`
	AlertLevel     int                   `json:"alert_level"`
}

// MemberResult is one member's share of a team raid.
type MemberResult struct {
	RebelID          string        `json:"rebel_id"`
	Damage           int           `json:"damage"`
	LoyaltyGained    int           `json:"loyalty_gained"`
	ExperienceGained int           `json:"experience_gained"`
	LeveledUp        bool          `json:"leveled_up"`
	Credits          int64         `json:"credits"`
	Loot             []*world.Item `json:"loot,omitempty"`

	Countermeasure *world.Countermeasure `json:"countermeasure,omitempty"`
}

// TeamOutcome reports a synchronized team raid: one combined attack
// against the target with per-member shares of the spoils.
type TeamOutcome struct {
	CorpID      string          `json:"corp_id"`
	Formation   string          `json:"formation"`
	TotalDamage int             `json:"total_damage"`
	Defeated    bool            `json:"defeated"`
	AlertLevel  int             `json:"alert_level"`
	Members     []*MemberResult `json:"members"`
}
