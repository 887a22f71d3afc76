package world

import (
	"math"
	"time"
)

// MaxLevel is the highest level a rebel can reach.
const MaxLevel = 50

// RaidEnergyCost is the fixed energy cost of a single raid action.
const RaidEnergyCost = 25

// DefaultMaxEnergy is the energy pool a new rebel starts with.
const DefaultMaxEnergy = 100

// Class describes a rebel archetype. The set of classes is fixed; a
// rebel picks one on first join and keeps it.
type Class struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Stats      Stats   `json:"stats"`
}

// Stats is the four-attribute block carried by every rebel.
type Stats struct {
	Tech      int `json:"tech"`
	Stealth   int `json:"stealth"`
	Muscle    int `json:"muscle"`
	Influence int `json:"influence"`
}

// Classes is the fixed class catalog, keyed by class id.
var Classes = map[string]*Class{
	"netrunner": {Name: "Netrunner", Multiplier: 1.15, Stats: Stats{Tech: 8, Stealth: 5, Muscle: 2, Influence: 5}},
	"saboteur":  {Name: "Saboteur", Multiplier: 1.2, Stats: Stats{Tech: 5, Stealth: 7, Muscle: 6, Influence: 2}},
	"operative": {Name: "Operative", Multiplier: 1.0, Stats: Stats{Tech: 4, Stealth: 6, Muscle: 6, Influence: 4}},
	"fixer":     {Name: "Fixer", Multiplier: 0.9, Stats: Stats{Tech: 4, Stealth: 3, Muscle: 3, Influence: 10}},
}

// Rebel is a player-controlled entity. All mutation happens inside the
// Store's locked sections; nothing outside the store may hold a *Rebel
// across a suspension point.
type Rebel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`

	Level      int `json:"level"`
	Experience int `json:"experience"`

	Energy    int `json:"energy"`
	MaxEnergy int `json:"max_energy"`

	Loyalty       int   `json:"loyalty"`
	DamageDealt   int64 `json:"damage_dealt"`
	RaidCount     int   `json:"raid_count"`
	CorpsDefeated int   `json:"corps_defeated"`

	Zone       string    `json:"zone"`
	LastActive time.Time `json:"last_active"`

	Stats Stats `json:"stats"`

	// DailyMissions flags missions completed since the last daily reset.
	DailyMissions map[string]bool `json:"daily_missions,omitempty"`

	// Cooldowns maps action kinds to the time they become usable again.
	Cooldowns map[string]time.Time `json:"cooldowns,omitempty"`
}

// NewRebel creates a rebel of the given class at level 1 with a full
// energy pool. The class id must exist in Classes.
func NewRebel(id, name, classID string) *Rebel {
	class := Classes[classID]
	return &Rebel{
		ID:            id,
		Name:          name,
		Class:         classID,
		Level:         1,
		Energy:        DefaultMaxEnergy,
		MaxEnergy:     DefaultMaxEnergy,
		Zone:          "fringe",
		LastActive:    time.Now(),
		Stats:         class.Stats,
		DailyMissions: map[string]bool{},
		Cooldowns:     map[string]time.Time{},
	}
}

// LevelForExperience computes a rebel's level from cumulative experience.
// Level is always derived from this formula, never set independently.
func LevelForExperience(exp int) int {
	if exp < 0 {
		exp = 0
	}
	level := int(math.Sqrt(float64(exp)/100)) + 1
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}

// GainExperience adds experience and recomputes level. It reports
// whether the rebel leveled up.
func (r *Rebel) GainExperience(exp int) bool {
	r.Experience += exp
	level := LevelForExperience(r.Experience)
	leveled := level > r.Level
	r.Level = level
	return leveled
}

// SpendEnergy deducts cost from the rebel's energy pool. It fails with
// ErrInsufficientResource if the pool is too low; energy never goes
// negative.
func (r *Rebel) SpendEnergy(cost int) error {
	if r.Energy < cost {
		return ErrInsufficientResource
	}
	r.Energy -= cost
	return nil
}

// RestoreEnergy adds energy, clamped at MaxEnergy.
func (r *Rebel) RestoreEnergy(n int) {
	r.Energy += n
	if r.Energy > r.MaxEnergy {
		r.Energy = r.MaxEnergy
	}
}

// DrainEnergy removes energy, clamped at zero. Used by countermeasure
// penalties, which unlike actions may partially land.
func (r *Rebel) DrainEnergy(n int) {
	r.Energy -= n
	if r.Energy < 0 {
		r.Energy = 0
	}
}

// DrainLoyalty removes loyalty, clamped at zero.
func (r *Rebel) DrainLoyalty(n int) {
	r.Loyalty -= n
	if r.Loyalty < 0 {
		r.Loyalty = 0
	}
}

// OnCooldown reports whether the given action kind is still cooling down.
func (r *Rebel) OnCooldown(kind string, now time.Time) bool {
	until, ok := r.Cooldowns[kind]
	return ok && now.Before(until)
}

// SetCooldown marks an action kind unusable until now+d.
func (r *Rebel) SetCooldown(kind string, now time.Time, d time.Duration) {
	if r.Cooldowns == nil {
		r.Cooldowns = map[string]time.Time{}
	}
	r.Cooldowns[kind] = now.Add(d)
}

// ClearCooldown releases a pending cooldown for an action kind.
func (r *Rebel) ClearCooldown(kind string) {
	delete(r.Cooldowns, kind)
}

// ResetDaily refills energy and clears daily-mission state and cooldowns.
// Run once per calendar day by the scheduler.
func (r *Rebel) ResetDaily() {
	r.Energy = r.MaxEnergy
	r.DailyMissions = map[string]bool{}
	r.Cooldowns = map[string]time.Time{}
}
