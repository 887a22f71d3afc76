package world

import "time"

// MaxAlertLevel caps a corporation's alert level.
const MaxAlertLevel = 5

// Corporation is an adversary entity with a regenerating health pool.
// Corporations are created at process start from the catalog and live
// for the process lifetime; they are "defeated" as an event, never
// removed.
type Corporation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"max_health"`
	Weakness  string `json:"weakness"`

	// LootTable lists item catalog ids raids can drop.
	LootTable []string `json:"loot_table"`

	AlertLevel int `json:"alert_level"`

	// Countermeasures holds active and expired retaliation records.
	// Expired entries are inert; readers filter by end time.
	Countermeasures []*Countermeasure `json:"countermeasures,omitempty"`

	// Threat accumulates damage dealt per rebel id.
	Threat map[string]int64 `json:"threat,omitempty"`
}

// ApplyDamage reduces health by dmg, flooring at zero. When health
// reaches zero the corporation is defeated: health resets to max within
// the same mutation and the defeat is reported to the caller.
func (c *Corporation) ApplyDamage(dmg int) (defeated bool) {
	c.Health -= dmg
	if c.Health > 0 {
		return false
	}
	c.Health = c.MaxHealth
	return true
}

// RaiseAlert increases the alert level by floor(dmg/200), capped at
// MaxAlertLevel. Alert never decays on its own; only admin or event
// actions may reduce it.
func (c *Corporation) RaiseAlert(dmg int) {
	c.AlertLevel += dmg / 200
	if c.AlertLevel > MaxAlertLevel {
		c.AlertLevel = MaxAlertLevel
	}
}

// RecordThreat accumulates damage against the per-rebel threat ledger.
func (c *Corporation) RecordThreat(rebelID string, dmg int) {
	if c.Threat == nil {
		c.Threat = map[string]int64{}
	}
	c.Threat[rebelID] += int64(dmg)
}

// ActiveCountermeasures returns the countermeasures still in effect at
// the given time. Expired records stay in the slice and are skipped
// here rather than eagerly purged.
func (c *Corporation) ActiveCountermeasures(now time.Time) []*Countermeasure {
	var active []*Countermeasure
	for _, cm := range c.Countermeasures {
		if now.Before(cm.EndsAt) {
			active = append(active, cm)
		}
	}
	return active
}

// PruneCountermeasures drops records expired for longer than the grace
// period. Called by the market maintenance sweep to bound memory growth.
func (c *Corporation) PruneCountermeasures(now time.Time, grace time.Duration) {
	kept := c.Countermeasures[:0]
	for _, cm := range c.Countermeasures {
		if now.Before(cm.EndsAt.Add(grace)) {
			kept = append(kept, cm)
		}
	}
	c.Countermeasures = kept
}

// Regenerate restores a fraction of max health, clamped at max. Used by
// the corporate regeneration sweep.
func (c *Corporation) Regenerate(fraction float64) {
	c.Health += int(float64(c.MaxHealth) * fraction)
	if c.Health > c.MaxHealth {
		c.Health = c.MaxHealth
	}
}
