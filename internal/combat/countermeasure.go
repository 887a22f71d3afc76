package combat

import (
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/world"
)

// Countermeasure activation tuning.
const (
	// alertChancePerLevel is the activation chance added per alert level.
	alertChancePerLevel = 0.15

	// immediateResponseDamage is the damage above which the independent
	// high-damage response roll applies.
	immediateResponseDamage = 300

	// immediateResponseCap caps the high-damage response chance.
	immediateResponseCap = 0.8
)

// evaluateCountermeasure runs the post-raid retaliation check and, on
// activation, resolves the effect immediately against the rebel inside
// the caller's section. The stealth bonus (a team formation's) scales
// both activation rolls down but never to zero.
//
// Activation is evaluated twice per raid: once proportional to the
// corporation's alert level and once, independently, for high-damage
// raids. Either success activates.
func (e *Engine) evaluateCountermeasure(r *world.Rebel, inv *world.Inventory, c *world.Corporation, dmg int, stealth float64, now time.Time) *world.Countermeasure {
	exposure := 1.0 - stealth
	if exposure < 0 {
		exposure = 0
	}

	activated := e.rnd.Float64() < alertChancePerLevel*float64(c.AlertLevel)*exposure

	if !activated && dmg > immediateResponseDamage {
		chance := float64(dmg) / 500
		if chance > immediateResponseCap {
			chance = immediateResponseCap
		}
		activated = e.rnd.Float64() < chance*exposure
	}

	if !activated {
		return nil
	}

	archetype := world.Archetypes[e.rnd.IntN(len(world.Archetypes))]
	cm := &world.Countermeasure{
		ID:          uuid.New().String(),
		ArchetypeID: archetype.ID,
		RebelID:     r.ID,
		CorpID:      c.ID,
		Severity:    archetype.Severity,
		Effect:      archetype.Effect,
		StartedAt:   now,
		EndsAt:      now.Add(archetype.Duration),
	}

	power := archetype.Severity.Power()
	if inv.BestProtection(now) >= power {
		cm.Blocked = true
	} else {
		applyPenalty(r, inv, archetype.Effect, power)
	}

	c.Countermeasures = append(c.Countermeasures, cm)
	return cm
}

// applyPenalty applies the severity-scaled penalty for an unblocked
// countermeasure directly to the rebel and their inventory.
func applyPenalty(r *world.Rebel, inv *world.Inventory, effect world.EffectKind, power int) {
	switch effect {
	case world.EffectEnergyDrain:
		r.DrainEnergy(power / 2)
	case world.EffectCreditLoss:
		inv.Drain(int64(power) * 10)
	case world.EffectLoyaltyLoss:
		r.DrainLoyalty(power / 5)
	}
}
