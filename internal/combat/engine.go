package combat

import (
	"fmt"
	"slices"

	"github.com/latchko/go-uprising/internal/storage"
	"github.com/latchko/go-uprising/internal/world"
)

// Engine resolves raids against the entity store. It is stateless
// logic: every mutation happens inside a store section, and every
// random draw goes through the injected source so outcomes are
// reproducible.
type Engine struct {
	store *world.Store
	items storage.Storer[*world.ItemSpec]
	rnd   world.Rand
}

// NewEngine creates a combat engine over the given store and item
// catalog.
func NewEngine(store *world.Store, items storage.Storer[*world.ItemSpec], rnd world.Rand) *Engine {
	return &Engine{
		store: store,
		items: items,
		rnd:   rnd,
	}
}

// baseDamage computes the deterministic part of a rebel's raid damage.
func baseDamage(r *world.Rebel) float64 {
	mult := 1.0
	if class, ok := world.Classes[r.Class]; ok {
		mult = class.Multiplier
	}
	return mult * float64(50+10*r.Level+5*(r.Loyalty/100))
}

// damageRoll draws the uniform multiplier U from [0.8, 1.2).
func (e *Engine) damageRoll() float64 {
	return 0.8 + 0.4*e.rnd.Float64()
}

// ResolveRaid executes a single-rebel raid against a corporation. The
// whole read-modify-write runs inside one rebel+corporation section:
// two concurrent raids against the same target serialize and both
// land. Fails with ErrInsufficientResource if the rebel lacks the
// energy cost, leaving all state untouched.
func (e *Engine) ResolveRaid(rebelID, corpID string) (*RaidOutcome, error) {
	now := e.store.Now()
	var out *RaidOutcome

	err := e.store.WithRebelAndCorporation(rebelID, corpID, func(r *world.Rebel, inv *world.Inventory, c *world.Corporation) error {
		if err := r.SpendEnergy(world.RaidEnergyCost); err != nil {
			return fmt.Errorf("raid energy: %w", err)
		}

		dmg := int(baseDamage(r) * e.damageRoll())
		defeated := c.ApplyDamage(dmg)

		loyalty := dmg / 10
		exp := dmg/20 + 10
		if defeated {
			loyalty += 100
			r.CorpsDefeated++
		}
		r.Loyalty += loyalty
		leveled := r.GainExperience(exp)
		r.DamageDealt += int64(dmg)
		r.RaidCount++
		r.LastActive = now
		r.DailyMissions["raid"] = true

		c.RaiseAlert(dmg)
		c.RecordThreat(rebelID, dmg)

		loot, dropped := e.rollLoot(inv, c, dmg, now)

		cm := e.evaluateCountermeasure(r, inv, c, dmg, 0, now)

		out = &RaidOutcome{
			RebelID:          rebelID,
			CorpID:           corpID,
			Damage:           dmg,
			Defeated:         defeated,
			LoyaltyGained:    loyalty,
			ExperienceGained: exp,
			LeveledUp:        leveled,
			Level:            r.Level,
			EnergyLeft:       r.Energy,
			Loot:             loot,
			LootDropped:      dropped,
			Countermeasure:   cm,
			AlertLevel:       c.AlertLevel,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.contributeToEvents(corpID, rebelID, out.Damage)

	return out, nil
}

// ResolveTeamRaid executes a synchronized team raid: per-member damage
// is computed with the formation's multipliers, summed, and applied to
// the corporation as ONE health mutation. Every member's section and
// the corporation's are held together, so either the whole raid lands
// or none of it does.
func (e *Engine) ResolveTeamRaid(memberIDs []string, corpID string, formation *world.Formation) (*TeamOutcome, error) {
	now := e.store.Now()
	energyCost := int(float64(world.RaidEnergyCost) * formation.Energy)
	var out *TeamOutcome

	err := e.store.WithRebelsAndCorporation(memberIDs, corpID, func(rebels []*world.Rebel, invs []*world.Inventory, c *world.Corporation) error {
		for _, r := range rebels {
			if r.Energy < energyCost {
				return fmt.Errorf("member %s energy %d < %d: %w", r.ID, r.Energy, energyCost, world.ErrInsufficientResource)
			}
		}

		results := make([]*MemberResult, len(rebels))
		total := 0
		for i, r := range rebels {
			dmg := int(baseDamage(r) * formation.Damage * e.damageRoll())
			total += dmg
			results[i] = &MemberResult{RebelID: r.ID, Damage: dmg}
		}

		defeated := c.ApplyDamage(total)
		c.RaiseAlert(total)

		for i, r := range rebels {
			res := results[i]
			r.Energy -= energyCost
			res.LoyaltyGained = res.Damage / 10
			res.ExperienceGained = res.Damage/20 + 10
			if defeated {
				res.LoyaltyGained += 100
				r.CorpsDefeated++
			}
			r.Loyalty += res.LoyaltyGained
			res.LeveledUp = r.GainExperience(res.ExperienceGained)
			r.DamageDealt += int64(res.Damage)
			r.RaidCount++
			r.LastActive = now
			c.RecordThreat(r.ID, res.Damage)
		}

		// Credits split evenly, remainder to the first member.
		pool := int64(total) * 2
		share := pool / int64(len(rebels))
		for i, inv := range invs {
			res := results[i]
			res.Credits = share
			if i == 0 {
				res.Credits += pool % int64(len(rebels))
			}
			inv.Deposit(res.Credits)
		}

		// Team loot round-robin across members.
		lootCount := total/100 + 1
		lootCount = int(float64(lootCount) * formation.Loot)
		if limit := 2 * len(rebels); lootCount > limit {
			lootCount = limit
		}
		for i := range lootCount {
			idx := i % len(invs)
			item := e.newLootItem(c, total/len(rebels), now)
			if item == nil {
				continue
			}
			if err := invs[idx].Add(item); err == nil {
				results[idx].Loot = append(results[idx].Loot, item)
			}
		}

		// Formation stealth reduces but never eliminates exposure.
		for i, r := range rebels {
			results[i].Countermeasure = e.evaluateCountermeasure(r, invs[i], c, results[i].Damage, formation.Stealth, now)
		}

		out = &TeamOutcome{
			CorpID:      corpID,
			Formation:   formation.Name,
			TotalDamage: total,
			Defeated:    defeated,
			AlertLevel:  c.AlertLevel,
			Members:     results,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range out.Members {
		e.contributeToEvents(corpID, res.RebelID, res.Damage)
	}

	return out, nil
}

// contributeToEvents credits raid damage toward active global events
// targeting the corporation. Runs after the raid section commits; event
// progress is additive so this needs no shared section with the raid.
// The contribution that completes an event triggers the reward payout.
func (e *Engine) contributeToEvents(corpID, rebelID string, dmg int) {
	for _, id := range e.store.EventIDs() {
		var (
			completed    bool
			reward       world.Reward
			contributors []string
		)
		_ = e.store.WithEvent(id, func(ev *world.GlobalEvent) error {
			if ev.CorpID != corpID || ev.Status != world.EventActive {
				return nil
			}
			if ev.Contribute(rebelID, int64(dmg)) {
				completed = true
				reward = ev.Reward
				for rid := range ev.Contributions {
					contributors = append(contributors, rid)
				}
			}
			return nil
		})
		if completed {
			e.grantEventReward(contributors, reward)
		}
	}
}

// grantEventReward pays every contributor of a completed event. Runs
// outside the event section; contributors that vanished since
// contributing are skipped.
func (e *Engine) grantEventReward(contributors []string, reward world.Reward) {
	slices.Sort(contributors)
	for _, id := range contributors {
		_ = e.store.WithRebel(id, func(r *world.Rebel, inv *world.Inventory) error {
			inv.Deposit(reward.Credits)
			r.Loyalty += reward.Loyalty
			return nil
		})
	}
}
