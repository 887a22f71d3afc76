package combat

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/world"
)

// Damage thresholds banding loot rarity.
var rarityBands = []struct {
	minDamage int
	rarity    string
}{
	{500, world.RarityLegendary},
	{300, world.RarityEpic},
	{150, world.RarityRare},
	{75, world.RarityUncommon},
	{0, world.RarityCommon},
}

var rarityValueMult = map[string]int{
	world.RarityCommon:    1,
	world.RarityUncommon:  2,
	world.RarityRare:      4,
	world.RarityEpic:      8,
	world.RarityLegendary: 20,
}

// defensiveDropChance is the per-item chance a high-damage raid drops a
// defensive item instead of loot from the corporation's table.
const defensiveDropChance = 0.15

// defensiveDropDamage is the damage above which defensive substitution
// applies.
const defensiveDropDamage = 200

// rarityForDamage bands the item rarity by the damage dealt.
func rarityForDamage(dmg int) string {
	for _, band := range rarityBands {
		if dmg > band.minDamage {
			return band.rarity
		}
	}
	return world.RarityCommon
}

// rollLoot generates raid loot and adds it to the rebel's inventory
// inside the caller's section. Items that would exceed capacity are
// dropped, not force-added; the dropped count is reported.
func (e *Engine) rollLoot(inv *world.Inventory, c *world.Corporation, dmg int, now time.Time) (loot []*world.Item, dropped int) {
	count := dmg/100 + 1
	if count > 3 {
		count = 3
	}

	for range count {
		item := e.newLootItem(c, dmg, now)
		if item == nil {
			continue
		}
		if err := inv.Add(item); err != nil {
			dropped++
			continue
		}
		loot = append(loot, item)
	}
	return loot, dropped
}

// newLootItem instantiates one drop: normally an entry from the
// corporation's loot table with rarity banded by damage, but
// high-damage raids have a fixed chance of a defensive item instead.
func (e *Engine) newLootItem(c *world.Corporation, dmg int, now time.Time) *world.Item {
	if dmg > defensiveDropDamage && e.rnd.Float64() < defensiveDropChance {
		return e.newDefensiveItem(c, dmg, now)
	}

	if len(c.LootTable) == 0 {
		return nil
	}
	specID := c.LootTable[e.rnd.IntN(len(c.LootTable))]
	spec := e.items.Get(specID)
	if spec == nil {
		return nil
	}

	rarity := rarityForDamage(dmg)
	return &world.Item{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Type:         spec.Type,
		Rarity:       rarity,
		Value:        spec.Value * rarityValueMult[rarity],
		Protection:   spec.Protection,
		AcquiredFrom: c.ID,
		AcquiredAt:   now,
	}
}

// newDefensiveItem draws uniformly from the catalog's defensive specs.
// Candidates are sorted by id so the draw stays reproducible for a
// seeded source.
func (e *Engine) newDefensiveItem(c *world.Corporation, dmg int, now time.Time) *world.Item {
	all := e.items.GetAll()
	ids := make([]string, 0, len(all))
	for id, spec := range all {
		if spec.Type == "defensive" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	spec := all[ids[e.rnd.IntN(len(ids))]]
	rarity := rarityForDamage(dmg)
	return &world.Item{
		ID:           uuid.New().String(),
		Name:         spec.Name,
		Type:         spec.Type,
		Rarity:       rarity,
		Value:        spec.Value * rarityValueMult[rarity],
		Protection:   spec.Protection,
		AcquiredFrom: c.ID,
		AcquiredAt:   now,
	}
}
