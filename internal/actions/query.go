package actions

import (
	"fmt"
	"sort"
	"time"

	"github.com/latchko/go-uprising/internal/world"
)

// RebelView is the read projection of one rebel. All fields are copies
// taken inside a store section.
type RebelView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Class      string `json:"class"`
	Level      int    `json:"level"`
	Experience int    `json:"experience"`
	Energy     int    `json:"energy"`
	MaxEnergy  int    `json:"max_energy"`
	Loyalty    int    `json:"loyalty"`
	Zone       string `json:"zone"`

	DamageDealt   int64 `json:"damage_dealt"`
	RaidCount     int   `json:"raid_count"`
	CorpsDefeated int   `json:"corps_defeated"`

	Credits  int64        `json:"credits"`
	Capacity int          `json:"capacity"`
	Items    []world.Item `json:"items,omitempty"`

	Cooldowns map[string]time.Time `json:"cooldowns,omitempty"`
}

// CorporationView is the read projection of one corporation. Threat and
// countermeasure internals stay private to the core.
type CorporationView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Health     int    `json:"health"`
	MaxHealth  int    `json:"max_health"`
	Weakness   string `json:"weakness"`
	AlertLevel int    `json:"alert_level"`

	ActiveCountermeasures int `json:"active_countermeasures"`
}

// EventView is the read projection of one global event.
type EventView struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	CorpID   string       `json:"corp_id,omitempty"`
	Target   int64        `json:"target"`
	Progress int64        `json:"progress"`
	Reward   world.Reward `json:"reward"`
	Status   string       `json:"status"`

	Contributors int `json:"contributors"`
}

// PriceView reports one category's current market pressure.
type PriceView struct {
	Category   string  `json:"category"`
	Multiplier float64 `json:"multiplier"`
}

// Query answers a read-only question about the world. Views carry no
// live references; callers may hold them indefinitely.
func (d *Dispatcher) Query(kind, id string) (any, error) {
	switch kind {
	case "rebel":
		return d.rebelView(id)
	case "corporation":
		return d.corporationView(id)
	case "corporations":
		return d.corporationViews()
	case "party":
		return d.parties.Get(id)
	case "party_of":
		return d.parties.GetByMember(id)
	case "market":
		return d.econ.Listings(id), nil
	case "auctions":
		return d.econ.Auctions(), nil
	case "trades":
		return d.econ.Trades(id), nil
	case "events":
		return d.eventViews(), nil
	case "prices":
		return d.priceViews(), nil
	default:
		return nil, fmt.Errorf("query %s: %w", kind, world.ErrNotFound)
	}
}

func (d *Dispatcher) rebelView(id string) (*RebelView, error) {
	var v *RebelView
	err := d.store.WithRebel(id, func(r *world.Rebel, inv *world.Inventory) error {
		v = &RebelView{
			ID:            r.ID,
			Name:          r.Name,
			Class:         r.Class,
			Level:         r.Level,
			Experience:    r.Experience,
			Energy:        r.Energy,
			MaxEnergy:     r.MaxEnergy,
			Loyalty:       r.Loyalty,
			Zone:          r.Zone,
			DamageDealt:   r.DamageDealt,
			RaidCount:     r.RaidCount,
			CorpsDefeated: r.CorpsDefeated,
			Credits:       inv.Credits,
			Capacity:      inv.Capacity,
		}
		for _, item := range inv.Items {
			v.Items = append(v.Items, *item)
		}
		sort.Slice(v.Items, func(i, j int) bool { return v.Items[i].ID < v.Items[j].ID })
		if len(r.Cooldowns) > 0 {
			v.Cooldowns = make(map[string]time.Time, len(r.Cooldowns))
			for k, t := range r.Cooldowns {
				v.Cooldowns[k] = t
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *Dispatcher) corporationView(id string) (*CorporationView, error) {
	var v *CorporationView
	err := d.store.WithCorporation(id, func(c *world.Corporation) error {
		v = &CorporationView{
			ID:                    c.ID,
			Name:                  c.Name,
			Health:                c.Health,
			MaxHealth:             c.MaxHealth,
			Weakness:              c.Weakness,
			AlertLevel:            c.AlertLevel,
			ActiveCountermeasures: len(c.ActiveCountermeasures(d.store.Now())),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *Dispatcher) corporationViews() ([]*CorporationView, error) {
	ids := d.store.CorporationIDs()
	views := make([]*CorporationView, 0, len(ids))
	for _, id := range ids {
		v, err := d.corporationView(id)
		if err != nil {
			continue // removed between enumeration and read
		}
		views = append(views, v)
	}
	return views, nil
}

func (d *Dispatcher) eventViews() []*EventView {
	ids := d.store.EventIDs()
	sort.Strings(ids)

	views := make([]*EventView, 0, len(ids))
	for _, id := range ids {
		var v *EventView
		err := d.store.WithEvent(id, func(ev *world.GlobalEvent) error {
			v = &EventView{
				ID:           ev.ID,
				Type:         ev.Type,
				CorpID:       ev.CorpID,
				Target:       ev.Target,
				Progress:     ev.Progress,
				Reward:       ev.Reward,
				Status:       ev.Status,
				Contributors: len(ev.Contributions),
			}
			return nil
		})
		if err != nil {
			continue
		}
		views = append(views, v)
	}
	return views
}

func (d *Dispatcher) priceViews() []*PriceView {
	mults := d.econ.Multipliers()
	cats := make([]string, 0, len(mults))
	for cat := range mults {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	views := make([]*PriceView, 0, len(cats))
	for _, cat := range cats {
		views = append(views, &PriceView{Category: cat, Multiplier: mults[cat]})
	}
	return views
}
