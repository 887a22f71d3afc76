package world

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// CorporationSpec is the catalog definition a Corporation is spawned
// from at process start.
type CorporationSpec struct {
	Name      string   `json:"name"`
	MaxHealth int      `json:"max_health"`
	Weakness  string   `json:"weakness"`
	LootTable []string `json:"loot_table"`
}

func (s *CorporationSpec) Validate() error {
	el := errors.NewErrorList()

	if s.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if s.MaxHealth <= 0 {
		el.Add(fmt.Errorf("max_health must be positive"))
	}
	if len(s.LootTable) == 0 {
		el.Add(fmt.Errorf("loot_table must not be empty"))
	}

	return el.Err()
}

// Spawn instantiates a corporation at full health from the spec.
func (s *CorporationSpec) Spawn(id string) *Corporation {
	return &Corporation{
		ID:        id,
		Name:      s.Name,
		Health:    s.MaxHealth,
		MaxHealth: s.MaxHealth,
		Weakness:  s.Weakness,
		LootTable: append([]string(nil), s.LootTable...),
		Threat:    map[string]int64{},
	}
}

// ItemSpec is the catalog definition loot items are instantiated from.
type ItemSpec struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Value      int    `json:"value"`
	Protection int    `json:"protection,omitempty"`
}

func (s *ItemSpec) Validate() error {
	el := errors.NewErrorList()

	if s.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if s.Type == "" {
		el.Add(fmt.Errorf("type is required"))
	}
	if s.Value < 0 {
		el.Add(fmt.Errorf("value must not be negative"))
	}

	return el.Err()
}
