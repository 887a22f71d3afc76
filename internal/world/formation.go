package world

// Formation is a team tactic chosen when a raid party forms. Its
// multipliers scale each member's damage and energy cost, the size of
// the team loot pool, and how much countermeasure exposure the team
// avoids.
type Formation struct {
	Name    string  `json:"name"`
	Damage  float64 `json:"damage"`
	Energy  float64 `json:"energy"`
	Loot    float64 `json:"loot"`
	Stealth float64 `json:"stealth"`
}

// Formations is the fixed formation catalog, keyed by formation id.
var Formations = map[string]*Formation{
	"spearhead": {Name: "Spearhead", Damage: 1.3, Energy: 1.2, Loot: 1.0, Stealth: 0.0},
	"phantom":   {Name: "Phantom Cell", Damage: 0.9, Energy: 0.9, Loot: 1.0, Stealth: 0.5},
	"siege":     {Name: "Siege Grid", Damage: 1.1, Energy: 1.0, Loot: 1.3, Stealth: 0.1},
	"standard":  {Name: "Standard", Damage: 1.0, Energy: 1.0, Loot: 1.0, Stealth: 0.2},
}
