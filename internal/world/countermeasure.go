package world

import "time"

// Severity grades a countermeasure archetype.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Power returns the severity's power value, compared against a rebel's
// best active protection to decide whether the effect is blocked.
func (s Severity) Power() int {
	switch s {
	case SeverityLow:
		return 25
	case SeverityMedium:
		return 50
	case SeverityHigh:
		return 80
	}
	return 0
}

// EffectKind names the penalty a countermeasure applies.
type EffectKind string

const (
	EffectEnergyDrain EffectKind = "energy_drain"
	EffectCreditLoss  EffectKind = "credit_loss"
	EffectLoyaltyLoss EffectKind = "loyalty_loss"
)

// Archetype is a fixed countermeasure template. On activation one is
// drawn uniformly at random and instantiated against the acting rebel.
type Archetype struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Severity Severity      `json:"severity"`
	Effect   EffectKind    `json:"effect"`
	Duration time.Duration `json:"duration"`
}

// Archetypes is the fixed set of five countermeasure templates.
var Archetypes = []*Archetype{
	{ID: "ice-trace", Name: "ICE Trace", Severity: SeverityLow, Effect: EffectEnergyDrain, Duration: 30 * time.Minute},
	{ID: "asset-freeze", Name: "Asset Freeze", Severity: SeverityMedium, Effect: EffectCreditLoss, Duration: time.Hour},
	{ID: "smear-campaign", Name: "Smear Campaign", Severity: SeverityMedium, Effect: EffectLoyaltyLoss, Duration: 2 * time.Hour},
	{ID: "hunter-killer", Name: "Hunter-Killer Daemon", Severity: SeverityHigh, Effect: EffectEnergyDrain, Duration: time.Hour},
	{ID: "bounty-contract", Name: "Bounty Contract", Severity: SeverityHigh, Effect: EffectCreditLoss, Duration: 3 * time.Hour},
}

// Countermeasure is an active retaliation effect a corporation applies
// to a rebel. It naturally expires when now passes EndsAt; sweeps
// tolerate stale records and readers filter by end time.
type Countermeasure struct {
	ID          string     `json:"id"`
	ArchetypeID string     `json:"archetype_id"`
	RebelID     string     `json:"rebel_id"`
	CorpID      string     `json:"corp_id"`
	Severity    Severity   `json:"severity"`
	Effect      EffectKind `json:"effect"`
	StartedAt   time.Time  `json:"started_at"`
	EndsAt      time.Time  `json:"ends_at"`
	Blocked     bool       `json:"blocked"`
}
