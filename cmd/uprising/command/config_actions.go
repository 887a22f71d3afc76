package command

import (
	"fmt"
	"time"

	"github.com/latchko/go-uprising/internal/actions"
	"github.com/pixil98/go-errors"
)

type ActionsConfig struct {
	RatePerSecond float64 `json:"rate_per_second,omitempty"`
	Burst         int     `json:"burst,omitempty"`
	RaidCooldown  string  `json:"raid_cooldown,omitempty"`
}

func (a *ActionsConfig) validate() error {
	el := errors.NewErrorList()

	if a.RatePerSecond < 0 {
		el.Add(fmt.Errorf("rate_per_second must not be negative"))
	}
	if a.Burst < 0 {
		el.Add(fmt.Errorf("burst must not be negative"))
	}
	if a.RaidCooldown != "" {
		if _, err := time.ParseDuration(a.RaidCooldown); err != nil {
			el.Add(fmt.Errorf("parsing raid_cooldown: %w", err))
		}
	}

	return el.Err()
}

func (a *ActionsConfig) dispatcherOpts() []actions.DispatcherOpt {
	var opts []actions.DispatcherOpt
	if a.RatePerSecond > 0 && a.Burst > 0 {
		opts = append(opts, actions.WithRateLimit(a.RatePerSecond, a.Burst))
	}
	if a.RaidCooldown != "" {
		d, _ := time.ParseDuration(a.RaidCooldown)
		opts = append(opts, actions.WithRaidCooldown(d))
	}
	return opts
}
