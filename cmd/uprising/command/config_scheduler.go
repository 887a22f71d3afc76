package command

import (
	"fmt"
	"time"

	"github.com/latchko/go-uprising/internal/scheduler"
	"github.com/pixil98/go-errors"
)

type SchedulerConfig struct {
	EnergyInterval   string `json:"energy_interval,omitempty"`
	CorpInterval     string `json:"corp_interval,omitempty"`
	MarketInterval   string `json:"market_interval,omitempty"`
	SnapshotInterval string `json:"snapshot_interval,omitempty"`
	SnapshotDelay    string `json:"snapshot_delay,omitempty"`
	ReapInterval     string `json:"reap_interval,omitempty"`
}

func (s *SchedulerConfig) validate() error {
	el := errors.NewErrorList()

	fields := map[string]string{
		"energy_interval":   s.EnergyInterval,
		"corp_interval":     s.CorpInterval,
		"market_interval":   s.MarketInterval,
		"snapshot_interval": s.SnapshotInterval,
		"snapshot_delay":    s.SnapshotDelay,
		"reap_interval":     s.ReapInterval,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			el.Add(fmt.Errorf("parsing %s: %w", name, err))
		} else if d <= 0 {
			el.Add(fmt.Errorf("%s must be positive", name))
		}
	}

	return el.Err()
}

// intervals translates the config into sweep cadence overrides. Empty
// fields keep the defaults; validate has already rejected bad values.
func (s *SchedulerConfig) intervals() *scheduler.Intervals {
	parse := func(v string) time.Duration {
		if v == "" {
			return 0
		}
		d, _ := time.ParseDuration(v)
		return d
	}

	return &scheduler.Intervals{
		Energy:        parse(s.EnergyInterval),
		Corporate:     parse(s.CorpInterval),
		Market:        parse(s.MarketInterval),
		Snapshot:      parse(s.SnapshotInterval),
		SnapshotDelay: parse(s.SnapshotDelay),
		Reap:          parse(s.ReapInterval),
	}
}
