package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/world"
)

const (
	DefaultEnergyInterval   = time.Minute
	DefaultCorpInterval     = 5 * time.Minute
	DefaultMarketInterval   = 2 * time.Minute
	DefaultDailyInterval    = time.Minute
	DefaultSnapshotInterval = 30 * time.Minute
	DefaultSnapshotDelay    = time.Minute
	DefaultReapInterval     = time.Minute

	// energyPerTick is the passive regeneration per energy sweep.
	energyPerTick = 1

	// corpRegenFraction is the share of max health restored per
	// corporate sweep.
	corpRegenFraction = 0.005

	// countermeasureGrace is how long expired countermeasure records
	// stay visible before pruning.
	countermeasureGrace = 10 * time.Minute
)

// Snapshotter persists the full world state.
type Snapshotter interface {
	Snapshot(ctx context.Context) error
}

// Intervals overrides the default sweep cadence. Zero fields keep the
// default.
type Intervals struct {
	Energy        time.Duration
	Corporate     time.Duration
	Market        time.Duration
	Snapshot      time.Duration
	SnapshotDelay time.Duration
	Reap          time.Duration
}

func (iv *Intervals) withDefaults() Intervals {
	out := Intervals{
		Energy:        DefaultEnergyInterval,
		Corporate:     DefaultCorpInterval,
		Market:        DefaultMarketInterval,
		Snapshot:      DefaultSnapshotInterval,
		SnapshotDelay: DefaultSnapshotDelay,
		Reap:          DefaultReapInterval,
	}
	if iv == nil {
		return out
	}
	if iv.Energy > 0 {
		out.Energy = iv.Energy
	}
	if iv.Corporate > 0 {
		out.Corporate = iv.Corporate
	}
	if iv.Market > 0 {
		out.Market = iv.Market
	}
	if iv.Snapshot > 0 {
		out.Snapshot = iv.Snapshot
	}
	if iv.SnapshotDelay > 0 {
		out.SnapshotDelay = iv.SnapshotDelay
	}
	if iv.Reap > 0 {
		out.Reap = iv.Reap
	}
	return out
}

// WorldSweeps builds the standard maintenance set: energy and
// corporate regeneration, market upkeep, the daily reset, periodic
// snapshots, and party reaping. Every sweep enumerates ids first and
// tolerates entities vanishing before their section is entered.
func WorldSweeps(store *world.Store, econ *economy.Engine, parties *party.Manager, snap Snapshotter, iv *Intervals) []*Sweep {
	cfg := iv.withDefaults()

	sweeps := []*Sweep{
		{
			Name:     "energy",
			Interval: cfg.Energy,
			Run: func(_ context.Context, _ time.Time) error {
				return eachRebel(store, func(r *world.Rebel, _ *world.Inventory) {
					r.RestoreEnergy(energyPerTick)
				})
			},
		},
		{
			Name:     "corporate",
			Interval: cfg.Corporate,
			Run: func(_ context.Context, now time.Time) error {
				return eachCorporation(store, func(c *world.Corporation) {
					c.Regenerate(corpRegenFraction)
					c.PruneCountermeasures(now, countermeasureGrace)
				})
			},
		},
		{
			Name:     "market",
			Interval: cfg.Market,
			Run: func(_ context.Context, now time.Time) error {
				econ.MarketSweep(now)
				return nil
			},
		},
		newDailySweep(store),
		{
			Name:     "reap",
			Interval: cfg.Reap,
			Run: func(_ context.Context, now time.Time) error {
				parties.Reap(now)
				return nil
			},
		},
	}

	if snap != nil {
		sweeps = append(sweeps, &Sweep{
			Name:     "snapshot",
			Interval: cfg.Snapshot,
			Delay:    cfg.SnapshotDelay,
			Run: func(ctx context.Context, _ time.Time) error {
				if err := snap.Snapshot(ctx); err != nil {
					return fmt.Errorf("snapshotting world: %w", err)
				}
				slog.InfoContext(ctx, "world snapshot written")
				return nil
			},
		})
	}
	return sweeps
}

// newDailySweep refills everyone once per calendar day. The sweep
// itself runs every minute and fires only when the day rolls over.
func newDailySweep(store *world.Store) *Sweep {
	var lastDay string
	return &Sweep{
		Name:     "daily",
		Interval: DefaultDailyInterval,
		Run: func(_ context.Context, now time.Time) error {
			day := now.Format(time.DateOnly)
			if lastDay == "" {
				// First run after startup only arms the boundary;
				// restarts must not grant a free refill.
				lastDay = day
				return nil
			}
			if day == lastDay {
				return nil
			}
			err := eachRebel(store, func(r *world.Rebel, _ *world.Inventory) {
				r.ResetDaily()
			})
			if err != nil {
				return err
			}
			lastDay = day
			return nil
		},
	}
}

// eachRebel applies fn to every rebel under its own section. Rebels
// removed between enumeration and locking are skipped.
func eachRebel(store *world.Store, fn func(*world.Rebel, *world.Inventory)) error {
	for _, id := range store.RebelIDs() {
		err := store.WithRebel(id, func(r *world.Rebel, inv *world.Inventory) error {
			fn(r, inv)
			return nil
		})
		if err != nil && !errors.Is(err, world.ErrNotFound) {
			return err
		}
	}
	return nil
}

// eachCorporation applies fn to every corporation under its own
// section.
func eachCorporation(store *world.Store, fn func(*world.Corporation)) error {
	for _, id := range store.CorporationIDs() {
		err := store.WithCorporation(id, func(c *world.Corporation) error {
			fn(c)
			return nil
		})
		if err != nil && !errors.Is(err, world.ErrNotFound) {
			return err
		}
	}
	return nil
}
