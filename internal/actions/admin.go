package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/scheduler"
	"github.com/latchko/go-uprising/internal/world"
)

// Admin exposes operator controls that bypass the per-actor budget.
// These are wired to an operator surface, never to player input.
type Admin struct {
	store    *world.Store
	parties  *party.Manager
	sched    *scheduler.Scheduler
	snap     scheduler.Snapshotter
	limiters *limiterMap
}

// NewAdmin builds the operator surface over a dispatcher's world.
func NewAdmin(d *Dispatcher, sched *scheduler.Scheduler, snap scheduler.Snapshotter) *Admin {
	return &Admin{
		store:    d.store,
		parties:  d.parties,
		sched:    sched,
		snap:     snap,
		limiters: d.limiters,
	}
}

// ForceSweep runs a named sweep immediately, out of cadence.
func (a *Admin) ForceSweep(ctx context.Context, name string) error {
	return a.sched.ForceSweep(ctx, name)
}

// ForceSnapshot captures and persists the world state now.
func (a *Admin) ForceSnapshot(ctx context.Context) error {
	return a.snap.Snapshot(ctx)
}

// StartEvent opens a world-wide objective against a corporation.
// Raid damage against the target contributes toward it; the reward is
// paid to every contributor when the target is reached.
func (a *Admin) StartEvent(id, eventType, corpID string, target int64, reward world.Reward) error {
	if target <= 0 {
		return fmt.Errorf("event target %d: %w", target, world.ErrInvalidState)
	}
	err := a.store.WithCorporation(corpID, func(*world.Corporation) error { return nil })
	if err != nil {
		return err
	}
	return a.store.AddEvent(&world.GlobalEvent{
		ID:     id,
		Type:   eventType,
		CorpID: corpID,
		Target: target,
		Reward: reward,
		Status: world.EventActive,
	})
}

// ResetActor restores a rebel's daily allowances and clears their
// action budget.
func (a *Admin) ResetActor(id string) error {
	err := a.store.WithRebel(id, func(r *world.Rebel, _ *world.Inventory) error {
		r.ResetDaily()
		return nil
	})
	if err != nil {
		return err
	}
	a.limiters.forget(id)
	return nil
}

// RemoveActor deletes a rebel from the world, e.g. a banned account.
// Their party seat and action budget are released; goods they hold in
// market escrow are forfeited when the owning engine next touches
// them.
func (a *Admin) RemoveActor(id string) error {
	if _, err := a.parties.Leave(id); err != nil && !errors.Is(err, world.ErrNotFound) {
		return err
	}
	if err := a.store.RemoveRebel(id); err != nil {
		return err
	}
	a.limiters.forget(id)
	return nil
}
