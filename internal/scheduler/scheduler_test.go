package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/world"
	"github.com/pixil98/go-testutil"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type countingSnapshotter struct {
	calls int
}

func (s *countingSnapshotter) Snapshot(context.Context) error {
	s.calls++
	return nil
}

func newTestWorld(t *testing.T) (*world.Store, *economy.Engine, *party.Manager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := world.NewStore(world.WithClock(clock.Now))

	if err := store.AddRebel(world.NewRebel("r1", "Nyx", "operative")); err != nil {
		t.Fatalf("adding rebel: %v", err)
	}
	err := store.AddCorporation(&world.Corporation{
		ID: "omnicorp", Name: "OmniCorp",
		Health: 5000, MaxHealth: 10000,
	})
	if err != nil {
		t.Fatalf("adding corporation: %v", err)
	}

	econ := economy.NewEngine(store, economy.WithClock(clock.Now))
	parties := party.NewManager(store, nil, party.WithClock(clock.Now))
	return store, econ, parties, clock
}

func TestEnergySweep(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		r.Energy = 40
		return nil
	})

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))
	if err := s.ForceSweep(context.Background(), "energy"); err != nil {
		t.Fatalf("force sweep: %v", err)
	}

	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		testutil.AssertEqual(t, "energy", r.Energy, 41)
		return nil
	})
}

func TestEnergySweep_ClampsAtMax(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))
	if err := s.ForceSweep(context.Background(), "energy"); err != nil {
		t.Fatalf("force sweep: %v", err)
	}

	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		testutil.AssertEqual(t, "energy stays at max", r.Energy, r.MaxEnergy)
		return nil
	})
}

func TestCorporateSweep(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	_ = store.WithCorporation("omnicorp", func(c *world.Corporation) error {
		c.Countermeasures = append(c.Countermeasures,
			&world.Countermeasure{ID: "stale", EndsAt: clock.Now().Add(-time.Hour)},
			&world.Countermeasure{ID: "fresh", EndsAt: clock.Now().Add(time.Hour)},
		)
		return nil
	})

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))
	if err := s.ForceSweep(context.Background(), "corporate"); err != nil {
		t.Fatalf("force sweep: %v", err)
	}

	_ = store.WithCorporation("omnicorp", func(c *world.Corporation) error {
		// 0.5% of 10,000 max.
		testutil.AssertEqual(t, "regenerated", c.Health, 5050)
		testutil.AssertEqual(t, "pruned", len(c.Countermeasures), 1)
		testutil.AssertEqual(t, "kept fresh record", c.Countermeasures[0].ID, "fresh")
		return nil
	})
}

func TestDailySweep(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		r.Energy = 10
		r.DailyMissions["raid"] = true
		return nil
	})

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))

	// First run arms the day boundary without resetting.
	if err := s.ForceSweep(context.Background(), "daily"); err != nil {
		t.Fatalf("arming sweep: %v", err)
	}
	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		testutil.AssertEqual(t, "no refill on startup", r.Energy, 10)
		return nil
	})

	// Same day: still nothing.
	clock.Advance(time.Hour)
	if err := s.ForceSweep(context.Background(), "daily"); err != nil {
		t.Fatalf("same-day sweep: %v", err)
	}
	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		testutil.AssertEqual(t, "no same-day refill", r.Energy, 10)
		return nil
	})

	// Day rollover: full refill, missions cleared.
	clock.Advance(24 * time.Hour)
	if err := s.ForceSweep(context.Background(), "daily"); err != nil {
		t.Fatalf("rollover sweep: %v", err)
	}
	_ = store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		testutil.AssertEqual(t, "refilled", r.Energy, r.MaxEnergy)
		testutil.AssertEqual(t, "missions cleared", len(r.DailyMissions), 0)
		return nil
	})
}

func TestMarketSweep(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	_ = store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Add(&world.Item{ID: "blade", Name: "Blade", Type: "tech"})
	})
	if _, err := econ.ListItem("r1", "blade", 100); err != nil {
		t.Fatalf("list: %v", err)
	}

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))
	clock.Advance(25 * time.Hour)
	if err := s.ForceSweep(context.Background(), "market"); err != nil {
		t.Fatalf("force sweep: %v", err)
	}

	_ = store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		testutil.AssertEqual(t, "expired listing returned", len(inv.Items), 1)
		return nil
	})
}

func TestSweepSkipsVanishedEntities(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	if err := store.AddRebel(world.NewRebel("r2", "Vex", "fixer")); err != nil {
		t.Fatalf("adding rebel: %v", err)
	}
	if err := store.RemoveRebel("r2"); err != nil {
		t.Fatalf("removing rebel: %v", err)
	}

	s := NewScheduler(WorldSweeps(store, econ, parties, nil, nil), WithClock(clock.Now))
	if err := s.ForceSweep(context.Background(), "energy"); err != nil {
		t.Fatalf("sweep should tolerate removed entities: %v", err)
	}
}

func TestForceSweep_Unknown(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.ForceSweep(context.Background(), "defrag"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTick_Scheduling(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	runs := 0
	s := NewScheduler([]*Sweep{{
		Name:     "probe",
		Interval: time.Minute,
		Run: func(context.Context, time.Time) error {
			runs++
			return nil
		},
	}}, WithClock(clock.Now))

	ctx := context.Background()
	s.Tick(ctx) // arms
	testutil.AssertEqual(t, "armed only", runs, 0)

	clock.Advance(30 * time.Second)
	s.Tick(ctx)
	testutil.AssertEqual(t, "not yet due", runs, 0)

	clock.Advance(31 * time.Second)
	s.Tick(ctx)
	testutil.AssertEqual(t, "fires when due", runs, 1)

	s.Tick(ctx)
	testutil.AssertEqual(t, "rescheduled", runs, 1)

	clock.Advance(61 * time.Second)
	s.Tick(ctx)
	testutil.AssertEqual(t, "fires again", runs, 2)
}

func TestSnapshotSweep_DelayedFirstRun(t *testing.T) {
	store, econ, parties, clock := newTestWorld(t)
	snap := &countingSnapshotter{}

	iv := &Intervals{Snapshot: 30 * time.Minute, SnapshotDelay: time.Minute}
	s := NewScheduler(WorldSweeps(store, econ, parties, snap, iv), WithClock(clock.Now))

	ctx := context.Background()
	s.Tick(ctx) // arms

	clock.Advance(90 * time.Second)
	s.Tick(ctx)
	testutil.AssertEqual(t, "initial delayed snapshot", snap.calls, 1)

	clock.Advance(31 * time.Minute)
	s.Tick(ctx)
	testutil.AssertEqual(t, "periodic snapshot", snap.calls, 2)
}
