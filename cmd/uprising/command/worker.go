package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/latchko/go-uprising/internal/actions"
	"github.com/latchko/go-uprising/internal/combat"
	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/messaging"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/persistence"
	"github.com/latchko/go-uprising/internal/scheduler"
	"github.com/latchko/go-uprising/internal/snapshot"
	"github.com/latchko/go-uprising/internal/world"
	service "github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	catalogs, err := cfg.Storage.BuildCatalogs()
	if err != nil {
		return nil, fmt.Errorf("loading catalogs: %w", err)
	}

	db, err := cfg.Persistence.buildDB()
	if err != nil {
		return nil, fmt.Errorf("opening persistence: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	store := world.NewStore()
	engine := combat.NewEngine(store, catalogs.Items, world.NewRand(seed))
	econ := economy.NewEngine(store)
	parties := party.NewManager(store, engine)

	if err := restoreLatest(db, store, econ, parties); err != nil {
		return nil, fmt.Errorf("restoring snapshot: %w", err)
	}
	spawnCorporations(store, catalogs)

	natsServer, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	describer, err := cfg.Narrative.buildDescriber()
	if err != nil {
		return nil, fmt.Errorf("building describer: %w", err)
	}

	opts := append([]actions.DispatcherOpt{
		actions.WithDescriber(describer),
		actions.WithPublisher(messaging.NewNatsPublisher(natsServer)),
		actions.WithAuditor(db),
	}, cfg.Actions.dispatcherOpts()...)
	dispatcher := actions.NewDispatcher(store, engine, econ, parties, opts...)

	saver := snapshot.NewSaver(store, econ, parties, db)
	sweeps := scheduler.WorldSweeps(store, econ, parties, saver, cfg.Scheduler.intervals())
	sched := scheduler.NewScheduler(sweeps)

	return service.WorkerList{
		"nats":      natsServer,
		"scheduler": sched,
		"actions":   actions.NewListener(natsServer, dispatcher),
		"persistence": &closerWorker{
			close: func() error {
				// Final capture so a clean shutdown loses nothing.
				if err := saver.Snapshot(context.Background()); err != nil {
					slog.Error("shutdown snapshot failed", "error", err)
				}
				return db.Close()
			},
		},
	}, nil
}

// restoreLatest reloads the newest persisted snapshot, if any.
func restoreLatest(db *persistence.DB, store *world.Store, econ *economy.Engine, parties *party.Manager) error {
	data, createdAt, err := db.LatestSnapshot(context.Background())
	if errors.Is(err, world.ErrNotFound) {
		slog.Info("no snapshot found, starting fresh")
		return nil
	}
	if err != nil {
		return err
	}

	snap, err := snapshot.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := snapshot.Restore(snap, store, econ, parties); err != nil {
		return err
	}

	slog.Info("restored snapshot", "created_at", createdAt, "rebels", len(snap.Rebels))
	return nil
}

// spawnCorporations adds catalog corporations not already present from
// a restored snapshot. Catalog additions show up on restart without
// disturbing surviving state.
func spawnCorporations(store *world.Store, catalogs *Catalogs) {
	specs := catalogs.Corporations.GetAll()
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		err := store.AddCorporation(specs[id].Spawn(id))
		if err != nil && !errors.Is(err, world.ErrConflict) {
			slog.Warn("spawning corporation", "id", id, "error", err)
		}
	}
}

// closerWorker holds a resource open for the process lifetime and
// releases it on shutdown.
type closerWorker struct {
	close func() error
}

func (w *closerWorker) Start(ctx context.Context) error {
	<-ctx.Done()
	return w.close()
}
