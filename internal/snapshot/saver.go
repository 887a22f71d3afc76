package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/world"
)

// Sink stores encoded snapshots.
type Sink interface {
	SaveSnapshot(ctx context.Context, createdAt time.Time, data []byte) error
}

// Saver captures and persists the world on demand. It satisfies the
// scheduler's snapshot sweep contract.
type Saver struct {
	store   *world.Store
	econ    *economy.Engine
	parties *party.Manager
	sink    Sink
}

// NewSaver creates a saver writing to the given sink.
func NewSaver(store *world.Store, econ *economy.Engine, parties *party.Manager, sink Sink) *Saver {
	return &Saver{
		store:   store,
		econ:    econ,
		parties: parties,
		sink:    sink,
	}
}

// Snapshot captures the world and hands the encoded bytes to the sink.
func (s *Saver) Snapshot(ctx context.Context) error {
	snap := Capture(s.store, s.econ, s.parties)
	data, err := EncodeBytes(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := s.sink.SaveSnapshot(ctx, snap.Header.CreatedAt, data); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	return nil
}
