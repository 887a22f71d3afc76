package world

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Store owns the canonical maps of all mutable game entities. Every
// read-modify-write, whether from an inbound action or a scheduler
// sweep, goes through one of the With* sections below; no component may
// read a field, compute off of it, and write back without holding the
// entity's section for the whole operation.
//
// Locking discipline: the store mutex guards the maps themselves, each
// entity carries its own mutex, and multi-entity sections acquire locks
// in a fixed global order (rebels before corporations, ascending id
// within a kind) so operations spanning entities cannot deadlock.
type Store struct {
	mu     sync.RWMutex
	rebels map[string]*rebelEntry
	corps  map[string]*corpEntry
	events map[string]*eventEntry

	now func() time.Time
}

type rebelEntry struct {
	mu    sync.Mutex
	rebel *Rebel
	inv   *Inventory
}

type corpEntry struct {
	mu   sync.Mutex
	corp *Corporation
}

type eventEntry struct {
	mu    sync.Mutex
	event *GlobalEvent
}

// StoreOpt configures a Store.
type StoreOpt func(*Store)

// WithClock overrides the store's time source. Tests use this to pin
// expiry and cooldown checks.
func WithClock(now func() time.Time) StoreOpt {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOpt) *Store {
	s := &Store{
		rebels: make(map[string]*rebelEntry),
		corps:  make(map[string]*corpEntry),
		events: make(map[string]*eventEntry),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// AddRebel registers a new rebel with an empty inventory. Fails with
// ErrConflict if the id is already present.
func (s *Store) AddRebel(r *Rebel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rebels[r.ID]; exists {
		return fmt.Errorf("rebel %s: %w", r.ID, ErrConflict)
	}
	s.rebels[r.ID] = &rebelEntry{rebel: r, inv: NewInventory(r.ID)}
	return nil
}

// RestoreRebel registers a rebel with an existing inventory, replacing
// any prior entry. Used by snapshot import.
func (s *Store) RestoreRebel(r *Rebel, inv *Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebels[r.ID] = &rebelEntry{rebel: r, inv: inv}
}

// RemoveRebel deletes a rebel. Only the admin removal path calls this.
func (s *Store) RemoveRebel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rebels[id]; !exists {
		return fmt.Errorf("rebel %s: %w", id, ErrNotFound)
	}
	delete(s.rebels, id)
	return nil
}

// AddCorporation registers a corporation. Fails with ErrConflict if the
// id is already present.
func (s *Store) AddCorporation(c *Corporation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.corps[c.ID]; exists {
		return fmt.Errorf("corporation %s: %w", c.ID, ErrConflict)
	}
	s.corps[c.ID] = &corpEntry{corp: c}
	return nil
}

// AddEvent registers a global event.
func (s *Store) AddEvent(e *GlobalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[e.ID]; exists {
		return fmt.Errorf("event %s: %w", e.ID, ErrConflict)
	}
	s.events[e.ID] = &eventEntry{event: e}
	return nil
}

func (s *Store) rebelEntry(id string) (*rebelEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rebels[id]
	if !ok {
		return nil, fmt.Errorf("rebel %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *Store) corpEntry(id string) (*corpEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.corps[id]
	if !ok {
		return nil, fmt.Errorf("corporation %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// WithRebel runs fn under the rebel's exclusive section. The rebel's
// inventory is guarded by the same section. fn must not retain either
// pointer past its return.
func (s *Store) WithRebel(id string, fn func(*Rebel, *Inventory) error) error {
	e, err := s.rebelEntry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.rebel, e.inv)
}

// WithTwoRebels runs fn under both rebels' sections, e.g. for a trade
// settlement. Locks are acquired in ascending id order regardless of
// argument order; fn receives the entities in argument order. Both ids
// must differ.
func (s *Store) WithTwoRebels(aID, bID string, fn func(a *Rebel, aInv *Inventory, b *Rebel, bInv *Inventory) error) error {
	if aID == bID {
		return fmt.Errorf("rebel %s paired with itself: %w", aID, ErrInvalidState)
	}

	ea, err := s.rebelEntry(aID)
	if err != nil {
		return err
	}
	eb, err := s.rebelEntry(bID)
	if err != nil {
		return err
	}

	first, second := ea, eb
	if bID < aID {
		first, second = eb, ea
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	return fn(ea.rebel, ea.inv, eb.rebel, eb.inv)
}

// WithCorporation runs fn under the corporation's exclusive section.
func (s *Store) WithCorporation(id string, fn func(*Corporation) error) error {
	e, err := s.corpEntry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.corp)
}

// WithRebelAndCorporation runs fn under both sections. The rebel's lock
// is always taken first (rebels order before corporations globally), so
// raids and sweeps interleave without deadlock.
func (s *Store) WithRebelAndCorporation(rebelID, corpID string, fn func(*Rebel, *Inventory, *Corporation) error) error {
	er, err := s.rebelEntry(rebelID)
	if err != nil {
		return err
	}
	ec, err := s.corpEntry(corpID)
	if err != nil {
		return err
	}

	er.mu.Lock()
	defer er.mu.Unlock()
	ec.mu.Lock()
	defer ec.mu.Unlock()

	return fn(er.rebel, er.inv, ec.corp)
}

// WithRebelsAndCorporation runs fn under every listed rebel's section
// plus the corporation's. Rebel locks are acquired in ascending id
// order, then the corporation's, matching the global lock order. The
// slices passed to fn line up with the input id order. Used for
// all-or-nothing team raid execution.
func (s *Store) WithRebelsAndCorporation(rebelIDs []string, corpID string, fn func(rebels []*Rebel, invs []*Inventory, c *Corporation) error) error {
	entries := make([]*rebelEntry, len(rebelIDs))
	for i, id := range rebelIDs {
		e, err := s.rebelEntry(id)
		if err != nil {
			return err
		}
		entries[i] = e
	}
	ec, err := s.corpEntry(corpID)
	if err != nil {
		return err
	}

	order := slices.Clone(rebelIDs)
	slices.Sort(order)
	byID := make(map[string]*rebelEntry, len(rebelIDs))
	for i, id := range rebelIDs {
		if _, dup := byID[id]; dup {
			return fmt.Errorf("rebel %s listed twice: %w", id, ErrInvalidState)
		}
		byID[id] = entries[i]
	}

	for _, id := range order {
		byID[id].mu.Lock()
	}
	defer func() {
		for _, id := range order {
			byID[id].mu.Unlock()
		}
	}()

	ec.mu.Lock()
	defer ec.mu.Unlock()

	rebels := make([]*Rebel, len(entries))
	invs := make([]*Inventory, len(entries))
	for i, e := range entries {
		rebels[i] = e.rebel
		invs[i] = e.inv
	}
	return fn(rebels, invs, ec.corp)
}

// WithEvent runs fn under the global event's exclusive section.
func (s *Store) WithEvent(id string, fn func(*GlobalEvent) error) error {
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.event)
}

// RebelIDs returns all rebel ids in ascending order. A sweep iterating
// the result must tolerate ids vanishing before their section is
// acquired.
func (s *Store) RebelIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rebels))
	for id := range s.rebels {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CorporationIDs returns all corporation ids in ascending order.
func (s *Store) CorporationIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.corps))
	for id := range s.corps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EventIDs returns all global event ids in ascending order.
func (s *Store) EventIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RebelState is a consistent copy of a rebel and their inventory, taken
// for snapshots and read-only views.
type RebelState struct {
	Rebel     Rebel     `json:"rebel"`
	Inventory Inventory `json:"inventory"`
}

// Export copies the entire store under a consistent cut: the map lock
// is held exclusively, blocking new section entries, and each entity's
// section is acquired in turn so in-flight mutations finish before they
// are copied.
func (s *Store) Export() ([]RebelState, []Corporation, []GlobalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rebelIDs := make([]string, 0, len(s.rebels))
	for id := range s.rebels {
		rebelIDs = append(rebelIDs, id)
	}
	slices.Sort(rebelIDs)

	rebels := make([]RebelState, 0, len(rebelIDs))
	for _, id := range rebelIDs {
		e := s.rebels[id]
		e.mu.Lock()
		rebels = append(rebels, RebelState{Rebel: copyRebel(e.rebel), Inventory: copyInventory(e.inv)})
		e.mu.Unlock()
	}

	corpIDs := make([]string, 0, len(s.corps))
	for id := range s.corps {
		corpIDs = append(corpIDs, id)
	}
	slices.Sort(corpIDs)

	corps := make([]Corporation, 0, len(corpIDs))
	for _, id := range corpIDs {
		e := s.corps[id]
		e.mu.Lock()
		corps = append(corps, copyCorporation(e.corp))
		e.mu.Unlock()
	}

	eventIDs := make([]string, 0, len(s.events))
	for id := range s.events {
		eventIDs = append(eventIDs, id)
	}
	slices.Sort(eventIDs)

	events := make([]GlobalEvent, 0, len(eventIDs))
	for _, id := range eventIDs {
		e := s.events[id]
		e.mu.Lock()
		events = append(events, copyEvent(e.event))
		e.mu.Unlock()
	}

	return rebels, corps, events
}

// Import replaces the store's contents with the given state. Used by
// snapshot restore; not safe to run concurrently with live traffic.
func (s *Store) Import(rebels []RebelState, corps []Corporation, events []GlobalEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rebels = make(map[string]*rebelEntry, len(rebels))
	for i := range rebels {
		r := copyRebel(&rebels[i].Rebel)
		inv := copyInventory(&rebels[i].Inventory)
		s.rebels[r.ID] = &rebelEntry{rebel: &r, inv: &inv}
	}

	s.corps = make(map[string]*corpEntry, len(corps))
	for i := range corps {
		c := copyCorporation(&corps[i])
		s.corps[c.ID] = &corpEntry{corp: &c}
	}

	s.events = make(map[string]*eventEntry, len(events))
	for i := range events {
		e := copyEvent(&events[i])
		s.events[e.ID] = &eventEntry{event: &e}
	}
}

func copyRebel(r *Rebel) Rebel {
	out := *r
	out.DailyMissions = make(map[string]bool, len(r.DailyMissions))
	for k, v := range r.DailyMissions {
		out.DailyMissions[k] = v
	}
	out.Cooldowns = make(map[string]time.Time, len(r.Cooldowns))
	for k, v := range r.Cooldowns {
		out.Cooldowns[k] = v
	}
	return out
}

func copyInventory(inv *Inventory) Inventory {
	out := *inv
	out.Items = make(map[string]*Item, len(inv.Items))
	for id, item := range inv.Items {
		cp := *item
		out.Items[id] = &cp
	}
	return out
}

func copyCorporation(c *Corporation) Corporation {
	out := *c
	out.LootTable = slices.Clone(c.LootTable)
	out.Countermeasures = make([]*Countermeasure, len(c.Countermeasures))
	for i, cm := range c.Countermeasures {
		cp := *cm
		out.Countermeasures[i] = &cp
	}
	out.Threat = make(map[string]int64, len(c.Threat))
	for k, v := range c.Threat {
		out.Threat[k] = v
	}
	return out
}

func copyEvent(e *GlobalEvent) GlobalEvent {
	out := *e
	out.Contributions = make(map[string]int64, len(e.Contributions))
	for k, v := range e.Contributions {
		out.Contributions[k] = v
	}
	return out
}
