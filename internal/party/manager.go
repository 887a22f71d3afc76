package party

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/combat"
	"github.com/latchko/go-uprising/internal/world"
)

// DefaultRetention is how long a completed party sticks around for
// result display before the reaper removes it.
const DefaultRetention = 5 * time.Minute

// Manager tracks all raid parties and drives their lifecycle:
//
//	forming -> planning -> ready -> executing -> completed | disbanded
//
// Membership changes are legal in forming/planning, readiness toggles
// in planning/ready, and execution requires the leader plus every
// member ready. A member may leave at any non-terminal state.
type Manager struct {
	mu       sync.Mutex
	parties  map[string]*Party
	byMember map[string]string

	store     *world.Store
	engine    *combat.Engine
	retention time.Duration
	now       func() time.Time
}

// ManagerOpt configures a Manager.
type ManagerOpt func(*Manager)

// WithRetention overrides how long completed parties are retained.
func WithRetention(d time.Duration) ManagerOpt {
	return func(m *Manager) { m.retention = d }
}

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) ManagerOpt {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a party manager that delegates raid execution to
// the given combat engine.
func NewManager(store *world.Store, engine *combat.Engine, opts ...ManagerOpt) *Manager {
	m := &Manager{
		parties:   make(map[string]*Party),
		byMember:  make(map[string]string),
		store:     store,
		engine:    engine,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create forms a new party with the creator as leader and sole member.
func (m *Manager) Create(leaderID, corpID, formationID string) (*View, error) {
	if _, ok := world.Formations[formationID]; !ok {
		return nil, fmt.Errorf("formation %s: %w", formationID, world.ErrNotFound)
	}
	if err := m.store.WithRebel(leaderID, func(*world.Rebel, *world.Inventory) error { return nil }); err != nil {
		return nil, err
	}
	if err := m.store.WithCorporation(corpID, func(*world.Corporation) error { return nil }); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if partyID, ok := m.byMember[leaderID]; ok {
		return nil, fmt.Errorf("rebel %s already in party %s: %w", leaderID, partyID, world.ErrConflict)
	}

	p := &Party{
		ID:          uuid.New().String(),
		LeaderID:    leaderID,
		CorpID:      corpID,
		FormationID: formationID,
		State:       StateForming,
		members:     map[string]bool{leaderID: true},
		ready:       map[string]bool{},
		CreatedAt:   m.now(),
	}
	m.parties[p.ID] = p
	m.byMember[leaderID] = p.ID
	return p.view(), nil
}

// Join adds a rebel to a party. Membership changes are only legal while
// forming or planning.
func (m *Manager) Join(partyID, rebelID string) (*View, error) {
	if err := m.store.WithRebel(rebelID, func(*world.Rebel, *world.Inventory) error { return nil }); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", partyID, world.ErrNotFound)
	}
	if p.State != StateForming && p.State != StatePlanning {
		return nil, fmt.Errorf("party %s is %s: %w", partyID, p.State, world.ErrInvalidState)
	}
	if otherID, ok := m.byMember[rebelID]; ok {
		return nil, fmt.Errorf("rebel %s already in party %s: %w", rebelID, otherID, world.ErrConflict)
	}

	p.members[rebelID] = true
	m.byMember[rebelID] = p.ID
	return p.view(), nil
}

// Leave removes a rebel from their party. Legal at any non-terminal
// state. Leadership passes to an arbitrary remaining member; an empty
// party disbands.
func (m *Manager) Leave(rebelID string) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.partyOf(rebelID)
	if err != nil {
		return nil, err
	}
	if p.State.terminal() || p.State == StateExecuting {
		return nil, fmt.Errorf("party %s is %s: %w", p.ID, p.State, world.ErrInvalidState)
	}

	delete(p.members, rebelID)
	delete(p.ready, rebelID)
	delete(m.byMember, rebelID)

	if len(p.members) == 0 {
		p.State = StateDisbanded
		p.CompletedAt = m.now()
		return p.view(), nil
	}

	if p.LeaderID == rebelID {
		p.LeaderID = p.memberIDs()[0]
	}
	m.recomputeReady(p)
	return p.view(), nil
}

// Plan moves a forming party into planning. Leader only.
func (m *Manager) Plan(partyID, leaderID string) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", partyID, world.ErrNotFound)
	}
	if p.LeaderID != leaderID {
		return nil, fmt.Errorf("rebel %s is not the leader: %w", leaderID, world.ErrInvalidState)
	}
	if p.State != StateForming {
		return nil, fmt.Errorf("party %s is %s: %w", partyID, p.State, world.ErrInvalidState)
	}

	p.State = StatePlanning
	return p.view(), nil
}

// ToggleReady flips a member's personal readiness. Legal in planning
// and ready; the party state follows the all-ready condition.
func (m *Manager) ToggleReady(rebelID string) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.partyOf(rebelID)
	if err != nil {
		return nil, err
	}
	if p.State != StatePlanning && p.State != StateReady {
		return nil, fmt.Errorf("party %s is %s: %w", p.ID, p.State, world.ErrInvalidState)
	}

	p.ready[rebelID] = !p.ready[rebelID]
	m.recomputeReady(p)
	return p.view(), nil
}

// recomputeReady moves the party between planning and ready based on
// the all-ready condition.
func (m *Manager) recomputeReady(p *Party) {
	if p.State != StatePlanning && p.State != StateReady {
		return
	}
	if p.allReady() {
		p.State = StateReady
	} else {
		p.State = StatePlanning
	}
}

// Execute launches the synchronized raid. Leader only, and every
// member must be ready: anything less returns ErrInvalidState with
// zero side effects. The combined attack is delegated to the combat
// engine, which applies it as one health mutation under all members'
// and the corporation's sections.
func (m *Manager) Execute(partyID, leaderID string) (*combat.TeamOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", partyID, world.ErrNotFound)
	}
	if p.LeaderID != leaderID {
		return nil, fmt.Errorf("rebel %s is not the leader: %w", leaderID, world.ErrInvalidState)
	}
	if p.State != StateReady || !p.allReady() {
		return nil, fmt.Errorf("party %s is not fully ready: %w", partyID, world.ErrInvalidState)
	}

	p.State = StateExecuting

	outcome, err := m.engine.ResolveTeamRaid(p.memberIDs(), p.CorpID, world.Formations[p.FormationID])
	if err != nil {
		// Nothing landed; drop back to ready so the party can retry.
		p.State = StateReady
		return nil, err
	}

	p.State = StateCompleted
	p.CompletedAt = m.now()
	p.Result = outcome
	for id := range p.members {
		delete(m.byMember, id)
	}
	return outcome, nil
}

// Disband dissolves the party. Leader only.
func (m *Manager) Disband(partyID, leaderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok {
		return fmt.Errorf("party %s: %w", partyID, world.ErrNotFound)
	}
	if p.LeaderID != leaderID {
		return fmt.Errorf("rebel %s is not the leader: %w", leaderID, world.ErrInvalidState)
	}
	if p.State.terminal() || p.State == StateExecuting {
		return fmt.Errorf("party %s is %s: %w", partyID, p.State, world.ErrInvalidState)
	}

	p.State = StateDisbanded
	p.CompletedAt = m.now()
	for id := range p.members {
		delete(m.byMember, id)
	}
	return nil
}

// Get returns a view of a party.
func (m *Manager) Get(partyID string) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("party %s: %w", partyID, world.ErrNotFound)
	}
	return p.view(), nil
}

// GetByMember returns the party a rebel currently belongs to.
func (m *Manager) GetByMember(rebelID string) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.partyOf(rebelID)
	if err != nil {
		return nil, err
	}
	return p.view(), nil
}

// Reap removes terminal parties past the retention window. Called by
// the scheduler.
func (m *Manager) Reap(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, p := range m.parties {
		if p.State.terminal() && now.Sub(p.CompletedAt) >= m.retention {
			delete(m.parties, id)
			removed++
		}
	}
	return removed
}

// Export copies all live parties for snapshotting.
func (m *Manager) Export() []*View {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]*View, 0, len(m.parties))
	for _, p := range m.parties {
		views = append(views, p.view())
	}
	return views
}

// Import restores parties from snapshot views, replacing current state.
func (m *Manager) Import(views []*View) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parties = make(map[string]*Party, len(views))
	m.byMember = make(map[string]string)
	for _, v := range views {
		p := &Party{
			ID:          v.ID,
			LeaderID:    v.LeaderID,
			CorpID:      v.CorpID,
			FormationID: v.FormationID,
			State:       v.State,
			members:     map[string]bool{},
			ready:       map[string]bool{},
			CreatedAt:   v.CreatedAt,
			CompletedAt: v.CompletedAt,
			Result:      v.Result,
		}
		for _, id := range v.Members {
			p.members[id] = true
			if !p.State.terminal() {
				m.byMember[id] = p.ID
			}
		}
		for _, id := range v.Ready {
			p.ready[id] = true
		}
		m.parties[p.ID] = p
	}
}

func (m *Manager) partyOf(rebelID string) (*Party, error) {
	partyID, ok := m.byMember[rebelID]
	if !ok {
		return nil, fmt.Errorf("rebel %s is not in a party: %w", rebelID, world.ErrNotFound)
	}
	return m.parties[partyID], nil
}
