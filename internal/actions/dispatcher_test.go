package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/latchko/go-uprising/internal/combat"
	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/messaging"
	"github.com/latchko/go-uprising/internal/narrative"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/persistence"
	"github.com/latchko/go-uprising/internal/world"
	"github.com/pixil98/go-testutil"
)

// flatRand is a deterministic source: Float64 yields 0.5 (U = 1.0),
// IntN yields 0.
type flatRand struct{}

func (flatRand) Float64() float64 { return 0.5 }
func (flatRand) IntN(int) int     { return 0 }

type stubStorer[T interface{ Validate() error }] struct {
	m map[string]T
}

func (s *stubStorer[T]) Save(string, T) error { return nil }
func (s *stubStorer[T]) Get(id string) T      { return s.m[id] }
func (s *stubStorer[T]) GetAll() map[string]T { return s.m }

type stubPublisher struct {
	mu    sync.Mutex
	rebel []*messaging.Event
	world []*messaging.Event
}

func (p *stubPublisher) PublishRebel(_ string, ev *messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebel = append(p.rebel, ev)
	return nil
}

func (p *stubPublisher) PublishWorld(ev *messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.world = append(p.world, ev)
	return nil
}

type stubAuditor struct {
	events []*persistence.AuditEvent
}

func (a *stubAuditor) AppendAudit(_ context.Context, ev *persistence.AuditEvent) error {
	a.events = append(a.events, ev)
	return nil
}

type fixture struct {
	dispatcher *Dispatcher
	store      *world.Store
	publisher  *stubPublisher
	auditor    *stubAuditor
}

func newFixture(t *testing.T, opts ...DispatcherOpt) *fixture {
	t.Helper()
	store := world.NewStore()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.AddRebel(world.NewRebel(id, "Rebel "+id, "operative")); err != nil {
			t.Fatalf("adding rebel %s: %v", id, err)
		}
	}
	err := store.AddCorporation(&world.Corporation{
		ID: "omnicorp", Name: "OmniCorp",
		Health: 10000, MaxHealth: 10000,
		LootTable: []string{"datachip"},
	})
	if err != nil {
		t.Fatalf("adding corporation: %v", err)
	}

	items := &stubStorer[*world.ItemSpec]{m: map[string]*world.ItemSpec{
		"datachip": {Name: "Encrypted Datachip", Type: "intel", Value: 50},
	}}
	engine := combat.NewEngine(store, items, flatRand{})
	econ := economy.NewEngine(store)
	parties := party.NewManager(store, engine)

	describer, err := narrative.NewTemplateDescriber(nil)
	if err != nil {
		t.Fatalf("building describer: %v", err)
	}
	publisher := &stubPublisher{}
	auditor := &stubAuditor{}

	opts = append([]DispatcherOpt{
		WithDescriber(describer),
		WithPublisher(publisher),
		WithAuditor(auditor),
	}, opts...)

	return &fixture{
		dispatcher: NewDispatcher(store, engine, econ, parties, opts...),
		store:      store,
		publisher:  publisher,
		auditor:    auditor,
	}
}

func (f *fixture) perform(t *testing.T, req *Request) *Response {
	t.Helper()
	resp := f.dispatcher.Perform(context.Background(), req)
	if resp.Error != nil {
		t.Fatalf("perform %s: %s (%s)", req.Kind, resp.Error.Message, resp.Error.Code)
	}
	return resp
}

func errCode(resp *Response) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

func TestPerform_Join(t *testing.T) {
	f := newFixture(t)

	resp := f.perform(t, &Request{
		Kind:    "join",
		ActorID: "n1",
		Params:  Params{Name: "Neon", Class: "netrunner"},
	})
	testutil.AssertEqual(t, "ok", resp.OK, true)

	v, err := f.dispatcher.Query("rebel", "n1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	rv := v.(*RebelView)
	testutil.AssertEqual(t, "name", rv.Name, "Neon")
	testutil.AssertEqual(t, "class", rv.Class, "netrunner")
	testutil.AssertEqual(t, "starting credits", rv.Credits, DefaultStartingCredits)
	testutil.AssertEqual(t, "energy", rv.Energy, world.DefaultMaxEnergy)
}

func TestPerform_JoinValidation(t *testing.T) {
	f := newFixture(t)

	tests := map[string]struct {
		req  *Request
		code string
	}{
		"missing name": {
			req:  &Request{Kind: "join", ActorID: "n1", Params: Params{Class: "netrunner"}},
			code: "invalid_state",
		},
		"unknown class": {
			req:  &Request{Kind: "join", ActorID: "n1", Params: Params{Name: "Neon", Class: "wizard"}},
			code: "not_found",
		},
		"taken id": {
			req:  &Request{Kind: "join", ActorID: "r1", Params: Params{Name: "Copy", Class: "operative"}},
			code: "conflict",
		},
		"missing actor": {
			req:  &Request{Kind: "join", Params: Params{Name: "Ghost", Class: "operative"}},
			code: "invalid_state",
		},
		"unknown kind": {
			req:  &Request{Kind: "teleport", ActorID: "r1"},
			code: "not_found",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.dispatcher.Perform(context.Background(), tt.req)
			testutil.AssertEqual(t, "code", errCode(resp), tt.code)
		})
	}
}

func TestPerform_Raid(t *testing.T) {
	f := newFixture(t)

	resp := f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})

	out := resp.Result.(*combat.RaidOutcome)
	testutil.AssertEqual(t, "damage", out.Damage, 60)
	testutil.AssertEqual(t, "text", resp.Text, "Rebel r1 hits OmniCorp for 60 damage.")

	testutil.AssertEqual(t, "rebel events", len(f.publisher.rebel), 1)
	testutil.AssertEqual(t, "world events", len(f.publisher.world), 0)
	testutil.AssertEqual(t, "audit entries", len(f.auditor.events), 1)
	testutil.AssertEqual(t, "audit kind", f.auditor.events[0].Kind, "raid")
	testutil.AssertEqual(t, "audit subject", f.auditor.events[0].Subject, "omnicorp")
}

func TestPerform_RaidCooldown(t *testing.T) {
	f := newFixture(t)

	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	resp := f.dispatcher.Perform(context.Background(), &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	testutil.AssertEqual(t, "code", errCode(resp), "insufficient_resource")

	// A different rebel raids freely.
	f.perform(t, &Request{Kind: "raid", ActorID: "r2", Params: Params{TargetID: "omnicorp"}})
}

func TestPerform_RaidCooldownSingleWinner(t *testing.T) {
	f := newFixture(t)

	// Concurrent raids from one actor race for a single cooldown
	// slot; the check-and-reserve section lets exactly one through.
	const raids = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		codes     []string
	)
	for range raids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := f.dispatcher.Perform(context.Background(), &Request{
				Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"},
			})
			mu.Lock()
			defer mu.Unlock()
			if resp.Error == nil {
				succeeded++
			} else {
				codes = append(codes, resp.Error.Code)
			}
		}()
	}
	wg.Wait()

	testutil.AssertEqual(t, "successes", succeeded, 1)
	testutil.AssertEqual(t, "rejections", len(codes), raids-1)
	for _, code := range codes {
		testutil.AssertEqual(t, "rejection code", code, "insufficient_resource")
	}

	// Exactly one raid spent energy.
	var energy int
	_ = f.store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		energy = r.Energy
		return nil
	})
	testutil.AssertEqual(t, "energy", energy, 75)
}

func TestPerform_RaidFailureReleasesCooldown(t *testing.T) {
	f := newFixture(t)

	_ = f.store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		r.Energy = 5
		return nil
	})

	resp := f.dispatcher.Perform(context.Background(), &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	testutil.AssertEqual(t, "code", errCode(resp), "insufficient_resource")

	// The failed raid must not hold the cooldown slot: refueled, the
	// rebel raids immediately.
	_ = f.store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		r.Energy = 100
		return nil
	})
	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
}

func TestPerform_RateLimited(t *testing.T) {
	f := newFixture(t, WithRateLimit(1, 1))

	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	resp := f.dispatcher.Perform(context.Background(), &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	testutil.AssertEqual(t, "code", errCode(resp), "insufficient_resource")
}

func TestPerform_TradeFlow(t *testing.T) {
	f := newFixture(t)

	err := f.store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Add(&world.Item{ID: "blade", Name: "Mono Blade", Type: "weapon", Value: 100})
	})
	if err != nil {
		t.Fatalf("seeding item: %v", err)
	}
	err = f.store.WithRebel("r2", func(_ *world.Rebel, inv *world.Inventory) error {
		inv.Deposit(50)
		return nil
	})
	if err != nil {
		t.Fatalf("seeding credits: %v", err)
	}

	offer := f.perform(t, &Request{
		Kind:    "trade_offer",
		ActorID: "r1",
		Params:  Params{TargetID: "r2", ItemID: "blade", Ask: 40},
	})
	tr := offer.Result.(*economy.Trade)

	accept := f.perform(t, &Request{Kind: "trade_accept", ActorID: "r2", Params: Params{TradeID: tr.ID}})
	testutil.AssertEqual(t, "text", accept.Text, "Rebel r2 closes a deal with Rebel r1 worth 40 credits.")

	var sellerCredits, buyerItems = int64(0), 0
	_ = f.store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		sellerCredits = inv.Credits
		return nil
	})
	_ = f.store.WithRebel("r2", func(_ *world.Rebel, inv *world.Inventory) error {
		buyerItems = len(inv.Items)
		return nil
	})
	testutil.AssertEqual(t, "seller credits", sellerCredits, int64(40))
	testutil.AssertEqual(t, "buyer items", buyerItems, 1)
}

func TestPerform_PartyFlow(t *testing.T) {
	f := newFixture(t)

	form := f.perform(t, &Request{
		Kind:    "party_form",
		ActorID: "r1",
		Params:  Params{TargetID: "omnicorp", FormationID: "standard"},
	})
	v := form.Result.(*party.View)

	for _, id := range []string{"r2", "r3"} {
		f.perform(t, &Request{Kind: "party_join", ActorID: id, Params: Params{PartyID: v.ID}})
	}
	f.perform(t, &Request{Kind: "party_plan", ActorID: "r1", Params: Params{PartyID: v.ID}})
	for _, id := range []string{"r1", "r2", "r3"} {
		f.perform(t, &Request{Kind: "party_ready", ActorID: id})
	}

	exec := f.perform(t, &Request{Kind: "party_execute", ActorID: "r1", Params: Params{PartyID: v.ID}})
	out := exec.Result.(*combat.TeamOutcome)
	testutil.AssertEqual(t, "total damage", out.TotalDamage, 180)
	testutil.AssertEqual(t, "text", exec.Text, "The cell strikes OmniCorp together for 180 combined damage.")
}

func TestPerform_NarrationFailureKeepsResult(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := f.dispatcher.Perform(ctx, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	if resp.Error != nil {
		t.Fatalf("perform: %s", resp.Error.Message)
	}
	testutil.AssertEqual(t, "text", resp.Text, "")

	// The raid itself committed.
	var energy int
	_ = f.store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		energy = r.Energy
		return nil
	})
	testutil.AssertEqual(t, "energy spent", energy, 75)
}

func TestQuery(t *testing.T) {
	f := newFixture(t)

	corp, err := f.dispatcher.Query("corporation", "omnicorp")
	if err != nil {
		t.Fatalf("query corporation: %v", err)
	}
	testutil.AssertEqual(t, "health", corp.(*CorporationView).Health, 10000)

	corps, err := f.dispatcher.Query("corporations", "")
	if err != nil {
		t.Fatalf("query corporations: %v", err)
	}
	testutil.AssertEqual(t, "corporation count", len(corps.([]*CorporationView)), 1)

	if _, err := f.dispatcher.Query("rebel", "ghost"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.dispatcher.Query("horoscope", ""); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"not found":    {err: world.ErrNotFound, want: "not_found"},
		"wrapped":      {err: fmt.Errorf("trade x: %w", world.ErrConflict), want: "conflict"},
		"invalid":      {err: world.ErrInvalidState, want: "invalid_state"},
		"insufficient": {err: world.ErrInsufficientResource, want: "insufficient_resource"},
		"collaborator": {err: world.ErrCollaboratorUnavailable, want: "collaborator_unavailable"},
		"other":        {err: errors.New("boom"), want: "internal"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, "code", ErrorCode(tt.err), tt.want)
		})
	}
}

func TestAdmin_ResetActor(t *testing.T) {
	f := newFixture(t)

	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})

	admin := NewAdmin(f.dispatcher, nil, nil)
	if err := admin.ResetActor("r1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	var energy, cooldowns int
	_ = f.store.WithRebel("r1", func(r *world.Rebel, _ *world.Inventory) error {
		energy = r.Energy
		cooldowns = len(r.Cooldowns)
		return nil
	})
	testutil.AssertEqual(t, "energy", energy, world.DefaultMaxEnergy)
	testutil.AssertEqual(t, "cooldowns", cooldowns, 0)

	// The rebel can raid again straight away.
	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})

	if err := admin.ResetActor("ghost"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdmin_StartEvent(t *testing.T) {
	f := newFixture(t)
	admin := NewAdmin(f.dispatcher, nil, nil)

	err := admin.StartEvent("strike-week", "coordinated-strike", "omnicorp", 100, world.Reward{Credits: 200, Loyalty: 10})
	if err != nil {
		t.Fatalf("starting event: %v", err)
	}

	// Two raids of 60 damage each push past the target; both
	// contributors are paid.
	f.perform(t, &Request{Kind: "raid", ActorID: "r1", Params: Params{TargetID: "omnicorp"}})
	f.perform(t, &Request{Kind: "raid", ActorID: "r2", Params: Params{TargetID: "omnicorp"}})

	for _, id := range []string{"r1", "r2"} {
		var credits int64
		_ = f.store.WithRebel(id, func(_ *world.Rebel, inv *world.Inventory) error {
			credits = inv.Credits
			return nil
		})
		testutil.AssertEqual(t, id+" reward", credits, int64(200))
	}

	v, err := f.dispatcher.Query("events", "")
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	events := v.([]*EventView)
	testutil.AssertEqual(t, "event count", len(events), 1)
	testutil.AssertEqual(t, "status", events[0].Status, world.EventCompleted)
	testutil.AssertEqual(t, "contributors", events[0].Contributors, 2)

	tests := map[string]struct {
		id     string
		corpID string
		target int64
		err    error
	}{
		"zero target":  {id: "e2", corpID: "omnicorp", target: 0, err: world.ErrInvalidState},
		"unknown corp": {id: "e2", corpID: "ghostcorp", target: 100, err: world.ErrNotFound},
		"duplicate id": {id: "strike-week", corpID: "omnicorp", target: 100, err: world.ErrConflict},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := admin.StartEvent(tt.id, "coordinated-strike", tt.corpID, tt.target, world.Reward{})
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestAdmin_RemoveActor(t *testing.T) {
	f := newFixture(t)
	admin := NewAdmin(f.dispatcher, nil, nil)

	form := f.perform(t, &Request{
		Kind:    "party_form",
		ActorID: "r1",
		Params:  Params{TargetID: "omnicorp", FormationID: "standard"},
	})
	v := form.Result.(*party.View)
	f.perform(t, &Request{Kind: "party_join", ActorID: "r2", Params: Params{PartyID: v.ID}})

	if err := admin.RemoveActor("r1"); err != nil {
		t.Fatalf("removing actor: %v", err)
	}

	if _, err := f.dispatcher.Query("rebel", "r1"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// The departed leader's seat passed to the remaining member.
	pv, err := f.dispatcher.Query("party_of", "r2")
	if err != nil {
		t.Fatalf("query party: %v", err)
	}
	testutil.AssertEqual(t, "leader", pv.(*party.View).LeaderID, "r2")
	testutil.AssertEqual(t, "members", len(pv.(*party.View).Members), 1)

	if err := admin.RemoveActor("ghost"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
