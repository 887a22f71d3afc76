// Package actions is the command surface of the world: every
// player-initiated operation enters through the Dispatcher, which
// validates, rate-limits, executes, and then fans the committed
// outcome out to narration, the event bus, and the audit trail.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/latchko/go-uprising/internal/combat"
	"github.com/latchko/go-uprising/internal/economy"
	"github.com/latchko/go-uprising/internal/messaging"
	"github.com/latchko/go-uprising/internal/narrative"
	"github.com/latchko/go-uprising/internal/party"
	"github.com/latchko/go-uprising/internal/persistence"
	"github.com/latchko/go-uprising/internal/world"
)

const (
	// DefaultRaidCooldown spaces raids from one rebel.
	DefaultRaidCooldown = 3 * time.Second

	// DefaultStartingCredits seeds a newly joined rebel.
	DefaultStartingCredits int64 = 100

	// describeTimeout bounds the narrative collaborator per outcome.
	describeTimeout = 500 * time.Millisecond
)

// Request is one action submission.
type Request struct {
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id"`
	Params  Params `json:"params,omitempty"`
}

// Params carries the per-kind arguments. Kinds read only the fields
// they need.
type Params struct {
	Name  string `json:"name,omitempty"`
	Class string `json:"class,omitempty"`

	TargetID    string `json:"target_id,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	PartyID     string `json:"party_id,omitempty"`
	FormationID string `json:"formation_id,omitempty"`
	TradeID     string `json:"trade_id,omitempty"`
	ListingID   string `json:"listing_id,omitempty"`
	AuctionID   string `json:"auction_id,omitempty"`

	Credits int64 `json:"credits,omitempty"`
	Ask     int64 `json:"ask,omitempty"`
	Price   int64 `json:"price,omitempty"`
	MinBid  int64 `json:"min_bid,omitempty"`
	Amount  int64 `json:"amount,omitempty"`
}

// Response is the structured outcome handed back to the interaction
// surface.
type Response struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Text   string `json:"text,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is a typed failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode maps a core error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, world.ErrNotFound):
		return "not_found"
	case errors.Is(err, world.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, world.ErrInsufficientResource):
		return "insufficient_resource"
	case errors.Is(err, world.ErrConflict):
		return "conflict"
	case errors.Is(err, world.ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	default:
		return "internal"
	}
}

// Auditor records committed actions.
type Auditor interface {
	AppendAudit(ctx context.Context, ev *persistence.AuditEvent) error
}

// Dispatcher routes action requests into the core engines.
type Dispatcher struct {
	store   *world.Store
	engine  *combat.Engine
	econ    *economy.Engine
	parties *party.Manager

	describer narrative.Describer
	publisher messaging.Publisher
	auditor   Auditor
	limiters  *limiterMap

	raidCooldown    time.Duration
	startingCredits int64
}

// DispatcherOpt configures a dispatcher.
type DispatcherOpt func(*Dispatcher)

// WithDescriber attaches the narrative collaborator.
func WithDescriber(d narrative.Describer) DispatcherOpt {
	return func(dp *Dispatcher) { dp.describer = d }
}

// WithPublisher attaches the event bus publisher.
func WithPublisher(p messaging.Publisher) DispatcherOpt {
	return func(dp *Dispatcher) { dp.publisher = p }
}

// WithAuditor attaches the audit trail.
func WithAuditor(a Auditor) DispatcherOpt {
	return func(dp *Dispatcher) { dp.auditor = a }
}

// WithRateLimit overrides the per-actor action budget.
func WithRateLimit(perSecond float64, burst int) DispatcherOpt {
	return func(dp *Dispatcher) { dp.limiters = newLimiterMap(perSecond, burst) }
}

// WithRaidCooldown overrides the spacing between raids per rebel.
func WithRaidCooldown(d time.Duration) DispatcherOpt {
	return func(dp *Dispatcher) { dp.raidCooldown = d }
}

// NewDispatcher wires the action surface over the core engines.
func NewDispatcher(store *world.Store, engine *combat.Engine, econ *economy.Engine, parties *party.Manager, opts ...DispatcherOpt) *Dispatcher {
	d := &Dispatcher{
		store:           store,
		engine:          engine,
		econ:            econ,
		parties:         parties,
		limiters:        newLimiterMap(DefaultActionsPerSecond, DefaultActionBurst),
		raidCooldown:    DefaultRaidCooldown,
		startingCredits: DefaultStartingCredits,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Perform executes one action. State changes commit inside the core
// engines; narration, event delivery, and auditing run afterwards and
// never affect the result.
func (d *Dispatcher) Perform(ctx context.Context, req *Request) *Response {
	if req.ActorID == "" {
		return fail(fmt.Errorf("missing actor id: %w", world.ErrInvalidState))
	}
	if !d.limiters.allow(req.ActorID) {
		return fail(fmt.Errorf("action budget exhausted: %w", world.ErrInsufficientResource))
	}

	result, ev, err := d.dispatch(ctx, req)
	if err != nil {
		return fail(err)
	}

	resp := &Response{OK: true, Result: result}
	if ev != nil {
		resp.Text = d.describe(ctx, ev)
		d.publish(req, ev, resp.Text)
	}
	d.audit(ctx, req)
	return resp
}

func fail(err error) *Response {
	return &Response{Error: &Error{Code: ErrorCode(err), Message: err.Error()}}
}

// dispatch routes to the owning engine. It returns the result payload
// and, for world-visible outcomes, a narrative event.
func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (any, *narrative.Event, error) {
	p := req.Params
	switch req.Kind {
	case "join":
		return d.join(req.ActorID, p.Name, p.Class)
	case "raid":
		return d.raid(req.ActorID, p.TargetID)

	case "party_form":
		v, err := d.parties.Create(req.ActorID, p.TargetID, p.FormationID)
		return v, nil, err
	case "party_join":
		v, err := d.parties.Join(p.PartyID, req.ActorID)
		return v, nil, err
	case "party_leave":
		v, err := d.parties.Leave(req.ActorID)
		return v, nil, err
	case "party_plan":
		v, err := d.parties.Plan(p.PartyID, req.ActorID)
		return v, nil, err
	case "party_ready":
		v, err := d.parties.ToggleReady(req.ActorID)
		return v, nil, err
	case "party_execute":
		return d.executeParty(p.PartyID, req.ActorID)
	case "party_disband":
		return nil, nil, d.parties.Disband(p.PartyID, req.ActorID)

	case "trade_offer":
		t, err := d.econ.OfferTrade(req.ActorID, p.TargetID, p.ItemID, p.Credits, p.Ask)
		return t, nil, err
	case "trade_accept":
		return d.acceptTrade(p.TradeID, req.ActorID)
	case "trade_cancel":
		return nil, nil, d.econ.CancelTrade(p.TradeID, req.ActorID)

	case "market_list":
		l, err := d.econ.ListItem(req.ActorID, p.ItemID, p.Price)
		return l, nil, err
	case "market_buy":
		return d.buyListing(p.ListingID, req.ActorID)
	case "market_cancel":
		return nil, nil, d.econ.CancelListing(p.ListingID, req.ActorID)

	case "auction_start":
		a, err := d.econ.StartAuction(req.ActorID, p.ItemID, p.MinBid)
		return a, nil, err
	case "auction_bid":
		a, err := d.econ.Bid(p.AuctionID, req.ActorID, p.Amount)
		return a, nil, err
	case "auction_cancel":
		return nil, nil, d.econ.CancelAuction(p.AuctionID, req.ActorID)

	default:
		return nil, nil, fmt.Errorf("action %s: %w", req.Kind, world.ErrNotFound)
	}
}

// join registers a new rebel with starting credits.
func (d *Dispatcher) join(actorID, name, classID string) (any, *narrative.Event, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("missing name: %w", world.ErrInvalidState)
	}
	if _, ok := world.Classes[classID]; !ok {
		return nil, nil, fmt.Errorf("class %s: %w", classID, world.ErrNotFound)
	}

	if err := d.store.AddRebel(world.NewRebel(actorID, name, classID)); err != nil {
		return nil, nil, err
	}
	_ = d.store.WithRebel(actorID, func(_ *world.Rebel, inv *world.Inventory) error {
		inv.Deposit(d.startingCredits)
		return nil
	})

	v, err := d.rebelView(actorID)
	if err != nil {
		return nil, nil, err
	}
	return v, nil, nil
}

// raid runs a solo raid, enforcing the per-rebel cooldown. The
// cooldown is checked and reserved in one section, so two concurrent
// raids from the same actor cannot both pass the gate; a failed
// resolution releases the reservation.
func (d *Dispatcher) raid(actorID, corpID string) (any, *narrative.Event, error) {
	now := d.store.Now()
	err := d.store.WithRebel(actorID, func(r *world.Rebel, _ *world.Inventory) error {
		if r.OnCooldown("raid", now) {
			return fmt.Errorf("raid cooling down: %w", world.ErrInsufficientResource)
		}
		r.SetCooldown("raid", now, d.raidCooldown)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out, err := d.engine.ResolveRaid(actorID, corpID)
	if err != nil {
		_ = d.store.WithRebel(actorID, func(r *world.Rebel, _ *world.Inventory) error {
			r.ClearCooldown("raid")
			return nil
		})
		return nil, nil, err
	}

	ev := &narrative.Event{
		Kind:       "raid",
		ActorID:    actorID,
		ActorName:  d.rebelName(actorID),
		TargetID:   corpID,
		TargetName: d.corpName(corpID),
		Damage:     out.Damage,
		Defeated:   out.Defeated,
	}
	return out, ev, nil
}

func (d *Dispatcher) executeParty(partyID, actorID string) (any, *narrative.Event, error) {
	out, err := d.parties.Execute(partyID, actorID)
	if err != nil {
		return nil, nil, err
	}
	ev := &narrative.Event{
		Kind:       "team_raid",
		ActorID:    actorID,
		ActorName:  d.rebelName(actorID),
		TargetID:   out.CorpID,
		TargetName: d.corpName(out.CorpID),
		Damage:     out.TotalDamage,
		Defeated:   out.Defeated,
	}
	return out, ev, nil
}

func (d *Dispatcher) acceptTrade(tradeID, actorID string) (any, *narrative.Event, error) {
	t, err := d.econ.AcceptTrade(tradeID, actorID)
	if err != nil {
		return nil, nil, err
	}
	ev := &narrative.Event{
		Kind:       "trade",
		ActorID:    actorID,
		ActorName:  d.rebelName(actorID),
		TargetID:   t.FromID,
		TargetName: d.rebelName(t.FromID),
		Credits:    t.Ask,
	}
	return t, ev, nil
}

func (d *Dispatcher) buyListing(listingID, actorID string) (any, *narrative.Event, error) {
	l, err := d.econ.BuyListing(listingID, actorID)
	if err != nil {
		return nil, nil, err
	}
	ev := &narrative.Event{
		Kind:      "listing_sold",
		ActorID:   actorID,
		ActorName: d.rebelName(actorID),
		TargetID:  l.SellerID,
		Credits:   l.Price,
		Items:     []string{l.Item.Name},
	}
	return l, ev, nil
}

// describe renders outcome text under a bounded timeout. Failure only
// costs the text.
func (d *Dispatcher) describe(ctx context.Context, ev *narrative.Event) string {
	if d.describer == nil {
		return ""
	}
	dctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	text, err := d.describer.Describe(dctx, ev)
	if err != nil {
		slog.DebugContext(ctx, "narration unavailable", "kind", ev.Kind, "error", err)
		return ""
	}
	return text
}

// publish delivers the committed outcome to the actor's feed and, for
// defeats, the world feed.
func (d *Dispatcher) publish(req *Request, ev *narrative.Event, text string) {
	if d.publisher == nil {
		return
	}
	wire := &messaging.Event{
		Kind:     ev.Kind,
		At:       d.store.Now(),
		ActorID:  ev.ActorID,
		TargetID: ev.TargetID,
		Text:     text,
		Data:     ev,
	}
	if err := d.publisher.PublishRebel(req.ActorID, wire); err != nil {
		slog.Debug("publishing rebel event", "actor", req.ActorID, "error", err)
	}
	if ev.Defeated {
		if err := d.publisher.PublishWorld(wire); err != nil {
			slog.Debug("publishing world event", "kind", ev.Kind, "error", err)
		}
	}
}

// audit records the action best-effort.
func (d *Dispatcher) audit(ctx context.Context, req *Request) {
	if d.auditor == nil {
		return
	}
	detail, _ := json.Marshal(req.Params)
	err := d.auditor.AppendAudit(ctx, &persistence.AuditEvent{
		At:      d.store.Now(),
		ActorID: req.ActorID,
		Kind:    req.Kind,
		Subject: subjectOf(req),
		Detail:  string(detail),
	})
	if err != nil {
		slog.WarnContext(ctx, "audit append failed", "kind", req.Kind, "error", err)
	}
}

func subjectOf(req *Request) string {
	p := req.Params
	for _, s := range []string{p.TargetID, p.PartyID, p.TradeID, p.ListingID, p.AuctionID, p.ItemID} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (d *Dispatcher) rebelName(id string) string {
	name := id
	_ = d.store.WithRebel(id, func(r *world.Rebel, _ *world.Inventory) error {
		name = r.Name
		return nil
	})
	return name
}

func (d *Dispatcher) corpName(id string) string {
	name := id
	_ = d.store.WithCorporation(id, func(c *world.Corporation) error {
		name = c.Name
		return nil
	})
	return name
}
