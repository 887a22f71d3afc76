package economy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/world"
)

// Status is an order's lifecycle state, shared by trades, listings,
// and auctions.
type Status string

const (
	StatusOpen      Status = "open"
	StatusSettled   Status = "settled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func (s Status) terminal() bool {
	return s != StatusOpen
}

// Trade is a direct two-party offer. The offered item and credits are
// escrowed out of the offerer's inventory when the offer is made, so
// they cannot be spent or traded twice while the offer stands.
type Trade struct {
	ID     string `json:"id"`
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`

	Item    *world.Item `json:"item,omitempty"`
	Credits int64       `json:"credits,omitempty"`
	Ask     int64       `json:"ask,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	SettledAt time.Time `json:"settled_at,omitempty"`

	// ItemReturned marks escrow that could not yet go back to the
	// offerer because their inventory was full.
	ItemReturned bool `json:"item_returned,omitempty"`
}

func (t *Trade) clone() *Trade {
	c := *t
	if t.Item != nil {
		item := *t.Item
		c.Item = &item
	}
	return &c
}

// OfferTrade opens a direct trade: the offerer puts up an item and/or
// credits against an asking price in credits. The stake leaves the
// offerer's inventory immediately.
func (e *Engine) OfferTrade(fromID, toID, itemID string, credits, ask int64) (*Trade, error) {
	if fromID == toID {
		return nil, fmt.Errorf("trade with self: %w", world.ErrInvalidState)
	}
	if itemID == "" && credits <= 0 {
		return nil, fmt.Errorf("empty offer: %w", world.ErrInvalidState)
	}
	if credits < 0 || ask < 0 {
		return nil, fmt.Errorf("negative amount: %w", world.ErrInvalidState)
	}
	if err := e.store.WithRebel(toID, func(*world.Rebel, *world.Inventory) error { return nil }); err != nil {
		return nil, fmt.Errorf("trade recipient: %w", err)
	}

	var item *world.Item
	err := e.store.WithRebel(fromID, func(_ *world.Rebel, inv *world.Inventory) error {
		if err := inv.Withdraw(credits); err != nil {
			return fmt.Errorf("trade stake: %w", err)
		}
		if itemID != "" {
			removed, err := inv.Remove(itemID)
			if err != nil {
				inv.Deposit(credits)
				return fmt.Errorf("trade item: %w", err)
			}
			item = removed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	t := &Trade{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Item:      item,
		Credits:   credits,
		Ask:       ask,
		Status:    StatusOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(e.tradeTTL),
	}

	e.mu.Lock()
	e.trades[t.ID] = t
	e.mu.Unlock()
	return t.clone(), nil
}

// AcceptTrade settles a trade. Only the named recipient may accept.
// The asking credits, the escrowed stake, and the item all move inside
// one section spanning both parties: either the whole settlement lands
// or nothing changes.
func (e *Engine) AcceptTrade(tradeID, acceptorID string) (*Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", tradeID, world.ErrNotFound)
	}
	if t.Status.terminal() {
		return nil, fmt.Errorf("trade %s is %s: %w", tradeID, t.Status, world.ErrInvalidState)
	}
	if t.ToID != acceptorID {
		return nil, fmt.Errorf("trade %s is not addressed to %s: %w", tradeID, acceptorID, world.ErrInvalidState)
	}

	err := e.store.WithTwoRebels(t.FromID, t.ToID, func(_ *world.Rebel, fromInv *world.Inventory, _ *world.Rebel, toInv *world.Inventory) error {
		if t.Item != nil && !toInv.HasRoom(1) {
			return fmt.Errorf("acceptor inventory full: %w", world.ErrInsufficientResource)
		}
		if err := toInv.Withdraw(t.Ask); err != nil {
			return fmt.Errorf("trade payment: %w", err)
		}
		fromInv.Deposit(t.Ask)
		toInv.Deposit(t.Credits)
		if t.Item != nil {
			if err := toInv.Add(t.Item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.Status = StatusSettled
	t.SettledAt = e.now()
	t.ItemReturned = true
	delete(e.trades, t.ID)
	return t.clone(), nil
}

// CancelTrade withdraws an open trade. Either party may cancel; the
// escrowed stake goes back to the offerer. A full offerer inventory
// holds the item in escrow until a later sweep can return it.
func (e *Engine) CancelTrade(tradeID, actorID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[tradeID]
	if !ok {
		return fmt.Errorf("trade %s: %w", tradeID, world.ErrNotFound)
	}
	if t.Status.terminal() {
		return fmt.Errorf("trade %s is %s: %w", tradeID, t.Status, world.ErrInvalidState)
	}
	if actorID != t.FromID && actorID != t.ToID {
		return fmt.Errorf("trade %s does not involve %s: %w", tradeID, actorID, world.ErrInvalidState)
	}

	t.Status = StatusCancelled
	e.releaseTrade(t)
	return nil
}

// Trades returns the open trades addressed to or offered by a rebel.
func (e *Engine) Trades(rebelID string) []*Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Trade
	for _, t := range e.trades {
		if t.Status == StatusOpen && (t.FromID == rebelID || t.ToID == rebelID) {
			out = append(out, t.clone())
		}
	}
	return out
}

// releaseTrade returns a terminal trade's escrow to the offerer and
// drops the record once everything is back. Callers hold e.mu.
func (e *Engine) releaseTrade(t *Trade) {
	e.refundCredits(t.FromID, t.Credits)
	t.Credits = 0

	if !t.ItemReturned && !e.returnItem(t.FromID, t.Item) {
		// Inventory full; the sweep retries.
		return
	}
	t.ItemReturned = true
	delete(e.trades, t.ID)
}

// sweepTrades expires stale trades and retries lingering escrow
// returns.
func (e *Engine) sweepTrades(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.trades {
		if t.Status == StatusOpen && now.After(t.ExpiresAt) {
			t.Status = StatusExpired
		}
		if t.Status.terminal() {
			e.releaseTrade(t)
		}
	}
}
