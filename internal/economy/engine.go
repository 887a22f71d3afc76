package economy

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/latchko/go-uprising/internal/world"
)

const (
	// DefaultSalesTax is the cut taken from market listing sales.
	DefaultSalesTax = 0.05

	// DefaultHouseFee is the flat cut taken from a settled auction.
	DefaultHouseFee int64 = 50

	DefaultTradeTTL   = time.Hour
	DefaultListingTTL = 24 * time.Hour
	DefaultAuctionTTL = time.Hour

	// equilibriumSupply is the per-category listing count at which the
	// price multiplier is 1.0.
	equilibriumSupply = 5

	priceFloor = 0.5
	priceCeil  = 2.0
)

// Engine runs the player economy: direct trades, market listings,
// auctions, and the advisory price signal. One mutex guards the
// order books; inventory and credit movement happens inside entity
// store sections so settlements are atomic across the parties.
type Engine struct {
	mu       sync.Mutex
	trades   map[string]*Trade
	listings map[string]*Listing
	auctions map[string]*Auction

	// multipliers is the advisory price signal per item category.
	multipliers map[string]float64

	store *world.Store

	salesTax   float64
	houseFee   int64
	tradeTTL   time.Duration
	listingTTL time.Duration
	auctionTTL time.Duration
	now        func() time.Time
}

// EngineOpt configures an economy engine.
type EngineOpt func(*Engine)

func WithSalesTax(rate float64) EngineOpt {
	return func(e *Engine) { e.salesTax = rate }
}

func WithHouseFee(fee int64) EngineOpt {
	return func(e *Engine) { e.houseFee = fee }
}

func WithTradeTTL(d time.Duration) EngineOpt {
	return func(e *Engine) { e.tradeTTL = d }
}

func WithListingTTL(d time.Duration) EngineOpt {
	return func(e *Engine) { e.listingTTL = d }
}

func WithAuctionTTL(d time.Duration) EngineOpt {
	return func(e *Engine) { e.auctionTTL = d }
}

func WithClock(now func() time.Time) EngineOpt {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an economy engine over the given store.
func NewEngine(store *world.Store, opts ...EngineOpt) *Engine {
	e := &Engine{
		trades:      make(map[string]*Trade),
		listings:    make(map[string]*Listing),
		auctions:    make(map[string]*Auction),
		multipliers: make(map[string]float64),
		store:       store,
		salesTax:    DefaultSalesTax,
		houseFee:    DefaultHouseFee,
		tradeTTL:    DefaultTradeTTL,
		listingTTL:  DefaultListingTTL,
		auctionTTL:  DefaultAuctionTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MarketSweep is the periodic maintenance pass: expire stale trades
// and listings, retry lingering escrow returns, settle ended auctions,
// and recompute the price signal. Safe to run concurrently with
// request handling.
func (e *Engine) MarketSweep(now time.Time) {
	e.sweepTrades(now)
	e.sweepListings(now)
	e.SettleAuctions(now)
	e.RecomputePrices()
}

// RecomputePrices rebuilds the per-category multiplier from active
// listing supply. Oversupply discounts, scarcity carries a premium,
// both bounded.
func (e *Engine) RecomputePrices() {
	e.mu.Lock()
	defer e.mu.Unlock()

	supply := make(map[string]int)
	for _, l := range e.listings {
		if l.Status == StatusOpen {
			supply[l.Category]++
		}
	}

	e.multipliers = make(map[string]float64, len(supply))
	for category, n := range supply {
		m := float64(equilibriumSupply) / float64(n)
		e.multipliers[category] = math.Min(priceCeil, math.Max(priceFloor, m))
	}
}

// Multiplier returns the advisory price multiplier for a category.
// Categories with no active listings read as maximum scarcity.
func (e *Engine) Multiplier(category string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.multipliers[category]; ok {
		return m
	}
	return priceCeil
}

// Multipliers returns a copy of the per-category multiplier table.
func (e *Engine) Multipliers() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.multipliers))
	for k, v := range e.multipliers {
		out[k] = v
	}
	return out
}

// SuggestedPrice is the advisory asking price for an item: base value
// scaled by the category's supply signal.
func (e *Engine) SuggestedPrice(item *world.Item) int64 {
	return int64(float64(item.Value) * e.Multiplier(item.Type))
}

// State is the economy's snapshot payload.
type State struct {
	Trades      []*Trade           `json:"trades,omitempty"`
	Listings    []*Listing         `json:"listings,omitempty"`
	Auctions    []*Auction         `json:"auctions,omitempty"`
	Multipliers map[string]float64 `json:"multipliers,omitempty"`
}

// Export copies all order books for snapshotting.
func (e *Engine) Export() *State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &State{Multipliers: make(map[string]float64, len(e.multipliers))}
	for _, t := range e.trades {
		st.Trades = append(st.Trades, t.clone())
	}
	for _, l := range e.listings {
		st.Listings = append(st.Listings, l.clone())
	}
	for _, a := range e.auctions {
		st.Auctions = append(st.Auctions, a.clone())
	}
	for k, v := range e.multipliers {
		st.Multipliers[k] = v
	}
	return st
}

// Import replaces the order books with snapshot state.
func (e *Engine) Import(st *State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trades = make(map[string]*Trade, len(st.Trades))
	for _, t := range st.Trades {
		e.trades[t.ID] = t.clone()
	}
	e.listings = make(map[string]*Listing, len(st.Listings))
	for _, l := range st.Listings {
		e.listings[l.ID] = l.clone()
	}
	e.auctions = make(map[string]*Auction, len(st.Auctions))
	for _, a := range st.Auctions {
		e.auctions[a.ID] = a.clone()
	}
	e.multipliers = make(map[string]float64, len(st.Multipliers))
	for k, v := range st.Multipliers {
		e.multipliers[k] = v
	}
}

// returnItem hands an escrowed item back to its owner. Returns false
// when the owner's inventory is full; the caller keeps the escrow and
// retries on a later sweep. A vanished owner forfeits the item.
func (e *Engine) returnItem(ownerID string, item *world.Item) bool {
	if item == nil {
		return true
	}
	err := e.store.WithRebel(ownerID, func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Add(item)
	})
	if err == nil || errors.Is(err, world.ErrNotFound) {
		return true
	}
	return false
}

// refundCredits returns escrowed credits to a rebel. A vanished rebel
// forfeits the refund.
func (e *Engine) refundCredits(ownerID string, amount int64) {
	if amount <= 0 {
		return
	}
	_ = e.store.WithRebel(ownerID, func(_ *world.Rebel, inv *world.Inventory) error {
		inv.Deposit(amount)
		return nil
	})
}
