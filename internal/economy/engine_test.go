package economy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/latchko/go-uprising/internal/world"
	"github.com/pixil98/go-testutil"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, opts ...EngineOpt) (*Engine, *world.Store, *testClock) {
	t.Helper()
	store := world.NewStore()
	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := store.AddRebel(world.NewRebel(id, "Rebel "+id, "fixer")); err != nil {
			t.Fatalf("adding rebel %s: %v", id, err)
		}
	}

	opts = append([]EngineOpt{WithClock(clock.Now)}, opts...)
	return NewEngine(store, opts...), store, clock
}

func giveCredits(t *testing.T, store *world.Store, rebelID string, amount int64) {
	t.Helper()
	err := store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		inv.Deposit(amount)
		return nil
	})
	if err != nil {
		t.Fatalf("crediting %s: %v", rebelID, err)
	}
}

func giveItem(t *testing.T, store *world.Store, rebelID, itemID string) {
	t.Helper()
	err := store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Add(&world.Item{ID: itemID, Name: itemID, Type: "tech", Value: 100})
	})
	if err != nil {
		t.Fatalf("giving %s to %s: %v", itemID, rebelID, err)
	}
}

func balance(t *testing.T, store *world.Store, rebelID string) int64 {
	t.Helper()
	var credits int64
	err := store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		credits = inv.Credits
		return nil
	})
	if err != nil {
		t.Fatalf("reading balance of %s: %v", rebelID, err)
	}
	return credits
}

func itemCount(t *testing.T, store *world.Store, rebelID string) int {
	t.Helper()
	n := 0
	err := store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		n = len(inv.Items)
		return nil
	})
	if err != nil {
		t.Fatalf("reading inventory of %s: %v", rebelID, err)
	}
	return n
}

func fillInventory(t *testing.T, store *world.Store, rebelID string) {
	t.Helper()
	err := store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		for i := len(inv.Items); i < inv.Capacity; i++ {
			if err := inv.Add(&world.Item{ID: fmt.Sprintf("junk-%d", i), Name: "Junk", Type: "junk"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("filling inventory of %s: %v", rebelID, err)
	}
}

func TestTrade_Settlement(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveCredits(t, store, "r1", 100)
	giveCredits(t, store, "r2", 200)
	giveItem(t, store, "r1", "blade")

	tr, err := e.OfferTrade("r1", "r2", "blade", 20, 50)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}

	// Stake left the offerer immediately.
	testutil.AssertEqual(t, "escrowed credits", balance(t, store, "r1"), int64(80))
	testutil.AssertEqual(t, "escrowed item", itemCount(t, store, "r1"), 0)

	if _, err := e.AcceptTrade(tr.ID, "r2"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Offerer nets the ask; acceptor nets stake minus ask plus item.
	testutil.AssertEqual(t, "offerer credits", balance(t, store, "r1"), int64(130))
	testutil.AssertEqual(t, "acceptor credits", balance(t, store, "r2"), int64(170))
	testutil.AssertEqual(t, "item delivered", itemCount(t, store, "r2"), 1)

	// Total credits across the parties are conserved.
	testutil.AssertEqual(t, "conservation", balance(t, store, "r1")+balance(t, store, "r2"), int64(300))

	if _, err := e.AcceptTrade(tr.ID, "r2"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected settled trade gone, got %v", err)
	}
}

func TestTrade_FailedSettlementChangesNothing(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")
	giveCredits(t, store, "r2", 10)

	tr, err := e.OfferTrade("r1", "r2", "blade", 0, 50)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}

	_, err = e.AcceptTrade(tr.ID, "r2")
	if !errors.Is(err, world.ErrInsufficientResource) {
		t.Fatalf("expected ErrInsufficientResource, got %v", err)
	}

	// Escrow intact, acceptor untouched, trade still open.
	testutil.AssertEqual(t, "acceptor credits", balance(t, store, "r2"), int64(10))
	testutil.AssertEqual(t, "acceptor items", itemCount(t, store, "r2"), 0)
	testutil.AssertEqual(t, "open trades", len(e.Trades("r2")), 1)
}

func TestTrade_Validation(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")

	tests := map[string]struct {
		from, to, item string
		credits, ask   int64
		want           error
	}{
		"self trade":      {"r1", "r1", "blade", 0, 10, world.ErrInvalidState},
		"empty offer":     {"r1", "r2", "", 0, 10, world.ErrInvalidState},
		"missing item":    {"r1", "r2", "ghost", 0, 10, world.ErrNotFound},
		"unknown target":  {"r1", "nobody", "blade", 0, 10, world.ErrNotFound},
		"missing credits": {"r1", "r2", "", 500, 0, world.ErrInsufficientResource},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.OfferTrade(tt.from, tt.to, tt.item, tt.credits, tt.ask)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	tr, err := e.OfferTrade("r1", "r2", "blade", 0, 10)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := e.AcceptTrade(tr.ID, "r3"); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for wrong recipient, got %v", err)
	}
}

func TestTrade_CancelReturnsEscrow(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveCredits(t, store, "r1", 100)
	giveItem(t, store, "r1", "blade")

	tr, err := e.OfferTrade("r1", "r2", "blade", 40, 10)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := e.CancelTrade(tr.ID, "r2"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	testutil.AssertEqual(t, "credits back", balance(t, store, "r1"), int64(100))
	testutil.AssertEqual(t, "item back", itemCount(t, store, "r1"), 1)
}

func TestTrade_ExpiryLingersUntilCapacity(t *testing.T) {
	e, store, clock := newTestEngine(t)
	giveItem(t, store, "r1", "blade")

	tr, err := e.OfferTrade("r1", "r2", "blade", 0, 10)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	fillInventory(t, store, "r1")

	clock.Advance(2 * time.Hour)
	e.MarketSweep(clock.Now())

	// No room: the item stays in escrow rather than vanishing.
	if _, err := e.AcceptTrade(tr.ID, "r2"); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected expired trade unacceptable, got %v", err)
	}

	_ = store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		_, err := inv.Remove("junk-1")
		return err
	})
	e.MarketSweep(clock.Now())

	_ = store.WithRebel("r1", func(_ *world.Rebel, inv *world.Inventory) error {
		if inv.Get("blade") == nil {
			t.Error("expected escrowed item returned after capacity freed")
		}
		return nil
	})
}

func TestListing_BuyPaysTax(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")
	giveCredits(t, store, "r2", 500)

	l, err := e.ListItem("r1", "blade", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	testutil.AssertEqual(t, "category", l.Category, "tech")

	if _, err := e.BuyListing(l.ID, "r2"); err != nil {
		t.Fatalf("buy: %v", err)
	}

	testutil.AssertEqual(t, "seller net of tax", balance(t, store, "r1"), int64(95))
	testutil.AssertEqual(t, "buyer paid full price", balance(t, store, "r2"), int64(400))
	testutil.AssertEqual(t, "item delivered", itemCount(t, store, "r2"), 1)

	if _, err := e.BuyListing(l.ID, "r3"); !errors.Is(err, world.ErrNotFound) {
		t.Fatalf("expected sold listing gone, got %v", err)
	}
}

func TestListing_Validation(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")
	giveCredits(t, store, "r1", 500)

	if _, err := e.ListItem("r1", "blade", 0); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for free listing, got %v", err)
	}
	l, err := e.ListItem("r1", "blade", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := e.BuyListing(l.ID, "r1"); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState buying own listing, got %v", err)
	}
	if err := e.CancelListing(l.ID, "r2"); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for foreign cancel, got %v", err)
	}
}

func TestListing_ExpiryReturnsItem(t *testing.T) {
	e, store, clock := newTestEngine(t)
	giveItem(t, store, "r1", "blade")

	if _, err := e.ListItem("r1", "blade", 100); err != nil {
		t.Fatalf("list: %v", err)
	}
	testutil.AssertEqual(t, "escrowed", itemCount(t, store, "r1"), 0)

	clock.Advance(25 * time.Hour)
	e.MarketSweep(clock.Now())

	testutil.AssertEqual(t, "returned", itemCount(t, store, "r1"), 1)
	testutil.AssertEqual(t, "book empty", len(e.Listings("")), 0)
}

func TestAuction_BiddingEscrow(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")
	giveCredits(t, store, "r2", 300)
	giveCredits(t, store, "r3", 300)

	a, err := e.StartAuction("r1", "blade", 100)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := e.Bid(a.ID, "r2", 50); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState below minimum, got %v", err)
	}
	if _, err := e.Bid(a.ID, "r1", 100); !errors.Is(err, world.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for seller bid, got %v", err)
	}

	if _, err := e.Bid(a.ID, "r2", 100); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	testutil.AssertEqual(t, "bid escrowed", balance(t, store, "r2"), int64(200))

	if _, err := e.Bid(a.ID, "r3", 100); !errors.Is(err, world.ErrConflict) {
		t.Fatalf("expected ErrConflict matching high bid, got %v", err)
	}
	if _, err := e.Bid(a.ID, "r3", 150); err != nil {
		t.Fatalf("overbid: %v", err)
	}

	// Outbid leader is refunded as the new escrow lands.
	testutil.AssertEqual(t, "refunded", balance(t, store, "r2"), int64(300))
	testutil.AssertEqual(t, "new escrow", balance(t, store, "r3"), int64(150))
}

func TestAuction_SettlementExactlyOnce(t *testing.T) {
	e, store, clock := newTestEngine(t, WithHouseFee(30))
	giveItem(t, store, "r1", "blade")
	giveCredits(t, store, "r2", 300)

	a, err := e.StartAuction("r1", "blade", 100)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Bid(a.ID, "r2", 200); err != nil {
		t.Fatalf("bid: %v", err)
	}

	clock.Advance(2 * time.Hour)
	e.SettleAuctions(clock.Now())

	testutil.AssertEqual(t, "seller proceeds", balance(t, store, "r1"), int64(170))
	testutil.AssertEqual(t, "winner item", itemCount(t, store, "r2"), 1)
	testutil.AssertEqual(t, "winner balance", balance(t, store, "r2"), int64(100))

	// A second sweep over the same window changes nothing.
	e.SettleAuctions(clock.Now())
	testutil.AssertEqual(t, "seller proceeds stable", balance(t, store, "r1"), int64(170))
	testutil.AssertEqual(t, "winner item stable", itemCount(t, store, "r2"), 1)
}

func TestAuction_NoBidsReturnsItem(t *testing.T) {
	e, store, clock := newTestEngine(t)
	giveItem(t, store, "r1", "blade")

	if _, err := e.StartAuction("r1", "blade", 100); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(2 * time.Hour)
	e.SettleAuctions(clock.Now())

	testutil.AssertEqual(t, "item back", itemCount(t, store, "r1"), 1)
	testutil.AssertEqual(t, "book empty", len(e.Auctions()), 0)
}

func TestRecomputePrices_Clamped(t *testing.T) {
	e, store, _ := newTestEngine(t)

	// Ten tech listings: heavy oversupply pins the floor.
	for i := range 10 {
		id := fmt.Sprintf("item-%d", i)
		giveItem(t, store, "r1", id)
		if _, err := e.ListItem("r1", id, 100); err != nil {
			t.Fatalf("list %s: %v", id, err)
		}
	}
	e.RecomputePrices()
	testutil.AssertEqual(t, "oversupply floor", e.Multiplier("tech"), 0.5)

	// An empty category reads as maximum scarcity.
	testutil.AssertEqual(t, "scarcity ceiling", e.Multiplier("intel"), 2.0)

	item := &world.Item{Type: "intel", Value: 40}
	testutil.AssertEqual(t, "suggested price", e.SuggestedPrice(item), int64(80))
}

func TestExportImport(t *testing.T) {
	e, store, _ := newTestEngine(t)
	giveItem(t, store, "r1", "blade")
	giveItem(t, store, "r1", "chip")
	giveCredits(t, store, "r2", 300)

	tr, err := e.OfferTrade("r1", "r2", "blade", 0, 50)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	a, err := e.StartAuction("r1", "chip", 100)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Bid(a.ID, "r2", 150); err != nil {
		t.Fatalf("bid: %v", err)
	}

	restored := NewEngine(store)
	restored.Import(e.Export())

	if _, err := restored.AcceptTrade(tr.ID, "r2"); err != nil {
		t.Fatalf("accept after restore: %v", err)
	}
	auctions := restored.Auctions()
	testutil.AssertEqual(t, "auctions restored", len(auctions), 1)
	testutil.AssertEqual(t, "high bid restored", auctions[0].HighBid, int64(150))
}
