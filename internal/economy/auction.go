package economy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/world"
)

// Auction is an escrowed item under open bidding. The current high
// bid is held in escrow too: a rebel's credits leave their inventory
// the moment their bid leads, and come back if they are outbid.
type Auction struct {
	ID       string      `json:"id"`
	SellerID string      `json:"seller_id"`
	Item     *world.Item `json:"item"`
	MinBid   int64       `json:"min_bid"`

	HighBid    int64  `json:"high_bid,omitempty"`
	HighBidder string `json:"high_bidder,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	EndsAt    time.Time `json:"ends_at"`

	ItemReturned bool `json:"item_returned,omitempty"`
}

func (a *Auction) clone() *Auction {
	c := *a
	if a.Item != nil {
		item := *a.Item
		c.Item = &item
	}
	return &c
}

// StartAuction escrows an item and opens bidding at the given minimum.
func (e *Engine) StartAuction(sellerID, itemID string, minBid int64) (*Auction, error) {
	if minBid <= 0 {
		return nil, fmt.Errorf("minimum bid %d: %w", minBid, world.ErrInvalidState)
	}

	var item *world.Item
	err := e.store.WithRebel(sellerID, func(_ *world.Rebel, inv *world.Inventory) error {
		removed, err := inv.Remove(itemID)
		if err != nil {
			return fmt.Errorf("auction item: %w", err)
		}
		item = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	a := &Auction{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		Item:      item,
		MinBid:    minBid,
		Status:    StatusOpen,
		CreatedAt: now,
		EndsAt:    now.Add(e.auctionTTL),
	}

	e.mu.Lock()
	e.auctions[a.ID] = a
	e.mu.Unlock()
	return a.clone(), nil
}

// Bid places a bid. The first bid must meet the minimum; every later
// bid must be strictly above the current high. A losing race against
// another bidder reports ErrConflict. The bid amount is escrowed, and
// the previous leader is refunded in the same call.
func (e *Engine) Bid(auctionID, bidderID string, amount int64) (*Auction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s: %w", auctionID, world.ErrNotFound)
	}
	if a.Status.terminal() || e.now().After(a.EndsAt) {
		return nil, fmt.Errorf("auction %s has ended: %w", auctionID, world.ErrInvalidState)
	}
	if a.SellerID == bidderID {
		return nil, fmt.Errorf("bidding on own auction: %w", world.ErrInvalidState)
	}
	if amount < a.MinBid {
		return nil, fmt.Errorf("bid %d below minimum %d: %w", amount, a.MinBid, world.ErrInvalidState)
	}
	if a.HighBidder != "" && amount <= a.HighBid {
		return nil, fmt.Errorf("bid %d not above %d: %w", amount, a.HighBid, world.ErrConflict)
	}

	err := e.store.WithRebel(bidderID, func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Withdraw(amount)
	})
	if err != nil {
		return nil, fmt.Errorf("bid escrow: %w", err)
	}

	if a.HighBidder != "" {
		e.refundCredits(a.HighBidder, a.HighBid)
	}
	a.HighBid = amount
	a.HighBidder = bidderID
	return a.clone(), nil
}

// CancelAuction withdraws an auction that has drawn no bids yet.
// Seller only.
func (e *Engine) CancelAuction(auctionID, sellerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.auctions[auctionID]
	if !ok {
		return fmt.Errorf("auction %s: %w", auctionID, world.ErrNotFound)
	}
	if a.Status.terminal() {
		return fmt.Errorf("auction %s is %s: %w", auctionID, a.Status, world.ErrInvalidState)
	}
	if a.SellerID != sellerID {
		return fmt.Errorf("auction %s is not owned by %s: %w", auctionID, sellerID, world.ErrInvalidState)
	}
	if a.HighBidder != "" {
		return fmt.Errorf("auction %s has bids: %w", auctionID, world.ErrInvalidState)
	}

	a.Status = StatusCancelled
	e.releaseAuction(a)
	return nil
}

// Auctions returns all open auctions.
func (e *Engine) Auctions() []*Auction {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Auction
	for _, a := range e.auctions {
		if a.Status == StatusOpen {
			out = append(out, a.clone())
		}
	}
	return out
}

// SettleAuctions closes every auction past its end time. Settlement
// is exactly-once: the status flips before any goods move, so a
// second sweep over the same auction is a no-op. The winner takes the
// item, the seller takes the high bid minus the house fee, and an
// auction with no bids hands the item back.
func (e *Engine) SettleAuctions(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.auctions {
		if a.Status == StatusOpen && now.After(a.EndsAt) {
			a.Status = StatusSettled
			e.settleAuction(a)
		} else if a.Status.terminal() {
			e.releaseAuction(a)
		}
	}
}

// settleAuction moves the goods for one ended auction. Callers hold
// e.mu and have already flipped the status.
func (e *Engine) settleAuction(a *Auction) {
	if a.HighBidder == "" {
		e.releaseAuction(a)
		return
	}

	delivered := e.deliverItem(a.HighBidder, a.Item)
	if !delivered {
		// Winner can't take delivery: refund them and return the item
		// to the seller instead.
		e.refundCredits(a.HighBidder, a.HighBid)
		e.releaseAuction(a)
		return
	}

	proceeds := a.HighBid - e.houseFee
	if proceeds < 0 {
		proceeds = 0
	}
	e.refundCredits(a.SellerID, proceeds)
	a.ItemReturned = true
	delete(e.auctions, a.ID)
}

// deliverItem attempts to place an item in a rebel's inventory.
func (e *Engine) deliverItem(rebelID string, item *world.Item) bool {
	err := e.store.WithRebel(rebelID, func(_ *world.Rebel, inv *world.Inventory) error {
		return inv.Add(item)
	})
	return err == nil
}

// releaseAuction returns a terminal auction's item to the seller,
// dropping the record once it is back. Callers hold e.mu.
func (e *Engine) releaseAuction(a *Auction) {
	if !a.ItemReturned && !e.returnItem(a.SellerID, a.Item) {
		return
	}
	a.ItemReturned = true
	delete(e.auctions, a.ID)
}
