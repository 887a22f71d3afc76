package economy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/latchko/go-uprising/internal/world"
)

// Listing is a marketplace sale. The item leaves the seller's
// inventory into escrow when listed; on expiry it goes back if the
// seller has room, otherwise the listing lingers until capacity frees.
type Listing struct {
	ID       string      `json:"id"`
	SellerID string      `json:"seller_id"`
	Item     *world.Item `json:"item"`
	Price    int64       `json:"price"`
	Category string      `json:"category"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	ItemReturned bool `json:"item_returned,omitempty"`
}

func (l *Listing) clone() *Listing {
	c := *l
	if l.Item != nil {
		item := *l.Item
		c.Item = &item
	}
	return &c
}

// ListItem puts an item up for sale at a fixed asking price.
func (e *Engine) ListItem(sellerID, itemID string, price int64) (*Listing, error) {
	if price <= 0 {
		return nil, fmt.Errorf("listing price %d: %w", price, world.ErrInvalidState)
	}

	var item *world.Item
	err := e.store.WithRebel(sellerID, func(_ *world.Rebel, inv *world.Inventory) error {
		removed, err := inv.Remove(itemID)
		if err != nil {
			return fmt.Errorf("listing item: %w", err)
		}
		item = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	l := &Listing{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		Item:      item,
		Price:     price,
		Category:  item.Type,
		Status:    StatusOpen,
		CreatedAt: now,
		ExpiresAt: now.Add(e.listingTTL),
	}

	e.mu.Lock()
	e.listings[l.ID] = l
	e.mu.Unlock()
	return l.clone(), nil
}

// BuyListing purchases a listing at its asking price. The buyer pays
// the full price; the seller receives it minus the sales tax. Payment
// and delivery happen in one section across both parties.
func (e *Engine) BuyListing(listingID, buyerID string) (*Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, world.ErrNotFound)
	}
	if l.Status.terminal() {
		return nil, fmt.Errorf("listing %s is %s: %w", listingID, l.Status, world.ErrInvalidState)
	}
	if l.SellerID == buyerID {
		return nil, fmt.Errorf("buying own listing: %w", world.ErrInvalidState)
	}

	tax := int64(float64(l.Price) * e.salesTax)
	err := e.store.WithTwoRebels(buyerID, l.SellerID, func(_ *world.Rebel, buyerInv *world.Inventory, _ *world.Rebel, sellerInv *world.Inventory) error {
		if !buyerInv.HasRoom(1) {
			return fmt.Errorf("buyer inventory full: %w", world.ErrInsufficientResource)
		}
		if err := buyerInv.Withdraw(l.Price); err != nil {
			return fmt.Errorf("listing payment: %w", err)
		}
		sellerInv.Deposit(l.Price - tax)
		return buyerInv.Add(l.Item)
	})
	if err != nil {
		return nil, err
	}

	l.Status = StatusSettled
	l.ItemReturned = true
	delete(e.listings, l.ID)
	return l.clone(), nil
}

// CancelListing withdraws an open listing. Seller only.
func (e *Engine) CancelListing(listingID, sellerID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.listings[listingID]
	if !ok {
		return fmt.Errorf("listing %s: %w", listingID, world.ErrNotFound)
	}
	if l.Status.terminal() {
		return fmt.Errorf("listing %s is %s: %w", listingID, l.Status, world.ErrInvalidState)
	}
	if l.SellerID != sellerID {
		return fmt.Errorf("listing %s is not owned by %s: %w", listingID, sellerID, world.ErrInvalidState)
	}

	l.Status = StatusCancelled
	e.releaseListing(l)
	return nil
}

// Listings returns all open listings, optionally filtered by category.
func (e *Engine) Listings(category string) []*Listing {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Listing
	for _, l := range e.listings {
		if l.Status != StatusOpen {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		out = append(out, l.clone())
	}
	return out
}

// releaseListing returns a terminal listing's item to the seller,
// dropping the record once it is back. Callers hold e.mu.
func (e *Engine) releaseListing(l *Listing) {
	if !l.ItemReturned && !e.returnItem(l.SellerID, l.Item) {
		return
	}
	l.ItemReturned = true
	delete(e.listings, l.ID)
}

// sweepListings expires stale listings and retries lingering returns.
func (e *Engine) sweepListings(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, l := range e.listings {
		if l.Status == StatusOpen && now.After(l.ExpiresAt) {
			l.Status = StatusExpired
		}
		if l.Status.terminal() {
			e.releaseListing(l)
		}
	}
}
