package world

import (
	"fmt"
	"time"
)

// DefaultCapacity is the item slots a new inventory starts with.
const DefaultCapacity = 20

// Rarity tiers, lowest to highest.
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Item is a single inventory entry. Items are instances: two drops of
// the same catalog entry carry distinct ids.
type Item struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Rarity       string    `json:"rarity"`
	Value        int       `json:"value"`
	Protection   int       `json:"protection,omitempty"`
	AcquiredFrom string    `json:"acquired_from"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ActivatedAt  time.Time `json:"activated_at,omitempty"`
	ActiveUntil  time.Time `json:"active_until,omitempty"`
}

// Active reports whether a defensive item is currently providing
// protection.
func (i *Item) Active(now time.Time) bool {
	return !i.ActivatedAt.IsZero() && now.Before(i.ActiveUntil)
}

// Inventory holds a rebel's items and credit balance. It is guarded by
// the owning rebel's entity lock; never mutate it outside a Store
// section.
type Inventory struct {
	OwnerID  string           `json:"owner_id"`
	Items    map[string]*Item `json:"items"`
	Capacity int              `json:"capacity"`
	Credits  int64            `json:"credits"`
}

// NewInventory creates an empty inventory for the given rebel.
func NewInventory(ownerID string) *Inventory {
	return &Inventory{
		OwnerID:  ownerID,
		Items:    map[string]*Item{},
		Capacity: DefaultCapacity,
	}
}

// Add inserts an item. An add that would exceed capacity is rejected
// whole, never truncated.
func (inv *Inventory) Add(item *Item) error {
	if len(inv.Items) >= inv.Capacity {
		return fmt.Errorf("inventory full (%d/%d): %w", len(inv.Items), inv.Capacity, ErrInsufficientResource)
	}
	inv.Items[item.ID] = item
	return nil
}

// HasRoom reports whether n more items fit.
func (inv *Inventory) HasRoom(n int) bool {
	return len(inv.Items)+n <= inv.Capacity
}

// Remove takes an item out of the inventory, returning it. Returns
// ErrNotFound if the id is absent.
func (inv *Inventory) Remove(itemID string) (*Item, error) {
	item, ok := inv.Items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	delete(inv.Items, itemID)
	return item, nil
}

// Get returns an item by id, or nil.
func (inv *Inventory) Get(itemID string) *Item {
	return inv.Items[itemID]
}

// Deposit adds credits to the balance.
func (inv *Inventory) Deposit(amount int64) {
	inv.Credits += amount
}

// Withdraw removes credits. Fails with ErrInsufficientResource if the
// balance is too low; balances never go negative through this path.
func (inv *Inventory) Withdraw(amount int64) error {
	if inv.Credits < amount {
		return fmt.Errorf("credits %d < %d: %w", inv.Credits, amount, ErrInsufficientResource)
	}
	inv.Credits -= amount
	return nil
}

// Drain removes up to amount credits, flooring at zero. Used by
// countermeasure penalties. Returns the amount actually taken.
func (inv *Inventory) Drain(amount int64) int64 {
	if amount > inv.Credits {
		amount = inv.Credits
	}
	inv.Credits -= amount
	return amount
}

// BestProtection returns the highest protection value among active
// defensive items, or zero.
func (inv *Inventory) BestProtection(now time.Time) int {
	best := 0
	for _, item := range inv.Items {
		if item.Protection > best && item.Active(now) {
			best = item.Protection
		}
	}
	return best
}
