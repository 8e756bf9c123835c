// Package inventory implements the logical inventory model (Item,
// ListedItem, Inventory) and the reconciliation/query engines that bridge it
// to the marketplace's per-listing and batch APIs.
package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Item is a plain logical value: an inventory position at one price point,
// with no marketplace identity of its own.
type Item struct {
	productID string
	variantID string
	price     decimal.Decimal
	quantity  int
}

// NewItem constructs an Item, validating price >= 0 and quantity >= 0.
func NewItem(productID, variantID string, price decimal.Decimal, quantity int) (Item, error) {
	if price.IsNegative() {
		return Item{}, fmt.Errorf("item price must be >= 0, got %s", price)
	}
	if quantity < 0 {
		return Item{}, fmt.Errorf("item quantity must be >= 0, got %d", quantity)
	}
	return Item{productID: productID, variantID: variantID, price: price, quantity: quantity}, nil
}

func (i Item) ProductID() string        { return i.productID }
func (i Item) VariantID() string        { return i.variantID }
func (i Item) Price() decimal.Decimal   { return i.price }
func (i Item) Quantity() int            { return i.quantity }

// ListedItem composes an Item with its owning Inventory and the ordered
// multiset of marketplace listing ids currently representing it. Mutating
// Price or Quantity through the setters here (not through the zero-value
// Item accessors) registers the item in the owning Inventory's dirty sets.
type ListedItem struct {
	item       Item
	inventory  *Inventory
	listingIDs []string
	styleID    string
	size       string
}

// newListedItem is unexported: ListedItems are only ever issued by an
// Inventory, which is the sole owner of the dirty-set bookkeeping they rely on.
func newListedItem(inv *Inventory, item Item, listingIDs []string) *ListedItem {
	return &ListedItem{item: item, inventory: inv, listingIDs: append([]string(nil), listingIDs...)}
}

func (li *ListedItem) ProductID() string { return li.item.productID }
func (li *ListedItem) VariantID() string { return li.item.variantID }
func (li *ListedItem) Price() decimal.Decimal { return li.item.price }
func (li *ListedItem) Quantity() int { return li.item.quantity }

// StyleID returns the raw style id carried by the first listing this item
// was grouped from (may contain multiple slash-separated styles for a
// cross-listed SKU), or "" for an item never populated via FromListings.
func (li *ListedItem) StyleID() string { return li.styleID }

// Size returns the raw variant size/value carried by the first listing this
// item was grouped from, or "" for an item never populated via FromListings.
func (li *ListedItem) Size() string { return li.size }

// setAttributes records the style id and size FromListings read off the
// first listing in this item's group. Only FromListings calls this.
func (li *ListedItem) setAttributes(styleID, size string) {
	li.styleID = styleID
	li.size = size
}

// ListingIDs returns the listing ids currently backing this item, in arrival
// order. Order is only meaningful for delete: the trailing
// |QuantityToSync()| ids are the ones that would be dropped.
func (li *ListedItem) ListingIDs() []string {
	return append([]string(nil), li.listingIDs...)
}

// SetPrice updates the logical price. If v differs from the current price,
// the item is enrolled in the owning Inventory's price-dirty set.
func (li *ListedItem) SetPrice(v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("item price must be >= 0, got %s", v)
	}
	if v.Equal(li.item.price) {
		return nil
	}
	li.item.price = v
	li.inventory.markPriceDirty(li)
	return nil
}

// SetQuantity updates the logical quantity. If v differs from the current
// quantity, the item is enrolled in the owning Inventory's quantity-dirty set.
func (li *ListedItem) SetQuantity(v int) error {
	if v < 0 {
		return fmt.Errorf("item quantity must be >= 0, got %d", v)
	}
	if v == li.item.quantity {
		return nil
	}
	li.item.quantity = v
	li.inventory.markQuantityDirty(li)
	return nil
}

// QuantityToSync is Quantity - len(ListingIDs): positive means listings must
// be created, negative means listings must be deleted, zero means in sync.
func (li *ListedItem) QuantityToSync() int {
	return li.item.quantity - len(li.listingIDs)
}

// Payout returns what a sale at the current price would net after fees, via
// the owning Inventory's fee parameters.
func (li *ListedItem) Payout() decimal.Decimal {
	return li.inventory.CalculatePayout(li.item.price)
}

// appendListingIDs records newly created listings as backing this item.
func (li *ListedItem) appendListingIDs(ids ...string) {
	li.listingIDs = append(li.listingIDs, ids...)
}

// removeListingIDs drops the given listing ids (e.g. after a successful
// delete batch), preserving relative order of what remains.
func (li *ListedItem) removeListingIDs(toRemove map[string]bool) {
	var kept []string
	for _, id := range li.listingIDs {
		if !toRemove[id] {
			kept = append(kept, id)
		}
	}
	li.listingIDs = kept
}

// trailingIDsToDelete returns the trailing |QuantityToSync()| ids, the ones
// the decrease path of reconciliation removes.
func (li *ListedItem) trailingIDsToDelete() []string {
	n := -li.QuantityToSync()
	if n <= 0 || n > len(li.listingIDs) {
		return nil
	}
	return append([]string(nil), li.listingIDs[len(li.listingIDs)-n:]...)
}
