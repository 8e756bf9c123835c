package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemValidatesPriceAndQuantity(t *testing.T) {
	_, err := NewItem("P", "V", decimal.NewFromInt(-1), 1)
	assert.Error(t, err, "expected error for negative price")

	_, err = NewItem("P", "V", decimal.NewFromInt(1), -1)
	assert.Error(t, err, "expected error for negative quantity")

	_, err = NewItem("P", "V", decimal.Zero, 0)
	assert.NoError(t, err, "zero price/quantity should be valid")
}

func TestSetPriceEnrollsInPriceDirtySet(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 1), []string{"A"})

	require.NoError(t, li.SetPrice(decimal.NewFromInt(100)))
	assert.False(t, inv.priceDirty[li], "setting price to its current value must not dirty the item")

	require.NoError(t, li.SetPrice(decimal.NewFromInt(90)))
	assert.True(t, inv.priceDirty[li], "expected item enrolled in price-dirty set after a real price change")
	assert.True(t, li.Price().Equal(decimal.NewFromInt(90)))
}

func TestSetQuantityEnrollsInQuantityDirtySet(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 1), []string{"A"})

	require.NoError(t, li.SetQuantity(5))
	assert.True(t, inv.quantityDirty[li], "expected item enrolled in quantity-dirty set")
	assert.Equal(t, 4, li.QuantityToSync())
}

func TestSetPriceRejectsNegative(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 1), []string{"A"})
	assert.Error(t, li.SetPrice(decimal.NewFromInt(-5)))
}

func TestQuantityToSyncSignsMatchDirection(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}

	increase := newListedItem(inv, mustItem(t, "P", "V", 100, 5), []string{"A", "B"})
	assert.Equal(t, 3, increase.QuantityToSync())

	decrease := newListedItem(inv, mustItem(t, "P", "V", 100, 1), []string{"A", "B", "C"})
	assert.Equal(t, -2, decrease.QuantityToSync())

	inSync := newListedItem(inv, mustItem(t, "P", "V", 100, 2), []string{"A", "B"})
	assert.Equal(t, 0, inSync.QuantityToSync())
}

func TestTrailingIDsToDeleteTakesTrailingSlice(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 1), []string{"A", "B", "C"})

	assert.Equal(t, []string{"B", "C"}, li.trailingIDsToDelete())
}

func TestRemoveListingIDsPreservesRemainingOrder(t *testing.T) {
	inv := &Inventory{priceDirty: make(map[*ListedItem]bool), quantityDirty: make(map[*ListedItem]bool)}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 4), []string{"A", "B", "C", "D"})

	li.removeListingIDs(map[string]bool{"B": true, "D": true})
	assert.Equal(t, []string{"A", "C"}, li.ListingIDs())
}

func TestPayoutUsesOwningInventoryFees(t *testing.T) {
	inv := &Inventory{
		priceDirty:    make(map[*ListedItem]bool),
		quantityDirty: make(map[*ListedItem]bool),
		fees: FeeParams{
			TransactionFeeRate: decimal.NewFromFloat(0.09),
			PaymentFeeRate:     decimal.NewFromFloat(0.03),
			ShippingFee:        decimal.NewFromInt(5),
			MinTransactionFee:  decimal.Zero,
		},
	}
	li := newListedItem(inv, mustItem(t, "P", "V", 100, 1), nil)

	// 100 - max(100*0.09, 0) - 100*0.03 - 5 = 100 - 9 - 3 - 5 = 83
	assert.True(t, li.Payout().Equal(decimal.NewFromInt(83)), "got %s", li.Payout())
}
