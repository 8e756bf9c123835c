package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberoby/stockx/models"
)

// Listings stream -> group by (variant_id, amount) -> flatten -> set of
// listing ids equals the original set (order up to stability within a
// group, per §8's round-trip property).
func TestFromListingsRoundTrip(t *testing.T) {
	listings := []models.Listing{
		{ListingID: "A", ProductID: "P1", VariantID: "V1", Amount: "100"},
		{ListingID: "B", ProductID: "P1", VariantID: "V1", Amount: "100"},
		{ListingID: "C", ProductID: "P2", VariantID: "V2", Amount: "50"},
	}

	items := FromListings(nil, listings)
	require.Len(t, items, 2)

	var seen []string
	for _, li := range items {
		seen = append(seen, li.ListingIDs()...)
	}
	assert.ElementsMatch(t, []string{"A", "B", "C"}, seen)

	for _, li := range items {
		if li.VariantID() == "V1" {
			assert.Equal(t, 2, li.Quantity())
			assert.True(t, li.Price().Equal(listings[0].Price()))
		}
	}
}

func TestCalculatePayoutAppliesMinimumFeeFloor(t *testing.T) {
	inv := &Inventory{fees: FeeParams{
		TransactionFeeRate: decimal.NewFromFloat(0.01), // 1% of 10 = 0.10, below the floor
		MinTransactionFee:  decimal.NewFromInt(2),
		PaymentFeeRate:     decimal.Zero,
		ShippingFee:        decimal.Zero,
	}}

	got := inv.CalculatePayout(decimal.NewFromInt(10))
	want := decimal.NewFromInt(8) // 10 - max(0.10, 2) - 0 - 0
	assert.True(t, got.Equal(want), "expected payout %s (fee floor applied), got %s", want, got)
}
