package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberoby/stockx/models"
)

// MockListingContext scopes the acquisition of a real but short-lived
// listing, used to discover account-specific fees from its payout
// adjustments. Acquire failure raises; release failure is logged and
// swallowed so a probe that already served its purpose never fails the
// caller's wider operation.
type MockListingContext struct {
	inv       *Inventory
	productID string
	amount    decimal.Decimal
}

// NewMockListingContext constructs a probe against productID at a
// deliberately high price (defaulting to 1000 in the configured currency)
// chosen so the listing is vanishingly unlikely to sell out from under us
// before it is deleted.
func NewMockListingContext(inv *Inventory, productID string) *MockListingContext {
	return &MockListingContext{inv: inv, productID: productID, amount: decimal.NewFromInt(1000)}
}

// Run acquires the mock listing, invokes body with its detail, and always
// releases (deletes) the listing afterward — even if body returns an error.
func (m *MockListingContext) Run(ctx context.Context, body func(context.Context, models.ListingDetail) error) error {
	variants, err := m.inv.catalog.GetAllProductVariants(ctx, m.productID)
	if err != nil {
		return fmt.Errorf("acquire mock listing: %w", err)
	}
	if len(variants) == 0 {
		return fmt.Errorf("acquire mock listing: product %s has no variants", m.productID)
	}
	currency := m.inv.Fees().CurrencyCode

	op, err := m.inv.listings.CreateListing(ctx, variants[0].VariantID, m.amount.String(), currency)
	if err != nil {
		return fmt.Errorf("acquire mock listing: %w", err)
	}

	ok, err := m.inv.listings.OperationSucceeded(ctx, op.ListingID, op.OperationID, 30*time.Second)
	if err != nil {
		return fmt.Errorf("acquire mock listing: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquire mock listing: create operation failed")
	}

	defer m.release(ctx, op.ListingID)

	detail, err := m.inv.listings.GetListingDetail(ctx, op.ListingID)
	if err != nil {
		return fmt.Errorf("acquire mock listing detail: %w", err)
	}

	return body(ctx, detail)
}

func (m *MockListingContext) release(ctx context.Context, listingID string) {
	if _, err := m.inv.listings.DeleteListing(ctx, listingID); err != nil {
		m.inv.logger.Warn("failed to release mock listing", "listing_id", listingID, "error", err)
	}
}

// LoadFees probes a mock listing on productID and installs the
// transaction/payment fee rates read from its payout adjustments. Shipping
// fee and minimum transaction fee are account-level constants supplied at
// construction time (see New), never discovered from this probe. Falls back
// to leaving whatever rates are already loaded if the probe's payout carries
// no adjustments (e.g. a sandbox account).
func (inv *Inventory) LoadFees(ctx context.Context, productID string) error {
	mock := NewMockListingContext(inv, productID)
	return mock.Run(ctx, func(ctx context.Context, detail models.ListingDetail) error {
		fees := inv.Fees()
		for _, adj := range detail.Payout.Adjustments {
			switch adj.Type {
			case "TRANSACTION_FEE":
				fees.TransactionFeeRate = adj.Amount
			case "PAYMENT_FEE":
				fees.PaymentFeeRate = adj.Amount
			}
		}
		inv.SetFees(fees)
		return nil
	})
}
