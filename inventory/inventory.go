package inventory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberoby/stockx/api"
	"github.com/cyberoby/stockx/models"
)

// FeeParams are the account-specific economics discovered once via the mock
// listing probe (see mock.go) and used by CalculatePayout.
type FeeParams struct {
	CurrencyCode       string
	TransactionFeeRate decimal.Decimal
	PaymentFeeRate     decimal.Decimal
	ShippingFee        decimal.Decimal
	MinTransactionFee  decimal.Decimal
}

// Inventory owns a set of ListedItems, their price/quantity dirty sets, and
// the economic fee parameters used to compute payouts. It is the sole
// authority that clears dirty sets — ListedItem setters only enroll.
type Inventory struct {
	listings *api.Listings
	batch    *api.Batch
	catalog  *api.Catalog
	logger   *slog.Logger
	fees     FeeParams

	mu            sync.Mutex
	items         []*ListedItem
	priceDirty    map[*ListedItem]bool
	quantityDirty map[*ListedItem]bool

	batchSize        int
	batchPollTimeout time.Duration
}

// New constructs an empty Inventory. shippingFee and minTransactionFee are
// account-level constants (mirroring the source SDK's constructor defaults)
// supplied up front; TransactionFeeRate/PaymentFeeRate start zeroed until
// LoadFees probes them (or SetFees installs them).
func New(listings *api.Listings, batch *api.Batch, catalog *api.Catalog, currencyCode string, shippingFee, minTransactionFee decimal.Decimal, batchPollTimeout time.Duration, logger *slog.Logger) *Inventory {
	return &Inventory{
		listings: listings,
		batch:    batch,
		catalog:  catalog,
		logger:   logger.With("component", "inventory"),
		fees: FeeParams{
			CurrencyCode:      currencyCode,
			ShippingFee:       shippingFee,
			MinTransactionFee: minTransactionFee,
		},
		priceDirty:       make(map[*ListedItem]bool),
		quantityDirty:    make(map[*ListedItem]bool),
		batchSize:        batch.MaxItemsPerBatch(),
		batchPollTimeout: batchPollTimeout,
	}
}

// Items returns every ListedItem currently tracked by this Inventory.
func (inv *Inventory) Items() []*ListedItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return append([]*ListedItem(nil), inv.items...)
}

// Fees returns the currently loaded fee parameters.
func (inv *Inventory) Fees() FeeParams {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.fees
}

// SetFees installs fee parameters directly (e.g. loaded from account
// settings rather than probed via a mock listing).
func (inv *Inventory) SetFees(fees FeeParams) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.fees = fees
}

// CalculatePayout computes what a sale at price p nets after fees:
// p - max(p*transactionFee, minTransactionFee) - p*paymentFee - shippingFee.
func (inv *Inventory) CalculatePayout(p decimal.Decimal) decimal.Decimal {
	fees := inv.Fees()
	txFee := p.Mul(fees.TransactionFeeRate)
	if txFee.LessThan(fees.MinTransactionFee) {
		txFee = fees.MinTransactionFee
	}
	paymentFee := p.Mul(fees.PaymentFeeRate)
	return p.Sub(txFee).Sub(paymentFee).Sub(fees.ShippingFee)
}

// Load fetches every active listing for productIDs/variantIDs, groups them
// into ListedItems by (variantID, amount), and replaces this Inventory's
// tracked item set. It does not touch fee parameters; those come from
// LoadFees or SetFees.
func (inv *Inventory) Load(ctx context.Context, filter api.ListingFilter) error {
	filter.ListingStatuses = []string{string(models.ListingActive)}
	rawListings, err := inv.listings.GetAllListings(ctx, filter, 0)
	if err != nil {
		return err
	}

	items := FromListings(inv, rawListings)

	inv.mu.Lock()
	inv.items = items
	inv.mu.Unlock()

	return nil
}

// FromListings groups a stream of Listings by (variantID, amount); each
// group becomes one ListedItem whose quantity equals the group size and
// whose listing ids are the group's listings in arrival order.
func FromListings(inv *Inventory, listings []models.Listing) []*ListedItem {
	type key struct {
		variantID string
		amount    string
	}
	groups := make(map[key][]models.Listing)
	var order []key
	for _, l := range listings {
		k := key{variantID: l.VariantID, amount: l.Amount}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], l)
	}

	items := make([]*ListedItem, 0, len(order))
	for _, k := range order {
		group := groups[k]
		ids := make([]string, len(group))
		for i, l := range group {
			ids[i] = l.ListingID
		}
		item, err := NewItem(group[0].ProductID, k.variantID, group[0].Price(), len(group))
		if err != nil {
			continue // malformed listing amount; skip rather than abort the whole load
		}
		li := newListedItem(inv, item, ids)
		li.setAttributes(group[0].StyleID, group[0].VariantValue)
		items = append(items, li)
	}
	return items
}

func (inv *Inventory) markPriceDirty(li *ListedItem) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.priceDirty[li] = true
}

func (inv *Inventory) markQuantityDirty(li *ListedItem) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.quantityDirty[li] = true
}

// snapshotDirty returns (and does NOT clear) the current dirty items,
// stably ordered for deterministic batch construction.
func (inv *Inventory) snapshotDirty(set map[*ListedItem]bool) []*ListedItem {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]*ListedItem, 0, len(set))
	for li := range set {
		out = append(out, li)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID() < out[j].VariantID() })
	return out
}

func (inv *Inventory) clearPriceDirty() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.priceDirty = make(map[*ListedItem]bool)
}

func (inv *Inventory) clearQuantityDirty() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.quantityDirty = make(map[*ListedItem]bool)
}

// Update runs quantity reconciliation then price reconciliation (§4.7.4).
// Dirty sets are cleared ONLY on successful return; on IncompleteOperation
// they are left intact so the caller may retry.
func (inv *Inventory) Update(ctx context.Context) ([]UpdateResult, error) {
	quantityItems := inv.snapshotDirty(inv.quantityDirty)
	priceItems := inv.snapshotDirty(inv.priceDirty)

	quantityResults, qErr := inv.reconcileQuantity(ctx, quantityItems)
	priceResults, pErr := inv.reconcilePrice(ctx, priceItems)

	if qErr != nil || pErr != nil {
		return ConsolidateResults(append(quantityResults, priceResults...)), combineIncomplete(qErr, pErr)
	}

	inv.clearQuantityDirty()
	inv.clearPriceDirty()
	return ConsolidateResults(append(quantityResults, priceResults...)), nil
}
