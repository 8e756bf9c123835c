// Package models holds the thin wire-shape structs decoded straight off the
// marketplace's JSON responses. These deliberately mirror JSON fields rather
// than encode behavior; the behavior lives in package inventory.
package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus enumerates the lifecycle of a single marketplace listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingInactive  ListingStatus = "INACTIVE"
	ListingCanceled  ListingStatus = "CANCELED"
	ListingMatched   ListingStatus = "MATCHED"
	ListingCompleted ListingStatus = "COMPLETED"
	ListingDeleted   ListingStatus = "DELETED"
)

// Listing is a single marketplace-owned unit: exactly one physical item.
type Listing struct {
	ListingID    string        `json:"listingId"`
	ProductID    string        `json:"productId"`
	VariantID    string        `json:"variantId"`
	StyleID      string        `json:"styleId"`
	VariantValue string        `json:"variantValue"`
	Amount       string        `json:"amount"`
	CurrencyCode string        `json:"currencyCode"`
	Status       ListingStatus `json:"status"`
	OrderID      string        `json:"orderId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ListingDetail is the expanded view of a single listing, carrying the
// payout breakdown used to discover account-specific fee parameters (see
// inventory.MockListingContext).
type ListingDetail struct {
	Listing
	Payout Payout `json:"payout"`
}

// Price parses Amount (sent on the wire as a stringified integer) into a
// decimal value, never a float.
func (l Listing) Price() decimal.Decimal {
	d, err := decimal.NewFromString(l.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Product is full catalog detail for a single product.
type Product struct {
	ProductID  string             `json:"productId"`
	Name       string             `json:"title"`
	Attributes ProductAttributes  `json:"productAttributes"`
}

// ProductAttributes carries descriptive, non-transactional product metadata.
type ProductAttributes struct {
	Brand     string `json:"brand"`
	Colorway  string `json:"colorway"`
	Gender    string `json:"gender"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

// Variant is one size/SKU of a Product.
type Variant struct {
	VariantID string `json:"variantId"`
	ProductID string `json:"productId"`
	Size      string `json:"variantValue"`
}

// MarketData carries the per-variant pricing signals the reconciliation
// engine's beat_* strategies read from.
type MarketData struct {
	VariantID     string          `json:"variantId"`
	LowestAsk     decimal.Decimal `json:"lowestAskAmount"`
	HighestBid    decimal.Decimal `json:"highestBidAmount"`
	SellFaster    decimal.Decimal `json:"sellFasterAmount"`
	EarnMore      decimal.Decimal `json:"earnMoreAmount"`
	FlexLowestAsk decimal.Decimal `json:"flexLowestAskAmount"`
}

// Order and related read models (supplemented surface, §10.2).
type Order struct {
	OrderID   string    `json:"orderId"`
	ProductID string    `json:"productId"`
	VariantID string    `json:"variantId"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type OrderDetail struct {
	Order
	Shipment Shipment `json:"shipment"`
	Payout   Payout   `json:"payout"`
}

type OrderPartial struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type Shipment struct {
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

type AuthenticationDetails struct {
	Status string `json:"status"`
}

// Payout is the breakdown the marketplace reports for a completed sale,
// including fee adjustments used to derive account-specific fee parameters
// (see inventory.MockListingContext).
type Payout struct {
	TotalPayout decimal.Decimal `json:"totalPayout"`
	Adjustments []Adjustment    `json:"adjustments"`
}

type Adjustment struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Operation tracks a single (non-batch) async listing action.
type Operation struct {
	OperationID string `json:"operationId"`
	ListingID   string `json:"listingId"`
	Status      string `json:"status"` // PENDING, SUCCEEDED, FAILED
	ChangeType  string `json:"changeType"`
}

// BatchStatusValue enumerates the lifecycle of a batch operation.
type BatchStatusValue string

const (
	BatchQueued     BatchStatusValue = "QUEUED"
	BatchInProgress BatchStatusValue = "IN_PROGRESS"
	BatchCompleted  BatchStatusValue = "COMPLETED"
)

// BatchItemStatuses is the per-status item count the marketplace reports for
// a batch operation while it is being processed.
type BatchItemStatuses struct {
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchStatus is the marketplace's view of an in-flight or finished batch.
type BatchStatus struct {
	BatchID      string            `json:"batchId"`
	Status       BatchStatusValue  `json:"status"`
	TotalItems   int               `json:"totalItems"`
	ItemStatuses BatchItemStatuses `json:"itemStatuses"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Done reports whether every item in the batch has reached a terminal state.
// It is true when the batch status is COMPLETED or completed+failed >= total,
// never the source's inconsistent queued==0 check — see SPEC_FULL.md's Open
// Questions.
func (b BatchStatus) Done() bool {
	if b.Status == BatchCompleted {
		return true
	}
	return b.ItemStatuses.Completed+b.ItemStatuses.Failed >= b.TotalItems
}

// BatchItemStatus is the terminal (or still-queued) state of one item within
// a batch operation.
type BatchItemStatus string

const (
	ItemQueued    BatchItemStatus = "QUEUED"
	ItemCompleted BatchItemStatus = "COMPLETED"
	ItemFailed    BatchItemStatus = "FAILED"
)

// BatchItemCreateInput is one coalesced create request within a create batch.
type BatchItemCreateInput struct {
	VariantID    string `json:"variantId" validate:"required"`
	Amount       string `json:"amount" validate:"required,numeric"`
	CurrencyCode string `json:"currencyCode" validate:"required,len=3"`
	Quantity     int    `json:"quantity" validate:"gt=0"`
}

// BatchItemUpdateInput is one per-listing update request within an update batch.
type BatchItemUpdateInput struct {
	ListingID    string `json:"listingId" validate:"required"`
	Amount       string `json:"amount" validate:"required,numeric"`
	CurrencyCode string `json:"currencyCode" validate:"required,len=3"`
}

// BatchItemDeleteInput is one per-listing delete request within a delete batch.
type BatchItemDeleteInput struct {
	ListingID string `json:"listingId" validate:"required"`
}

// BatchItemResult is the marketplace's terminal (or still-queued) outcome for
// one input within a batch. Exactly one of ListingID/Error is populated for
// a terminal status.
type BatchItemResult struct {
	Status    BatchItemStatus `json:"status"`
	ListingID string          `json:"listingId,omitempty"`
	Error     string          `json:"error,omitempty"`

	// Input echoes back whichever of the three input shapes produced this
	// result, decoded by the caller based on the batch kind it polled.
	Input json.RawMessage `json:"input,omitempty"`
}
