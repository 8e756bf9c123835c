package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stockxerrors "github.com/cyberoby/stockx/errors"
	"github.com/cyberoby/stockx/internal/transport"
	"github.com/cyberoby/stockx/models"
)

// Listings wraps the single-listing and listing-list endpoints.
type Listings struct {
	client   *transport.Client
	pageSize int
}

// NewListings constructs a Listings wrapper. pageSize is used as the default
// page size for both GetAllListings and GetAllListingOperations.
func NewListings(client *transport.Client, pageSize int) *Listings {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Listings{client: client, pageSize: pageSize}
}

// GetListing fetches a single listing by id.
func (l *Listings) GetListing(ctx context.Context, listingID string) (models.Listing, error) {
	var listing models.Listing
	err := l.client.Get(ctx, "/listings/"+listingID, nil, &listing)
	return listing, err
}

// GetListingDetail fetches the expanded view of a listing, including its
// payout breakdown (used by the mock-listing fee probe).
func (l *Listings) GetListingDetail(ctx context.Context, listingID string) (models.ListingDetail, error) {
	var detail models.ListingDetail
	err := l.client.Get(ctx, "/listings/"+listingID+"/detail", nil, &detail)
	return detail, err
}

// ListingFilter narrows a GetAllListings query. Zero-value fields mean "no
// constraint" for that dimension.
type ListingFilter struct {
	ProductIDs      []string
	VariantIDs      []string
	FromDate        string
	ToDate          string
	ListingStatuses []string
	InventoryTypes  []string
	Reverse         bool
}

// GetAllListings streams every listing matching filter, in forward or
// reverse chronological order, up to limit items (limit <= 0 means all).
func (l *Listings) GetAllListings(ctx context.Context, filter ListingFilter, limit int) ([]models.Listing, error) {
	base := map[string]string{
		"productIds":      joinCSV(filter.ProductIDs),
		"variantIds":      joinCSV(filter.VariantIDs),
		"fromDate":        filter.FromDate,
		"toDate":          filter.ToDate,
		"listingStatuses": joinCSV(filter.ListingStatuses),
		"inventoryTypes":  joinCSV(filter.InventoryTypes),
	}

	fetch := func(ctx context.Context, page int) (json.RawMessage, error) {
		params := cloneParams(base)
		params["pageNumber"] = fmt.Sprint(page)
		params["pageSize"] = fmt.Sprint(l.pageSize)
		var raw json.RawMessage
		if err := l.client.Get(ctx, "/listings", params, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	pager := transport.NewPagePaginator(fetch, "listings", l.pageSize, limit, filter.Reverse)
	return drainListings(ctx, pager)
}

func drainListings(ctx context.Context, pager *transport.PagePaginator) ([]models.Listing, error) {
	var out []models.Listing
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		var listing models.Listing
		if err := json.Unmarshal(raw, &listing); err != nil {
			return out, fmt.Errorf("decode listing: %w", err)
		}
		out = append(out, listing)
	}
}

// CreateListing creates a single listing (not the batch path).
func (l *Listings) CreateListing(ctx context.Context, variantID, amount, currencyCode string) (models.Operation, error) {
	var op models.Operation
	body := map[string]any{
		"amount":       amount,
		"variantId":    variantID,
		"currencyCode": currencyCode,
	}
	err := l.client.Post(ctx, "/listings", body, &op)
	return op, err
}

// UpdateListing updates the price of a single existing listing.
func (l *Listings) UpdateListing(ctx context.Context, listingID, amount, currencyCode string) (models.Operation, error) {
	var op models.Operation
	body := map[string]any{"amount": amount, "currencyCode": currencyCode}
	err := l.client.Patch(ctx, "/listings/"+listingID, body, &op)
	return op, err
}

// DeleteListing deletes a single listing.
func (l *Listings) DeleteListing(ctx context.Context, listingID string) (models.Operation, error) {
	var op models.Operation
	err := l.client.Delete(ctx, "/listings/"+listingID, &op)
	return op, err
}

// ActivateListing and DeactivateListing toggle whether a listing is visible
// to buyers without deleting it (supplemented surface, SPEC_FULL.md §10.2).
func (l *Listings) ActivateListing(ctx context.Context, listingID, amount, currencyCode string, expiresAt time.Time) (models.Operation, error) {
	return l.setActive(ctx, listingID, amount, currencyCode, expiresAt, true)
}

func (l *Listings) DeactivateListing(ctx context.Context, listingID, amount, currencyCode string, expiresAt time.Time) (models.Operation, error) {
	return l.setActive(ctx, listingID, amount, currencyCode, expiresAt, false)
}

func (l *Listings) setActive(ctx context.Context, listingID, amount, currencyCode string, expiresAt time.Time, active bool) (models.Operation, error) {
	var op models.Operation
	body := map[string]any{
		"amount":       amount,
		"currencyCode": currencyCode,
		"expiresAt":    expiresAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		"active":       active,
	}
	err := l.client.Put(ctx, "/listings/"+listingID+"/activate", body, &op)
	return op, err
}

// GetListingOperation fetches the status of a single async listing action.
func (l *Listings) GetListingOperation(ctx context.Context, listingID, operationID string) (models.Operation, error) {
	var op models.Operation
	err := l.client.Get(ctx, fmt.Sprintf("/listings/%s/operations/%s", listingID, operationID), nil, &op)
	return op, err
}

// GetAllListingOperations streams every operation recorded for a listing.
func (l *Listings) GetAllListingOperations(ctx context.Context, listingID string, limit int) ([]models.Operation, error) {
	fetch := func(ctx context.Context, cursor string) (json.RawMessage, error) {
		params := map[string]string{"pageSize": fmt.Sprint(l.pageSize)}
		if cursor != "" {
			params["cursor"] = cursor
		}
		var raw json.RawMessage
		if err := l.client.Get(ctx, "/listings/"+listingID+"/operations", params, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}

	pager := transport.NewCursorPaginator(fetch, "operations", limit)
	var out []models.Operation
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		var op models.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return out, fmt.Errorf("decode operation: %w", err)
		}
		out = append(out, op)
	}
}

// OperationSucceeded polls a single listing operation until it leaves the
// PENDING state, returning false (not an error) if it resolves to FAILED,
// and OperationTimeout if the poll budget elapses first.
func (l *Listings) OperationSucceeded(ctx context.Context, listingID, operationID string, pollTimeout time.Duration) (bool, error) {
	deadline := time.Now().Add(pollTimeout)
	sleep := 500 * time.Millisecond

	for {
		op, err := l.GetListingOperation(ctx, listingID, operationID)
		if err != nil {
			return false, err
		}
		switch op.Status {
		case "SUCCEEDED":
			return true, nil
		case "FAILED":
			return false, nil
		}

		if time.Now().Add(sleep).After(deadline) {
			return false, &stockxerrors.OperationTimeout{OperationID: operationID}
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(sleep):
		}
		if sleep *= 2; sleep > 5*time.Second {
			sleep = 5 * time.Second
		}
	}
}

func joinCSV(vals []string) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out
}

func cloneParams(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
