package api

import (
	"context"

	"github.com/cyberoby/stockx/internal/transport"
	"github.com/cyberoby/stockx/models"
)

// Orders wraps the order-history endpoints (supplemented surface,
// SPEC_FULL.md §10.2) — not used by reconciliation/query but part of the
// same API family, for callers to use directly.
type Orders struct {
	client *transport.Client
}

// NewOrders constructs an Orders wrapper.
func NewOrders(client *transport.Client) *Orders {
	return &Orders{client: client}
}

// GetOrder fetches a single order by id.
func (o *Orders) GetOrder(ctx context.Context, orderID string) (models.OrderDetail, error) {
	var order models.OrderDetail
	err := o.client.Get(ctx, "/orders/"+orderID, nil, &order)
	return order, err
}

// OrderFilter narrows a GetOrdersHistory query.
type OrderFilter struct {
	FromDate    string
	ToDate      string
	OrderStatus string
	ProductID   string
	VariantID   string
	SortOrder   string
}

// GetOrdersHistory lists completed/cancelled orders matching filter.
func (o *Orders) GetOrdersHistory(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	err := o.client.Get(ctx, "/orders/history", map[string]string{
		"fromDate":    filter.FromDate,
		"toDate":      filter.ToDate,
		"orderStatus": filter.OrderStatus,
		"productId":   filter.ProductID,
		"variantId":   filter.VariantID,
		"sortOrder":   filter.SortOrder,
	}, &orders)
	return orders, err
}

// GetActiveOrders lists orders still awaiting shipment/settlement.
func (o *Orders) GetActiveOrders(ctx context.Context, filter OrderFilter) ([]models.OrderPartial, error) {
	var orders []models.OrderPartial
	err := o.client.Get(ctx, "/orders/active", map[string]string{
		"productId": filter.ProductID,
		"variantId": filter.VariantID,
	}, &orders)
	return orders, err
}
