// Package stockx is the top-level entry point for the inventory
// orchestration SDK: it wires the transport layer, resource endpoints, and
// reconciliation engine together behind a single handle.
package stockx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cyberoby/stockx/api"
	"github.com/cyberoby/stockx/internal/config"
	"github.com/cyberoby/stockx/internal/transport"
	"github.com/cyberoby/stockx/inventory"
)

// Client is the top-level SDK handle. It owns the transport client's
// lifetime; call Close when done to stop its background refresh goroutine.
type Client struct {
	cfg config.Config

	transport *transport.Client
	Catalog   *api.Catalog
	Listings  *api.Listings
	Orders    *api.Orders
	Batch     *api.Batch
	Inventory *inventory.Inventory
}

// New wires a full Client from cfg. The transport layer's background token
// refresh starts immediately; callers should Close when finished. cfg is
// validated up front, so a missing credential or out-of-range tunable fails
// here instead of surfacing as a confusing error deep in the transport layer.
func New(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := transport.New(cfg.Auth, cfg.API, cfg.Throttle, cfg.Retry, logger)
	catalogCache := transport.NewCache(cfg.Cache.MaxSize, cfg.Cache.ProductTTL)
	marketCache := transport.NewCache(cfg.Cache.MaxSize, cfg.Cache.MarketDataTTL)

	catalog := api.NewCatalog(httpClient, catalogCache, marketCache)
	listings := api.NewListings(httpClient, 50)
	orders := api.NewOrders(httpClient)
	batch := api.NewBatch(httpClient, cfg.Batch.MaxItemsPerBatch, cfg.Batch.InitialPollSleep)

	inv := inventory.New(
		listings, batch, catalog,
		cfg.Inventory.CurrencyCode,
		decimal.NewFromFloat(cfg.Inventory.ShippingFee),
		decimal.NewFromFloat(cfg.Inventory.MinTransactionFee),
		cfg.Batch.PollTimeout, logger,
	)

	return &Client{
		cfg:       cfg,
		transport: httpClient,
		Catalog:   catalog,
		Listings:  listings,
		Orders:    orders,
		Batch:     batch,
		Inventory: inv,
	}, nil
}

// Close stops the background token-refresh goroutine.
func (c *Client) Close() {
	c.transport.Close()
}

// Login loads the account's current active listings into Inventory and, if
// fee parameters have not yet been loaded, probes them via a mock listing
// on mockListingProductID.
func (c *Client) Login(ctx context.Context, mockListingProductID string) error {
	if err := c.Inventory.Load(ctx, api.ListingFilter{}); err != nil {
		return err
	}
	if c.Inventory.Fees().TransactionFeeRate.IsZero() && mockListingProductID != "" {
		return c.Inventory.LoadFees(ctx, mockListingProductID)
	}
	return nil
}
