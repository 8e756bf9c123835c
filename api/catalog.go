// Package api provides thin typed wrappers over the transport client for
// the catalog, listings, orders, and batch endpoints. No endpoint here
// implements its own throttling — every call passes through transport.Client,
// which owns the single throttle/retry pipeline.
package api

import (
	"context"
	"fmt"

	"github.com/cyberoby/stockx/internal/transport"
	"github.com/cyberoby/stockx/models"
)

// Catalog wraps the product/variant/market-data/search endpoints. Product and
// variant lookups are memoized indefinitely; market data is memoized on a
// separate, short-TTL cache, since TTL is a property of the whole Cache
// instance and the two have different freshness requirements (§4.4).
type Catalog struct {
	client       *transport.Client
	catalogCache *transport.Cache
	marketCache  *transport.Cache
}

// NewCatalog constructs a Catalog wrapper. catalogCache backs the indefinite
// product/variant memoization; marketCache backs the 30s market-data
// memoization described in the component design.
func NewCatalog(client *transport.Client, catalogCache, marketCache *transport.Cache) *Catalog {
	return &Catalog{client: client, catalogCache: catalogCache, marketCache: marketCache}
}

// GetProduct fetches full catalog detail for a product, cached indefinitely.
func (c *Catalog) GetProduct(ctx context.Context, productID string) (models.Product, error) {
	v, err := c.catalogCache.Get(transport.BuildKey("GetProduct", productID), func() (any, error) {
		var p models.Product
		if err := c.client.Get(ctx, "/catalog/products/"+productID, nil, &p); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return models.Product{}, err
	}
	return v.(models.Product), nil
}

// GetAllProductVariants lists every variant of a product, cached indefinitely.
func (c *Catalog) GetAllProductVariants(ctx context.Context, productID string) ([]models.Variant, error) {
	v, err := c.catalogCache.Get(transport.BuildKey("GetAllProductVariants", productID), func() (any, error) {
		var variants []models.Variant
		if err := c.client.Get(ctx, fmt.Sprintf("/catalog/products/%s/variants", productID), nil, &variants); err != nil {
			return nil, err
		}
		return variants, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Variant), nil
}

// GetVariantMarketData fetches pricing signals for one variant in the given
// currency, cached for 30s per the component design.
func (c *Catalog) GetVariantMarketData(ctx context.Context, variantID, currencyCode string) (models.MarketData, error) {
	v, err := c.marketCache.Get(transport.BuildKey("GetVariantMarketData", variantID, currencyCode), func() (any, error) {
		var md models.MarketData
		err := c.client.Get(ctx, fmt.Sprintf("/catalog/variants/%s/market-data", variantID),
			map[string]string{"currencyCode": currencyCode}, &md)
		if err != nil {
			return nil, err
		}
		return md, nil
	})
	if err != nil {
		return models.MarketData{}, err
	}
	return v.(models.MarketData), nil
}

// GetProductMarketData fetches pricing signals for every variant of a
// product in one call (supplemented surface, SPEC_FULL.md §10.2).
func (c *Catalog) GetProductMarketData(ctx context.Context, productID, currencyCode string) ([]models.MarketData, error) {
	v, err := c.marketCache.Get(transport.BuildKey("GetProductMarketData", productID, currencyCode), func() (any, error) {
		var mds []models.MarketData
		err := c.client.Get(ctx, fmt.Sprintf("/catalog/products/%s/market-data", productID),
			map[string]string{"currencyCode": currencyCode}, &mds)
		if err != nil {
			return nil, err
		}
		return mds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.MarketData), nil
}

// SearchCatalog queries the catalog by free-text search (supplemented
// surface, SPEC_FULL.md §10.2). Not cached: search results are not stable
// keys the way a product id is.
func (c *Catalog) SearchCatalog(ctx context.Context, query string, pageSize, pageNumber int) ([]models.Product, error) {
	var products []models.Product
	err := c.client.Get(ctx, "/catalog/search", map[string]string{
		"query":      query,
		"pageSize":   fmt.Sprint(pageSize),
		"pageNumber": fmt.Sprint(pageNumber),
	}, &products)
	return products, err
}
