package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cyberoby/stockx/models"
)

// PriceTarget is the tagged "value | fn | async fn" sum type used by the
// beat_* strategies for both BeatBy and Condition: a literal value, a
// synchronous callable, or a callable that itself needs a context (e.g. to
// make its own API call). Constructed only through the package-level
// constructors below so the zero value can never be an invalid arm.
type PriceTarget interface {
	evaluate(ctx context.Context, li *ListedItem) (decimal.Decimal, error)
}

type literalTarget struct{ v decimal.Decimal }

func (t literalTarget) evaluate(context.Context, *ListedItem) (decimal.Decimal, error) { return t.v, nil }

// Literal wraps a fixed value as a PriceTarget.
func Literal(v decimal.Decimal) PriceTarget { return literalTarget{v: v} }

type syncFuncTarget struct{ fn func(*ListedItem) decimal.Decimal }

func (t syncFuncTarget) evaluate(_ context.Context, li *ListedItem) (decimal.Decimal, error) {
	return t.fn(li), nil
}

// SyncFunc wraps a synchronous function of the item as a PriceTarget.
func SyncFunc(fn func(*ListedItem) decimal.Decimal) PriceTarget { return syncFuncTarget{fn: fn} }

type asyncFuncTarget struct {
	fn func(context.Context, *ListedItem) (decimal.Decimal, error)
}

func (t asyncFuncTarget) evaluate(ctx context.Context, li *ListedItem) (decimal.Decimal, error) {
	return t.fn(ctx, li)
}

// AsyncFunc wraps a context-aware function of the item as a PriceTarget.
func AsyncFunc(fn func(context.Context, *ListedItem) (decimal.Decimal, error)) PriceTarget {
	return asyncFuncTarget{fn: fn}
}

// MarketField selects which market-data signal a beat_* strategy reads.
type MarketField int

const (
	FieldLowestAsk MarketField = iota
	FieldSellFaster
	FieldEarnMore
)

func readField(md models.MarketData, field MarketField) decimal.Decimal {
	switch field {
	case FieldSellFaster:
		return md.SellFaster
	case FieldEarnMore:
		return md.EarnMore
	default:
		return md.LowestAsk
	}
}

// BeatStrategy reprices every item in items against a market-data field,
// subtracting beatBy either as an absolute amount or a fraction of the
// field's value, per percentage. condition (if non-nil) gates whether an
// item is repriced at all.
type BeatStrategy struct {
	catalogCurrency string
	field           MarketField
	beatBy          PriceTarget
	percentage      bool
	condition       PriceTarget // non-nil and evaluates to zero => skip; nonzero => apply
}

// BeatLowestAsk, BeatSellFaster, BeatEarnMore are sugar over ChangePrice:
// for each item, fetch its variant's market data (cached 30s), read one
// field, and compute newPrice = value - beatBy (absolute) or
// value*(1-beatBy) (percentage).
func BeatLowestAsk(beatBy PriceTarget, percentage bool) BeatStrategy {
	return BeatStrategy{field: FieldLowestAsk, beatBy: beatBy, percentage: percentage}
}

func BeatSellFaster(beatBy PriceTarget, percentage bool) BeatStrategy {
	return BeatStrategy{field: FieldSellFaster, beatBy: beatBy, percentage: percentage}
}

func BeatEarnMore(beatBy PriceTarget, percentage bool) BeatStrategy {
	return BeatStrategy{field: FieldEarnMore, beatBy: beatBy, percentage: percentage}
}

// Apply runs the strategy against inv's catalog client, computing and
// applying a new price per item via Inventory.ChangePrice.
func (s BeatStrategy) Apply(ctx context.Context, inv *Inventory, items []*ListedItem) ([]UpdateResult, error) {
	currency := inv.Fees().CurrencyCode
	var toReprice []*ListedItem
	newPrices := make(map[*ListedItem]decimal.Decimal)

	for _, li := range items {
		if s.condition != nil {
			apply, err := s.condition.evaluate(ctx, li)
			if err != nil {
				return nil, fmt.Errorf("evaluate condition: %w", err)
			}
			if apply.IsZero() {
				continue
			}
		}

		md, err := inv.catalog.GetVariantMarketData(ctx, li.VariantID(), currency)
		if err != nil {
			return nil, fmt.Errorf("fetch market data for %s: %w", li.VariantID(), err)
		}
		value := readField(md, s.field)

		beatBy, err := s.beatBy.evaluate(ctx, li)
		if err != nil {
			return nil, fmt.Errorf("evaluate beat_by: %w", err)
		}

		var newPrice decimal.Decimal
		if s.percentage {
			newPrice = value.Mul(decimal.NewFromInt(1).Sub(beatBy))
		} else {
			newPrice = value.Sub(beatBy)
		}
		if newPrice.IsNegative() {
			newPrice = decimal.Zero
		}

		toReprice = append(toReprice, li)
		newPrices[li] = newPrice
	}

	var results []UpdateResult
	for _, li := range toReprice {
		r, err := inv.ChangePrice(ctx, []*ListedItem{li}, newPrices[li])
		if err != nil {
			return results, err
		}
		results = append(results, r...)
	}
	return ConsolidateResults(toPointers(results)), nil
}

func toPointers(in []UpdateResult) []*UpdateResult {
	out := make([]*UpdateResult, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}
