package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberoby/stockx/models"
)

// TestBeatStrategyAppliesWhenConditionTruthy confirms a truthy (nonzero)
// Literal condition applies the reprice, rather than skipping it.
func TestBeatStrategyAppliesWhenConditionTruthy(t *testing.T) {
	h := newTestHarness(t)
	h.market.marketData["v1"] = models.MarketData{LowestAsk: decimal.NewFromInt(100)}

	item, err := NewItem("p1", "v1", decimal.NewFromInt(80), 1)
	require.NoError(t, err)
	li := newListedItem(h.inv, item, []string{"listing-1"})
	h.inv.items = append(h.inv.items, li)

	strat := BeatLowestAsk(Literal(decimal.NewFromInt(10)), false)
	strat.condition = Literal(decimal.NewFromInt(1)) // truthy: must apply

	_, err = strat.Apply(context.Background(), h.inv, []*ListedItem{li})
	require.NoError(t, err)

	assert.True(t, li.Price().Equal(decimal.NewFromInt(90)), "lowest ask 100 beaten by 10 should move price to 90")
}

// TestBeatStrategySkipsWhenConditionFalsy confirms a falsy (zero) Literal
// condition skips the item entirely, leaving its price untouched.
func TestBeatStrategySkipsWhenConditionFalsy(t *testing.T) {
	h := newTestHarness(t)
	h.market.marketData["v1"] = models.MarketData{LowestAsk: decimal.NewFromInt(100)}

	item, err := NewItem("p1", "v1", decimal.NewFromInt(90), 1)
	require.NoError(t, err)
	li := newListedItem(h.inv, item, []string{"listing-1"})
	h.inv.items = append(h.inv.items, li)

	strat := BeatLowestAsk(Literal(decimal.NewFromInt(10)), false)
	strat.condition = Literal(decimal.Zero) // falsy: must skip

	results, err := strat.Apply(context.Background(), h.inv, []*ListedItem{li})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, li.Price().Equal(decimal.NewFromInt(90)), "skipped item's price must not change")
}
