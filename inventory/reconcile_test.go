package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberoby/stockx/api"
	"github.com/cyberoby/stockx/internal/config"
	"github.com/cyberoby/stockx/internal/transport"
	stockxerrors "github.com/cyberoby/stockx/errors"
	"github.com/cyberoby/stockx/models"
)

// fakeBatch is one in-flight or finished batch tracked by the fake
// marketplace server below. results holds the TERMINAL outcome each item
// will eventually reach; while stuck is true, both status() and items()
// report everything as still QUEUED, simulating a batch the marketplace
// never finishes processing within the test's poll budget.
type fakeBatch struct {
	kind    api.BatchKind
	results []models.BatchItemResult
	stuck   bool
}

func (b *fakeBatch) status() models.BatchStatus {
	total := len(b.results)
	completed, failed := 0, 0
	if !b.stuck {
		for _, r := range b.results {
			switch r.Status {
			case models.ItemCompleted:
				completed++
			case models.ItemFailed:
				failed++
			}
		}
	}
	st := models.BatchQueued
	if !b.stuck && completed+failed >= total {
		st = models.BatchCompleted
	}
	return models.BatchStatus{
		Status:     st,
		TotalItems: total,
		ItemStatuses: models.BatchItemStatuses{
			Queued:    total - completed - failed,
			Completed: completed,
			Failed:    failed,
		},
	}
}

func (b *fakeBatch) items() []models.BatchItemResult {
	if !b.stuck {
		return b.results
	}
	out := make([]models.BatchItemResult, len(b.results))
	for i, r := range b.results {
		out[i] = r
		out[i].Status = models.ItemQueued
		out[i].ListingID = ""
	}
	return out
}

// fakeMarketplace is a minimal in-memory stand-in for the marketplace's OAuth
// and batch endpoints, enough to drive the reconciliation engine end to end.
// stuckListingIDs marks delete-input listing ids whose batch should never
// report completion, for batch-timeout scenarios.
type fakeMarketplace struct {
	mu              sync.Mutex
	batches         map[string]*fakeBatch
	nextID          int
	stuckListingIDs map[string]bool
	marketData      map[string]models.MarketData
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		batches:         make(map[string]*fakeBatch),
		stuckListingIDs: make(map[string]bool),
		marketData:      make(map[string]models.MarketData),
	}
}

func (m *fakeMarketplace) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	for _, kind := range []api.BatchKind{api.BatchKindCreate, api.BatchKindUpdate, api.BatchKindDelete} {
		kind := kind
		mux.HandleFunc("POST /batch/listings/"+string(kind), func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Items json.RawMessage `json:"items"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			id := m.submit(kind, body.Items)
			json.NewEncoder(w).Encode(models.BatchStatus{BatchID: id, Status: models.BatchQueued})
		})
		mux.HandleFunc("GET /batch/listings/"+string(kind)+"/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("id")
			b := m.get(id)
			status := b.status()
			status.BatchID = id
			json.NewEncoder(w).Encode(status)
		})
		mux.HandleFunc("GET /batch/listings/"+string(kind)+"/{id}/items", func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("id")
			b := m.get(id)
			json.NewEncoder(w).Encode(b.items())
		})
	}
	mux.HandleFunc("GET /catalog/variants/{id}/market-data", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		m.mu.Lock()
		md := m.marketData[id]
		m.mu.Unlock()
		md.VariantID = id
		json.NewEncoder(w).Encode(md)
	})
	return httptest.NewServer(mux)
}

// submit decodes raw items for kind and expands them into per-listing
// BatchItemResults, mimicking how the marketplace turns one coalesced create
// input of quantity N into N separate listing results (see S1).
func (m *fakeMarketplace) submit(kind api.BatchKind, raw json.RawMessage) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := "batch-" + strconv.Itoa(m.nextID)
	b := &fakeBatch{kind: kind}

	switch kind {
	case api.BatchKindCreate:
		var inputs []models.BatchItemCreateInput
		json.Unmarshal(raw, &inputs)
		for _, in := range inputs {
			encoded, _ := json.Marshal(in)
			for i := 0; i < in.Quantity; i++ {
				m.nextID++
				b.results = append(b.results, models.BatchItemResult{
					Status:    models.ItemCompleted,
					ListingID: fmt.Sprintf("listing-%d", m.nextID),
					Input:     encoded,
				})
			}
		}
	case api.BatchKindUpdate:
		var inputs []models.BatchItemUpdateInput
		json.Unmarshal(raw, &inputs)
		for _, in := range inputs {
			encoded, _ := json.Marshal(in)
			b.results = append(b.results, models.BatchItemResult{Status: models.ItemCompleted, ListingID: in.ListingID, Input: encoded})
		}
	case api.BatchKindDelete:
		var inputs []models.BatchItemDeleteInput
		json.Unmarshal(raw, &inputs)
		for _, in := range inputs {
			encoded, _ := json.Marshal(in)
			b.results = append(b.results, models.BatchItemResult{Status: models.ItemCompleted, ListingID: in.ListingID, Input: encoded})
			if m.stuckListingIDs[in.ListingID] {
				b.stuck = true
			}
		}
	}

	m.batches[id] = b
	return id
}

func (m *fakeMarketplace) get(id string) *fakeBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches[id]
}

// testHarness wires a real transport.Client + api wrappers against a fake
// marketplace server, and an Inventory on top, for end-to-end scenarios.
type testHarness struct {
	market *fakeMarketplace
	server *httptest.Server
	inv    *Inventory
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	market := newFakeMarketplace()
	srv := market.server()
	t.Cleanup(srv.Close)

	authCfg := config.AuthConfig{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "rt", Audience: "aud",
		APIKey: "key", TokenURL: srv.URL + "/oauth/token", RefreshInterval: time.Hour,
	}
	apiCfg := config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}
	throttleCfg := config.ThrottleConfig{MinInterval: time.Millisecond}
	retryCfg := config.RetryConfig{MaxAttempts: 2, InitialDelay: 5 * time.Millisecond, Timeout: time.Second}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
	client := transport.New(authCfg, apiCfg, throttleCfg, retryCfg, logger)
	t.Cleanup(client.Close)

	listings := api.NewListings(client, 50)
	batch := api.NewBatch(client, 100, 5*time.Millisecond)
	catalogCache := transport.NewCache(64, 0)
	marketCache := transport.NewCache(64, 30*time.Second)
	catalog := api.NewCatalog(client, catalogCache, marketCache)

	inv := New(listings, batch, catalog, "USD", decimal.Zero, decimal.Zero, 2*time.Second, logger)
	inv.SetFees(FeeParams{CurrencyCode: "USD"})

	return &testHarness{market: market, server: srv, inv: inv}
}

func mustItem(t *testing.T, productID, variantID string, price int64, qty int) Item {
	t.Helper()
	it, err := NewItem(productID, variantID, decimal.NewFromInt(price), qty)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	return it
}

// S1: quantity increase creates the missing listings and appends their ids.
func TestScenarioQuantityIncrease(t *testing.T) {
	h := newTestHarness(t)

	li := newListedItem(h.inv, mustItem(t, "P", "V", 100, 2), []string{"A", "B"})
	h.inv.items = append(h.inv.items, li)

	require.NoError(t, li.SetQuantity(5))

	results, err := h.inv.Update(t.Context())
	require.NoError(t, err)
	assert.Len(t, li.ListingIDs(), 5, "expected 5 listing ids after sync")

	found := findResult(results, li)
	require.NotNil(t, found, "expected an UpdateResult for li")
	assert.Len(t, found.Created, 3)
}

// S2: quantity decrease deletes the trailing ids.
func TestScenarioQuantityDecrease(t *testing.T) {
	h := newTestHarness(t)

	li := newListedItem(h.inv, mustItem(t, "P", "V", 100, 2), []string{"A", "B"})
	h.inv.items = append(h.inv.items, li)

	require.NoError(t, li.SetQuantity(0))

	results, err := h.inv.Update(t.Context())
	require.NoError(t, err)
	assert.Empty(t, li.ListingIDs())

	found := findResult(results, li)
	require.NotNil(t, found, "expected an UpdateResult for li")
	assert.True(t, found.Deleted["A"] && found.Deleted["B"], "expected A and B deleted, got %v", found.Deleted)
}

// S3: price change updates every listing of the item.
func TestScenarioPriceChange(t *testing.T) {
	h := newTestHarness(t)

	li := newListedItem(h.inv, mustItem(t, "P", "V", 100, 2), []string{"A", "B"})
	h.inv.items = append(h.inv.items, li)

	results, err := h.inv.ChangePrice(t.Context(), []*ListedItem{li}, decimal.NewFromInt(90))
	require.NoError(t, err)
	assert.True(t, li.Price().Equal(decimal.NewFromInt(90)), "expected price 90, got %s", li.Price())

	found := findResult(results, li)
	require.NotNil(t, found, "expected an UpdateResult for li")
	assert.True(t, found.Updated["A"] && found.Updated["B"], "expected A and B updated, got %v", found.Updated)
}

// findResult locates the UpdateResult for li among results, or nil.
func findResult(results []UpdateResult, li *ListedItem) *UpdateResult {
	for i := range results {
		if results[i].Item == li {
			return &results[i]
		}
	}
	return nil
}

// S4: publishing two items at the same (variant, price) coalesces into one
// create input with summed quantity; a third item at a different variant
// stays separate.
func TestScenarioCoalescing(t *testing.T) {
	h := newTestHarness(t)

	items := []Item{
		mustItem(t, "P1", "V", 100, 2),
		mustItem(t, "P1", "V", 100, 3),
		mustItem(t, "P2", "W", 100, 1),
	}

	results, err := h.inv.Publish(t.Context(), items)
	require.NoError(t, err)
	require.Len(t, results, 3)

	totalCreated := 0
	for _, r := range results {
		totalCreated += len(r.Created)
	}
	assert.Equal(t, 6, totalCreated, "expected 6 total created listings across all items")

	// the two V@100 items coalesce into a single create batch input of
	// quantity 5, so exactly one batch should have been submitted for create.
	createBatches := 0
	for _, b := range h.market.batches {
		if b.kind == api.BatchKindCreate {
			createBatches++
		}
	}
	assert.Equal(t, 1, createBatches, "expected exactly 1 create batch (coalesced)")
}

// S5: one delete batch never reports completion within the poll budget.
// Update surfaces an IncompleteOperation carrying the timed-out batch id and
// whatever per-item results were already available, while the item whose
// batch DID complete in time is still reflected correctly.
func TestScenarioBatchTimeoutPartialResults(t *testing.T) {
	h := newTestHarness(t)
	h.inv.batchPollTimeout = 40 * time.Millisecond
	h.inv.batchSize = 1 // force one batch per deleted listing id

	liFast := newListedItem(h.inv, mustItem(t, "P", "V1", 100, 2), []string{"A", "B"})
	liSlow := newListedItem(h.inv, mustItem(t, "P", "V2", 100, 2), []string{"C", "D"})
	h.inv.items = append(h.inv.items, liFast, liSlow)

	h.market.stuckListingIDs["C"] = true
	h.market.stuckListingIDs["D"] = true

	require.NoError(t, liFast.SetQuantity(0))
	require.NoError(t, liSlow.SetQuantity(0))

	_, err := h.inv.Update(t.Context())
	require.Error(t, err, "expected an IncompleteOperation")

	var incomplete *stockxerrors.IncompleteOperation
	require.ErrorAs(t, err, &incomplete)
	assert.NotEmpty(t, incomplete.TimedOutBatchIDs, "expected at least one timed-out batch id")
	assert.Empty(t, liFast.ListingIDs(), "expected liFast's listings fully deleted in time")
	assert.Len(t, liSlow.ListingIDs(), 2, "expected liSlow's listings untouched since its batch never completed")
}

// ConsolidateResults: created < updated < deleted, failed < anything else.
func TestConsolidateResultsResolutionRules(t *testing.T) {
	li := &ListedItem{}

	r1 := newUpdateResult(li)
	r1.Created["X"] = true
	r1.Failed["X"] = true

	r2 := newUpdateResult(li)
	r2.Updated["X"] = true

	out := ConsolidateResults([]*UpdateResult{r1, r2})
	require.Len(t, out, 1)

	got := out[0]
	assert.False(t, got.Created["X"], "X should have moved out of created once it appears in updated")
	assert.True(t, got.Updated["X"], "X should remain in updated")
	assert.False(t, got.Failed["X"], "X should not remain failed once it succeeded elsewhere")
}

// consolidate([r]) == r: a single-step consolidation is a no-op beyond the
// resolution rules, which have nothing to resolve for a lone disjoint result.
func TestConsolidateResultsSingleStepIdempotent(t *testing.T) {
	li := &ListedItem{}
	r := newUpdateResult(li)
	r.Created["A"] = true
	r.Updated["B"] = true
	r.Deleted["C"] = true
	r.addError("boom", "D")

	out := ConsolidateResults([]*UpdateResult{r})
	require.Len(t, out, 1)

	got := out[0]
	assert.True(t, got.Created["A"] && got.Updated["B"] && got.Deleted["C"], "expected all three id sets preserved, got %+v", got)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, 1, got.Errors[0].Occurrences)
}
