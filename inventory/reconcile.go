package inventory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyberoby/stockx/api"
	stockxerrors "github.com/cyberoby/stockx/errors"
	"github.com/cyberoby/stockx/models"
)

// itemKey groups items for the coalescing invariant: at most one create
// input per (variantID, price) pair. Several items can share a key (Publish
// with a repeated (variant, price), or two ListedItems set to the same
// price); their quantities are summed into one input and the created
// listings are handed out in input order, each contributing item receiving
// up to its own QuantityToSync().
type itemKey struct {
	variantID string
	price     string
}

func keyOf(li *ListedItem) itemKey {
	return itemKey{variantID: li.VariantID(), price: li.Price().String()}
}

// Publish creates new listings for items that have none yet: quantity-
// positive brand-new Items (not existing ListedItems). Coalescing applies:
// repeated (variant_id, price) pairs among the input Items are grouped and
// their quantities summed before submission (§4.7.1).
func (inv *Inventory) Publish(ctx context.Context, items []Item) ([]UpdateResult, error) {
	listed := make([]*ListedItem, 0, len(items))
	for _, it := range items {
		listed = append(listed, newListedItem(inv, it, nil))
	}

	inv.mu.Lock()
	inv.items = append(inv.items, listed...)
	inv.mu.Unlock()

	results, err := inv.increaseQuantity(ctx, listed)
	return dereference(results), err
}

// ChangePrice sets the price on every given item and immediately
// reconciles just those items (rather than waiting for the next Update()).
func (inv *Inventory) ChangePrice(ctx context.Context, items []*ListedItem, newPrice decimal.Decimal) ([]UpdateResult, error) {
	for _, li := range items {
		if err := li.SetPrice(newPrice); err != nil {
			return nil, err
		}
	}
	results, err := inv.reconcilePrice(ctx, items)
	if err == nil {
		// only these items' dirty membership is cleared; other pending
		// price-dirty items are untouched.
		inv.mu.Lock()
		for _, li := range items {
			delete(inv.priceDirty, li)
		}
		inv.mu.Unlock()
	}
	return dereference(results), err
}

// reconcileQuantity runs the decrease and increase paths for every item
// whose QuantityToSync() != 0. Both paths run; if either raises
// IncompleteOperation, the combined partials from both are surfaced.
func (inv *Inventory) reconcileQuantity(ctx context.Context, items []*ListedItem) ([]*UpdateResult, error) {
	var decrease, increase []*ListedItem
	for _, li := range items {
		switch {
		case li.QuantityToSync() < 0:
			decrease = append(decrease, li)
		case li.QuantityToSync() > 0:
			increase = append(increase, li)
		}
	}

	decResults, decErr := inv.decreaseQuantity(ctx, decrease)
	incResults, incErr := inv.increaseQuantity(ctx, increase)

	all := append(decResults, incResults...)
	return all, combineIncomplete(decErr, incErr)
}

// decreaseQuantity deletes the trailing |QuantityToSync()| listing ids of
// each item, in delete batches of up to MaxItemsPerBatch(), and removes the
// successfully deleted ids from each item on completion.
func (inv *Inventory) decreaseQuantity(ctx context.Context, items []*ListedItem) ([]*UpdateResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	type plannedDelete struct {
		item      *ListedItem
		listingID string
	}
	var planned []plannedDelete
	for _, li := range items {
		for _, id := range li.trailingIDsToDelete() {
			planned = append(planned, plannedDelete{item: li, listingID: id})
		}
	}
	if len(planned) == 0 {
		return nil, nil
	}

	byListingID := make(map[string]*ListedItem, len(planned))
	inputs := make([]models.BatchItemDeleteInput, len(planned))
	for i, p := range planned {
		inputs[i] = models.BatchItemDeleteInput{ListingID: p.listingID}
		byListingID[p.listingID] = p.item
	}

	resultsByItem := make(map[*ListedItem]*UpdateResult)
	ensure := func(li *ListedItem) *UpdateResult {
		if r, ok := resultsByItem[li]; ok {
			return r
		}
		r := newUpdateResult(li)
		resultsByItem[li] = r
		return r
	}

	var batchIDs []string
	for _, chunk := range chunkDelete(inputs, inv.batchSize) {
		id, err := inv.batch.SubmitDelete(ctx, chunk)
		if err != nil {
			return dereferenceMap(resultsByItem), err
		}
		batchIDs = append(batchIDs, id)
	}

	err := inv.batch.AwaitCompletion(ctx, api.BatchKindDelete, batchIDs, inv.pollTimeout())
	if err != nil {
		var timeout *stockxerrors.BatchTimeout
		if asTimeout(err, &timeout) {
			inv.applyDeleteResults(timeout.PartialResults, byListingID, resultsByItem, ensure)
			inv.removeDeletedListings(resultsByItem)
			return dereferenceMap(resultsByItem), stockxerrors.NewIncompleteOperation(timeout)
		}
		return dereferenceMap(resultsByItem), err
	}

	for _, id := range batchIDs {
		items, err := inv.batch.Items(ctx, api.BatchKindDelete, id, "")
		if err != nil {
			continue
		}
		for _, r := range items {
			applyOneDeleteResult(r, byListingID, resultsByItem, ensure)
		}
	}
	inv.removeDeletedListings(resultsByItem)

	return dereferenceMap(resultsByItem), nil
}

func applyOneDeleteResult(r models.BatchItemResult, byListingID map[string]*ListedItem, resultsByItem map[*ListedItem]*UpdateResult, ensure func(*ListedItem) *UpdateResult) {
	var input models.BatchItemDeleteInput
	_ = json.Unmarshal(r.Input, &input)
	li, ok := byListingID[input.ListingID]
	if !ok {
		return
	}
	acc := ensure(li)
	switch r.Status {
	case models.ItemCompleted:
		acc.Deleted[input.ListingID] = true
	case models.ItemFailed:
		acc.Failed[input.ListingID] = true
		acc.addError(r.Error, input.ListingID)
	}
}

func (inv *Inventory) applyDeleteResults(partials []stockxerrors.BatchItemResult, byListingID map[string]*ListedItem, resultsByItem map[*ListedItem]*UpdateResult, ensure func(*ListedItem) *UpdateResult) {
	for _, p := range partials {
		raw, ok := p.Raw.(models.BatchItemResult)
		if !ok {
			continue
		}
		applyOneDeleteResult(raw, byListingID, resultsByItem, ensure)
	}
}

// increaseQuantity builds one create input per item's QuantityToSync(),
// coalesces by (variantID, price) summing quantities (§4.7.1), submits
// create batches, and appends newly created listing ids back to their
// source item(s).
func (inv *Inventory) increaseQuantity(ctx context.Context, items []*ListedItem) ([]*UpdateResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	byKey := make(map[itemKey][]*ListedItem)
	quantities := make(map[itemKey]int)
	var keyOrder []itemKey
	for _, li := range items {
		q := li.QuantityToSync()
		if q <= 0 {
			continue
		}
		k := keyOf(li)
		if _, ok := quantities[k]; !ok {
			keyOrder = append(keyOrder, k)
		}
		quantities[k] += q
		byKey[k] = append(byKey[k], li) // contributors in input order, see itemKey doc
	}
	if len(keyOrder) == 0 {
		return nil, nil
	}
	sort.Slice(keyOrder, func(i, j int) bool {
		if keyOrder[i].variantID != keyOrder[j].variantID {
			return keyOrder[i].variantID < keyOrder[j].variantID
		}
		return keyOrder[i].price < keyOrder[j].price
	})

	currency := inv.Fees().CurrencyCode
	inputs := make([]models.BatchItemCreateInput, len(keyOrder))
	for i, k := range keyOrder {
		inputs[i] = models.BatchItemCreateInput{
			VariantID:    k.variantID,
			Amount:       k.price,
			CurrencyCode: currency,
			Quantity:     quantities[k],
		}
	}

	resultsByItem := make(map[*ListedItem]*UpdateResult)
	ensure := func(li *ListedItem) *UpdateResult {
		if r, ok := resultsByItem[li]; ok {
			return r
		}
		r := newUpdateResult(li)
		resultsByItem[li] = r
		return r
	}

	var batchIDs []string
	for _, chunk := range chunkCreate(inputs, inv.batchSize) {
		id, err := inv.batch.SubmitCreate(ctx, chunk)
		if err != nil {
			return dereferenceMap(resultsByItem), err
		}
		batchIDs = append(batchIDs, id)
	}

	err := inv.batch.AwaitCompletion(ctx, api.BatchKindCreate, batchIDs, inv.pollTimeout())
	if err != nil {
		var timeout *stockxerrors.BatchTimeout
		if asTimeout(err, &timeout) {
			inv.applyCreateResults(timeout.PartialResults, byKey, resultsByItem, ensure)
			inv.appendCreatedListings(resultsByItem)
			return dereferenceMap(resultsByItem), stockxerrors.NewIncompleteOperation(timeout)
		}
		return dereferenceMap(resultsByItem), err
	}

	for _, id := range batchIDs {
		itemResults, err := inv.batch.Items(ctx, api.BatchKindCreate, id, "")
		if err != nil {
			continue
		}
		for _, r := range itemResults {
			applyOneCreateResult(r, byKey, resultsByItem, ensure)
		}
	}
	inv.appendCreatedListings(resultsByItem)

	return dereferenceMap(resultsByItem), nil
}

func (inv *Inventory) appendCreatedListings(resultsByItem map[*ListedItem]*UpdateResult) {
	for li, r := range resultsByItem {
		for id := range r.Created {
			li.appendListingIDs(id)
		}
	}
}

// removeDeletedListings drops every id that landed in a result's Deleted set
// from its item's tracked listing ids, whether the batch completed cleanly
// or was only partially observed before a timeout (§4.7.2): a listing the
// marketplace reports deleted must not linger locally either way.
func (inv *Inventory) removeDeletedListings(resultsByItem map[*ListedItem]*UpdateResult) {
	for li, r := range resultsByItem {
		toRemove := make(map[string]bool, len(r.Deleted))
		for id := range r.Deleted {
			toRemove[id] = true
		}
		li.removeListingIDs(toRemove)
	}
}

func applyOneCreateResult(r models.BatchItemResult, byKey map[itemKey][]*ListedItem, resultsByItem map[*ListedItem]*UpdateResult, ensure func(*ListedItem) *UpdateResult) {
	var input models.BatchItemCreateInput
	_ = json.Unmarshal(r.Input, &input)
	contributors := byKey[itemKey{variantID: input.VariantID, price: input.Amount}]
	if len(contributors) == 0 {
		return
	}
	// the first contributor still short of its QuantityToSync() takes this result
	li := contributors[len(contributors)-1]
	for _, c := range contributors {
		if got, ok := resultsByItem[c]; !ok || len(got.Created) < c.QuantityToSync() {
			li = c
			break
		}
	}
	acc := ensure(li)
	switch r.Status {
	case models.ItemCompleted:
		acc.Created[r.ListingID] = true
	case models.ItemFailed:
		acc.addError(r.Error, "")
	}
}

func (inv *Inventory) applyCreateResults(partials []stockxerrors.BatchItemResult, byKey map[itemKey][]*ListedItem, resultsByItem map[*ListedItem]*UpdateResult, ensure func(*ListedItem) *UpdateResult) {
	for _, p := range partials {
		raw, ok := p.Raw.(models.BatchItemResult)
		if !ok {
			continue
		}
		applyOneCreateResult(raw, byKey, resultsByItem, ensure)
	}
}

// reconcilePrice emits one update input per listing id for every item in
// the price-dirty set (update is per-listing; coalescing does not apply).
func (inv *Inventory) reconcilePrice(ctx context.Context, items []*ListedItem) ([]*UpdateResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	byListingID := make(map[string]*ListedItem)
	var inputs []models.BatchItemUpdateInput
	currency := inv.Fees().CurrencyCode
	for _, li := range items {
		for _, id := range li.ListingIDs() {
			inputs = append(inputs, models.BatchItemUpdateInput{
				ListingID:    id,
				Amount:       li.Price().String(),
				CurrencyCode: currency,
			})
			byListingID[id] = li
		}
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	resultsByItem := make(map[*ListedItem]*UpdateResult)
	ensure := func(li *ListedItem) *UpdateResult {
		if r, ok := resultsByItem[li]; ok {
			return r
		}
		r := newUpdateResult(li)
		resultsByItem[li] = r
		return r
	}

	var batchIDs []string
	for _, chunk := range chunkUpdate(inputs, inv.batchSize) {
		id, err := inv.batch.SubmitUpdate(ctx, chunk)
		if err != nil {
			return dereferenceMap(resultsByItem), err
		}
		batchIDs = append(batchIDs, id)
	}

	err := inv.batch.AwaitCompletion(ctx, api.BatchKindUpdate, batchIDs, inv.pollTimeout())
	if err != nil {
		var timeout *stockxerrors.BatchTimeout
		if asTimeout(err, &timeout) {
			for _, p := range timeout.PartialResults {
				if raw, ok := p.Raw.(models.BatchItemResult); ok {
					applyOneUpdateResult(raw, byListingID, resultsByItem, ensure)
				}
			}
			return dereferenceMap(resultsByItem), stockxerrors.NewIncompleteOperation(timeout)
		}
		return dereferenceMap(resultsByItem), err
	}

	for _, id := range batchIDs {
		itemResults, err := inv.batch.Items(ctx, api.BatchKindUpdate, id, "")
		if err != nil {
			continue
		}
		for _, r := range itemResults {
			applyOneUpdateResult(r, byListingID, resultsByItem, ensure)
		}
	}

	return dereferenceMap(resultsByItem), nil
}

func applyOneUpdateResult(r models.BatchItemResult, byListingID map[string]*ListedItem, resultsByItem map[*ListedItem]*UpdateResult, ensure func(*ListedItem) *UpdateResult) {
	var input models.BatchItemUpdateInput
	_ = json.Unmarshal(r.Input, &input)
	li, ok := byListingID[input.ListingID]
	if !ok {
		return
	}
	acc := ensure(li)
	switch r.Status {
	case models.ItemCompleted:
		acc.Updated[input.ListingID] = true
	case models.ItemFailed:
		acc.Failed[input.ListingID] = true
		acc.addError(r.Error, input.ListingID)
	}
}

func (inv *Inventory) pollTimeout() time.Duration {
	return inv.batchPollTimeout
}

func chunkCreate(items []models.BatchItemCreateInput, size int) [][]models.BatchItemCreateInput {
	var out [][]models.BatchItemCreateInput
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func chunkUpdate(items []models.BatchItemUpdateInput, size int) [][]models.BatchItemUpdateInput {
	var out [][]models.BatchItemUpdateInput
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func chunkDelete(items []models.BatchItemDeleteInput, size int) [][]models.BatchItemDeleteInput {
	var out [][]models.BatchItemDeleteInput
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

func dereference(in []*UpdateResult) []UpdateResult {
	out := make([]UpdateResult, len(in))
	for i, r := range in {
		out[i] = *r
	}
	return out
}

func dereferenceMap(in map[*ListedItem]*UpdateResult) []*UpdateResult {
	out := make([]*UpdateResult, 0, len(in))
	for _, r := range in {
		out = append(out, r)
	}
	return out
}

func asTimeout(err error, target **stockxerrors.BatchTimeout) bool {
	if t, ok := err.(*stockxerrors.BatchTimeout); ok {
		*target = t
		return true
	}
	return false
}

