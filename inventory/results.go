package inventory

import (
	stockxerrors "github.com/cyberoby/stockx/errors"
)

// ErrorDetail is one distinct failure message and how many times it occurred
// within a result, optionally tied to the specific listing id that failed.
type ErrorDetail struct {
	Message     string
	Occurrences int
	ListingID   string
}

// UpdateResult is the consolidated per-item outcome of one or more
// reconciliation steps. The four id sets are pairwise disjoint: an id
// present in more than one stage is resolved per the rules in
// ConsolidateResults (created < updated < deleted; failed < anything else).
type UpdateResult struct {
	Item    *ListedItem
	Created map[string]bool
	Updated map[string]bool
	Deleted map[string]bool
	Failed  map[string]bool
	Errors  []ErrorDetail
}

func newUpdateResult(item *ListedItem) *UpdateResult {
	return &UpdateResult{
		Item:    item,
		Created: make(map[string]bool),
		Updated: make(map[string]bool),
		Deleted: make(map[string]bool),
		Failed:  make(map[string]bool),
	}
}

func (r *UpdateResult) addError(message, listingID string) {
	for i, e := range r.Errors {
		if e.Message == message {
			r.Errors[i].Occurrences++
			return
		}
	}
	r.Errors = append(r.Errors, ErrorDetail{Message: message, Occurrences: 1, ListingID: listingID})
}

// ConsolidateResults groups UpdateResults by item, unions their id sets, and
// applies the resolution rules: created shrinks to exclude updated|deleted,
// updated shrinks to exclude deleted, failed shrinks to exclude created|
// updated|deleted. ErrorDetails are collapsed by message via counting.
func ConsolidateResults(results []*UpdateResult) []UpdateResult {
	byItem := make(map[*ListedItem]*UpdateResult)
	var order []*ListedItem

	for _, r := range results {
		if r == nil {
			continue
		}
		acc, ok := byItem[r.Item]
		if !ok {
			acc = newUpdateResult(r.Item)
			byItem[r.Item] = acc
			order = append(order, r.Item)
		}
		unionInto(acc.Created, r.Created)
		unionInto(acc.Updated, r.Updated)
		unionInto(acc.Deleted, r.Deleted)
		unionInto(acc.Failed, r.Failed)
		for _, e := range r.Errors {
			for i := 0; i < e.Occurrences; i++ {
				acc.addError(e.Message, e.ListingID)
			}
		}
	}

	out := make([]UpdateResult, 0, len(order))
	for _, item := range order {
		acc := byItem[item]
		for id := range acc.Updated {
			delete(acc.Created, id)
		}
		for id := range acc.Deleted {
			delete(acc.Created, id)
			delete(acc.Updated, id)
		}
		for id := range acc.Created {
			delete(acc.Failed, id)
		}
		for id := range acc.Updated {
			delete(acc.Failed, id)
		}
		for id := range acc.Deleted {
			delete(acc.Failed, id)
		}
		out = append(out, *acc)
	}
	return out
}

func unionInto(dst, src map[string]bool) {
	for id := range src {
		dst[id] = true
	}
}

// combineIncomplete merges two possibly-nil errors from the quantity and
// price reconciliation passes. Only errors that are actually
// *stockxerrors.IncompleteOperation (batch-timeout errors already rewrapped
// inside reconcileQuantity/reconcilePrice) are merged into a combined
// IncompleteOperation; any other error — a raw transport error after retry
// exhaustion, a non-timeout poll error — propagates unmodified, not
// reclassified as incomplete: on its own it is returned as-is, and next to
// an IncompleteOperation it becomes the combined error's Cause, whichever
// side it came from. Returns nil if both inputs were nil.
func combineIncomplete(qErr, pErr error) error {
	if qErr == nil && pErr == nil {
		return nil
	}

	var ids []string
	var partials []stockxerrors.BatchItemResult
	var cause, rawErr error
	foundIncomplete := false

	for _, err := range []error{qErr, pErr} {
		if err == nil {
			continue
		}
		if cause == nil {
			cause = err
		}
		var incomplete *stockxerrors.IncompleteOperation
		if asIncomplete(err, &incomplete) {
			foundIncomplete = true
			ids = append(ids, incomplete.TimedOutBatchIDs...)
			partials = append(partials, incomplete.PartialResults...)
		} else if rawErr == nil {
			rawErr = err
		}
	}

	if !foundIncomplete {
		return cause
	}
	if rawErr != nil {
		cause = rawErr
	}

	return &stockxerrors.IncompleteOperation{
		PartialResults:   partials,
		TimedOutBatchIDs: ids,
		Cause:            cause,
	}
}

func asIncomplete(err error, target **stockxerrors.IncompleteOperation) bool {
	if incomplete, ok := err.(*stockxerrors.IncompleteOperation); ok {
		*target = incomplete
		return true
	}
	return false
}
