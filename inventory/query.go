package inventory

import (
	"context"
	"strings"

	"github.com/cyberoby/stockx/api"
	"github.com/cyberoby/stockx/models"
)

// Any is the sentinel meaning "no constraint" for a filter dimension — a nil
// slice. An explicit-but-empty non-nil slice is treated the same way (the
// filters only look at length). This replicates the source's ANY/None
// convention explicitly rather than reinterpreting an empty slice as
// "match nothing"; callers who
// truly want "match nothing" cannot express it through this API, which
// mirrors the source's own limitation (see SPEC_FULL.md's Open Questions).
var Any []string

// Query is a composable, lazily-evaluated filter over an Inventory's
// listings. A fresh NewQuery with no constraints matches everything backed
// by active listings; a zero Query has no Inventory and cannot Run.
type Query struct {
	inv *Inventory

	productIDs []string
	variantIDs []string
	styleIDs   []string
	sizes      []string

	predicates []func(*ListedItem) bool
}

// NewQuery starts a fresh query against inv.
func NewQuery(inv *Inventory) *Query {
	return &Query{inv: inv}
}

// Include widens the allowed set for a dimension (union with whatever was
// already included).
func (q *Query) IncludeProductIDs(ids ...string) *Query { q.productIDs = union(q.productIDs, ids); return q }
func (q *Query) IncludeVariantIDs(ids ...string) *Query { q.variantIDs = union(q.variantIDs, ids); return q }
func (q *Query) IncludeStyleIDs(ids ...string) *Query   { q.styleIDs = union(q.styleIDs, ids); return q }
func (q *Query) IncludeSizes(sizes ...string) *Query    { q.sizes = union(q.sizes, sizes); return q }

// FilterBy narrows a dimension: intersects with the existing allowed set if
// one exists, otherwise sets it. An empty vals means Any (no constraint),
// replicating the source's ANY sentinel rather than "match nothing".
func (q *Query) FilterByProductIDs(vals ...string) *Query {
	q.productIDs = narrow(q.productIDs, vals)
	return q
}
func (q *Query) FilterByVariantIDs(vals ...string) *Query {
	q.variantIDs = narrow(q.variantIDs, vals)
	return q
}
func (q *Query) FilterByStyleIDs(vals ...string) *Query {
	q.styleIDs = narrow(q.styleIDs, vals)
	return q
}
func (q *Query) FilterBySizes(vals ...string) *Query {
	q.sizes = narrow(q.sizes, vals)
	return q
}

// Filter adds an arbitrary client-side predicate, always applied after
// aggregation into ListedItems, regardless of which retrieval strategy ran.
func (q *Query) Filter(pred func(*ListedItem) bool) *Query {
	q.predicates = append(q.predicates, pred)
	return q
}

func union(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

func narrow(existing, vals []string) []string {
	if len(vals) == 0 {
		return existing
	}
	if len(existing) == 0 {
		return append([]string(nil), vals...)
	}
	allowed := make(map[string]bool, len(vals))
	for _, v := range vals {
		allowed[v] = true
	}
	var out []string
	for _, v := range existing {
		if allowed[v] {
			out = append(out, v)
		}
	}
	return out
}

// serverFilterable reports whether this query can be pushed entirely to the
// server paginator: only product_ids and/or variant_ids constrained, with no
// style/size constraint (those have no server-side equivalent).
func (q *Query) serverFilterable() bool {
	return len(q.styleIDs) == 0 && len(q.sizes) == 0
}

// Run executes the query: server-side filter when possible, otherwise a
// full active-listing scan, aggregates into ListedItems, then applies every
// client-side predicate (style/size constraints and user predicates).
func (q *Query) Run(ctx context.Context) ([]*ListedItem, error) {
	filter := api.ListingFilter{
		ProductIDs:      q.productIDs,
		VariantIDs:      q.variantIDs,
		ListingStatuses: []string{string(models.ListingActive)},
	}

	if !q.serverFilterable() {
		// full scan: drop the server-side product/variant constraint too,
		// since client-side predicates below re-apply it uniformly.
		filter.ProductIDs = nil
		filter.VariantIDs = nil
	}

	listings, err := q.inv.listings.GetAllListings(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	items := FromListings(q.inv, listings)

	return q.applyClientSide(items), nil
}

func (q *Query) applyClientSide(items []*ListedItem) []*ListedItem {
	var out []*ListedItem
	for _, li := range items {
		if len(q.productIDs) > 0 && !containsStr(q.productIDs, li.ProductID()) {
			continue
		}
		if len(q.variantIDs) > 0 && !containsStr(q.variantIDs, li.VariantID()) {
			continue
		}
		if len(q.styleIDs) > 0 && !styleIDsOverlap(li.StyleID(), q.styleIDs) {
			continue
		}
		if len(q.sizes) > 0 && !containsStr(q.sizes, li.Size()) {
			continue
		}
		ok := true
		for _, pred := range q.predicates {
			if !pred(li) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, li)
		}
	}
	return out
}

// styleIDsOverlap reports whether raw (possibly slash-delimited, for
// cross-listed SKUs) style id intersects allowed.
func styleIDsOverlap(raw string, allowed []string) bool {
	for _, s := range strings.Split(raw, "/") {
		if containsStr(allowed, s) {
			return true
		}
	}
	return false
}

func containsStr(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}
