package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// pageFetcher performs one page-number request and decodes the raw page
// envelope, given the 1-based page number.
type pageFetcher func(ctx context.Context, page int) (json.RawMessage, error)

// pageEnvelope is the shape every page-number response carries in addition
// to its results array.
type pageEnvelope struct {
	HasNextPage bool              `json:"hasNextPage"`
	Count       int               `json:"count"`
	Results     []json.RawMessage `json:"-"`
}

// PagePaginator streams JSON objects from a page-number endpoint, forward or
// reverse. Reverse mode snapshots Count once, on the first page-1 fetch, and
// never re-reads it — see SPEC_FULL.md's Open Questions for why.
type PagePaginator struct {
	fetch      pageFetcher
	resultsKey string
	pageSize   int
	limit      int // 0 = unlimited
	reverse    bool

	started    bool
	lastPage   int
	yielded    int
	buf        []json.RawMessage
	exhausted  bool
}

// NewPagePaginator constructs a page-number paginator. limit <= 0 means
// unbounded.
func NewPagePaginator(fetch pageFetcher, resultsKey string, pageSize, limit int, reverse bool) *PagePaginator {
	return &PagePaginator{
		fetch:      fetch,
		resultsKey: resultsKey,
		pageSize:   pageSize,
		limit:      limit,
		reverse:    reverse,
	}
}

// Next returns the next item, or ok=false once the stream is exhausted.
func (p *PagePaginator) Next(ctx context.Context) (json.RawMessage, bool, error) {
	if p.limit > 0 && p.yielded >= p.limit {
		return nil, false, nil
	}

	for len(p.buf) == 0 {
		if p.exhausted {
			return nil, false, nil
		}
		if err := p.fillBuffer(ctx); err != nil {
			return nil, false, err
		}
	}

	item := p.buf[0]
	p.buf = p.buf[1:]
	p.yielded++
	return item, true, nil
}

func (p *PagePaginator) fillBuffer(ctx context.Context) error {
	if p.reverse {
		return p.fillReverse(ctx)
	}
	return p.fillForward(ctx)
}

func (p *PagePaginator) fillForward(ctx context.Context) error {
	page := p.lastPage + 1
	raw, err := p.fetch(ctx, page)
	if err != nil {
		return err
	}
	env, results, err := decodeEnvelope(raw, p.resultsKey)
	if err != nil {
		return err
	}
	p.lastPage = page
	p.buf = results
	if !env.HasNextPage {
		p.exhausted = true
	}
	return nil
}

// fillReverse snapshots count on the very first call (one extra request to
// page 1, per the Open Question decision to never re-read count afterward),
// then walks pages from last_page down to 1, reusing the page-1 fetch's own
// results when last_page == 1 instead of re-fetching it.
func (p *PagePaginator) fillReverse(ctx context.Context) error {
	if !p.started {
		p.started = true
		raw, err := p.fetch(ctx, 1)
		if err != nil {
			return err
		}
		env, page1Results, err := decodeEnvelope(raw, p.resultsKey)
		if err != nil {
			return err
		}
		if env.Count == 0 {
			p.exhausted = true
			return nil
		}
		p.lastPage = int(math.Ceil(float64(env.Count) / float64(p.pageSize)))

		if p.lastPage == 1 {
			p.buf = reverseItems(page1Results)
			p.exhausted = true
			return nil
		}

		raw, err = p.fetch(ctx, p.lastPage)
		if err != nil {
			return err
		}
		_, results, err := decodeEnvelope(raw, p.resultsKey)
		if err != nil {
			return err
		}
		p.buf = reverseItems(results)
		p.lastPage--
		return nil
	}

	if p.lastPage < 1 {
		p.exhausted = true
		return nil
	}
	raw, err := p.fetch(ctx, p.lastPage)
	if err != nil {
		return err
	}
	_, results, err := decodeEnvelope(raw, p.resultsKey)
	if err != nil {
		return err
	}
	p.buf = reverseItems(results)
	p.lastPage--
	if p.lastPage < 1 {
		p.exhausted = true
	}
	return nil
}

func reverseItems(items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, v := range items {
		out[len(items)-1-i] = v
	}
	return out
}

func decodeEnvelope(raw json.RawMessage, resultsKey string) (pageEnvelope, []json.RawMessage, error) {
	var env pageEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, fmt.Errorf("decode page envelope: %w", err)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return env, nil, fmt.Errorf("decode page envelope: %w", err)
	}
	var results []json.RawMessage
	if raw, ok := wrapper[resultsKey]; ok {
		if err := json.Unmarshal(raw, &results); err != nil {
			return env, nil, fmt.Errorf("decode page results %q: %w", resultsKey, err)
		}
	}
	return env, results, nil
}

// cursorFetcher performs one cursor-paginated request.
type cursorFetcher func(ctx context.Context, cursor string) (json.RawMessage, error)

type cursorEnvelope struct {
	NextCursor string `json:"nextCursor"`
}

// CursorPaginator streams JSON objects from an opaque-cursor endpoint,
// stopping when nextCursor is empty/absent or the limit is reached.
type CursorPaginator struct {
	fetch      cursorFetcher
	resultsKey string
	limit      int

	cursor    string
	started   bool
	exhausted bool
	yielded   int
	buf       []json.RawMessage
}

// NewCursorPaginator constructs a cursor paginator. limit <= 0 means unbounded.
func NewCursorPaginator(fetch cursorFetcher, resultsKey string, limit int) *CursorPaginator {
	return &CursorPaginator{fetch: fetch, resultsKey: resultsKey, limit: limit}
}

// Next returns the next item, or ok=false once the stream is exhausted.
func (p *CursorPaginator) Next(ctx context.Context) (json.RawMessage, bool, error) {
	if p.limit > 0 && p.yielded >= p.limit {
		return nil, false, nil
	}
	for len(p.buf) == 0 {
		if p.exhausted {
			return nil, false, nil
		}
		if err := p.fillBuffer(ctx); err != nil {
			return nil, false, err
		}
	}
	item := p.buf[0]
	p.buf = p.buf[1:]
	p.yielded++
	return item, true, nil
}

func (p *CursorPaginator) fillBuffer(ctx context.Context) error {
	cursor := p.cursor
	if !p.started {
		p.started = true
		cursor = ""
	}
	raw, err := p.fetch(ctx, cursor)
	if err != nil {
		return err
	}
	var env cursorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode cursor envelope: %w", err)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("decode cursor envelope: %w", err)
	}
	var results []json.RawMessage
	if raw, ok := wrapper[p.resultsKey]; ok {
		if err := json.Unmarshal(raw, &results); err != nil {
			return fmt.Errorf("decode cursor results %q: %w", p.resultsKey, err)
		}
	}
	p.buf = results
	p.cursor = env.NextCursor
	if env.NextCursor == "" {
		p.exhausted = true
	}
	return nil
}
