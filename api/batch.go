package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	stockxerrors "github.com/cyberoby/stockx/errors"
	"github.com/cyberoby/stockx/internal/transport"
	"github.com/cyberoby/stockx/models"
)

// validate checks the struct tags on batch inputs (required fields, currency
// code length, positive quantity) before anything goes over the wire, so a
// malformed input fails fast with a field-level message instead of an opaque
// 4xx from the marketplace.
var validate = validator.New()

func validateItems[T any](items []T) error {
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

// BatchKind distinguishes the three batch operation families. All three
// share the same submit/status/items/await-completion shape.
type BatchKind string

const (
	BatchKindCreate BatchKind = "create"
	BatchKindUpdate BatchKind = "update"
	BatchKindDelete BatchKind = "delete"
)

// Batch wraps the three async batch endpoint families and implements the
// submit -> poll-until-done -> collect lifecycle shared by all of them.
type Batch struct {
	client           *transport.Client
	maxItemsPerBatch int
	initialPollSleep time.Duration
}

// NewBatch constructs a Batch wrapper.
func NewBatch(client *transport.Client, maxItemsPerBatch int, initialPollSleep time.Duration) *Batch {
	if maxItemsPerBatch <= 0 || maxItemsPerBatch > 500 {
		maxItemsPerBatch = 100
	}
	if initialPollSleep <= 0 {
		initialPollSleep = time.Second
	}
	return &Batch{client: client, maxItemsPerBatch: maxItemsPerBatch, initialPollSleep: initialPollSleep}
}

// MaxItemsPerBatch exposes the configured per-batch submission cap so callers
// (the reconciliation engine) can chunk their inputs accordingly.
func (b *Batch) MaxItemsPerBatch() int { return b.maxItemsPerBatch }

func (b *Batch) endpoint(kind BatchKind) string {
	return "/batch/listings/" + string(kind)
}

// SubmitCreate, SubmitUpdate, SubmitDelete each submit one batch of up to
// MaxItemsPerBatch() inputs and return the resulting batch id.
func (b *Batch) SubmitCreate(ctx context.Context, items []models.BatchItemCreateInput) (string, error) {
	if err := validateItems(items); err != nil {
		return "", err
	}
	return b.submit(ctx, BatchKindCreate, items)
}

func (b *Batch) SubmitUpdate(ctx context.Context, items []models.BatchItemUpdateInput) (string, error) {
	if err := validateItems(items); err != nil {
		return "", err
	}
	return b.submit(ctx, BatchKindUpdate, items)
}

func (b *Batch) SubmitDelete(ctx context.Context, items []models.BatchItemDeleteInput) (string, error) {
	if err := validateItems(items); err != nil {
		return "", err
	}
	return b.submit(ctx, BatchKindDelete, items)
}

func (b *Batch) submit(ctx context.Context, kind BatchKind, items any) (string, error) {
	var status models.BatchStatus
	err := b.client.Post(ctx, b.endpoint(kind), map[string]any{"items": items}, &status)
	if err != nil {
		return "", err
	}
	return status.BatchID, nil
}

// Status fetches the current status of a batch operation.
func (b *Batch) Status(ctx context.Context, kind BatchKind, batchID string) (models.BatchStatus, error) {
	var status models.BatchStatus
	err := b.client.Get(ctx, b.endpoint(kind)+"/"+batchID, nil, &status)
	return status, err
}

// Items fetches per-item results for a batch, optionally filtered by status.
func (b *Batch) Items(ctx context.Context, kind BatchKind, batchID string, statusFilter models.BatchItemStatus) ([]models.BatchItemResult, error) {
	var params map[string]string
	if statusFilter != "" {
		params = map[string]string{"status": string(statusFilter)}
	}
	var results []models.BatchItemResult
	err := b.client.Get(ctx, b.endpoint(kind)+"/"+batchID+"/items", params, &results)
	return results, err
}

// AwaitCompletion polls every batch id in batchIDs, with exponential backoff
// starting at b.initialPollSleep and doubling each round (capped at the
// remaining budget), until all are done or timeout elapses. On timeout it
// raises *stockxerrors.BatchTimeout carrying the still-queued ids and every
// per-item result already available across BOTH pending and finished
// batches. The completion predicate is status COMPLETED or
// item_statuses.completed+failed >= total_items
// (models.BatchStatus.Done), never the inconsistent queued==0
// check — see SPEC_FULL.md's Open Questions.
func (b *Batch) AwaitCompletion(ctx context.Context, kind BatchKind, batchIDs []string, timeout time.Duration) error {
	pending := append([]string(nil), batchIDs...)
	finished := make(map[string]bool)

	deadline := time.Now().Add(timeout)
	sleep := b.initialPollSleep

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return b.timeoutError(ctx, kind, pending, finished, batchIDs)
		}
		if sleep > remaining {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		var stillPending []string
		for _, id := range pending {
			status, err := b.Status(ctx, kind, id)
			if err != nil {
				return fmt.Errorf("poll batch %s: %w", id, err)
			}
			if status.Done() {
				finished[id] = true
			} else {
				stillPending = append(stillPending, id)
			}
		}
		pending = stillPending

		if len(pending) == 0 {
			return nil
		}

		if sleep *= 2; sleep > time.Until(deadline) {
			sleep = time.Until(deadline)
		}
	}
}

func (b *Batch) timeoutError(ctx context.Context, kind BatchKind, pending []string, finished map[string]bool, all []string) error {
	var partials []stockxerrors.BatchItemResult
	for _, id := range all {
		results, err := b.Items(ctx, kind, id, "")
		if err != nil {
			continue // best-effort: a failed items fetch just yields fewer partials
		}
		for _, r := range results {
			partials = append(partials, stockxerrors.BatchItemResult{BatchID: id, Raw: r})
		}
	}
	return &stockxerrors.BatchTimeout{QueuedBatchIDs: pending, PartialResults: partials}
}
