package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stockxerrors "github.com/cyberoby/stockx/errors"
)

func TestCombineIncompleteReturnsNilWhenBothNil(t *testing.T) {
	assert.Nil(t, combineIncomplete(nil, nil))
}

// TestCombineIncompletePropagatesRawErrorUnwrapped confirms a non-timeout
// error (e.g. a transport error surfaced after retries are exhausted) is
// returned as-is, never silently reclassified as an IncompleteOperation.
func TestCombineIncompletePropagatesRawErrorUnwrapped(t *testing.T) {
	raw := errors.New("transport: connection refused")

	err := combineIncomplete(raw, nil)

	assert.Same(t, raw, err)
	var incomplete *stockxerrors.IncompleteOperation
	assert.False(t, errors.As(err, &incomplete), "a raw non-timeout error must not become an IncompleteOperation")
}

func TestCombineIncompleteMergesTwoIncompleteOperations(t *testing.T) {
	qIncomplete := &stockxerrors.IncompleteOperation{TimedOutBatchIDs: []string{"b1"}}
	pIncomplete := &stockxerrors.IncompleteOperation{TimedOutBatchIDs: []string{"b2"}}

	err := combineIncomplete(qIncomplete, pIncomplete)

	var incomplete *stockxerrors.IncompleteOperation
	require.True(t, errors.As(err, &incomplete))
	assert.ElementsMatch(t, []string{"b1", "b2"}, incomplete.TimedOutBatchIDs)
}

// TestCombineIncompleteOneTimeoutOneRawStillWraps confirms that when at
// least one side genuinely timed out, the combined result is an
// IncompleteOperation carrying that timeout's partials, with the raw
// error from the other side as its cause.
func TestCombineIncompleteOneTimeoutOneRawStillWraps(t *testing.T) {
	raw := errors.New("boom")
	timedOut := &stockxerrors.IncompleteOperation{TimedOutBatchIDs: []string{"b1"}}

	err := combineIncomplete(raw, timedOut)

	var incomplete *stockxerrors.IncompleteOperation
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"b1"}, incomplete.TimedOutBatchIDs)
	assert.Same(t, raw, incomplete.Cause)
}
