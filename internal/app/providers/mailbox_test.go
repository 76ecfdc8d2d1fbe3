package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FirstDeliveryWins(t *testing.T) {
	box := NewMailbox[string]()

	pending, err := box.Open("a1")
	require.NoError(t, err)
	defer pending.Close()

	require.NoError(t, box.Deliver("a1", "first"))
	assert.ErrorIs(t, box.Deliver("a1", "second"), ErrNotPending)
	assert.ErrorIs(t, box.Fail("a1", ErrProviderCancelled), ErrNotPending)

	value, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestMailbox_Fail(t *testing.T) {
	box := NewMailbox[string]()

	pending, err := box.Open("a1")
	require.NoError(t, err)

	require.NoError(t, box.Fail("a1", ErrProviderCancelled))

	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrProviderCancelled)
}

func TestMailbox_UnknownKey(t *testing.T) {
	box := NewMailbox[int]()
	assert.ErrorIs(t, box.Deliver("missing", 1), ErrNotPending)
}

func TestMailbox_DuplicateOpen(t *testing.T) {
	box := NewMailbox[int]()

	pending, err := box.Open("a1")
	require.NoError(t, err)

	_, err = box.Open("a1")
	assert.ErrorIs(t, err, ErrAlreadyPending)

	pending.Close()
	assert.False(t, box.IsPending("a1"))

	_, err = box.Open("a1")
	assert.NoError(t, err)
}

func TestMailbox_WaitHonorsContext(t *testing.T) {
	box := NewMailbox[int]()

	pending, err := box.Open("a1")
	require.NoError(t, err)
	defer pending.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = pending.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStatusError(t *testing.T) {
	assert.ErrorIs(t, StatusError("card", 402, "card declined"), ErrProviderValidation)

	err := StatusError("card", 503, "")
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 503, pErr.Status)
	assert.Equal(t, "request failed with status code: 503", pErr.Message)
}
