package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutEventValidate(t *testing.T) {
	now := time.Now()

	t.Run("Valid", func(t *testing.T) {
		e := &CheckoutEvent{CartToken: "tok-1", UpdatedAt: now}
		require.NoError(t, e.Validate())
	})

	t.Run("MissingCartToken", func(t *testing.T) {
		e := &CheckoutEvent{UpdatedAt: now}
		assert.ErrorIs(t, e.Validate(), ErrMissingCartToken)
	})

	t.Run("MissingUpdatedAt", func(t *testing.T) {
		e := &CheckoutEvent{CartToken: "tok-1"}
		assert.ErrorIs(t, e.Validate(), ErrMissingUpdatedAt)
	})
}

func TestSyncRunFailed(t *testing.T) {
	assert.False(t, (&SyncRun{Status: RunStatusSuccess}).Failed())
	assert.True(t, (&SyncRun{Status: RunStatusPartial}).Failed())
	assert.True(t, (&SyncRun{Status: RunStatusFailed}).Failed())
}
