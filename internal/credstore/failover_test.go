package credstore

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, tenantID string) (string, bool, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockStore) Set(ctx context.Context, tenantID, credential string) error {
	args := m.Called(ctx, tenantID, credential)
	return args.Error(0)
}

func (m *mockStore) Delete(ctx context.Context, tenantID string) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func TestFailoverStore(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockStore)
		fallback := new(mockStore)
		store := NewFailoverStore(primary, fallback, &logger)

		primary.On("Get", ctx, "shop-1").Return("secret", true, nil).Once()

		cred, ok, err := store.Get(ctx, "shop-1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "secret", cred)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackServes", func(t *testing.T) {
		primary := new(mockStore)
		fallback := new(mockStore)
		store := NewFailoverStore(primary, fallback, &logger)

		primary.On("Get", ctx, "shop-2").Return("", false, errors.New("redis down")).Once()
		fallback.On("Get", ctx, "shop-2").Return("cached", true, nil).Once()

		cred, ok, err := store.Get(ctx, "shop-2")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cached", cred)
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		primary := new(mockStore)
		fallback := new(mockStore)
		store := NewFailoverStore(primary, fallback, &logger)
		store.isDown.Store(true)
		store.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("Get", ctx, "shop-3").Return("secret", true, nil).Once()

		cred, ok, err := store.Get(ctx, "shop-3")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "secret", cred)
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("SetWritesBoth", func(t *testing.T) {
		primary := new(mockStore)
		fallback := new(mockStore)
		store := NewFailoverStore(primary, fallback, &logger)

		fallback.On("Set", ctx, "shop-4", "secret").Return(nil).Once()
		primary.On("Set", ctx, "shop-4", "secret").Return(nil).Once()

		assert.NoError(t, store.Set(ctx, "shop-4", "secret"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetPrimaryFailureIsNotFatal", func(t *testing.T) {
		primary := new(mockStore)
		fallback := new(mockStore)
		store := NewFailoverStore(primary, fallback, &logger)

		fallback.On("Set", ctx, "shop-5", "secret").Return(nil).Once()
		primary.On("Set", ctx, "shop-5", "secret").Return(errors.New("redis down")).Once()

		assert.NoError(t, store.Set(ctx, "shop-5", "secret"))
		assert.True(t, store.isDown.Load())

		// Subsequent reads come from the fallback.
		fallback.On("Get", ctx, "shop-5").Return("secret", true, nil).Once()
		cred, ok, err := store.Get(ctx, "shop-5")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "secret", cred)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require := assert.New(t)
		require.NoError(store.Set(ctx, "shop-1", "secret"))

		cred, ok, err := store.Get(ctx, "shop-1")
		require.NoError(err)
		require.True(ok)
		require.Equal("secret", cred)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "unknown")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.NoError(t, store.Set(ctx, "shop-2", "secret"))
		assert.NoError(t, store.Delete(ctx, "shop-2"))
		_, ok, _ := store.Get(ctx, "shop-2")
		assert.False(t, ok)
	})
}
