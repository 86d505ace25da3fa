package googleauth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/pkg/redis"
)

// fakeRedis is an in-memory stand-in for the Redis service.
type fakeRedis struct {
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s", keyType, identifier)
}

func (f *fakeRedis) GetValue(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	return v, nil
}

func (f *fakeRedis) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeRedis) DelValue(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	delete(f.values, key)
	return v, nil
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	return nil
}

func TestStateStore_IssueAndRedeem(t *testing.T) {
	store := NewStateStore(newFakeRedis())
	ctx := context.Background()

	state, err := store.Issue(ctx, "user-123")
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	userID, err := store.Redeem(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestStateStore_RedeemIsSingleUse(t *testing.T) {
	store := NewStateStore(newFakeRedis())
	ctx := context.Background()

	state, err := store.Issue(ctx, "user-123")
	require.NoError(t, err)

	_, err = store.Redeem(ctx, state)
	require.NoError(t, err)

	_, err = store.Redeem(ctx, state)
	assert.ErrorIs(t, err, ErrStateInvalid)
}

func TestStateStore_RedeemUnknownState(t *testing.T) {
	store := NewStateStore(newFakeRedis())

	_, err := store.Redeem(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrStateInvalid)

	_, err = store.Redeem(context.Background(), "")
	assert.ErrorIs(t, err, ErrStateInvalid)
}

func TestStateStore_StatesAreUnique(t *testing.T) {
	store := NewStateStore(newFakeRedis())
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		state, err := store.Issue(ctx, "user-123")
		require.NoError(t, err)
		assert.False(t, seen[state])
		seen[state] = true
	}
}
