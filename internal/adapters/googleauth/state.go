package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/voxlane/voice-platform/pkg/redis"
)

// StateTTL bounds how long a pending connect flow stays valid.
const StateTTL = 10 * time.Minute

// ErrStateInvalid is returned when a callback presents an unknown, expired
// or already-consumed state token.
var ErrStateInvalid = errors.New("oauth state invalid or expired")

// StateStore issues and redeems single-use CSRF state tokens for the connect
// flow. States live in Redis so any instance can redeem a state issued by
// another.
type StateStore struct {
	redis redis.RedisServiceInterface
}

// NewStateStore creates a new OAuth state store
func NewStateStore(redisService redis.RedisServiceInterface) *StateStore {
	return &StateStore{redis: redisService}
}

// Issue creates a state token bound to a user id.
func (s *StateStore) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	key := s.redis.GenerateKey(redis.OAUTH_STATE, state)
	if err := s.redis.SetValue(ctx, key, userID, StateTTL); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return state, nil
}

// Redeem consumes a state token and returns the bound user id. A state can
// be redeemed exactly once; replays and expired states fail with
// ErrStateInvalid.
func (s *StateStore) Redeem(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateInvalid
	}

	key := s.redis.GenerateKey(redis.OAUTH_STATE, state)
	userID, err := s.redis.GetDel(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotExist) {
			return "", ErrStateInvalid
		}
		return "", fmt.Errorf("failed to redeem state: %w", err)
	}
	if userID == "" {
		return "", ErrStateInvalid
	}

	return userID, nil
}
