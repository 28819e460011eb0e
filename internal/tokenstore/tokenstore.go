// Package tokenstore keeps the console's credentials (auth token, user
// object) in a key/value store.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"farm-console/internal/logging"
)

var ErrNotFound = errors.New("key not found")

// Store is the key/value contract shared by the memory and redis stores.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// TokenSource reads one key of a Store as the bearer token.
type TokenSource struct {
	store   Store
	key     string
	logger  *logging.Logger
	timeout time.Duration
}

func NewTokenSource(store Store, key string, logger *logging.Logger) *TokenSource {
	return &TokenSource{store: store, key: key, logger: logger, timeout: 2 * time.Second}
}

// GetToken returns the stored token, or "" when absent or unreadable.
func (t *TokenSource) GetToken() string {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	token, err := t.store.Get(ctx, t.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.logger.Errorf("Failed to read token %s: %v", t.key, err)
		}
		return ""
	}
	return token
}
