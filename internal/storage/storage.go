package storage

import (
	"context"
	"errors"
)

// Storage is a get/set-by-key string store used to persist carts between sessions.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

var ErrKeyNotFound = errors.New("key not found")
