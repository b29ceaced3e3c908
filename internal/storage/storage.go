package storage

import (
	"context"
	"errors"
)

// Fixed keys the storefront reads and writes. They mirror the browser
// storage keys the web client used, so a migrated session stays readable.
const (
	KeyCart           = "cart"
	KeyCheckoutNumber = "checkoutNumber"
	KeyPendingOrder   = "pendingOrder"
	KeyToken          = "token"
	KeyUserID         = "userId"
)

// Store is the durable key-value port backing cart contents, the remembered
// checkout number and the auth session. Implementations must treat a corrupt
// or missing entry as absent, never as fatal.
// Consumers define this interface, not the backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("storage: key not found")
