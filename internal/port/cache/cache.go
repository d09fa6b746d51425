// Package cache defines the port for the process-lifetime validation result cache.
package cache

import (
	"context"
	"time"
)

// Cache stores encoded validation results by key. Implementations must be safe
// for concurrent use since phase-2 agents write to it in parallel.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops the entries this process holds. Used by memory remediation.
	Clear(ctx context.Context) error
}
