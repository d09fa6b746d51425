// Package cachetest holds the behaviour every cache.Cache implementation must share.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/quorumgate/internal/port/cache"
)

// Run exercises c against the cache port contract. Keys are shaped like
// validation result keys.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "validation:agent-a:task-1", []byte(`{"status":"APPROVED"}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "validation:agent-a:task-1")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"status":"APPROVED"}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "validation:nobody:none")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "validation:agent-a:task-2", []byte("v"), time.Minute)
		if err := c.Delete(ctx, "validation:agent-a:task-2"); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := c.Get(ctx, "validation:agent-a:task-2"); found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		if err := c.Delete(ctx, "validation:never:existed"); err != nil {
			t.Fatalf("Delete of unknown key: %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "validation:agent-b:task-1", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "validation:agent-b:task-1", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "validation:agent-b:task-1")
		if err != nil || !found {
			t.Fatalf("expected hit, found=%v err=%v", found, err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		_ = c.Set(ctx, "validation:agent-c:task-1", []byte("v"), time.Minute)
		if err := c.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := c.Get(ctx, "validation:agent-c:task-1"); found {
			t.Fatal("expected miss after Clear")
		}
	})
}
