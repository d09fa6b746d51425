package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/quorumgate/internal/port/cache/cachetest"
)

func TestCompliance(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	cachetest.Run(t, c)
}

func TestSetGetDelete(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "agent:task", []byte(`{"status":"APPROVED"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := c.Get(ctx, "agent:task")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"status":"APPROVED"}` {
		t.Fatalf("unexpected value %q", got)
	}

	_ = c.Delete(ctx, "agent:task")
	if _, ok, _ := c.Get(ctx, "agent:task"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestClear(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("expected miss after clear")
	}
}

func TestNewRejectsNonPositiveCost(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero cost")
	}
}
