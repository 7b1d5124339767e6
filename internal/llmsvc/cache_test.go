package llmsvc

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestCache_InProcessRoundTrip(t *testing.T) {
	c := NewCache("openai", "gpt-4", "")
	ctx := context.Background()
	messages := []Message{{Role: RoleUser, Content: "select all users"}}

	if _, ok := c.Get(ctx, messages); ok {
		t.Fatalf("Get() before Put should miss")
	}
	c.Put(ctx, messages, "SELECT * FROM users")

	got, ok := c.Get(ctx, messages)
	if !ok || got != "SELECT * FROM users" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}

func TestCache_RedisBackedRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	defer mr.Close()

	c := NewCache("anthropic", "claude", "redis://"+mr.Addr())
	ctx := context.Background()
	messages := []Message{{Role: RoleUser, Content: "count orders"}}

	c.Put(ctx, messages, "SELECT count(*) FROM orders")
	got, ok := c.Get(ctx, messages)
	if !ok || got != "SELECT count(*) FROM orders" {
		t.Errorf("Get() = %q, %v", got, ok)
	}
}
