package cache

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRedis creates a Redis cache backed by a miniredis server.
func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := RedisConfig{
		Address:    mr.Addr(),
		Prefix:     "console:",
		DefaultTTL: time.Hour,
	}
	return NewRedisWithClient(cfg, client, testLogger()), mr
}

func TestRedisSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	if err := c.Set(ctx, "mykey", []byte("myvalue"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, ok, err := c.Get(ctx, "mykey")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(val, []byte("myvalue")) {
		t.Errorf("expected myvalue, got %q", val)
	}

	if err := c.Delete(ctx, "mykey"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok, err := c.Get(ctx, "mykey"); err != nil || ok {
		t.Errorf("expected clean miss after delete, got ok=%t err=%v", ok, err)
	}
}

func TestRedisMissIsNotAnError(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedis(t)

	val, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if ok || val != nil {
		t.Errorf("expected miss, got ok=%t val=%q", ok, val)
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	if err := c.Set(ctx, "hello", []byte("world"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	found := false
	for _, k := range mr.Keys() {
		if k == "console:hello" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected key %q in redis, got keys: %v", "console:hello", mr.Keys())
	}
}

func TestRedisDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	// TTL 0 falls back to the configured default (1 hour)
	if err := c.Set(ctx, "ttlkey", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("console:ttlkey"); ttl <= 0 {
		t.Errorf("expected positive TTL, got %v", ttl)
	}
}

func TestRedisExplicitTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t)

	if err := c.Set(ctx, "short", []byte("v"), 30*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ttl := mr.TTL("console:short")
	if ttl <= 0 {
		t.Errorf("expected positive TTL, got %v", ttl)
	}
	if ttl > time.Hour {
		t.Errorf("expected TTL <= 1h, got %v", ttl)
	}
}

func TestRedisNotStarted(t *testing.T) {
	ctx := context.Background()
	c := NewRedis(RedisConfig{Address: "localhost:6379"}, testLogger())

	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("expected error from Get when not started")
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Error("expected error from Set when not started")
	}
	if err := c.Delete(ctx, "k"); err == nil {
		t.Error("expected error from Delete when not started")
	}
}

func TestRedisStartStop(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c := NewRedis(RedisConfig{Address: mr.Addr(), Prefix: "console:"}, testLogger())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set after Start: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); err != nil || !ok {
		t.Fatalf("Get after Start: ok=%t err=%v", ok, err)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop on a stopped backend is a no-op
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestRedisStartUnreachable(t *testing.T) {
	c := NewRedis(RedisConfig{Address: "127.0.0.1:1"}, testLogger())
	if err := c.Start(context.Background()); err == nil {
		t.Error("expected ping failure for unreachable address")
	}
}
