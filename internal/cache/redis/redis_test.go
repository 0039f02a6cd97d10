package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// testClient connects to FLIPPIDY_TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("FLIPPIDY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FLIPPIDY_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKVStore(t *testing.T) {
	c := testClient(t)
	s := NewKVStore(c, "flippidy:test:"+uuid.NewString()+":")
	ctx := context.Background()

	if _, err := s.Load(ctx, "statistics.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("load missing err = %v", err)
	}
	if err := s.Save(ctx, "statistics.json", []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "statistics.json")
	if err != nil || string(got) != "{}" {
		t.Fatalf("load = %q, %v", got, err)
	}
}

func TestLock(t *testing.T) {
	c := testClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()
	key := "flippidy:test:lock:" + uuid.NewString()

	l, err := lm.Acquire(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := lm.Acquire(ctx, key, time.Second); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire err = %v, want ErrLockHeld", err)
	}
	if err := l.Refresh(ctx, time.Second); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := l.Refresh(ctx, time.Second); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("refresh after release err = %v, want ErrLockHeld", err)
	}
}

func TestEventBus(t *testing.T) {
	c := testClient(t)
	bus := NewEventBus(c, "flippidy:test:events:"+uuid.NewString(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	ev := domain.Event{Kind: domain.EventFlipCompleted, Profit: 42, At: time.Now().UTC()}
	if err := bus.PublishEvent(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case raw := <-ch:
		var got domain.Event
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Kind != ev.Kind || got.Profit != 42 {
			t.Fatalf("event = %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}
