package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/entitlement-engine/internal/notify"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// These tests need a live server: TEST_REDIS_ADDR=localhost:6379.
func testClient(t *testing.T) Config {
	t.Helper()
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	return Config{Addr: addr, DB: 15, DialTimeout: 2 * time.Second}
}

func TestReplayCache(t *testing.T) {
	rdb, err := NewClient(logger.Nop(), testClient(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer rdb.Close()
	ctx := context.Background()

	cache := NewReplayCache(logger.Nop(), rdb, time.Minute)
	ref := "cs_" + uuid.NewString()
	if _, ok, err := cache.Seen(ctx, "stripe", ref); err != nil || ok {
		t.Fatalf("Seen before Remember: ok=%v err=%v", ok, err)
	}
	if err := cache.Remember(ctx, "stripe", ref, "receipts/x.json"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	got, ok, err := cache.Seen(ctx, "stripe", ref)
	if err != nil || !ok || got != "receipts/x.json" {
		t.Fatalf("Seen after Remember: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestNotifyQueue(t *testing.T) {
	rdb, err := NewClient(logger.Nop(), testClient(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer rdb.Close()
	ctx := context.Background()

	q := NewNotifyQueue(logger.Nop(), rdb, "test:notify:"+uuid.NewString())
	defer rdb.Del(ctx, q.key, q.deadKey)

	want := notify.Task{ID: uuid.New(), RecipientID: uuid.New(), Title: "Paiement reçu"}
	if err := q.Enqueue(ctx, want); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title {
		t.Fatalf("Dequeue: want=%+v got=%+v", want, got)
	}

	if err := q.DeadLetter(ctx, got); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}
	if n := rdb.LLen(ctx, q.deadKey).Val(); n != 1 {
		t.Fatalf("dead list length: want=1 got=%d", n)
	}

	cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(cctx); err == nil {
		t.Fatalf("Dequeue on empty queue should return when ctx expires")
	}
}

func TestNewClientRequiresAddr(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error for blank addr")
	}
}
