package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/entitlement-engine/internal/notify"
	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

// NotifyQueue is a durable notify.Queue on two Redis lists.
type NotifyQueue struct {
	log       *logger.Logger
	rdb       goredis.UniversalClient
	key       string
	deadKey   string
	blockTime time.Duration
}

func NewNotifyQueue(log *logger.Logger, rdb goredis.UniversalClient, key string) *NotifyQueue {
	if key == "" {
		key = "notify:tasks"
	}
	return &NotifyQueue{
		log:       log.With("queue", "RedisNotifyQueue"),
		rdb:       rdb,
		key:       key,
		deadKey:   key + ":dead",
		blockTime: 2 * time.Second,
	}
}

func (q *NotifyQueue) Enqueue(ctx context.Context, t notify.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (q *NotifyQueue) Dequeue(ctx context.Context) (notify.Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return notify.Task{}, err
		}
		res, err := q.rdb.BRPop(ctx, q.blockTime, q.key).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return notify.Task{}, fmt.Errorf("redis brpop: %w", err)
		}
		if len(res) != 2 {
			continue
		}
		var t notify.Task
		if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
			q.log.Error("Dropping undecodable notification task", "error", err)
			continue
		}
		return t, nil
	}
}

func (q *NotifyQueue) DeadLetter(ctx context.Context, t notify.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.deadKey, raw).Err()
}
