package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

// TriggerQueue 触发事件的 Redis 列表队列。编辑器侧 LPUSH 投递，
// 外部执行引擎 BRPOP 消费；本服务只实现投递端。
type TriggerQueue struct {
	redis *redis.Client
	key   string
}

// NewTriggerQueue 创建队列投递端
func NewTriggerQueue(rdb *redis.Client, key string) *TriggerQueue {
	if key == "" {
		key = "automations:triggers"
	}
	return &TriggerQueue{redis: rdb, key: key}
}

// Enqueue 投递一条触发事件
func (q *TriggerQueue) Enqueue(ctx context.Context, evt *port.TriggerEvent) error {
	if evt.EnqueuedAt.IsZero() {
		evt.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode trigger event: %w", err)
	}
	if err := q.redis.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue trigger event: %w", err)
	}
	applog.Info("[Trigger/Queue] Event enqueued",
		"automation_id", evt.AutomationID,
		"kind", string(evt.Kind),
		"test", evt.Test,
	)
	return nil
}
