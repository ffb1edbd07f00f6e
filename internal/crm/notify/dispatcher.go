package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/creative780/crm-backend/internal/crm/sse"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 事件类型
const (
	EventApprovalRequested = "approval.requested"
	EventDesignApproved    = "design.approved"
	EventDesignRejected    = "design.rejected"
)

// Channel Redis 发布通道，投递由外部 worker 消费重试
const Channel = "crm:notifications"

// Event 工作流通知事件
type Event struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderCode   string    `json:"order_code"`
	ApprovalID  string    `json:"approval_id"`
	Recipient   string    `json:"recipient"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Dispatcher 通知分发接口（尽力而为，失败不影响触发它的业务操作）
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// RedisDispatcher 把事件发布到 Redis 通道，并推送到 SSE 给在线用户
type RedisDispatcher struct {
	rdb    *redis.Client
	hub    *sse.Hub
	logger *zap.Logger
}

// NewRedisDispatcher 创建 Redis 通知分发器，rdb 可为 nil（仅 SSE + 日志）
func NewRedisDispatcher(rdb *redis.Client, hub *sse.Hub, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb, hub: hub, logger: logger}
}

// Dispatch 分发事件
func (d *RedisDispatcher) Dispatch(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("marshal notification event", zap.Error(err))
		return
	}

	if d.rdb != nil {
		if err := d.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
			d.logger.Warn("publish notification event",
				zap.String("type", event.Type),
				zap.String("approval_id", event.ApprovalID),
				zap.Error(err),
			)
		}
	}

	if d.hub != nil && event.Recipient != "" {
		d.hub.SendToUser(event.Recipient, sse.Event{
			EventType: event.Type,
			Data:      string(payload),
		})
	}

	d.logger.Info("notification dispatched",
		zap.String("type", event.Type),
		zap.String("order_code", event.OrderCode),
		zap.String("approval_id", event.ApprovalID),
		zap.String("recipient", event.Recipient),
	)
}
