package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 通知类型，前端按 kind 区分处理。
const (
	NotifyPreview      = "preview"
	NotifyPDF          = "pdf"
	NotifyConfirmation = "confirmation"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type NotifyMessage struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	InvitationID  uint   `json:"invitation_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message,omitempty"`
	URL           string `json:"url,omitempty"`
	Guest         string `json:"guest,omitempty"`
}

// Publisher 是通知所需的 redis 客户端子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NotifyChannel 返回邀请函的 Pub/Sub 频道名。
func NotifyChannel(invitationID uint) string {
	return fmt.Sprintf("invitation_notify:%d", invitationID)
}

// Publish 将消息序列化后发布到邀请函频道。
func Publish(ctx context.Context, p Publisher, msg NotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(msg.InvitationID)
	if err := p.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
