package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sudooom.im.chat/pkg/snowflake"
)

// DefaultSubjectPrefix 默认通知 Subject 前缀
const DefaultSubjectPrefix = "im.notify"

// Envelope 下行通知信封，ID 供客户端去重
type Envelope struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Channel   Channel         `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// Conn NATS 连接中通知总线用到的部分，*nats.Conn 满足该接口
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSBus 基于 NATS 的通知总线
type NATSBus struct {
	conn         Conn
	prefix       string
	flushTimeout time.Duration
	ids          *snowflake.Node
	logger       *slog.Logger
}

// NewNATSBus 创建 NATS 通知总线
func NewNATSBus(conn Conn, prefix string, flushTimeout time.Duration, ids *snowflake.Node) *NATSBus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	return &NATSBus{
		conn:         conn,
		prefix:       prefix,
		flushTimeout: flushTimeout,
		ids:          ids,
		logger:       slog.Default(),
	}
}

// Publish 发布通知
func (b *NATSBus) Publish(ctx context.Context, ch Channel, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		ID:        b.ids.Generate().String(),
		Event:     event,
		Channel:   ch,
		Payload:   body,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := ch.Subject(b.prefix)
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	b.logger.Debug("Published notification", "subject", subject, "event", event, "id", env.ID)
	return nil
}

// Flush 等待已发布的数据写到服务端
func (b *NATSBus) Flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.flushTimeout)
	defer cancel()
	return b.conn.FlushWithContext(ctx)
}
