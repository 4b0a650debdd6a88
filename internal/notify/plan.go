package notify

import (
	"context"
	"log/slog"
)

// Notification 一条待发布的通知
type Notification struct {
	Channel Channel
	Event   string
	Payload any
}

// Plan 通知计划，每次状态变更构建一次后统一分发
type Plan struct {
	items []Notification
}

// Add 追加一条通知
func (p *Plan) Add(ch Channel, event string, payload any) *Plan {
	p.items = append(p.items, Notification{Channel: ch, Event: event, Payload: payload})
	return p
}

// Len 通知数量
func (p *Plan) Len() int {
	return len(p.items)
}

// Items 通知列表副本
func (p *Plan) Items() []Notification {
	out := make([]Notification, len(p.items))
	copy(out, p.items)
	return out
}

// Dispatch 按顺序发布全部通知
// 发布失败只记录日志，不回滚已提交的状态；返回成功发布的数量
func (p *Plan) Dispatch(ctx context.Context, bus Bus, logger *slog.Logger) int {
	if len(p.items) == 0 {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	delivered := 0
	for _, n := range p.items {
		if err := bus.Publish(ctx, n.Channel, n.Event, n.Payload); err != nil {
			logger.Warn("Failed to publish notification",
				"channel", n.Channel.String(),
				"event", n.Event,
				"error", err)
			continue
		}
		delivered++
	}

	if f, ok := bus.(Flusher); ok && delivered > 0 {
		if err := f.Flush(ctx); err != nil {
			logger.Warn("Failed to flush notification bus", "error", err)
		}
	}

	logger.Debug("Notification plan dispatched", "total", len(p.items), "delivered", delivered)
	return delivered
}
