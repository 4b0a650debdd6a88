package notify

import (
	"context"
	"sync"
)

// Recorder 内存通知总线，记录全部发布，供测试和本地调试使用
type Recorder struct {
	mu        sync.Mutex
	published []Notification
	// FailFor 返回非 nil 时该次发布失败
	FailFor func(ch Channel, event string) error
}

// Publish 记录一次发布
func (r *Recorder) Publish(_ context.Context, ch Channel, event string, payload any) error {
	if r.FailFor != nil {
		if err := r.FailFor(ch, event); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, Notification{Channel: ch, Event: event, Payload: payload})
	return nil
}

// Published 已发布通知的副本
func (r *Recorder) Published() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.published))
	copy(out, r.published)
	return out
}

// ByEvent 按事件名过滤
func (r *Recorder) ByEvent(event string) []Notification {
	var out []Notification
	for _, n := range r.Published() {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = nil
}
