package notify

import "context"

// Bus 通知总线
// 同一频道内保证发布顺序（FIFO），跨频道不保证
type Bus interface {
	Publish(ctx context.Context, ch Channel, event string, payload any) error
}

// Flusher 可选接口，发布后等待数据真正写出
type Flusher interface {
	Flush(ctx context.Context) error
}
