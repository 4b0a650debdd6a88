package model

// 通知事件名称
const (
	EventConversationUpdate = "conversation:update"
	EventMessageUpdate      = "message:update"
	EventConversationRemove = "conversation:remove"
)

// ConversationUpdate conversation:update 事件负载
// 只携带发生变化的消息，客户端按 ID 合并
type ConversationUpdate struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}
