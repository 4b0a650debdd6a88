package model

import (
	"time"

	"github.com/samber/lo"
)

// Message 消息实体
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Sender         *User     `json:"sender,omitempty"`
	Body           string    `json:"body,omitempty"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	SeenIDs        []string  `json:"seenIds"`
	Seen           []User    `json:"seen"`
}

// SeenBy 用户是否已读该消息
func (m *Message) SeenBy(userID string) bool {
	return lo.Contains(m.SeenIDs, userID)
}
