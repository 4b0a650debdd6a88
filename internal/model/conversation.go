package model

import (
	"time"

	"github.com/samber/lo"
)

// Conversation 会话，Messages 按发送顺序排列
type Conversation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	IsGroup       bool      `json:"isGroup"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UserIDs       []string  `json:"userIds"`
	Users         []User    `json:"users"`
	Messages      []Message `json:"messages"`
}

// HasMember 判断用户是否为会话成员
func (c *Conversation) HasMember(userID string) bool {
	return lo.Contains(c.UserIDs, userID)
}

// LastMessage 最后一条消息，没有消息时返回 nil
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}
