package notify

import (
	"encoding/base64"
	"fmt"
)

// ChannelKind 频道类型
type ChannelKind string

const (
	ChannelUser         ChannelKind = "user"         // 个人频道，key 为联系地址
	ChannelConversation ChannelKind = "conversation" // 会话频道，key 为会话 ID
)

// Channel 通知频道
type Channel struct {
	Kind ChannelKind `json:"kind"`
	Key  string      `json:"key"`
}

// UserChannel 用户个人频道
func UserChannel(email string) Channel {
	return Channel{Kind: ChannelUser, Key: email}
}

// ConversationChannel 会话共享频道
func ConversationChannel(conversationID string) Channel {
	return Channel{Kind: ChannelConversation, Key: conversationID}
}

// String 日志用
func (c Channel) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.Key)
}

// Subject 构建 NATS Subject: {prefix}.{kind}.{base64url(key)}
// 邮箱中的 '.' 会被 NATS 当作分隔符，因此 key 统一编码
func (c Channel) Subject(prefix string) string {
	return prefix + "." + string(c.Kind) + "." + base64.RawURLEncoding.EncodeToString([]byte(c.Key))
}

// DecodeKey 从 Subject 的最后一段还原 key
func DecodeKey(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
