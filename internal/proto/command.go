package proto

import "encoding/json"

// 上行指令类型
const (
	CommandConversationSeen   = "conversation.seen"
	CommandConversationRemove = "conversation.remove"
)

// UpstreamCommand 接入层转发的会话指令
// 身份由接入层在连接认证时解析，这里原样携带
type UpstreamCommand struct {
	Type           string `json:"type" validate:"required,oneof=conversation.seen conversation.remove"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	UserID         string `json:"user_id"`
	Email          string `json:"email" validate:"omitempty,email"`
	AccessNodeID   string `json:"access_node_id,omitempty"`
	ReqID          string `json:"req_id,omitempty"`
}

// CommandReply 指令处理结果，仅在请求携带 reply subject 时返回
type CommandReply struct {
	ReqID   string          `json:"req_id,omitempty"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}
