package handler

import (
	"context"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/proto"
)

// CommandHandler 处理接入层经 NATS 转发的会话指令
type CommandHandler struct {
	seen      SeenMarker
	lifecycle ConversationRemover
}

// NewCommandHandler 创建指令处理器
func NewCommandHandler(seen SeenMarker, lifecycle ConversationRemover) *CommandHandler {
	return &CommandHandler{
		seen:      seen,
		lifecycle: lifecycle,
	}
}

// HandleConversationSeen 处理已读回执指令
func (h *CommandHandler) HandleConversationSeen(ctx context.Context, cmd *proto.UpstreamCommand) (any, error) {
	result, err := h.seen.MarkSeen(context.WithoutCancel(ctx), cmd.ConversationID, commandIdentity(cmd))
	if err != nil {
		return nil, err
	}
	return result.Body(), nil
}

// HandleConversationRemove 处理删除会话指令
func (h *CommandHandler) HandleConversationRemove(ctx context.Context, cmd *proto.UpstreamCommand) (any, error) {
	return h.lifecycle.DeleteConversation(context.WithoutCancel(ctx), cmd.ConversationID, commandIdentity(cmd))
}

func commandIdentity(cmd *proto.UpstreamCommand) model.Identity {
	return model.Identity{UserID: cmd.UserID, Email: cmd.Email}
}
