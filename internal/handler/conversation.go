package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/service"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/response"
)

// SeenMarker 已读回执
type SeenMarker interface {
	MarkSeen(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error)
}

// ConversationRemover 会话删除
type ConversationRemover interface {
	DeleteConversation(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error)
}

// ConversationHandler 会话处理器
type ConversationHandler struct {
	seen      SeenMarker
	lifecycle ConversationRemover
	logger    *slog.Logger
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(seen SeenMarker, lifecycle ConversationRemover) *ConversationHandler {
	return &ConversationHandler{
		seen:      seen,
		lifecycle: lifecycle,
		logger:    slog.Default(),
	}
}

// MarkSeen 标记会话已读
// POST /api/v1/conversations/:conversationId/seen
func (h *ConversationHandler) MarkSeen(c *gin.Context) {
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	actor, _ := middleware.CurrentUser(c)

	result, err := h.seen.MarkSeen(context.WithoutCancel(c.Request.Context()), conversationID, actor)
	if err != nil {
		h.logger.Warn("Mark seen failed", "conversationId", conversationID, "userId", actor.UserID, "error", err)
		response.Fail(c, err)
		return
	}

	response.Success(c, result.Body())
}

// DeleteConversation 删除会话
// DELETE /api/v1/conversations/:conversationId
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	conversationID, ok := conversationParam(c)
	if !ok {
		return
	}
	actor, _ := middleware.CurrentUser(c)

	result, err := h.lifecycle.DeleteConversation(context.WithoutCancel(c.Request.Context()), conversationID, actor)
	if err != nil {
		h.logger.Warn("Delete conversation failed", "conversationId", conversationID, "userId", actor.UserID, "error", err)
		response.Fail(c, err)
		return
	}

	response.Success(c, result)
}

// conversationParam 解析并校验路径中的会话 ID
func conversationParam(c *gin.Context) (string, bool) {
	raw := c.Param("conversationId")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Fail(c, appErrors.ErrInvalidParams.Wrap(err))
		return "", false
	}
	return id.String(), true
}
