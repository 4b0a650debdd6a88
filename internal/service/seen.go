package service

import (
	"context"
	"log/slog"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/notify"
	appErrors "sudooom.im.chat/pkg/errors"
)

// SeenResult MarkSeen 的结果
// Message 为空表示会话没有消息，此时 Conversation 原样返回
type SeenResult struct {
	Conversation *model.Conversation `json:"conversation,omitempty"`
	Message      *model.Message      `json:"message,omitempty"`
	// Changed 本次调用是否产生了新的已读记录
	Changed bool `json:"changed"`
	// Notified 成功发布的通知数量
	Notified int `json:"notified"`
}

// Body 对外返回的数据：有消息时返回消息，否则返回会话
func (r *SeenResult) Body() any {
	if r.Message != nil {
		return r.Message
	}
	return r.Conversation
}

// SeenTracker 已读回执服务
type SeenTracker struct {
	store  ConversationStore
	bus    notify.Bus
	logger *slog.Logger
}

// NewSeenTracker 创建已读回执服务
func NewSeenTracker(store ConversationStore, bus notify.Bus) *SeenTracker {
	return &SeenTracker{
		store:  store,
		bus:    bus,
		logger: slog.Default(),
	}
}

// MarkSeen 将会话最后一条消息标记为 actor 已读
//
// 只有首次已读才写入并通知：个人频道收到 conversation:update 用于多端同步，
// 会话频道收到 message:update 用于其他成员刷新已读标记。
// 重复调用不写入也不通知。
func (s *SeenTracker) MarkSeen(ctx context.Context, conversationID string, actor model.Identity) (*SeenResult, error) {
	if !actor.Resolved() || actor.Email == "" {
		return nil, appErrors.ErrUnauthorized
	}

	// 开始后不可取消
	ctx = context.WithoutCancel(ctx)

	conv, err := s.store.LoadConversationWithMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("Failed to load conversation", "conversationId", conversationID, "error", err)
		return nil, translateStoreError(err)
	}

	// 非成员按会话不存在处理
	if !conv.HasMember(actor.UserID) {
		s.logger.Warn("Mark seen by non-member",
			"conversationId", conversationID,
			"userId", actor.UserID)
		return nil, appErrors.ErrConversationNotFound
	}

	last := conv.LastMessage()
	if last == nil {
		return &SeenResult{Conversation: conv}, nil
	}

	if last.SeenBy(actor.UserID) {
		s.logger.Debug("Message already seen",
			"conversationId", conversationID,
			"messageId", last.ID,
			"userId", actor.UserID)
		return &SeenResult{Conversation: conv, Message: last}, nil
	}

	updated, added, err := s.store.AppendSeenBy(ctx, last.ID, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to update seen",
			"conversationId", conversationID,
			"messageId", last.ID,
			"userId", actor.UserID,
			"error", err)
		return nil, translateStoreError(err)
	}

	// 并发请求中只有真正写入的一方负责通知
	newlySeen := added
	result := &SeenResult{Conversation: conv, Message: updated, Changed: newlySeen}
	if !newlySeen {
		return result, nil
	}

	plan := s.seenPlan(conversationID, actor, updated)
	result.Notified = plan.Dispatch(ctx, s.bus, s.logger)

	s.logger.Info("Conversation marked seen",
		"conversationId", conversationID,
		"messageId", updated.ID,
		"userId", actor.UserID,
		"planned", plan.Len(),
		"notified", result.Notified)
	return result, nil
}

func (s *SeenTracker) seenPlan(conversationID string, actor model.Identity, msg *model.Message) *notify.Plan {
	plan := &notify.Plan{}
	plan.Add(notify.UserChannel(actor.Email), model.EventConversationUpdate, model.ConversationUpdate{
		ID:       conversationID,
		Messages: []model.Message{*msg},
	})
	plan.Add(notify.ConversationChannel(conversationID), model.EventMessageUpdate, msg)
	return plan
}
