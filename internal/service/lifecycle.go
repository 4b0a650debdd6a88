package service

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/notify"
	appErrors "sudooom.im.chat/pkg/errors"
)

// DeleteResult 删除结果，Count 为 0 表示调用者不是成员，删除未生效
type DeleteResult struct {
	Count    int64 `json:"count"`
	Notified int   `json:"-"`
}

// ConversationLifecycle 会话生命周期服务
type ConversationLifecycle struct {
	store  ConversationStore
	bus    notify.Bus
	logger *slog.Logger
}

// NewConversationLifecycle 创建会话生命周期服务
func NewConversationLifecycle(store ConversationStore, bus notify.Bus) *ConversationLifecycle {
	return &ConversationLifecycle{
		store:  store,
		bus:    bus,
		logger: slog.Default(),
	}
}

// DeleteConversation 删除会话
//
// 权限由存储层的条件删除保证；删除生效后按删除前的成员快照
// 向每位成员的个人频道发送 conversation:remove。
func (s *ConversationLifecycle) DeleteConversation(ctx context.Context, conversationID string, actor model.Identity) (*DeleteResult, error) {
	if !actor.Resolved() {
		return nil, appErrors.ErrUnauthorized
	}

	ctx = context.WithoutCancel(ctx)

	snapshot, err := s.store.LoadConversationWithMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("Failed to load conversation", "conversationId", conversationID, "error", err)
		return nil, translateStoreError(err)
	}

	count, err := s.store.DeleteIfMember(ctx, conversationID, actor.UserID)
	if err != nil {
		s.logger.Error("Failed to delete conversation",
			"conversationId", conversationID,
			"userId", actor.UserID,
			"error", err)
		return nil, translateStoreError(err)
	}

	result := &DeleteResult{Count: count}
	if count == 0 {
		s.logger.Warn("Conversation delete had no effect",
			"conversationId", conversationID,
			"userId", actor.UserID)
		return result, nil
	}

	plan := s.removalPlan(snapshot)
	result.Notified = plan.Dispatch(ctx, s.bus, s.logger)

	s.logger.Info("Conversation deleted",
		"conversationId", conversationID,
		"userId", actor.UserID,
		"members", plan.Len(),
		"notified", result.Notified)
	return result, nil
}

func (s *ConversationLifecycle) removalPlan(snapshot *model.Conversation) *notify.Plan {
	plan := &notify.Plan{}
	members := lo.UniqBy(lo.Filter(snapshot.Users, func(u model.User, _ int) bool {
		if u.Email == "" {
			s.logger.Warn("Member has no contact address", "conversationId", snapshot.ID, "userId", u.ID)
			return false
		}
		return true
	}), func(u model.User) string { return u.ID })

	// 移除通知只携带会话与成员，不带消息历史
	removed := *snapshot
	removed.Messages = []model.Message{}
	for _, u := range members {
		plan.Add(notify.UserChannel(u.Email), model.EventConversationRemove, &removed)
	}
	return plan
}
