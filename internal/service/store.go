package service

import (
	"context"
	"errors"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
)

// ConversationStore 会话存储
type ConversationStore interface {
	// LoadConversationWithMessages 加载会话、成员、消息及每条消息的已读集合
	LoadConversationWithMessages(ctx context.Context, conversationID string) (*model.Conversation, error)
	// AppendSeenBy 将会话成员加入消息的已读集合，added 表示本次调用是否真正写入
	// 用户不是成员时返回 repository.ErrNotMember
	AppendSeenBy(ctx context.Context, messageID, userID string) (msg *model.Message, added bool, err error)
	// DeleteIfMember 仅当 userID 为成员时删除会话，返回影响行数
	DeleteIfMember(ctx context.Context, conversationID, userID string) (int64, error)
}

// translateStoreError 将存储层错误转换为业务错误
func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		return appErrors.ErrConversationNotFound.Wrap(err)
	case errors.Is(err, repository.ErrNotMember):
		return appErrors.ErrConversationNotFound.Wrap(err)
	case errors.Is(err, repository.ErrMessageNotFound):
		return appErrors.ErrMessageNotFound.Wrap(err)
	default:
		return appErrors.ErrDBError.Wrap(err)
	}
}
