package service

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
)

// fakeStore 内存会话存储，语义与 Postgres 实现一致
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	users         map[string]model.User

	LoadErr   error
	AppendErr error
	DeleteErr error

	// BeforeAppend / BeforeDelete 在写入前调用，用于模拟并发的成员变更
	BeforeAppend func()
	BeforeDelete func()

	appendCalls int
	deleteCalls int
}

func newFakeStore(users ...model.User) *fakeStore {
	s := &fakeStore{
		conversations: map[string]*model.Conversation{},
		users:         map[string]model.User{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) addConversation(id string, memberIDs []string, messages ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &model.Conversation{ID: id, UserIDs: append([]string(nil), memberIDs...)}
	for _, m := range messages {
		m.ConversationID = id
		if m.SeenIDs == nil {
			m.SeenIDs = []string{}
		}
		conv.Messages = append(conv.Messages, m)
	}
	s.conversations[id] = conv
}

func (s *fakeStore) removeMember(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[conversationID]
	conv.UserIDs = lo.Without(conv.UserIDs, userID)
}

// snapshot 深拷贝，模拟从数据库读出的独立对象
func (s *fakeStore) snapshot(conv *model.Conversation) *model.Conversation {
	out := &model.Conversation{ID: conv.ID, UserIDs: append([]string{}, conv.UserIDs...)}
	for _, id := range conv.UserIDs {
		out.Users = append(out.Users, s.users[id])
	}
	for _, m := range conv.Messages {
		out.Messages = append(out.Messages, s.copyMessage(m))
	}
	return out
}

func (s *fakeStore) copyMessage(m model.Message) model.Message {
	m.SeenIDs = append([]string{}, m.SeenIDs...)
	m.Seen = nil
	for _, id := range m.SeenIDs {
		m.Seen = append(m.Seen, s.users[id])
	}
	return m
}

func (s *fakeStore) LoadConversationWithMessages(_ context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return s.snapshot(conv), nil
}

func (s *fakeStore) AppendSeenBy(_ context.Context, messageID, userID string) (*model.Message, bool, error) {
	if s.BeforeAppend != nil {
		s.BeforeAppend()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	if s.AppendErr != nil {
		return nil, false, s.AppendErr
	}
	for _, conv := range s.conversations {
		for i := range conv.Messages {
			m := &conv.Messages[i]
			if m.ID != messageID {
				continue
			}
			if lo.Contains(m.SeenIDs, userID) {
				out := s.copyMessage(*m)
				return &out, false, nil
			}
			if !lo.Contains(conv.UserIDs, userID) {
				return nil, false, repository.ErrNotMember
			}
			m.SeenIDs = append(m.SeenIDs, userID)
			out := s.copyMessage(*m)
			return &out, true, nil
		}
	}
	return nil, false, repository.ErrMessageNotFound
}

func (s *fakeStore) DeleteIfMember(_ context.Context, conversationID, userID string) (int64, error) {
	if s.BeforeDelete != nil {
		s.BeforeDelete()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	conv, ok := s.conversations[conversationID]
	if !ok || !lo.Contains(conv.UserIDs, userID) {
		return 0, nil
	}
	delete(s.conversations, conversationID)
	return 1, nil
}

func (s *fakeStore) seenIDs(conversationID, messageID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.conversations[conversationID].Messages {
		if m.ID == messageID {
			return append([]string{}, m.SeenIDs...)
		}
	}
	return nil
}

func (s *fakeStore) exists(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conversations[conversationID]
	return ok
}
