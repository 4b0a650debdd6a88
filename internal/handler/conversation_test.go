package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.chat/internal/middleware"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/service"
	appErrors "sudooom.im.chat/pkg/errors"
)

// MockSeenMarker 模拟已读服务
type MockSeenMarker struct {
	MarkSeenFunc func(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error)
}

func (m *MockSeenMarker) MarkSeen(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error) {
	return m.MarkSeenFunc(ctx, conversationID, actor)
}

// MockConversationRemover 模拟删除服务
type MockConversationRemover struct {
	DeleteFunc func(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error)
}

func (m *MockConversationRemover) DeleteConversation(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error) {
	return m.DeleteFunc(ctx, conversationID, actor)
}

// APIResponse 用于解析响应体
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var testActor = model.Identity{UserID: "user-b", Email: "b@example.com"}

// setupTestRouter 注入固定身份，代替认证中间件
func setupTestRouter(h *ConversationHandler, actor *model.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			middleware.SetCurrentUser(c, *actor)
		}
		c.Next()
	})
	r.POST("/conversations/:conversationId/seen", h.MarkSeen)
	r.DELETE("/conversations/:conversationId", h.DeleteConversation)
	return r
}

func perform(r *gin.Engine, method, path string) (*httptest.ResponseRecorder, APIResponse) {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestConversationHandler_MarkSeen_ReturnsMessage(t *testing.T) {
	convID := uuid.NewString()
	seen := &MockSeenMarker{
		MarkSeenFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error) {
			assert.Equal(t, convID, conversationID)
			assert.Equal(t, testActor, actor)
			return &service.SeenResult{
				Conversation: &model.Conversation{ID: convID},
				Message:      &model.Message{ID: "m1", ConversationID: convID, SeenIDs: []string{"user-b"}},
				Changed:      true,
			}, nil
		},
	}
	r := setupTestRouter(NewConversationHandler(seen, nil), &testActor)

	w, resp := perform(r, http.MethodPost, "/conversations/"+convID+"/seen")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, appErrors.CodeSuccess, resp.Code)
	var msg model.Message
	require.NoError(t, json.Unmarshal(resp.Data, &msg))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, []string{"user-b"}, msg.SeenIDs)
}

func TestConversationHandler_MarkSeen_EmptyConversationReturnsConversation(t *testing.T) {
	convID := uuid.NewString()
	seen := &MockSeenMarker{
		MarkSeenFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error) {
			return &service.SeenResult{Conversation: &model.Conversation{ID: convID, Messages: []model.Message{}}}, nil
		},
	}
	r := setupTestRouter(NewConversationHandler(seen, nil), &testActor)

	w, resp := perform(r, http.MethodPost, "/conversations/"+convID+"/seen")

	assert.Equal(t, http.StatusOK, w.Code)
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(resp.Data, &conv))
	assert.Equal(t, convID, conv.ID)
}

func TestConversationHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"unauthorized", appErrors.ErrUnauthorized, http.StatusUnauthorized, appErrors.CodeUnauthorized},
		{"not found", appErrors.ErrConversationNotFound.Wrap(errors.New("no rows")), http.StatusNotFound, appErrors.CodeConversationNotFound},
		{"internal", appErrors.ErrDBError.Wrap(errors.New("timeout")), http.StatusInternalServerError, appErrors.CodeDBError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := &MockSeenMarker{
				MarkSeenFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error) {
					return nil, tt.err
				},
			}
			remover := &MockConversationRemover{
				DeleteFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error) {
					return nil, tt.err
				},
			}
			r := setupTestRouter(NewConversationHandler(seen, remover), &testActor)
			path := "/conversations/" + uuid.NewString()

			w, resp := perform(r, http.MethodPost, path+"/seen")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "null", string(resp.Data))

			w, resp = perform(r, http.MethodDelete, path)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestConversationHandler_InvalidID(t *testing.T) {
	called := false
	seen := &MockSeenMarker{
		MarkSeenFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.SeenResult, error) {
			called = true
			return nil, nil
		},
	}
	r := setupTestRouter(NewConversationHandler(seen, nil), &testActor)

	w, resp := perform(r, http.MethodPost, "/conversations/not-a-uuid/seen")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.CodeInvalidParams, resp.Code)
	assert.False(t, called)
}

func TestConversationHandler_MissingIdentityPassesEmptyActor(t *testing.T) {
	remover := &MockConversationRemover{
		DeleteFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error) {
			assert.False(t, actor.Resolved())
			return nil, appErrors.ErrUnauthorized
		},
	}
	r := setupTestRouter(NewConversationHandler(nil, remover), nil)

	w, _ := perform(r, http.MethodDelete, "/conversations/"+uuid.NewString())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConversationHandler_Delete(t *testing.T) {
	convID := uuid.NewString()
	remover := &MockConversationRemover{
		DeleteFunc: func(ctx context.Context, conversationID string, actor model.Identity) (*service.DeleteResult, error) {
			assert.Equal(t, convID, conversationID)
			assert.NoError(t, ctx.Err())
			return &service.DeleteResult{Count: 1, Notified: 2}, nil
		},
	}
	r := setupTestRouter(NewConversationHandler(nil, remover), &testActor)

	w, resp := perform(r, http.MethodDelete, "/conversations/"+convID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1}`, string(resp.Data))
}
