package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/jwt"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
	appErrors "sudooom.im.chat/pkg/errors"
	"sudooom.im.chat/pkg/response"
)

const identityKey = "identity"

// SessionStore 登录会话查询
type SessionStore interface {
	GetSession(ctx context.Context, accessToken string) (*repository.SessionInfo, error)
}

// TokenAuth 认证中间件
// 先校验 JWT 签名与有效期，再确认 Redis 中会话未被吊销；
// 会话中的邮箱作为调用方的联系地址
func TokenAuth(jwtService *jwt.Service, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithError(c, appErrors.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.AbortWithError(c, appErrors.ErrTokenExpired)
			} else {
				response.AbortWithError(c, appErrors.ErrTokenInvalid)
			}
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), token)
		if err != nil {
			slog.Error("Failed to load session", "userId", claims.UserID, "error", err)
			response.AbortWithError(c, appErrors.ErrServerError.Wrap(err))
			return
		}
		if session == nil || session.UserID != claims.UserID {
			response.AbortWithError(c, appErrors.ErrTokenInvalid)
			return
		}

		email := session.Email
		if email == "" {
			email = claims.Email
		}
		SetCurrentUser(c, model.Identity{UserID: claims.UserID, Email: email})
		c.Next()
	}
}

// SetCurrentUser 写入已解析的身份
func SetCurrentUser(c *gin.Context, id model.Identity) {
	c.Set(identityKey, id)
}

// CurrentUser 获取当前请求已解析的身份
func CurrentUser(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return model.Identity{}, false
	}
	id, ok := v.(model.Identity)
	if !ok || !id.Resolved() {
		return model.Identity{}, false
	}
	return id, true
}

// extractToken 从 Authorization header 提取 token
func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
