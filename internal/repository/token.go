package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// tokenInfoPrefix 会话信息前缀: token:info:{accessToken} -> SessionInfo JSON
	tokenInfoPrefix = "token:info:"
	// tokenUserPrefix 用户会话索引: user:token:{user_id}:{platform} -> accessToken
	tokenUserPrefix = "user:token:"
)

// SessionInfo 存储在 Redis 中的登录会话
// 由登录服务写入，这里只读取并用于解析调用方身份
type SessionInfo struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	DeviceID string `json:"device_id"`
	Platform string `json:"platform"`
}

// TokenRepository 登录会话数据访问
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository 创建 Token Repository
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

func buildTokenInfoKey(accessToken string) string {
	return tokenInfoPrefix + accessToken
}

func buildUserTokenKey(userID, platform string) string {
	return fmt.Sprintf("%s%s:%s", tokenUserPrefix, userID, platform)
}

// SaveSession 保存会话
func (r *TokenRepository) SaveSession(ctx context.Context, info *SessionInfo, accessToken string, expiration time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, buildUserTokenKey(info.UserID, info.Platform), accessToken, expiration)
	pipe.Set(ctx, buildTokenInfoKey(accessToken), data, expiration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession 根据 Token 获取会话，不存在时返回 nil, nil
func (r *TokenRepository) GetSession(ctx context.Context, accessToken string) (*SessionInfo, error) {
	data, err := r.rdb.Get(ctx, buildTokenInfoKey(accessToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &info, nil
}

// DeleteSession 删除会话（登出或吊销）
func (r *TokenRepository) DeleteSession(ctx context.Context, accessToken string) error {
	return r.rdb.Del(ctx, buildTokenInfoKey(accessToken)).Err()
}
