package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// TokenType Token 类型
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Claims JWT 声明
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	DeviceID  string    `json:"device_id"`
	Platform  string    `json:"platform"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Service JWT 服务
type Service struct {
	secretKey    []byte
	accessExpire time.Duration
	issuer       string
}

// NewService 创建 JWT 服务
func NewService(secretKey string, accessExpire time.Duration) *Service {
	return &Service{
		secretKey:    []byte(secretKey),
		accessExpire: accessExpire,
		issuer:       "im-web",
	}
}

// GenerateAccessToken 签发 Access Token（登录服务与测试使用）
func (s *Service) GenerateAccessToken(userID, email, deviceID, platform string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.accessExpire)
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		DeviceID:  deviceID,
		Platform:  platform,
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken 验证 Access Token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != AccessToken || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
