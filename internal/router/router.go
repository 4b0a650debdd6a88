package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/handler"
	"sudooom.im.chat/internal/health"
	"sudooom.im.chat/internal/jwt"
	"sudooom.im.chat/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	jwtService *jwt.Service,
	sessions middleware.SessionStore,
	conversationHandler *handler.ConversationHandler,
	checker *health.Checker,
) *gin.Engine {
	// 设置 Gin 模式
	if cfg.App.Mode != "" {
		gin.SetMode(cfg.App.Mode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(slog.Default()))
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	// 探针
	r.GET("/health", checker.Live)
	r.GET("/ready", checker.Ready)

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.TokenAuth(jwtService, sessions))
	{
		conversations := v1.Group("/conversations")
		{
			conversations.POST("/:conversationId/seen", conversationHandler.MarkSeen)
			conversations.DELETE("/:conversationId", conversationHandler.DeleteConversation)
		}
	}

	return r
}
