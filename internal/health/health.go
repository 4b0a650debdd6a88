package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// BusConn 通知总线连接状态
type BusConn interface {
	IsConnected() bool
}

// RedisPinger Redis 探活
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// DBPinger 数据库探活
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Status 健康状态
type Status struct {
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

// Healthy 所有依赖均已连接
func (s *Status) Healthy() bool {
	return s.NATS == StatusConnected &&
		s.Redis == StatusConnected &&
		s.Database == StatusConnected
}

// Checker 健康检查器
type Checker struct {
	nc      BusConn
	redis   RedisPinger
	db      DBPinger
	timeout time.Duration
}

// NewChecker 创建健康检查器
func NewChecker(nc BusConn, redisClient RedisPinger, db DBPinger) *Checker {
	return &Checker{
		nc:      nc,
		redis:   redisClient,
		db:      db,
		timeout: 2 * time.Second,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		NATS:     StatusDisconnected,
		Redis:    StatusDisconnected,
		Database: StatusDisconnected,
	}

	if h.nc != nil && h.nc.IsConnected() {
		status.NATS = StatusConnected
	}

	if h.redis != nil {
		redisCtx, cancel := context.WithTimeout(ctx, h.timeout)
		if err := h.redis.Ping(redisCtx).Err(); err == nil {
			status.Redis = StatusConnected
		}
		cancel()
	}

	if h.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, h.timeout)
		if err := h.db.Ping(dbCtx); err == nil {
			status.Database = StatusConnected
		}
		cancel()
	}

	return status
}

// Live 存活探针，进程能响应即返回 200
// GET /health
func (h *Checker) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪探针，任一依赖断开返回 503
// GET /ready
func (h *Checker) Ready(c *gin.Context) {
	status := h.Check(c.Request.Context())
	if !status.Healthy() {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
