package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/handler"
	"sudooom.im.chat/internal/health"
	"sudooom.im.chat/internal/jwt"
	imNats "sudooom.im.chat/internal/nats"
	"sudooom.im.chat/internal/notify"
	"sudooom.im.chat/internal/repository"
	"sudooom.im.chat/internal/router"
	"sudooom.im.chat/internal/service"
	"sudooom.im.chat/pkg/snowflake"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.App.LogLevel),
	}))
	slog.SetDefault(logger)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())

	// 连接 NATS
	natsClient, err := imNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 初始化雪花ID生成器
	sfNode := snowflake.NewNode(cfg.App.NodeID)

	// 初始化 Repository
	conversationRepo := repository.NewConversationRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)

	// 通知总线
	bus := notify.NewNATSBus(natsClient.Conn(), cfg.Notify.SubjectPrefix, cfg.Notify.FlushTimeout, sfNode)

	// 初始化 Service
	seenTracker := service.NewSeenTracker(conversationRepo, bus)
	lifecycle := service.NewConversationLifecycle(conversationRepo, bus)

	// 初始化 Handler
	conversationHandler := handler.NewConversationHandler(seenTracker, lifecycle)
	commandHandler := handler.NewCommandHandler(seenTracker, lifecycle)

	// 上行指令订阅
	subscriber := imNats.NewCommandSubscriber(natsClient.Conn(), commandHandler, imNats.SubscriberConfig{
		Subject:     cfg.Subscriber.Subject,
		QueueGroup:  cfg.Subscriber.QueueGroup,
		WorkerCount: cfg.Subscriber.WorkerCount,
		BufferSize:  cfg.Subscriber.BufferSize,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start command subscriber", "error", err)
		os.Exit(1)
	}

	// 设置路由
	jwtService := jwt.NewService(cfg.JWT.SecretKey, cfg.JWT.AccessExpire)
	checker := health.NewChecker(natsClient.Conn(), redisClient, db)
	r := router.SetupRouter(cfg, jwtService, tokenRepo, conversationHandler, checker)

	// 启动服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Chat server started", "addr", srv.Addr, "mode", cfg.App.Mode, "nodeId", cfg.App.NodeID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	_ = subscriber.Stop()
	cancel()
	logger.Info("Server stopped")
}

// parseLevel 解析日志级别，默认 info
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
