package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"

	"sudooom.im.chat/internal/proto"
	appErrors "sudooom.im.chat/pkg/errors"
)

const (
	DefaultCommandSubject = "im.chat.upstream"
	DefaultQueueGroup     = "chat-group"
)

// CommandHandler 会话指令处理器
type CommandHandler interface {
	HandleConversationSeen(ctx context.Context, cmd *proto.UpstreamCommand) (any, error)
	HandleConversationRemove(ctx context.Context, cmd *proto.UpstreamCommand) (any, error)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	Subject     string
	QueueGroup  string
	WorkerCount int // Worker 数量
	BufferSize  int // 消息缓冲区大小
}

// CommandSubscriber 上行指令订阅器
type CommandSubscriber struct {
	nc           *nats.Conn
	handler      CommandHandler
	validate     *validator.Validate
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
	drainTimeout time.Duration

	// mu 保护 closed 与 msgChan 的关闭，回调入队持读锁
	mu     sync.RWMutex
	closed bool
}

// NewCommandSubscriber 创建指令订阅器
func NewCommandSubscriber(nc *nats.Conn, handler CommandHandler, config SubscriberConfig) *CommandSubscriber {
	if config.Subject == "" {
		config.Subject = DefaultCommandSubject
	}
	if config.QueueGroup == "" {
		config.QueueGroup = DefaultQueueGroup
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 32
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}

	return &CommandSubscriber{
		nc:           nc,
		handler:      handler,
		validate:     validator.New(),
		logger:       slog.Default(),
		config:       config,
		drainTimeout: 5 * time.Second,
	}
}

// Start 启动 Worker 并订阅
func (s *CommandSubscriber) Start(ctx context.Context) error {
	s.startWorkers(ctx)

	// 队列组实现多实例负载均衡
	sub, err := s.nc.QueueSubscribe(s.config.Subject, s.config.QueueGroup, s.enqueue)
	if err != nil {
		s.closeQueue()
		s.wg.Wait()
		s.cancelFunc()
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS command subscriber started",
		"subject", s.config.Subject,
		"queueGroup", s.config.QueueGroup,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

func (s *CommandSubscriber) startWorkers(ctx context.Context) {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}
}

// enqueue NATS 回调，缓冲区满或已停止时丢弃
func (s *CommandSubscriber) enqueue(msg *nats.Msg) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("Command subscriber stopped, dropping message", "subject", msg.Subject)
		return
	}
	select {
	case s.msgChan <- msg:
	default:
		s.logger.Warn("Command buffer full, dropping message", "bufferSize", s.config.BufferSize)
	}
}

// worker 处理到队列关闭为止，已入队的指令都会得到处理
func (s *CommandSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for msg := range s.msgChan {
		s.handleMessage(ctx, msg)
	}
}

// handleMessage 处理一条指令，有 reply subject 时回复结果
func (s *CommandSubscriber) handleMessage(ctx context.Context, msg *nats.Msg) {
	reply := s.process(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("Failed to marshal command reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("Failed to respond to command", "reply", msg.Reply, "error", err)
	}
}

// process 解码、校验并分发指令
func (s *CommandSubscriber) process(ctx context.Context, data []byte) *proto.CommandReply {
	var cmd proto.UpstreamCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.logger.Error("Failed to unmarshal command", "error", err)
		return failReply("", appErrors.ErrInvalidParams.Wrap(err))
	}
	if err := s.validate.Struct(&cmd); err != nil {
		s.logger.Warn("Invalid command", "type", cmd.Type, "error", err)
		return failReply(cmd.ReqID, appErrors.ErrInvalidParams.Wrap(err))
	}

	var (
		result any
		err    error
	)
	switch cmd.Type {
	case proto.CommandConversationSeen:
		result, err = s.handler.HandleConversationSeen(ctx, &cmd)
	case proto.CommandConversationRemove:
		result, err = s.handler.HandleConversationRemove(ctx, &cmd)
	}
	if err != nil {
		return failReply(cmd.ReqID, err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return failReply(cmd.ReqID, appErrors.ErrServerError.Wrap(err))
	}
	return &proto.CommandReply{
		ReqID:   cmd.ReqID,
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    body,
	}
}

func failReply(reqID string, err error) *proto.CommandReply {
	return &proto.CommandReply{
		ReqID:   reqID,
		Code:    appErrors.GetCode(err),
		Message: appErrors.GetMessage(err),
	}
}

// Stop 停止订阅
// 先 Drain 订阅等待在途回调结束，再关闭队列让 Worker 处理完缓冲中的指令
func (s *CommandSubscriber) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Drain(); err != nil {
			s.logger.Error("Failed to drain subscription", "error", err)
		} else {
			s.waitDrained()
		}
	}

	s.closeQueue()
	s.wg.Wait()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	s.logger.Info("NATS command subscriber stopped")
	return nil
}

// waitDrained 等待订阅失效，超时后放弃
func (s *CommandSubscriber) waitDrained() {
	deadline := time.Now().Add(s.drainTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for s.subscription.IsValid() {
		if time.Now().After(deadline) {
			s.logger.Warn("Timed out draining subscription", "timeout", s.drainTimeout)
			return
		}
		<-ticker.C
	}
}

func (s *CommandSubscriber) closeQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.msgChan != nil {
		close(s.msgChan)
	}
}

// GetBufferUsage 获取缓冲区使用情况
func (s *CommandSubscriber) GetBufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
