package nats

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.im.chat/internal/config"
)

const connectTimeout = 10 * time.Second

// Client 持有服务唯一的 NATS 连接，通知发布与指令订阅共用
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewClient 按配置建立连接
func NewClient(cfg config.NATSConfig) (*Client, error) {
	c := &Client{logger: slog.Default().With("component", "nats")}

	conn, err := nats.Connect(cfg.URL, c.options(cfg)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// options 连接参数与状态回调
func (c *Client) options(cfg config.NATSConfig) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("Connection lost", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("Connection restored", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			c.logger.Error("Async NATS error", "subject", subject, "error", err)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("Connection closed")
		}),
	}
}

// Conn 底层连接，供 NotificationBus、订阅器和健康检查使用
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// IsConnected 当前是否在线
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close 排空待发送数据后关闭，Drain 失败时直接关闭
func (c *Client) Close() {
	if c.conn == nil || c.conn.IsClosed() {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("Drain failed, closing immediately", "error", err)
		c.conn.Close()
	}
}
