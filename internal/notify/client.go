// Package notify publishes realtime tenant events and outbound messages to an
// AMQP broker.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tartampluch/birthday-sync/internal/clock"
	"github.com/tartampluch/birthday-sync/internal/config"
)

// Client owns one broker connection and one channel. When the broker drops
// either of them the client reconnects and declares the topology again.
type Client struct {
	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	log     *slog.Logger
	sleep   clock.SleepFunc

	// ctx is cancelled by Close and stops any pending reconnect.
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to url. The URL is never logged.
func Dial(url string, logger *slog.Logger) (*Client, error) {
	if url == "" {
		return nil, errors.New(config.ErrAMQPMissing)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:    url,
		log:    logger.With(config.LogKeyComponent, config.CompNotify),
		sleep:  clock.Sleep,
		ctx:    ctx,
		cancel: cancel,
	}
	if err := c.connect(); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	if c.ctx.Err() != nil {
		return errors.New(config.ErrAMQPClosed)
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrAMQPConnect, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%s: %w", config.ErrAMQPChannel, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Close ran while dialing.
	if c.ctx.Err() != nil {
		_ = conn.Close()
		return errors.New(config.ErrAMQPClosed)
	}
	c.conn, c.channel = conn, ch

	go c.watchClose(conn, ch)

	c.log.Info(config.MsgAMQPConnected)
	return nil
}

// watchClose waits for conn or ch to go away. A close initiated by Close
// carries no error and ends the watch.
func (c *Client) watchClose(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	var err *amqp.Error
	select {
	case err = <-connClosed:
	case err = <-chClosed:
	}
	if err == nil {
		return
	}
	c.log.Error(config.MsgAMQPClosed, config.LogKeyError, err)

	// A lost channel leaves the connection open.
	_ = conn.Close()

	_ = c.reconnect(c.ctx, func() error {
		if err := c.connect(); err != nil {
			return err
		}
		if err := c.DeclareTopology(); err != nil {
			c.mu.RLock()
			fresh := c.conn
			c.mu.RUnlock()
			_ = fresh.Close()
			return err
		}
		return nil
	})
}

// reconnect calls connect until it succeeds or ctx is done. The delay between
// attempts doubles from RetryBaseDelay up to RetryMaxDelay.
func (c *Client) reconnect(ctx context.Context, connect func() error) error {
	delay := config.RetryBaseDelay
	for attempt := 1; ; attempt++ {
		err := connect()
		if err == nil {
			c.log.Info(config.MsgAMQPReconnected, config.LogKeyAttempt, attempt)
			return nil
		}
		c.log.Warn(config.MsgAMQPReconnect,
			config.LogKeyAttempt, attempt,
			config.LogKeyDelay, delay.Milliseconds(),
			config.LogKeyError, err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, config.RetryMaxDelay)
	}
}

// PublishWithContext publishes on the current channel.
func (c *Client) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()
	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Close stops reconnecting, then closes the channel and the connection.
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		errs = append(errs, c.channel.Close())
	}
	if c.conn != nil && !c.conn.IsClosed() {
		errs = append(errs, c.conn.Close())
	}
	return errors.Join(errs...)
}
