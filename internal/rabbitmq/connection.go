// Package rabbitmq publishes passenger notifications to a RabbitMQ exchange
// for delivery by a downstream mailer.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	maxDialAttempts = 10
	maxRetryDelay   = 30 * time.Second
	publishTimeout  = 5 * time.Second
)

// ErrChannelUnavailable is returned when publishing without an open channel.
var ErrChannelUnavailable = errors.New("rabbitmq channel not available")

// Connection is a RabbitMQ connection with a single publishing channel.
type Connection struct {
	url    string
	logger *zap.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// Dial connects to RabbitMQ, retrying with backoff until ctx ends or the
// attempts run out.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Connection, error) {
	c := &Connection{url: url, logger: logger}

	delay := time.Second
	for attempt := 1; attempt <= maxDialAttempts; attempt++ {
		err := c.connect()
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return c, nil
		}

		logger.Warn("RabbitMQ connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxDialAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		if attempt == maxDialAttempts {
			return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxDialAttempts, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay = delay * 3 / 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return nil, errors.New("rabbitmq dial loop ended without result")
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.mu.Unlock()

	return nil
}

// DeclareExchange declares a durable topic exchange.
func (c *Connection) DeclareExchange(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil {
		return ErrChannelUnavailable
	}

	if err := c.ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// Publish sends a persistent JSON message to the exchange.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil || c.closed {
		return ErrChannelUnavailable
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.ch.PublishWithContext(
		publishCtx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// HealthCheck reports whether the connection is still open.
func (c *Connection) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return ErrChannelUnavailable
	}
	return nil
}

// Close closes the channel and the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}

	c.logger.Info("RabbitMQ connection closed")
}
