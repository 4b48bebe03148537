package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"carpool/internal/config"
	"carpool/internal/rabbitmq"
)

// NewRabbitMQ connects to RabbitMQ and declares the notification exchange.
func NewRabbitMQ(ctx context.Context, cfg config.NotifierConfig, logger *zap.Logger) (*rabbitmq.Connection, error) {
	conn, err := rabbitmq.Dial(ctx, cfg.AMQPURL, logger)
	if err != nil {
		return nil, err
	}

	if err := conn.DeclareExchange(cfg.Exchange); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setup notification exchange: %w", err)
	}

	return conn, nil
}
