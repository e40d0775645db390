package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует события жизненного цикла редукции.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
// Тело — плоский JSON ReductionMessage.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *ReductionMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    uuid.New().String(),
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"instrument", msg.Instrument,
			"run_number", msg.RunNumber.Int(),
		)

		return nil
	})
}

// PublishDataReady кладёт сообщение в очередь обработки.
// Используется повторной отправкой через API/CLI.
func (p *Publisher) PublishDataReady(ctx context.Context, msg *ReductionMessage) error {
	return p.Publish(ctx, ExchangeReduction, RoutingKeyDataReady, msg)
}

// PublishSkipped публикует событие о пропущенном run.
func (p *Publisher) PublishSkipped(ctx context.Context, msg *ReductionMessage) error {
	return p.Publish(ctx, ExchangeReduction, RoutingKeySkipped, msg)
}

// PublishError публикует событие о проваленном run.
func (p *Publisher) PublishError(ctx context.Context, msg *ReductionMessage) error {
	return p.Publish(ctx, ExchangeReduction, RoutingKeyError, msg)
}

// PublishCompleted публикует событие об успешно завершённом run.
func (p *Publisher) PublishCompleted(ctx context.Context, msg *ReductionMessage) error {
	return p.Publish(ctx, ExchangeReduction, RoutingKeyCompleted, msg)
}
