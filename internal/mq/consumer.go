package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает доставленное сообщение и решает его судьбу
// через Ack/Nack. Возвращённая ошибка означает, что решение принять
// не удалось: сообщение вернётся в очередь, redelivery и есть ретрай.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — распарсенное сообщение вместе с сырой AMQP доставкой.
type Delivery struct {
	Message ReductionMessage
	Raw     amqp.Delivery
}

// Ack подтверждает обработку. Вызывается и для финализированных
// со статусом ERROR runs: исход записан, сообщение отработано.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer подписывается на очередь и переживает разрывы соединения:
// при redial подписка создаётся заново, unacked сообщения брокер
// возвращает в очередь сам.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сколько сообщений брокер выдаёт без подтверждения.
	// Редукция долгая, поэтому по умолчанию 1: лишние сообщения
	// остаются в очереди для других оркестраторов.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокирует и потребляет сообщения до отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed", "queue", c.queue, "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed", "queue", c.queue)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// subscribe выставляет prefetch и открывает подписку на очередь.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack выключен: судьбу сообщения решает handler
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// awaitReconnect ждёт redial соединения или отмены контекста.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, resubscribing", "queue", c.queue)
		return nil
	}
}

// drain передаёт сообщения обработчику, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch парсит одно сообщение и отдаёт его обработчику.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	msg, err := ParseReductionMessage(raw.Body)
	if err != nil {
		c.logger.Error("malformed message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректный JSON чинится только на стороне продьюсера —
		// сразу в DLQ
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"instrument", msg.Instrument,
		"run_number", msg.RunNumber.Int(),
	)

	if err := c.handler(ctx, &Delivery{Message: *msg, Raw: raw}); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"instrument", msg.Instrument,
			"run_number", msg.RunNumber.Int(),
			"error", err,
		)
		raw.Nack(false, true)
	}
}
