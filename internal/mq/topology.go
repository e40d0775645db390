package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeReduction Exchange = "reducta.reduction"
	ExchangeDLQ       Exchange = "reducta.dlq"
)

// Queues — имена очередей.
const (
	QueueDataReady Queue = "reduction.data_ready"
	QueueSkipped   Queue = "reduction.skipped"
	QueueError     Queue = "reduction.error"
	QueueCompleted Queue = "reduction.completed"
	QueueDLQ       Queue = "dlq.data_ready"
)

// Routing keys.
const (
	RoutingKeyDataReady RoutingKey = "data_ready"
	RoutingKeySkipped   RoutingKey = "skipped"
	RoutingKeyError     RoutingKey = "error"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQ       RoutingKey = "data_ready"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeReduction, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// data_ready — с DLQ: ядовитое сообщение после redelivery
		// уходит на ручной разбор, не блокируя очередь
		{QueueDataReady, dlqArgs},

		// исходящие события — без DLQ, их читают внешние системы
		{QueueSkipped, nil},
		{QueueError, nil},
		{QueueCompleted, nil},

		// сама DLQ очередь
		{QueueDLQ, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueDataReady, RoutingKeyDataReady, ExchangeReduction},
		{QueueSkipped, RoutingKeySkipped, ExchangeReduction},
		{QueueError, RoutingKeyError, ExchangeReduction},
		{QueueCompleted, RoutingKeyCompleted, ExchangeReduction},
		{QueueDLQ, RoutingKeyDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Reducta RabbitMQ Topology:

    reducta.reduction (direct)
    ├── reduction.data_ready [routing: data_ready]
    │       Consumer: Orchestrator
    │       DLQ: dlq.data_ready
    ├── reduction.skipped [routing: skipped]
    ├── reduction.error [routing: error]
    └── reduction.completed [routing: completed]
            Consumers: external systems

    reducta.dlq (direct)
    └── dlq.data_ready [routing: data_ready]
            Manual processing
  `
}
