// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - message.go    — формат сообщения редукции
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Все очереди несут один формат — плоский JSON ReductionMessage,
// его же шлют внешние продюсеры (стримеры данных инструментов).
//
// Exchanges:
//   - reducta.reduction — события жизненного цикла редукции
//   - reducta.dlq       — dead letter queue
package mq
