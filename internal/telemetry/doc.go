// Package telemetry обеспечивает наблюдаемость автоматической редукции.
//
// Включает:
//   - logging.go — structured logging через slog, поля run для
//     склейки истории редукции в агрегаторе логов
//   - metrics.go — Prometheus метрики жизненного цикла runs
//
// Оркестратор, API и janitor используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
