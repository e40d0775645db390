// Package api содержит HTTP API сервер для операторов.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, publisher, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - run_handler.go        — обработчики для /runs и повторной отправки
//   - instrument_handler.go — обработчики для /instruments
//
// API предоставляет REST endpoints для просмотра runs, управления
// инструментами и повторной отправки run на редукцию.
package api
