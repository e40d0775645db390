// Package cli реализует инструмент командной строки Reducta.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Reducta API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// Используется операторами для просмотра runs, управления
// инструментами и повторной отправки run на редукцию.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Reducta API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns(cli.ListRunsOpts{Instrument: "WISH"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: reducta run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - run: list, show, variables, resubmit
//   - instrument: list, pause, unpause
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
