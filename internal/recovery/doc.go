// Package recovery закрывает runs, потерявшие владельца.
//
// Janitor периодически ищет:
//   - orphaned — runs, застрявшие в QUEUED после падения оркестратора
//   - stuck    — runs в PROCESSING дольше разумного предела
//
// и финализирует их как ERROR, чтобы история не копила вечные
// незавершённые записи. Расписание обхода — cron-выражение.
package recovery
