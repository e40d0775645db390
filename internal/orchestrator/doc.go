// Package orchestrator управляет жизненным циклом редукции.
//
// Оркестратор принимает события data_ready, создаёт версионируемые
// записи runs, разрешает переменные конфигурации, запускает внешний
// процесс редукции и финализирует run, публикуя событие результата.
package orchestrator
