// Package runner запускает внешний процесс редукции.
//
// Контракт процесса: <command> <input.json> <output.json>.
// Вход и выход — плоский JSON ReductionMessage; процесс дополняет
// сообщение результатом (reduction_data, message, логи).
package runner
