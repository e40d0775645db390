package domain

import "fmt"

// RunStatus — статус выполнения reduction run.
//
// Жизненный цикл:
//
//	QUEUED → PROCESSING → COMPLETED
//	                    ↘ ERROR → PROCESSING (повторный запуск)
//	       ↘ SKIPPED / ERROR
//
// COMPLETED и SKIPPED — финальные без исключений.
// Из ERROR возможен только повторный запуск (переход в PROCESSING).
type RunStatus string

const (
	// RunStatusQueued — run создан и ожидает редукции.
	RunStatusQueued RunStatus = "QUEUED"

	// RunStatusProcessing — редукция выполняется внешним процессом.
	RunStatusProcessing RunStatus = "PROCESSING"

	// RunStatusCompleted — редукция успешно завершена.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusError — редукция завершилась с ошибкой.
	RunStatusError RunStatus = "ERROR"

	// RunStatusSkipped — run пропущен (инструмент на паузе,
	// невалидное сообщение). Повторно не запускается.
	RunStatusSkipped RunStatus = "SKIPPED"
)

// ErrIllegalTransition — попытка нелегального перехода статуса.
// Означает дефект оркестрации (например, дубликат доставки события),
// поэтому всегда поднимается наверх, а не гасится на месте.
var ErrIllegalTransition = fmt.Errorf("illegal run status transition")

// transitions — таблица допустимых переходов.
var transitions = map[RunStatus][]RunStatus{
	RunStatusQueued:     {RunStatusProcessing, RunStatusSkipped, RunStatusError},
	RunStatusProcessing: {RunStatusCompleted, RunStatusError, RunStatusSkipped},
	RunStatusError:      {RunStatusProcessing},
	RunStatusCompleted:  {},
	RunStatusSkipped:    {},
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true, если из статуса нет переходов
// в рамках текущей попытки редукции.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusError, RunStatusSkipped:
		return true
	default:
		return false
	}
}

// Valid проверяет, что строка — известный статус.
func (s RunStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Verbose возвращает человекочитаемое имя статуса.
func (s RunStatus) Verbose() string {
	switch s {
	case RunStatusQueued:
		return "Queued"
	case RunStatusProcessing:
		return "Processing"
	case RunStatusCompleted:
		return "Completed"
	case RunStatusError:
		return "Error"
	case RunStatusSkipped:
		return "Skipped"
	default:
		return string(s)
	}
}
