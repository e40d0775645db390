package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrMissingScript — у инструмента нет скрипта редукции.
	// Run создаётся и сразу финализируется как ERROR.
	ErrMissingScript = errors.New("instrument has no reduction script")

	// ErrOrchestratorStopped — повторный Start после Stop.
	// Остановленный оркестратор не перезапускается.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
