package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReductionRun — один запуск редукции.
//
// Идентичность: (instrument, run_number, run_version).
// run_version монотонно растёт для одного логического run,
// начиная с 0 — каждая повторная редукция получает новую версию.
//
// Создаётся оркестратором при приёме события data_ready,
// изменяется только через документированные переходы статуса,
// никогда не удаляется.
type ReductionRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// InstrumentID — ссылка на инструмент.
	InstrumentID uuid.UUID `json:"instrument_id"`

	// ExperimentID — ссылка на эксперимент.
	ExperimentID uuid.UUID `json:"experiment_id"`

	// RunNumber — номер run с инструмента.
	RunNumber int `json:"run_number"`

	// RunVersion — версия редукции этого run_number (с нуля).
	RunVersion int `json:"run_version"`

	// Status — текущий статус (см. status.go).
	Status RunStatus `json:"status"`

	// ScriptText — текст скрипта редукции, зафиксированный при создании.
	ScriptText string `json:"script_text,omitempty"`

	// Arguments — разрешённые аргументы редукции (JSON).
	Arguments string `json:"arguments,omitempty"`

	// Description — описание run из входного сообщения.
	Description string `json:"description,omitempty"`

	// Message — человекочитаемое сообщение (причина skip/error).
	Message string `json:"message,omitempty"`

	// ReductionLog — лог редукции из внешнего процесса.
	ReductionLog string `json:"reduction_log,omitempty"`

	// AdminLog — служебный лог для операторов.
	AdminLog string `json:"admin_log,omitempty"`

	// Started — время перехода в PROCESSING.
	Started *time.Time `json:"started,omitempty"`

	// Finished — время перехода в финальный статус.
	Finished *time.Time `json:"finished,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// TransitionTo переводит run в статус next, проверяя таблицу
// допустимости. Нелегальный переход — ErrIllegalTransition.
func (r *ReductionRun) TransitionTo(next RunStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s (run %d v%d)",
			ErrIllegalTransition, r.Status, next, r.RunNumber, r.RunVersion)
	}
	r.Status = next
	return nil
}

// MarkStarted переводит run в PROCESSING и ставит время старта.
// Допустимо только из QUEUED или ERROR (повторный запуск).
func (r *ReductionRun) MarkStarted() error {
	if err := r.TransitionTo(RunStatusProcessing); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Started = &now
	return nil
}

// Finalize переводит run в финальный статус и записывает
// сообщение и логи из результата. Время завершения ставится всегда.
func (r *ReductionRun) Finalize(status RunStatus, message, reductionLog, adminLog string) error {
	if err := r.TransitionTo(status); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Finished = &now
	r.Message = message
	r.ReductionLog = reductionLog
	r.AdminLog = adminLog
	return nil
}

// Duration возвращает продолжительность редукции.
// 0, если run не стартовал или не завершён.
func (r *ReductionRun) Duration() time.Duration {
	if r.Started == nil || r.Finished == nil {
		return 0
	}
	return r.Finished.Sub(*r.Started)
}

// DataLocation — путь к входному файлу данных run.
// Создаётся один раз вместе с run, далее неизменяема.
type DataLocation struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ReductionRunID — run, которому принадлежит файл.
	ReductionRunID uuid.UUID `json:"reduction_run_id"`

	// FilePath — путь к файлу данных.
	FilePath string `json:"file_path"`
}

// ReductionLocation — путь к артефакту результата редукции.
// Создаётся только при успешном завершении run.
type ReductionLocation struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ReductionRunID — run, которому принадлежит артефакт.
	ReductionRunID uuid.UUID `json:"reduction_run_id"`

	// FilePath — путь к каталогу/файлу результата.
	FilePath string `json:"file_path"`
}
