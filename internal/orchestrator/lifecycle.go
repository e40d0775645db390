package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/mq"
	"github.com/shaiso/Reducta/internal/scripts"
	"github.com/shaiso/Reducta/internal/telemetry"
)

// handleDataReady — обработчик события data_ready.
//
// Судьба сообщения:
//   - некорректный контракт   → DLQ (nack без requeue)
//   - инфраструктурная ошибка → requeue (redelivery — единственный ретрай)
//   - run финализирован       → ack, каким бы ни был финальный статус
func (o *Orchestrator) handleDataReady(ctx context.Context, d *mq.Delivery) error {
	msg := d.Message

	// 1. Валидация контракта. Некорректное сообщение не станет
	// корректным при повторной доставке — сразу в DLQ.
	if err := msg.Validate(); err != nil {
		o.logger.Warn("rejecting data_ready message",
			"error", err,
			"instrument", msg.Instrument,
			"run_number", msg.RunNumber.Int(),
		)
		d.Nack(false)
		return nil
	}

	logger := telemetry.WithInstrument(o.logger, msg.Instrument)
	telemetry.RunsReceived.WithLabelValues(msg.Instrument).Inc()

	// 2. Некорректный RB number — не отказ: run уходит в
	// калибровочную корзину (RB = 0).
	if !mq.ValidRBNumber(msg.RBNumber.Int()) {
		logger.Warn("invalid rb_number, treating as calibration run",
			"rb_number", msg.RBNumber.Int(),
			"run_number", msg.RunNumber.Int(),
		)
		msg.RBNumber = 0
	}

	// 3. Справочники. Ошибки БД здесь — инфраструктурные, requeue.
	instrument, err := o.instruments.GetOrCreate(ctx, msg.Instrument)
	if err != nil {
		return fmt.Errorf("get or create instrument: %w", err)
	}
	experiment, err := o.experiments.GetOrCreate(ctx, msg.RBNumber.Int())
	if err != nil {
		return fmt.Errorf("get or create experiment: %w", err)
	}

	// 4. Скрипт редукции. Отсутствие скрипта — не повод терять
	// событие: создаём run и сразу финализируем как ERROR, чтобы
	// у операторов осталась запись.
	scriptText, err := o.scripts.Text(instrument.Name)
	if err != nil && !errors.Is(err, scripts.ErrNoScript) {
		return fmt.Errorf("read script: %w", err)
	}

	// Данные при живом скрипте реактивируют инструмент:
	// неактивность — лишь следствие пропажи reduce.py.
	if scriptText != "" && !instrument.IsActive {
		if err := o.instruments.SetActive(ctx, instrument.Name, true); err != nil {
			return fmt.Errorf("activate instrument: %w", err)
		}
		instrument.IsActive = true
		logger.Info("instrument reactivated")
	}

	// 5. Версия и запись run. Гонка за версию отдаётся БД:
	// конфликт уникальности — requeue, redelivery возьмёт
	// следующую версию.
	version, err := o.runs.NextRunVersion(ctx, experiment.ID, msg.RunNumber.Int())
	if err != nil {
		return fmt.Errorf("next run version: %w", err)
	}

	run := &domain.ReductionRun{
		ID:           uuid.New(),
		InstrumentID: instrument.ID,
		ExperimentID: experiment.ID,
		RunNumber:    msg.RunNumber.Int(),
		RunVersion:   version,
		Status:       domain.RunStatusQueued,
		ScriptText:   scriptText,
		Description:  msg.Description,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	logger = telemetry.WithRun(o.logger, instrument.Name, run.RunNumber, run.RunVersion)
	logger.Info("run accepted", "rb_number", msg.RBNumber.Int(), "data", msg.Data)

	if err := o.locations.CreateDataLocation(ctx, &domain.DataLocation{
		ID:             uuid.New(),
		ReductionRunID: run.ID,
		FilePath:       msg.Data,
	}); err != nil {
		return fmt.Errorf("create data location: %w", err)
	}

	if scriptText == "" {
		if err := o.finalize(ctx, run, &msg, domain.RunStatusError,
			ErrMissingScript.Error(), "", ""); err != nil {
			return err
		}
		return d.Ack()
	}

	// 6. Переменные конфигурации: разрешение, снимок, аргументы.
	// Детерминированная ошибка конфигурации (нет или битый
	// reduce_vars) записывается как ERROR и подтверждается:
	// redelivery получит тот же файл и тот же результат. Всё
	// остальное — конфликт версии или инфраструктура — уходит
	// брокеру, redelivery и есть ретрай.
	_, payload, err := o.variables.CreateRunVariables(ctx, run, instrument.Name, msg.RBNumber.Int(), msg.ReductionArguments)
	if err != nil {
		if errors.Is(err, scripts.ErrNoDefaults) || errors.Is(err, scripts.ErrBadDefaults) {
			logger.Error("variable resolution failed", "error", err)
			if err := o.finalize(ctx, run, &msg, domain.RunStatusError,
				fmt.Sprintf("variable resolution failed: %v", err), "", ""); err != nil {
				return err
			}
			return d.Ack()
		}
		return fmt.Errorf("resolve variables: %w", err)
	}

	argsJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	run.Arguments = string(argsJSON)

	// 7. Условия пропуска проверяются после создания записи:
	// пропущенный run тоже остаётся в истории.
	if reason := skipReason(instrument); reason != "" {
		logger.Info("skipping run", "reason", reason)
		if err := o.finalize(ctx, run, &msg, domain.RunStatusSkipped, reason, "", ""); err != nil {
			return err
		}
		return d.Ack()
	}

	// 8. Диспетчеризация: QUEUED → PROCESSING, запуск процесса.
	outbound := o.buildOutbound(&msg, run, payload)
	if err := outbound.Validate(); err != nil {
		// Контракт для внешнего процесса не собрался — run
		// пропускается, запись остаётся в истории.
		logger.Warn("outbound contract invalid, skipping run", "error", err)
		if err := o.finalize(ctx, run, &msg, domain.RunStatusSkipped, err.Error(), "", ""); err != nil {
			return err
		}
		return d.Ack()
	}

	if err := run.MarkStarted(); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	if err := o.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	telemetry.ReductionsInFlight.Inc()
	result, launchErr := o.launcher.Launch(ctx, outbound)
	telemetry.ReductionsInFlight.Dec()

	// 9. Финализация по результату внешнего процесса.
	if launchErr != nil {
		logger.Error("reduction process failed", "error", launchErr)
		if err := o.finalize(ctx, run, &msg, domain.RunStatusError,
			"reduction process failed", "", launchErr.Error()); err != nil {
			return err
		}
		return d.Ack()
	}

	if result.Message != "" {
		logger.Warn("reduction reported error", "message", result.Message)
		if err := o.finalize(ctx, run, &msg, domain.RunStatusError,
			result.Message, result.ReductionLog, result.AdminLog); err != nil {
			return err
		}
		return d.Ack()
	}

	locations := make([]domain.ReductionLocation, 0, len(result.ReductionData))
	for _, path := range result.ReductionData {
		locations = append(locations, domain.ReductionLocation{
			ID:             uuid.New(),
			ReductionRunID: run.ID,
			FilePath:       path,
		})
	}
	if err := o.locations.CreateReductionLocations(ctx, locations); err != nil {
		return fmt.Errorf("create reduction locations: %w", err)
	}

	outbound.ReductionData = result.ReductionData
	outbound.ReductionLog = result.ReductionLog
	outbound.AdminLog = result.AdminLog
	if err := o.finalize(ctx, run, outbound, domain.RunStatusCompleted,
		"", result.ReductionLog, result.AdminLog); err != nil {
		return err
	}

	telemetry.ReductionDuration.Observe(run.Duration().Seconds())
	logger.Info("run completed",
		"duration", run.Duration().Round(time.Second).String(),
		"artifacts", len(result.ReductionData),
	)
	return d.Ack()
}

// finalize переводит run в финальный статус, сохраняет его и
// публикует событие жизненного цикла.
func (o *Orchestrator) finalize(ctx context.Context, run *domain.ReductionRun, msg *mq.ReductionMessage, status domain.RunStatus, message, reductionLog, adminLog string) error {
	if err := run.Finalize(status, message, reductionLog, adminLog); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if err := o.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	telemetry.RunsFinalized.WithLabelValues(string(status)).Inc()

	event := *msg
	event.RunVersion = mq.IntLike(run.RunVersion)
	event.Message = message

	var publishErr error
	switch status {
	case domain.RunStatusSkipped:
		publishErr = o.publisher.PublishSkipped(ctx, &event)
	case domain.RunStatusError:
		publishErr = o.publisher.PublishError(ctx, &event)
	case domain.RunStatusCompleted:
		publishErr = o.publisher.PublishCompleted(ctx, &event)
	}
	if publishErr != nil {
		// Статус уже сохранён; потерянное событие не повод
		// редуцировать run заново.
		o.logger.Error("failed to publish lifecycle event",
			"status", status,
			"run_number", run.RunNumber,
			"run_version", run.RunVersion,
			"error", publishErr,
		)
	}
	return nil
}

// buildOutbound собирает сообщение для внешнего процесса редукции.
func (o *Orchestrator) buildOutbound(msg *mq.ReductionMessage, run *domain.ReductionRun, arguments map[string]map[string]any) *mq.ReductionMessage {
	out := *msg
	out.RunVersion = mq.IntLike(run.RunVersion)
	out.ReductionScript = run.ScriptText
	out.ReductionArguments = arguments
	return &out
}

// skipReason возвращает причину пропуска run или пустую строку.
// Единственное условие пропуска — пауза: неактивный инструмент
// реактивируется самим событием data_ready.
func skipReason(instrument *domain.Instrument) string {
	if instrument.IsPaused {
		return "Instrument is paused"
	}
	return ""
}
