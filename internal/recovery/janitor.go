package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/telemetry"
)

// Default configuration values.
const (
	defaultQueuedAge     = 30 * time.Minute
	defaultProcessingAge = 12 * time.Hour
	defaultBatchSize     = 100
)

// SweepStore — операции хранилища, нужные janitor'у.
// Реализуется repo.RunRepo.
type SweepStore interface {
	ListOrphaned(ctx context.Context, age time.Duration, limit int) ([]domain.ReductionRun, error)
	ListStuckProcessing(ctx context.Context, age time.Duration, limit int) ([]domain.ReductionRun, error)
	Update(ctx context.Context, run *domain.ReductionRun) error
}

// Janitor финализирует потерянные runs.
type Janitor struct {
	store         SweepStore
	logger        *slog.Logger
	queuedAge     time.Duration
	processingAge time.Duration
	batchSize     int
}

// Config — конфигурация Janitor.
type Config struct {
	Store  SweepStore
	Logger *slog.Logger

	// QueuedAge — сколько run может ждать в QUEUED (default: 30m).
	QueuedAge time.Duration

	// ProcessingAge — предел времени в PROCESSING (default: 12h).
	// Должен быть больше таймаута внешнего процесса.
	ProcessingAge time.Duration

	// BatchSize — количество runs за один обход (default: 100).
	BatchSize int
}

// New создаёт новый Janitor.
func New(cfg Config) *Janitor {
	queuedAge := cfg.QueuedAge
	if queuedAge <= 0 {
		queuedAge = defaultQueuedAge
	}
	processingAge := cfg.ProcessingAge
	if processingAge <= 0 {
		processingAge = defaultProcessingAge
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		store:         cfg.Store,
		logger:        logger,
		queuedAge:     queuedAge,
		processingAge: processingAge,
		batchSize:     batchSize,
	}
}

// Tick выполняет один обход: закрывает orphaned и stuck runs.
// Ошибка одного run не блокирует обработку остальных.
func (j *Janitor) Tick(ctx context.Context) error {
	orphaned, err := j.store.ListOrphaned(ctx, j.queuedAge, j.batchSize)
	if err != nil {
		return fmt.Errorf("list orphaned runs: %w", err)
	}
	j.sweep(ctx, orphaned, "orphaned",
		fmt.Sprintf("run stayed QUEUED longer than %s", j.queuedAge))

	stuck, err := j.store.ListStuckProcessing(ctx, j.processingAge, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stuck runs: %w", err)
	}
	j.sweep(ctx, stuck, "stuck",
		fmt.Sprintf("run stayed PROCESSING longer than %s", j.processingAge))

	if len(orphaned)+len(stuck) > 0 {
		j.logger.Info("recovery sweep completed",
			"orphaned", len(orphaned),
			"stuck", len(stuck),
		)
	}
	return nil
}

// sweep финализирует пачку runs как ERROR.
func (j *Janitor) sweep(ctx context.Context, runs []domain.ReductionRun, reason, message string) {
	for i := range runs {
		run := &runs[i]

		if err := run.Finalize(domain.RunStatusError, message, "", "closed by recovery sweep"); err != nil {
			// Кто-то успел финализировать run между выборкой
			// и обходом — это не ошибка.
			j.logger.Debug("run already finalized",
				"run_number", run.RunNumber,
				"run_version", run.RunVersion,
				"error", err,
			)
			continue
		}

		if err := j.store.Update(ctx, run); err != nil {
			j.logger.Error("failed to close run",
				"run_number", run.RunNumber,
				"run_version", run.RunVersion,
				"error", err,
			)
			continue
		}

		telemetry.RecoveredRuns.WithLabelValues(reason).Inc()
		j.logger.Warn("closed lost run",
			"reason", reason,
			"run_number", run.RunNumber,
			"run_version", run.RunVersion,
		)
	}
}
