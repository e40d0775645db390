package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/mq"
)

// InstrumentStore — операции над инструментами.
type InstrumentStore interface {
	GetOrCreate(ctx context.Context, name string) (*domain.Instrument, error)
	SetActive(ctx context.Context, name string, active bool) error
}

// ExperimentStore — операции над экспериментами.
type ExperimentStore interface {
	GetOrCreate(ctx context.Context, referenceNumber int) (*domain.Experiment, error)
}

// RunStore — операции над runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.ReductionRun) error
	Update(ctx context.Context, run *domain.ReductionRun) error
	NextRunVersion(ctx context.Context, experimentID uuid.UUID, runNumber int) (int, error)
}

// LocationStore — пути данных и артефактов.
type LocationStore interface {
	CreateDataLocation(ctx context.Context, loc *domain.DataLocation) error
	CreateReductionLocations(ctx context.Context, locs []domain.ReductionLocation) error
}

// ScriptProvider — источник текста скрипта редукции.
type ScriptProvider interface {
	Text(instrument string) (string, error)
}

// VariableResolver — разрешение переменных и снимок для run.
type VariableResolver interface {
	CreateRunVariables(ctx context.Context, run *domain.ReductionRun, instrumentName string, experimentReference int, overrides map[string]map[string]any) ([]domain.RunVariable, map[string]map[string]any, error)
}

// Launcher — запуск внешнего процесса редукции.
type Launcher interface {
	Launch(ctx context.Context, msg *mq.ReductionMessage) (*mq.ReductionMessage, error)
}

// EventPublisher — публикация событий жизненного цикла.
type EventPublisher interface {
	PublishSkipped(ctx context.Context, msg *mq.ReductionMessage) error
	PublishError(ctx context.Context, msg *mq.ReductionMessage) error
	PublishCompleted(ctx context.Context, msg *mq.ReductionMessage) error
}

// Orchestrator управляет жизненным циклом reduction runs.
//
// Оркестратор:
//   - Принимает события data_ready из очереди RabbitMQ
//   - Создаёт версионируемую запись run (QUEUED)
//   - Разрешает переменные конфигурации и фиксирует снимок
//   - Запускает внешний процесс редукции (PROCESSING)
//   - Финализирует run (COMPLETED/ERROR/SKIPPED) и публикует событие
type Orchestrator struct {
	// Stores
	instruments InstrumentStore
	experiments ExperimentStore
	runs        RunStore
	locations   LocationStore

	// Collaborators
	scripts   ScriptProvider
	variables VariableResolver
	launcher  Launcher
	publisher EventPublisher

	// MQ
	conn     *mq.Connection
	consumer *mq.Consumer
	prefetch int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	Instruments InstrumentStore
	Experiments ExperimentStore
	Runs        RunStore
	Locations   LocationStore

	// Collaborators
	Scripts   ScriptProvider
	Variables VariableResolver
	Launcher  Launcher
	Publisher EventPublisher

	// MQ
	Conn *mq.Connection

	// Prefetch — сколько редукций один оркестратор ведёт
	// одновременно (default: 1).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Orchestrator{
		instruments: cfg.Instruments,
		experiments: cfg.Experiments,
		runs:        cfg.Runs,
		locations:   cfg.Locations,
		scripts:     cfg.Scripts,
		variables:   cfg.Variables,
		launcher:    cfg.Launcher,
		publisher:   cfg.Publisher,
		conn:        cfg.Conn,
		prefetch:    prefetch,
		logger:      logger,
	}
}

// Start запускает Orchestrator: consumer очереди data_ready.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator", "prefetch", o.prefetch)

	o.consumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueDataReady),
		Handler:  o.handleDataReady,
		Prefetch: o.prefetch,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("data_ready consumer error", "error", err)
		}
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.consumer != nil {
		o.consumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}
