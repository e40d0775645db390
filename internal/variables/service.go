package variables

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/telemetry"
)

// Store — операции хранилища, нужные разрешению переменных.
// Реализуется repo.VariableRepo.
type Store interface {
	// ListPossible возвращает строки, чья область действия может
	// подходить run: привязка к эксперименту ЛИБО start_run <= runNumber.
	ListPossible(ctx context.Context, instrumentID uuid.UUID, experimentReference, runNumber int) ([]domain.InstrumentVariable, error)

	// Apply применяет план в одной транзакции и сохраняет снимок
	// RunVariable для run. Нарушение целостности поднимается наверх.
	Apply(ctx context.Context, runID uuid.UUID, plan []Planned) ([]domain.RunVariable, error)
}

// DefaultsLoader — источник значений по умолчанию скрипта редукции.
// Реализуется scripts.Provider.
type DefaultsLoader interface {
	LoadDefaults(instrument string) (*ScriptDefaults, error)
}

// Service связывает чистый алгоритм разрешения с хранилищем
// и источником скриптов.
type Service struct {
	store    Store
	defaults DefaultsLoader
	logger   *slog.Logger
}

// NewService создаёт Service.
func NewService(store Store, defaults DefaultsLoader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, defaults: defaults, logger: logger}
}

// CreateRunVariables разрешает переменные для run и фиксирует снимок.
//
// overrides — необязательные аргументы из сообщения (повторная
// отправка пользователем); приводятся к типам скрипта, неизвестные
// имена отбрасываются.
//
// Возвращает снимок и словарь аргументов для исходящего сообщения,
// построенный из итоговых строк (сохранённое значение побеждает
// значение скрипта).
//
// Отсутствующий или некорректный reduce_vars — фатальная ошибка
// конфигурации, поднимается вызывающему.
func (s *Service) CreateRunVariables(ctx context.Context, run *domain.ReductionRun, instrumentName string, experimentReference int, overrides map[string]map[string]any) ([]domain.RunVariable, map[string]map[string]any, error) {
	defaults, err := s.defaults.LoadDefaults(instrumentName)
	if err != nil {
		return nil, nil, fmt.Errorf("load script defaults for %s: %w", instrumentName, err)
	}

	candidates, err := s.store.ListPossible(ctx, run.InstrumentID, experimentReference, run.RunNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("list possible variables: %w", err)
	}

	args := Merge(defaults, overrides)

	plan := Resolve(args, candidates, Options{
		InstrumentID: run.InstrumentID,
		RunNumber:    run.RunNumber,
		TracksScript: true,
	})

	if len(plan) == 0 {
		s.logger.Warn("no instrument variables found",
			"instrument", instrumentName,
			"run_number", run.RunNumber,
		)
		return nil, ArgumentsPayload(nil), nil
	}

	snapshot, err := s.store.Apply(ctx, run.ID, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("save run variables: %w", err)
	}

	final := make([]domain.InstrumentVariable, len(plan))
	for i, p := range plan {
		final[i] = p.Variable
		telemetry.VariableOps.WithLabelValues(p.Op.String()).Inc()
	}

	return snapshot, ArgumentsPayload(final), nil
}
