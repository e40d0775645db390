package variables

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
)

// Op — операция над строкой InstrumentVariable в плане разрешения.
type Op int

const (
	// OpReuse — существующая строка используется без изменений.
	OpReuse Op = iota

	// OpCreate — создаётся новая строка.
	OpCreate

	// OpUpdate — существующая строка обновляется на месте
	// (значение изменилось для run, с которого она и начинается).
	OpUpdate
)

// String возвращает имя операции для логов и метрик.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "reuse"
	}
}

// Planned — одна строка итогового набора переменных с операцией,
// которую нужно применить к хранилищу.
type Planned struct {
	Variable domain.InstrumentVariable
	Op       Op
}

// Options — параметры разрешения.
type Options struct {
	// InstrumentID — инструмент, для которого создаются строки.
	InstrumentID uuid.UUID

	// RunNumber — номер обрабатываемого run.
	RunNumber int

	// ExperimentScope — если задан, новые строки привязываются
	// к этому эксперименту (конфигурация, заданная человеком для
	// эксперимента). Для автоматической обработки — nil: новые
	// строки получают start_run = RunNumber.
	ExperimentScope *int

	// TracksScript — следить ли новым строкам за скриптом.
	// true для автоматической обработки, false когда значения
	// явно зафиксированы человеком.
	TracksScript bool

	// ForceUpdate — обновить значение даже у строки,
	// не следящей за скриптом.
	ForceUpdate bool
}

// Resolve строит план разрешения переменных для run.
//
// candidates — строки, чья область действия может подходить:
// привязка к эксперименту run ЛИБО start_run <= RunNumber
// (отбор делает хранилище). Функция чистая: хранилище не трогает,
// только планирует операции.
//
// Повторный вызов с теми же входами даёт план из одних OpReuse —
// строки не плодятся без изменения значений.
func Resolve(args Arguments, candidates []domain.InstrumentVariable, opts Options) []Planned {
	var plan []Planned

	for _, name := range names(args.Standard) {
		plan = append(plan, resolveOne(name, args.Standard[name], args.HelpFor(name, false), false, candidates, opts))
	}
	for _, name := range names(args.Advanced) {
		plan = append(plan, resolveOne(name, args.Advanced[name], args.HelpFor(name, true), true, candidates, opts))
	}

	return plan
}

func resolveOne(name string, value Value, help string, advanced bool, candidates []domain.InstrumentVariable, opts Options) Planned {
	serialized := value.Serialize()

	best := pickCandidate(name, candidates, opts.RunNumber)

	// Подходящей строки нет — создаём из эффективного значения.
	if best == nil {
		v := domain.InstrumentVariable{
			ID:           uuid.New(),
			InstrumentID: opts.InstrumentID,
			Name:         name,
			Value:        serialized,
			Type:         value.Type,
			HelpText:     help,
			IsAdvanced:   advanced,
			TracksScript: opts.TracksScript,
			CreatedAt:    time.Now().UTC(),
		}
		if opts.ExperimentScope != nil {
			ref := *opts.ExperimentScope
			v.ExperimentReference = &ref
		} else {
			start := opts.RunNumber
			v.StartRun = &start
		}
		return Planned{Variable: v, Op: OpCreate}
	}

	// Строка зафиксирована человеком — её значение побеждает скрипт,
	// пока человек не сбросит флаг или не попросит обновление явно.
	if !best.TracksScript && !opts.ForceUpdate {
		return Planned{Variable: *best, Op: OpReuse}
	}

	changed := best.Value != serialized || best.Type != value.Type || best.HelpText != help

	if !changed {
		return Planned{Variable: *best, Op: OpReuse}
	}

	// Copy-on-write: изменение для run, отличного от start_run
	// строки, даёт новую строку — историческая конфигурация
	// остаётся байт-в-байт прежней.
	if best.StartRun != nil && *best.StartRun != opts.RunNumber {
		start := opts.RunNumber
		copied := domain.InstrumentVariable{
			ID:           uuid.New(),
			InstrumentID: best.InstrumentID,
			Name:         best.Name,
			Value:        serialized,
			Type:         value.Type,
			HelpText:     help,
			IsAdvanced:   advanced,
			TracksScript: best.TracksScript,
			StartRun:     &start,
			CreatedAt:    time.Now().UTC(),
		}
		return Planned{Variable: copied, Op: OpCreate}
	}

	// Изменение для того же run (или для строки эксперимента) —
	// обновление на месте: инвариант «не более одной строки на
	// (имя, эксперимент)» сохраняется.
	updated := *best
	updated.Value = serialized
	updated.Type = value.Type
	updated.HelpText = help
	updated.IsAdvanced = advanced
	return Planned{Variable: updated, Op: OpUpdate}
}

// pickCandidate выбирает лучшую существующую строку для имени.
//
// Приоритет: строка, привязанная к эксперименту run, — безусловно;
// иначе строка с наибольшим start_run, не превышающим номер run.
func pickCandidate(name string, candidates []domain.InstrumentVariable, runNumber int) *domain.InstrumentVariable {
	var byRange *domain.InstrumentVariable

	for i := range candidates {
		c := &candidates[i]
		if c.Name != name {
			continue
		}
		if c.AppliesToExperiment() {
			return c
		}
		if c.StartRun == nil || *c.StartRun > runNumber {
			continue
		}
		if byRange == nil || *c.StartRun > *byRange.StartRun {
			byRange = c
		}
	}

	return byRange
}
