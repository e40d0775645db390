package domain

import (
	"time"

	"github.com/google/uuid"
)

// VarType — тег типа значения переменной конфигурации.
//
// Значение хранится как текст, тип — явным тегом. Сериализация
// и разбор — в пакете variables.
type VarType string

const (
	VarTypeText    VarType = "text"
	VarTypeInteger VarType = "integer"
	VarTypeFloat   VarType = "float"
	VarTypeBoolean VarType = "boolean"
	VarTypeList    VarType = "list"
)

// InstrumentVariable — версионируемая переменная конфигурации.
//
// Область действия — либо эксперимент (ExperimentReference),
// либо открытый диапазон run-номеров, начиная со StartRun.
// Ровно одно из двух полей заполнено.
//
// Переменная с tracks_script=true обновляется из скрипта редукции;
// с false — зафиксирована человеком и всегда побеждает скрипт.
//
// Версионирование copy-on-write: если значение меняется для run,
// отличного от StartRun, создаётся новая строка — конфигурация
// исторических runs остаётся нетронутой.
type InstrumentVariable struct {
	// ID — уникальный идентификатор строки.
	ID uuid.UUID `json:"id"`

	// InstrumentID — инструмент, которому принадлежит переменная.
	InstrumentID uuid.UUID `json:"instrument_id"`

	// Name — имя переменной из скрипта редукции.
	Name string `json:"name"`

	// Value — значение, сериализованное в текст.
	Value string `json:"value"`

	// Type — тег типа значения.
	Type VarType `json:"type"`

	// HelpText — справка (после санитизации HTML).
	HelpText string `json:"help_text,omitempty"`

	// IsAdvanced — переменная из advanced_vars скрипта.
	IsAdvanced bool `json:"is_advanced"`

	// TracksScript — обновлять ли значение из скрипта.
	TracksScript bool `json:"tracks_script"`

	// ExperimentReference — область действия: точный RB number.
	// На пару (name, experiment_reference) — не более одной строки.
	ExperimentReference *int `json:"experiment_reference,omitempty"`

	// StartRun — область действия: с какого run-номера,
	// открытый диапазон до следующей строки.
	StartRun *int `json:"start_run,omitempty"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`
}

// AppliesToExperiment возвращает true для переменной,
// привязанной к эксперименту.
func (v *InstrumentVariable) AppliesToExperiment() bool {
	return v.ExperimentReference != nil
}

// RunVariable — снимок одной переменной, зафиксированный для run.
// Создаётся вместе с run, далее неизменяем: даже если строка
// InstrumentVariable позже изменится, снимок сохраняет точную
// конфигурацию, с которой run выполнялся.
type RunVariable struct {
	// ID — уникальный идентификатор снимка.
	ID uuid.UUID `json:"id"`

	// ReductionRunID — run, к которому привязан снимок.
	ReductionRunID uuid.UUID `json:"reduction_run_id"`

	// VariableID — исходная строка InstrumentVariable.
	VariableID uuid.UUID `json:"variable_id"`

	// Name, Value, Type, HelpText, IsAdvanced — копия полей
	// переменной на момент создания run.
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Type       VarType `json:"type"`
	HelpText   string  `json:"help_text,omitempty"`
	IsAdvanced bool    `json:"is_advanced"`
}

// SnapshotOf делает снимок переменной для run.
func SnapshotOf(runID uuid.UUID, v *InstrumentVariable) RunVariable {
	return RunVariable{
		ID:             uuid.New(),
		ReductionRunID: runID,
		VariableID:     v.ID,
		Name:           v.Name,
		Value:          v.Value,
		Type:           v.Type,
		HelpText:       v.HelpText,
		IsAdvanced:     v.IsAdvanced,
	}
}
