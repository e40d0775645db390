package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
)

// InstrumentDTO — инструмент в ответе API.
type InstrumentDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"is_active"`
	IsPaused bool      `json:"is_paused"`
}

// RunDTO — reduction run в ответе API.
type RunDTO struct {
	ID           uuid.UUID  `json:"id"`
	InstrumentID uuid.UUID  `json:"instrument_id"`
	ExperimentID uuid.UUID  `json:"experiment_id"`
	RunNumber    int        `json:"run_number"`
	RunVersion   int        `json:"run_version"`
	Status       string     `json:"status"`
	StatusText   string     `json:"status_text"`
	Description  string     `json:"description,omitempty"`
	Message      string     `json:"message,omitempty"`
	Started      *time.Time `json:"started,omitempty"`
	Finished     *time.Time `json:"finished,omitempty"`
	DurationSec  float64    `json:"duration_sec,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RunDetailDTO — run с логами и артефактами.
type RunDetailDTO struct {
	RunDTO
	Arguments    string   `json:"arguments,omitempty"`
	ReductionLog string   `json:"reduction_log,omitempty"`
	AdminLog     string   `json:"admin_log,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
}

// RunVariableDTO — снимок переменной run.
type RunVariableDTO struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Type       string `json:"type"`
	HelpText   string `json:"help_text,omitempty"`
	IsAdvanced bool   `json:"is_advanced"`
}

// InstrumentVariableDTO — сохранённая переменная инструмента.
type InstrumentVariableDTO struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Value               string    `json:"value"`
	Type                string    `json:"type"`
	HelpText            string    `json:"help_text,omitempty"`
	IsAdvanced          bool      `json:"is_advanced"`
	TracksScript        bool      `json:"tracks_script"`
	ExperimentReference *int      `json:"experiment_reference,omitempty"`
	StartRun            *int      `json:"start_run,omitempty"`
}

// ResubmitRequest — запрос повторной отправки run.
type ResubmitRequest struct {
	// Arguments — переопределения переменных
	// {"standard_vars": {...}, "advanced_vars": {...}}.
	Arguments map[string]map[string]any `json:"arguments,omitempty"`

	// Overwrite — перезаписывать ли существующие артефакты.
	Overwrite bool `json:"overwrite,omitempty"`
}

// ResubmitResponse — результат повторной отправки.
type ResubmitResponse struct {
	Instrument string `json:"instrument"`
	RunNumber  int    `json:"run_number"`
	Message    string `json:"message"`
}

// --- Converters ---

func instrumentToDTO(inst *domain.Instrument) InstrumentDTO {
	return InstrumentDTO{
		ID:       inst.ID,
		Name:     inst.Name,
		IsActive: inst.IsActive,
		IsPaused: inst.IsPaused,
	}
}

func runToDTO(run *domain.ReductionRun) RunDTO {
	return RunDTO{
		ID:           run.ID,
		InstrumentID: run.InstrumentID,
		ExperimentID: run.ExperimentID,
		RunNumber:    run.RunNumber,
		RunVersion:   run.RunVersion,
		Status:       string(run.Status),
		StatusText:   run.Status.Verbose(),
		Description:  run.Description,
		Message:      run.Message,
		Started:      run.Started,
		Finished:     run.Finished,
		DurationSec:  run.Duration().Seconds(),
		CreatedAt:    run.CreatedAt,
	}
}

func runToDetailDTO(run *domain.ReductionRun, artifacts []domain.ReductionLocation) RunDetailDTO {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.FilePath)
	}
	return RunDetailDTO{
		RunDTO:       runToDTO(run),
		Arguments:    run.Arguments,
		ReductionLog: run.ReductionLog,
		AdminLog:     run.AdminLog,
		Artifacts:    paths,
	}
}

func instrumentVariableToDTO(v *domain.InstrumentVariable) InstrumentVariableDTO {
	return InstrumentVariableDTO{
		ID:                  v.ID,
		Name:                v.Name,
		Value:               v.Value,
		Type:                string(v.Type),
		HelpText:            v.HelpText,
		IsAdvanced:          v.IsAdvanced,
		TracksScript:        v.TracksScript,
		ExperimentReference: v.ExperimentReference,
		StartRun:            v.StartRun,
	}
}

func runVariableToDTO(v *domain.RunVariable) RunVariableDTO {
	return RunVariableDTO{
		Name:       v.Name,
		Value:      v.Value,
		Type:       string(v.Type),
		HelpText:   v.HelpText,
		IsAdvanced: v.IsAdvanced,
	}
}
