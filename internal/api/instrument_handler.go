package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ListInstruments обрабатывает GET /api/v1/instruments.
func (h *Handler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instrumentRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	dtos := make([]InstrumentDTO, 0, len(instruments))
	for i := range instruments {
		dtos = append(dtos, instrumentToDTO(&instruments[i]))
	}
	List(w, dtos, len(dtos))
}

// SetInstrumentPaused обрабатывает PUT /api/v1/instruments/{name}/paused.
//
// Пауза не останавливает приём событий: runs создаются и
// финализируются как SKIPPED, пока инструмент на паузе.
func (h *Handler) SetInstrumentPaused(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	err := h.instrumentRepo.SetPaused(r.Context(), name, req.Paused)
	if HandleRepoError(w, h.logger, err, fmt.Sprintf("instrument %s not found", name)) {
		return
	}

	inst, err := h.instrumentRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	h.logger.Info("instrument pause toggled", "instrument", inst.Name, "paused", req.Paused)
	Success(w, instrumentToDTO(inst))
}

// ListInstrumentVariables обрабатывает GET /api/v1/instruments/{name}/variables.
//
// Возвращает все сохранённые версии переменных инструмента,
// включая исторические диапазоны start_run и привязки к экспериментам.
func (h *Handler) ListInstrumentVariables(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	inst, err := h.instrumentRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, fmt.Sprintf("instrument %s not found", name)) {
		return
	}

	vars, err := h.variableRepo.ListByInstrument(r.Context(), inst.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	dtos := make([]InstrumentVariableDTO, 0, len(vars))
	for i := range vars {
		dtos = append(dtos, instrumentVariableToDTO(&vars[i]))
	}
	List(w, dtos, len(dtos))
}

// SetVariableTracksScript обрабатывает PUT /api/v1/variables/{id}/tracks.
//
// Снятый флаг замораживает значение: resolver перестаёт подтягивать
// defaults из скрипта при создании новых версий переменной.
func (h *Handler) SetVariableTracksScript(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid variable id")
		return
	}

	var req struct {
		TracksScript bool `json:"tracks_script"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	err = h.variableRepo.SetTracksScript(r.Context(), id, req.TracksScript)
	if HandleRepoError(w, h.logger, err, fmt.Sprintf("variable %s not found", id)) {
		return
	}

	h.logger.Info("variable tracks_script toggled", "variable_id", id, "tracks_script", req.TracksScript)
	Success(w, map[string]any{"id": id, "tracks_script": req.TracksScript})
}
