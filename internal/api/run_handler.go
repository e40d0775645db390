package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/mq"
	"github.com/shaiso/Reducta/internal/repo"
)

// ListRuns обрабатывает GET /api/v1/runs.
//
// Query параметры: instrument, status, run_number, limit, offset.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{Limit: 50}

	if name := r.URL.Query().Get("instrument"); name != "" {
		inst, err := h.instrumentRepo.GetByName(r.Context(), name)
		if HandleRepoError(w, h.logger, err, fmt.Sprintf("instrument %s not found", name)) {
			return
		}
		filter.InstrumentID = &inst.ID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
		if !filter.Status.Valid() {
			BadRequest(w, fmt.Sprintf("unknown status %q", status))
			return
		}
	}

	if raw := r.URL.Query().Get("run_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(w, "run_number must be an integer")
			return
		}
		filter.RunNumber = &n
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for i := range runs {
		dtos = append(dtos, runToDTO(&runs[i]))
	}
	List(w, dtos, len(dtos))
}

// GetRun обрабатывает GET /api/v1/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	artifacts, err := h.locationRepo.ListReductionLocations(r.Context(), run.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, runToDetailDTO(run, artifacts))
}

// ListRunVariables обрабатывает GET /api/v1/runs/{id}/variables.
func (h *Handler) ListRunVariables(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	vars, err := h.variableRepo.ListForRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	dtos := make([]RunVariableDTO, 0, len(vars))
	for i := range vars {
		dtos = append(dtos, runVariableToDTO(&vars[i]))
	}
	List(w, dtos, len(dtos))
}

// ResubmitRun обрабатывает POST /api/v1/instruments/{name}/runs/{run_number}/resubmit.
//
// Публикует свежее data_ready сообщение для последней версии run.
// Повторная редукция получит следующую версию.
func (h *Handler) ResubmitRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	runNumber, err := strconv.Atoi(r.PathValue("run_number"))
	if err != nil || runNumber <= 0 {
		BadRequest(w, "run_number must be a positive integer")
		return
	}

	// API без брокера работает в режиме чтения
	if h.publisher == nil {
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "resubmission unavailable: message broker not connected")
		return
	}

	var req ResubmitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	inst, err := h.instrumentRepo.GetByName(r.Context(), name)
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, fmt.Sprintf("Run number %d hasn't been run by autoreduction yet", runNumber))
		return
	}
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	latest, err := h.runRepo.Latest(r.Context(), inst.ID, runNumber)
	if errors.Is(err, repo.ErrNotFound) {
		NotFound(w, fmt.Sprintf("Run number %d hasn't been run by autoreduction yet", runNumber))
		return
	}
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	if !latest.Status.IsTerminal() {
		Conflict(w, fmt.Sprintf("Run number %d is already queued", runNumber))
		return
	}

	experiment, err := h.experimentRepo.GetByID(r.Context(), latest.ExperimentID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	data, err := h.locationRepo.GetDataLocation(r.Context(), latest.ID)
	if HandleRepoError(w, h.logger, err, "run has no data location") {
		return
	}

	msg := &mq.ReductionMessage{
		RunNumber:          mq.IntLike(runNumber),
		Instrument:         inst.Name,
		RBNumber:           mq.IntLike(experiment.ReferenceNumber),
		Data:               data.FilePath,
		Description:        latest.Description,
		Overwrite:          req.Overwrite,
		StartedBy:          1, // manual submission
		ReductionArguments: req.Arguments,
	}

	if err := h.publisher.PublishDataReady(r.Context(), msg); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("run resubmitted",
		"instrument", inst.Name,
		"run_number", runNumber,
		"previous_version", latest.RunVersion,
	)

	Accepted(w, ResubmitResponse{
		Instrument: inst.Name,
		RunNumber:  runNumber,
		Message:    "resubmitted for reduction",
	})
}
