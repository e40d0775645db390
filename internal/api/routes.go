package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Instruments
	mux.Handle("GET /api/v1/instruments", chain(http.HandlerFunc(h.ListInstruments)))
	mux.Handle("PUT /api/v1/instruments/{name}/paused", chain(http.HandlerFunc(h.SetInstrumentPaused)))

	// Instrument variables
	mux.Handle("GET /api/v1/instruments/{name}/variables", chain(http.HandlerFunc(h.ListInstrumentVariables)))
	mux.Handle("PUT /api/v1/variables/{id}/tracks", chain(http.HandlerFunc(h.SetVariableTracksScript)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/variables", chain(http.HandlerFunc(h.ListRunVariables)))
	mux.Handle("POST /api/v1/instruments/{name}/runs/{run_number}/resubmit", chain(http.HandlerFunc(h.ResubmitRun)))
}
