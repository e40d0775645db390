package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// InstrumentResponse — инструмент из API.
type InstrumentResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	IsPaused bool   `json:"is_paused"`
}

// RunResponse — reduction run из API.
type RunResponse struct {
	ID           string   `json:"id"`
	InstrumentID string   `json:"instrument_id"`
	ExperimentID string   `json:"experiment_id"`
	RunNumber    int      `json:"run_number"`
	RunVersion   int      `json:"run_version"`
	Status       string   `json:"status"`
	StatusText   string   `json:"status_text"`
	Description  string   `json:"description,omitempty"`
	Message      string   `json:"message,omitempty"`
	Started      string   `json:"started,omitempty"`
	Finished     string   `json:"finished,omitempty"`
	DurationSec  float64  `json:"duration_sec,omitempty"`
	CreatedAt    string   `json:"created_at"`
	Arguments    string   `json:"arguments,omitempty"`
	ReductionLog string   `json:"reduction_log,omitempty"`
	AdminLog     string   `json:"admin_log,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
}

// RunVariableResponse — снимок переменной run из API.
type RunVariableResponse struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Type       string `json:"type"`
	HelpText   string `json:"help_text,omitempty"`
	IsAdvanced bool   `json:"is_advanced"`
}

// InstrumentVariableResponse — сохранённая переменная инструмента из API.
type InstrumentVariableResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Value               string `json:"value"`
	Type                string `json:"type"`
	HelpText            string `json:"help_text,omitempty"`
	IsAdvanced          bool   `json:"is_advanced"`
	TracksScript        bool   `json:"tracks_script"`
	ExperimentReference *int   `json:"experiment_reference,omitempty"`
	StartRun            *int   `json:"start_run,omitempty"`
}

// ResubmitResponse — результат повторной отправки run.
type ResubmitResponse struct {
	Instrument string `json:"instrument"`
	RunNumber  int    `json:"run_number"`
	Message    string `json:"message"`
}

// --- Request types ---

// ResubmitRequest — повторная отправка run.
type ResubmitRequest struct {
	Arguments map[string]map[string]any `json:"arguments,omitempty"`
	Overwrite bool                      `json:"overwrite,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Instrument string
	Status     string
	RunNumber  int
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Reducta API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Instruments ---

// ListInstruments возвращает все инструменты.
func (c *Client) ListInstruments() ([]InstrumentResponse, error) {
	var instruments []InstrumentResponse
	err := c.list("/api/v1/instruments", nil, &instruments)
	return instruments, err
}

// SetInstrumentPaused переключает паузу инструмента.
func (c *Client) SetInstrumentPaused(name string, paused bool) (*InstrumentResponse, error) {
	body := map[string]bool{"paused": paused}
	var inst InstrumentResponse
	err := c.put("/api/v1/instruments/"+url.PathEscape(name)+"/paused", body, &inst)
	return &inst, err
}

// ListInstrumentVariables возвращает сохранённые переменные инструмента.
func (c *Client) ListInstrumentVariables(name string) ([]InstrumentVariableResponse, error) {
	var vars []InstrumentVariableResponse
	err := c.list("/api/v1/instruments/"+url.PathEscape(name)+"/variables", nil, &vars)
	return vars, err
}

// SetVariableTracksScript переключает флаг tracks_script переменной.
func (c *Client) SetVariableTracksScript(id string, tracks bool) error {
	body := map[string]bool{"tracks_script": tracks}
	return c.put("/api/v1/variables/"+url.PathEscape(id)+"/tracks", body, nil)
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Instrument != "" {
		params.Set("instrument", opts.Instrument)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.RunNumber > 0 {
		params.Set("run_number", strconv.Itoa(opts.RunNumber))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// ListRunVariables возвращает снимок переменных run.
func (c *Client) ListRunVariables(runID string) ([]RunVariableResponse, error) {
	var vars []RunVariableResponse
	err := c.list("/api/v1/runs/"+runID+"/variables", nil, &vars)
	return vars, err
}

// ResubmitRun повторно отправляет run на редукцию.
func (c *Client) ResubmitRun(instrument string, runNumber int, req ResubmitRequest) (*ResubmitResponse, error) {
	path := fmt.Sprintf("/api/v1/instruments/%s/runs/%d/resubmit", url.PathEscape(instrument), runNumber)
	var result ResubmitResponse
	err := c.post(path, req, &result)
	return &result, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
