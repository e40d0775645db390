package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Reducta/internal/domain"
	"github.com/shaiso/Reducta/internal/mq"
	"github.com/shaiso/Reducta/internal/scripts"
)

// --- Fakes ---

type fakeAck struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeInstruments struct {
	active    bool
	paused    bool
	known     map[string]*domain.Instrument
	activated []string
}

func (f *fakeInstruments) GetOrCreate(ctx context.Context, name string) (*domain.Instrument, error) {
	if f.known == nil {
		f.known = map[string]*domain.Instrument{}
	}
	name = strings.ToUpper(name)
	if inst, ok := f.known[name]; ok {
		return inst, nil
	}
	inst := &domain.Instrument{
		ID:        uuid.New(),
		Name:      name,
		IsActive:  f.active,
		IsPaused:  f.paused,
		CreatedAt: time.Now().UTC(),
	}
	f.known[name] = inst
	return inst, nil
}

func (f *fakeInstruments) SetActive(ctx context.Context, name string, active bool) error {
	f.activated = append(f.activated, name)
	if inst, ok := f.known[strings.ToUpper(name)]; ok {
		inst.IsActive = active
	}
	return nil
}

type fakeExperiments struct {
	refs []int
	byID map[int]*domain.Experiment
}

func (f *fakeExperiments) GetOrCreate(ctx context.Context, ref int) (*domain.Experiment, error) {
	if f.byID == nil {
		f.byID = map[int]*domain.Experiment{}
	}
	f.refs = append(f.refs, ref)
	if exp, ok := f.byID[ref]; ok {
		return exp, nil
	}
	exp := &domain.Experiment{ID: uuid.New(), ReferenceNumber: ref, CreatedAt: time.Now().UTC()}
	f.byID[ref] = exp
	return exp, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []*domain.ReductionRun
}

func (f *fakeRuns) Create(ctx context.Context, run *domain.ReductionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs = append(f.runs, &cp)
	return nil
}

func (f *fakeRuns) Update(ctx context.Context, run *domain.ReductionRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.runs {
		if r.ID == run.ID {
			cp := *run
			f.runs[i] = &cp
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeRuns) NextRunVersion(ctx context.Context, experimentID uuid.UUID, runNumber int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := 0
	for _, r := range f.runs {
		if r.ExperimentID == experimentID && r.RunNumber == runNumber && r.RunVersion >= next {
			next = r.RunVersion + 1
		}
	}
	return next, nil
}

func (f *fakeRuns) latest() *domain.ReductionRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return nil
	}
	return f.runs[len(f.runs)-1]
}

type fakeLocations struct {
	data      []domain.DataLocation
	artifacts []domain.ReductionLocation
}

func (f *fakeLocations) CreateDataLocation(ctx context.Context, loc *domain.DataLocation) error {
	f.data = append(f.data, *loc)
	return nil
}

func (f *fakeLocations) CreateReductionLocations(ctx context.Context, locs []domain.ReductionLocation) error {
	f.artifacts = append(f.artifacts, locs...)
	return nil
}

type fakeScripts struct {
	text string
	err  error
}

func (f *fakeScripts) Text(instrument string) (string, error) {
	return f.text, f.err
}

type fakeVariables struct {
	err     error
	payload map[string]map[string]any
}

func (f *fakeVariables) CreateRunVariables(ctx context.Context, run *domain.ReductionRun, instrumentName string, experimentReference int, overrides map[string]map[string]any) ([]domain.RunVariable, map[string]map[string]any, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	payload := f.payload
	if payload == nil {
		payload = map[string]map[string]any{"standard_vars": {}, "advanced_vars": {}}
	}
	return nil, payload, nil
}

type fakeLauncher struct {
	called bool
	input  *mq.ReductionMessage
	result *mq.ReductionMessage
	err    error
}

func (f *fakeLauncher) Launch(ctx context.Context, msg *mq.ReductionMessage) (*mq.ReductionMessage, error) {
	f.called = true
	f.input = msg
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	out := *msg
	return &out, nil
}

type fakePublisher struct {
	skipped   []*mq.ReductionMessage
	errored   []*mq.ReductionMessage
	completed []*mq.ReductionMessage
}

func (f *fakePublisher) PublishSkipped(ctx context.Context, msg *mq.ReductionMessage) error {
	f.skipped = append(f.skipped, msg)
	return nil
}

func (f *fakePublisher) PublishError(ctx context.Context, msg *mq.ReductionMessage) error {
	f.errored = append(f.errored, msg)
	return nil
}

func (f *fakePublisher) PublishCompleted(ctx context.Context, msg *mq.ReductionMessage) error {
	f.completed = append(f.completed, msg)
	return nil
}

// --- Harness ---

type harness struct {
	orch        *Orchestrator
	instruments *fakeInstruments
	experiments *fakeExperiments
	runs        *fakeRuns
	locations   *fakeLocations
	scripts     *fakeScripts
	variables   *fakeVariables
	launcher    *fakeLauncher
	publisher   *fakePublisher
}

func newHarness() *harness {
	h := &harness{
		instruments: &fakeInstruments{active: true},
		experiments: &fakeExperiments{},
		runs:        &fakeRuns{},
		locations:   &fakeLocations{},
		scripts:     &fakeScripts{text: "def main(): pass"},
		variables:   &fakeVariables{},
		launcher:    &fakeLauncher{},
		publisher:   &fakePublisher{},
	}
	h.orch = New(Config{
		Instruments: h.instruments,
		Experiments: h.experiments,
		Runs:        h.runs,
		Locations:   h.locations,
		Scripts:     h.scripts,
		Variables:   h.variables,
		Launcher:    h.launcher,
		Publisher:   h.publisher,
	})
	return h
}

func delivery(msg mq.ReductionMessage) (*mq.Delivery, *fakeAck) {
	ack := &fakeAck{}
	return &mq.Delivery{
		Message: msg,
		Raw:     amqp.Delivery{Acknowledger: ack},
	}, ack
}

func dataReady() mq.ReductionMessage {
	return mq.ReductionMessage{
		RunNumber:  100,
		Instrument: "DEMO",
		RBNumber:   1234567,
		Data:       "/archive/DEMO00000100.nxs",
		Facility:   "ISIS",
	}
}

// --- Tests ---

func TestHandleDataReady_HappyPath(t *testing.T) {
	h := newHarness()
	h.launcher.result = &mq.ReductionMessage{
		RunNumber:     100,
		Instrument:    "DEMO",
		RBNumber:      1234567,
		Data:          "/archive/DEMO00000100.nxs",
		ReductionData: []string{"/out/DEMO/RB1234567/100"},
		ReductionLog:  "reduced fine",
	}

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := h.runs.latest()
	if run == nil {
		t.Fatal("run was not created")
	}
	if run.RunVersion != 0 {
		t.Errorf("first reduction must be version 0, got %d", run.RunVersion)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want %s", run.Status, domain.RunStatusCompleted)
	}
	if run.Started == nil || run.Finished == nil {
		t.Error("started/finished must be set")
	}
	if run.ReductionLog != "reduced fine" {
		t.Errorf("reduction log = %q", run.ReductionLog)
	}

	if len(h.locations.data) != 1 || h.locations.data[0].FilePath != "/archive/DEMO00000100.nxs" {
		t.Errorf("data location = %v", h.locations.data)
	}
	if len(h.locations.artifacts) != 1 || h.locations.artifacts[0].FilePath != "/out/DEMO/RB1234567/100" {
		t.Errorf("artifacts = %v", h.locations.artifacts)
	}

	if !h.launcher.called {
		t.Error("launcher was not called")
	}
	if h.launcher.input.ReductionScript != "def main(): pass" {
		t.Error("outbound message must carry the script")
	}

	if len(h.publisher.completed) != 1 {
		t.Fatalf("completed events = %d", len(h.publisher.completed))
	}
	if !ack.acked {
		t.Error("message must be acked")
	}
}

func TestHandleDataReady_RunVersionIncrements(t *testing.T) {
	h := newHarness()

	for want := 0; want < 3; want++ {
		d, _ := delivery(dataReady())
		if err := h.orch.handleDataReady(context.Background(), d); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := h.runs.latest().RunVersion; got != want {
			t.Errorf("run version = %d, want %d", got, want)
		}
	}
}

func TestHandleDataReady_PausedInstrumentSkips(t *testing.T) {
	h := newHarness()
	h.instruments.paused = true

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := h.runs.latest()
	if run.Status != domain.RunStatusSkipped {
		t.Errorf("status = %s, want %s", run.Status, domain.RunStatusSkipped)
	}
	if run.Message != "Instrument is paused" {
		t.Errorf("message = %q", run.Message)
	}
	if h.launcher.called {
		t.Error("paused instrument must not launch a reduction")
	}
	if len(h.publisher.skipped) != 1 {
		t.Errorf("skipped events = %d", len(h.publisher.skipped))
	}
	if !ack.acked {
		t.Error("skipped run still acks the message")
	}
}

func TestHandleDataReady_InactiveInstrumentReactivated(t *testing.T) {
	h := newHarness()
	h.instruments.active = false

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// New data with a live script brings the instrument back.
	if len(h.instruments.activated) != 1 || h.instruments.activated[0] != "DEMO" {
		t.Errorf("instrument must be activated on data_ready, activations = %v", h.instruments.activated)
	}
	if inst := h.instruments.known["DEMO"]; inst == nil || !inst.IsActive {
		t.Error("instrument must be active after data_ready")
	}

	run := h.runs.latest()
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("status = %s, want %s", run.Status, domain.RunStatusCompleted)
	}
	if !h.launcher.called {
		t.Error("reactivated instrument must launch the reduction")
	}
	if !ack.acked {
		t.Error("message must be acked")
	}
}

func TestHandleDataReady_InactiveWithoutScriptStaysInactive(t *testing.T) {
	h := newHarness()
	h.instruments.active = false
	h.scripts.text = ""
	h.scripts.err = fmt.Errorf("%w: DEMO", scripts.ErrNoScript)

	d, _ := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.instruments.activated) != 0 {
		t.Errorf("no script means no activation, activations = %v", h.instruments.activated)
	}
	if h.runs.latest().Status != domain.RunStatusError {
		t.Errorf("status = %s", h.runs.latest().Status)
	}
}

func TestHandleDataReady_InvalidRBGoesToCalibration(t *testing.T) {
	h := newHarness()

	msg := dataReady()
	msg.RBNumber = 0 // what "12a" parses to
	d, ack := delivery(msg)

	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.experiments.refs) != 1 || h.experiments.refs[0] != 0 {
		t.Errorf("expected calibration experiment 0, got %v", h.experiments.refs)
	}
	// The run is still reduced, just filed under RB 0.
	if h.runs.latest().Status != domain.RunStatusCompleted {
		t.Errorf("status = %s", h.runs.latest().Status)
	}
	if !ack.acked {
		t.Error("message must be acked")
	}
}

func TestHandleDataReady_MissingScript(t *testing.T) {
	h := newHarness()
	h.scripts.text = ""
	h.scripts.err = fmt.Errorf("%w: DEMO", scripts.ErrNoScript)

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := h.runs.latest()
	if run == nil {
		t.Fatal("run record must exist even without a script")
	}
	if run.Status != domain.RunStatusError {
		t.Errorf("status = %s, want %s", run.Status, domain.RunStatusError)
	}
	if h.launcher.called {
		t.Error("must not launch without a script")
	}
	if len(h.publisher.errored) != 1 {
		t.Errorf("error events = %d", len(h.publisher.errored))
	}
	if !ack.acked {
		t.Error("message must be acked")
	}
}

func TestHandleDataReady_InvalidMessageGoesToDLQ(t *testing.T) {
	h := newHarness()

	msg := dataReady()
	msg.Data = ""
	d, ack := delivery(msg)

	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("invalid message must not requeue: %v", err)
	}

	if h.runs.latest() != nil {
		t.Error("no run must be created for an invalid message")
	}
	if !ack.nacked || ack.requeue {
		t.Error("invalid message must be nacked without requeue")
	}
}

func TestHandleDataReady_LaunchFailure(t *testing.T) {
	h := newHarness()
	h.launcher.err = errors.New("exec: no such file")

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := h.runs.latest()
	if run.Status != domain.RunStatusError {
		t.Errorf("status = %s, want %s", run.Status, domain.RunStatusError)
	}
	if run.AdminLog != "exec: no such file" {
		t.Errorf("admin log = %q", run.AdminLog)
	}
	if len(h.publisher.errored) != 1 {
		t.Errorf("error events = %d", len(h.publisher.errored))
	}
	if !ack.acked {
		t.Error("failed run still acks the message")
	}
}

func TestHandleDataReady_ProcessReportsError(t *testing.T) {
	h := newHarness()
	h.launcher.result = &mq.ReductionMessage{
		RunNumber:  100,
		Instrument: "DEMO",
		Message:    "bad detector table",
		AdminLog:   "traceback...",
	}

	d, _ := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := h.runs.latest()
	if run.Status != domain.RunStatusError {
		t.Errorf("status = %s", run.Status)
	}
	if run.Message != "bad detector table" {
		t.Errorf("message = %q", run.Message)
	}
}

func TestHandleDataReady_DefaultsFaultFinalizesError(t *testing.T) {
	// A missing or malformed reduce_vars is deterministic: the run
	// is recorded as ERROR and the message acked, not redelivered.
	for _, sentinel := range []error{scripts.ErrNoDefaults, scripts.ErrBadDefaults} {
		h := newHarness()
		h.variables.err = fmt.Errorf("%w for DEMO", sentinel)

		d, ack := delivery(dataReady())
		if err := h.orch.handleDataReady(context.Background(), d); err != nil {
			t.Fatalf("%v: unexpected error: %v", sentinel, err)
		}

		run := h.runs.latest()
		if run.Status != domain.RunStatusError {
			t.Errorf("%v: status = %s", sentinel, run.Status)
		}
		if h.launcher.called {
			t.Errorf("%v: must not launch after a defaults fault", sentinel)
		}
		if !ack.acked {
			t.Errorf("%v: configuration fault still acks the message", sentinel)
		}
	}
}

func TestHandleDataReady_TransientVariableFailureRequeues(t *testing.T) {
	h := newHarness()
	h.variables.err = errors.New("dial tcp: connection refused")

	d, ack := delivery(dataReady())
	if err := h.orch.handleDataReady(context.Background(), d); err == nil {
		t.Fatal("transient store failure must surface to the consumer for redelivery")
	}

	// The run is not finalized: redelivery will retry it.
	if got := h.runs.latest().Status; got != domain.RunStatusQueued {
		t.Errorf("status = %s, want %s", got, domain.RunStatusQueued)
	}
	if h.launcher.called {
		t.Error("must not launch after a store failure")
	}
	if ack.acked {
		t.Error("message must not be acked on a transient failure")
	}
}

func TestStartAfterStopReturnsError(t *testing.T) {
	h := newHarness()
	h.orch.Stop()

	if err := h.orch.Start(context.Background()); !errors.Is(err, ErrOrchestratorStopped) {
		t.Errorf("Start after Stop = %v, want %v", err, ErrOrchestratorStopped)
	}
}
