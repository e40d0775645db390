package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRunStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    RunStatus
		to      RunStatus
		allowed bool
	}{
		{RunStatusQueued, RunStatusProcessing, true},
		{RunStatusQueued, RunStatusSkipped, true},
		{RunStatusQueued, RunStatusError, true},
		{RunStatusQueued, RunStatusCompleted, false},

		{RunStatusProcessing, RunStatusCompleted, true},
		{RunStatusProcessing, RunStatusError, true},
		{RunStatusProcessing, RunStatusSkipped, true},
		{RunStatusProcessing, RunStatusQueued, false},

		// Re-run is the only way out of ERROR
		{RunStatusError, RunStatusProcessing, true},
		{RunStatusError, RunStatusCompleted, false},
		{RunStatusError, RunStatusSkipped, false},

		// COMPLETED and SKIPPED are terminal
		{RunStatusCompleted, RunStatusProcessing, false},
		{RunStatusCompleted, RunStatusError, false},
		{RunStatusSkipped, RunStatusProcessing, false},
		{RunStatusSkipped, RunStatusQueued, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s → %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	terminal := []RunStatus{RunStatusCompleted, RunStatusError, RunStatusSkipped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RunStatus{RunStatusQueued, RunStatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestReductionRun_MarkStarted(t *testing.T) {
	run := &ReductionRun{ID: uuid.New(), Status: RunStatusQueued}

	if err := run.MarkStarted(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunStatusProcessing {
		t.Errorf("expected PROCESSING, got %s", run.Status)
	}
	if run.Started == nil {
		t.Error("started timestamp should be set")
	}
}

func TestReductionRun_MarkStarted_FromError(t *testing.T) {
	// Re-run path: ERROR → PROCESSING is legal
	run := &ReductionRun{Status: RunStatusError}
	if err := run.MarkStarted(); err != nil {
		t.Fatalf("re-run from ERROR should be legal: %v", err)
	}
}

func TestReductionRun_MarkStarted_Illegal(t *testing.T) {
	for _, s := range []RunStatus{RunStatusProcessing, RunStatusCompleted, RunStatusSkipped} {
		run := &ReductionRun{Status: s}
		err := run.MarkStarted()
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("start from %s: expected ErrIllegalTransition, got %v", s, err)
		}
	}
}

func TestReductionRun_Finalize(t *testing.T) {
	run := &ReductionRun{Status: RunStatusProcessing}

	err := run.Finalize(RunStatusCompleted, "", "reduction log", "admin log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", run.Status)
	}
	if run.Finished == nil {
		t.Error("finished timestamp should be set")
	}
	if run.ReductionLog != "reduction log" || run.AdminLog != "admin log" {
		t.Error("logs should be recorded")
	}
}

func TestReductionRun_Finalize_CompletedRequiresProcessing(t *testing.T) {
	for _, s := range []RunStatus{RunStatusQueued, RunStatusError, RunStatusSkipped, RunStatusCompleted} {
		run := &ReductionRun{Status: s}
		err := run.Finalize(RunStatusCompleted, "", "", "")
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("complete from %s: expected ErrIllegalTransition, got %v", s, err)
		}
	}
}

func TestReductionRun_Finalize_ErrorFromTerminal(t *testing.T) {
	run := &ReductionRun{Status: RunStatusCompleted}
	err := run.Finalize(RunStatusError, "boom", "", "")
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestSnapshotOf(t *testing.T) {
	runID := uuid.New()
	v := &InstrumentVariable{
		ID:         uuid.New(),
		Name:       "wavelength_range",
		Value:      "0.5,6.0",
		Type:       VarTypeList,
		HelpText:   "Range to use",
		IsAdvanced: true,
	}

	snap := SnapshotOf(runID, v)

	if snap.ReductionRunID != runID {
		t.Error("snapshot should be bound to run")
	}
	if snap.VariableID != v.ID {
		t.Error("snapshot should reference source variable")
	}
	if snap.Name != v.Name || snap.Value != v.Value || snap.Type != v.Type || !snap.IsAdvanced {
		t.Error("snapshot should copy variable fields")
	}
}
