package variables

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Reducta/internal/domain"
)

func intPtr(v int) *int { return &v }

func candidate(name, value string, t domain.VarType, startRun, expRef *int, tracks bool) domain.InstrumentVariable {
	return domain.InstrumentVariable{
		ID:                  uuid.New(),
		Name:                name,
		Value:               value,
		Type:                t,
		TracksScript:        tracks,
		StartRun:            startRun,
		ExperimentReference: expRef,
		CreatedAt:           time.Now().UTC(),
	}
}

func singleArg(name string, v Value) Arguments {
	return Arguments{
		Standard: map[string]Value{name: v},
		Advanced: map[string]Value{},
		Help:     map[string]map[string]string{},
	}
}

func TestResolve_NoCandidates_CreatesRunScoped(t *testing.T) {
	instrumentID := uuid.New()
	plan := Resolve(singleArg("bins", Integer(100)), nil, Options{
		InstrumentID: instrumentID,
		RunNumber:    500,
		TracksScript: true,
	})

	if len(plan) != 1 {
		t.Fatalf("expected 1 planned variable, got %d", len(plan))
	}
	p := plan[0]
	if p.Op != OpCreate {
		t.Errorf("expected create, got %s", p.Op)
	}
	if p.Variable.StartRun == nil || *p.Variable.StartRun != 500 {
		t.Errorf("new row must start at the triggering run, got %v", p.Variable.StartRun)
	}
	if p.Variable.ExperimentReference != nil {
		t.Error("automatic submission must not create experiment-scoped rows")
	}
	if p.Variable.InstrumentID != instrumentID {
		t.Error("row must belong to the instrument")
	}
}

func TestResolve_ExperimentScopeWinsOverStartRun(t *testing.T) {
	// A row bound to the run's experiment beats any start_run row,
	// even one starting exactly at this run number.
	expScoped := candidate("bins", "7", domain.VarTypeInteger, nil, intPtr(1234567), true)
	runScoped := candidate("bins", "9", domain.VarTypeInteger, intPtr(500), nil, true)

	plan := Resolve(singleArg("bins", Integer(7)), []domain.InstrumentVariable{runScoped, expScoped}, Options{
		RunNumber:    500,
		TracksScript: true,
	})

	if len(plan) != 1 {
		t.Fatalf("expected 1 planned variable, got %d", len(plan))
	}
	if plan[0].Op != OpReuse {
		t.Errorf("expected reuse of the experiment-scoped row, got %s", plan[0].Op)
	}
	if plan[0].Variable.ID != expScoped.ID {
		t.Error("experiment-scoped row must win")
	}
}

func TestResolve_GreatestStartRunNotExceedingRun(t *testing.T) {
	older := candidate("bins", "1", domain.VarTypeInteger, intPtr(100), nil, true)
	newer := candidate("bins", "2", domain.VarTypeInteger, intPtr(400), nil, true)
	future := candidate("bins", "3", domain.VarTypeInteger, intPtr(600), nil, true)

	plan := Resolve(singleArg("bins", Integer(2)), []domain.InstrumentVariable{future, older, newer}, Options{
		RunNumber:    500,
		TracksScript: true,
	})

	if plan[0].Variable.ID != newer.ID {
		t.Errorf("expected the start_run=400 row, got start_run=%v", plan[0].Variable.StartRun)
	}
	if plan[0].Op != OpReuse {
		t.Errorf("expected reuse, got %s", plan[0].Op)
	}
}

func TestResolve_CopyOnWrite(t *testing.T) {
	// Script value changed and the matched row started at an earlier
	// run: history is preserved by creating a new row at this run.
	old := candidate("bins", "100", domain.VarTypeInteger, intPtr(100), nil, true)

	plan := Resolve(singleArg("bins", Integer(250)), []domain.InstrumentVariable{old}, Options{
		RunNumber:    500,
		TracksScript: true,
	})

	p := plan[0]
	if p.Op != OpCreate {
		t.Fatalf("expected copy-on-write create, got %s", p.Op)
	}
	if p.Variable.ID == old.ID {
		t.Error("copy-on-write must mint a new row")
	}
	if p.Variable.StartRun == nil || *p.Variable.StartRun != 500 {
		t.Errorf("new row must start at the triggering run, got %v", p.Variable.StartRun)
	}
	if p.Variable.Value != "250" {
		t.Errorf("new row carries the new value, got %q", p.Variable.Value)
	}
}

func TestResolve_InPlaceUpdateWhenStartRunEqualsRun(t *testing.T) {
	// The matched row already starts at this run: no history to
	// preserve, update in place.
	same := candidate("bins", "100", domain.VarTypeInteger, intPtr(500), nil, true)

	plan := Resolve(singleArg("bins", Integer(250)), []domain.InstrumentVariable{same}, Options{
		RunNumber:    500,
		TracksScript: true,
	})

	p := plan[0]
	if p.Op != OpUpdate {
		t.Fatalf("expected in-place update, got %s", p.Op)
	}
	if p.Variable.ID != same.ID {
		t.Error("in-place update keeps the row identity")
	}
	if p.Variable.Value != "250" {
		t.Errorf("expected updated value, got %q", p.Variable.Value)
	}
}

func TestResolve_FrozenRowIgnoresScriptChange(t *testing.T) {
	// tracks_script off: the stored value is authoritative and the
	// changed script default must not touch it.
	frozen := candidate("bins", "100", domain.VarTypeInteger, intPtr(100), nil, false)

	plan := Resolve(singleArg("bins", Integer(999)), []domain.InstrumentVariable{frozen}, Options{
		RunNumber:    500,
		TracksScript: true,
	})

	p := plan[0]
	if p.Op != OpReuse {
		t.Fatalf("expected reuse of the frozen row, got %s", p.Op)
	}
	if p.Variable.Value != "100" {
		t.Errorf("frozen value must survive, got %q", p.Variable.Value)
	}
}

func TestResolve_ForceUpdateOverridesFrozen(t *testing.T) {
	frozen := candidate("bins", "100", domain.VarTypeInteger, intPtr(500), nil, false)

	plan := Resolve(singleArg("bins", Integer(250)), []domain.InstrumentVariable{frozen}, Options{
		RunNumber:    500,
		TracksScript: true,
		ForceUpdate:  true,
	})

	if plan[0].Op != OpUpdate {
		t.Errorf("force update must write even frozen rows, got %s", plan[0].Op)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	// Resolving twice against the state produced by the first pass
	// plans no writes the second time.
	args := singleArg("bins", Integer(250))
	old := candidate("bins", "100", domain.VarTypeInteger, intPtr(100), nil, true)

	first := Resolve(args, []domain.InstrumentVariable{old}, Options{RunNumber: 500, TracksScript: true})
	if first[0].Op != OpCreate {
		t.Fatalf("setup: expected create, got %s", first[0].Op)
	}

	second := Resolve(args, []domain.InstrumentVariable{old, first[0].Variable}, Options{RunNumber: 500, TracksScript: true})
	if second[0].Op != OpReuse {
		t.Errorf("second resolution must be a no-op, got %s", second[0].Op)
	}
	if second[0].Variable.ID != first[0].Variable.ID {
		t.Error("second resolution must land on the row created first")
	}
}

func TestResolve_ExperimentScopeCreation(t *testing.T) {
	// Manual submission with an experiment scope creates rows bound
	// to the experiment, not to a start run.
	plan := Resolve(singleArg("bins", Integer(100)), nil, Options{
		RunNumber:       500,
		ExperimentScope: intPtr(1234567),
		TracksScript:    true,
	})

	p := plan[0]
	if p.Op != OpCreate {
		t.Fatalf("expected create, got %s", p.Op)
	}
	if p.Variable.ExperimentReference == nil || *p.Variable.ExperimentReference != 1234567 {
		t.Errorf("expected experiment-scoped row, got %v", p.Variable.ExperimentReference)
	}
	if p.Variable.StartRun != nil {
		t.Error("experiment-scoped row must not carry a start run")
	}
}

func TestResolve_OrderedStandardThenAdvanced(t *testing.T) {
	args := Arguments{
		Standard: map[string]Value{"zeta": Integer(1), "alpha": Integer(2)},
		Advanced: map[string]Value{"beta": Integer(3)},
		Help:     map[string]map[string]string{},
	}

	plan := Resolve(args, nil, Options{RunNumber: 1, TracksScript: true})

	var names []string
	for _, p := range plan {
		names = append(names, p.Variable.Name)
	}
	want := []string{"alpha", "zeta", "beta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
	if !plan[2].Variable.IsAdvanced {
		t.Error("advanced variable must be flagged advanced")
	}
}
