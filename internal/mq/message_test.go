package mq

import (
	"encoding/json"
	"testing"
)

func TestParseReductionMessage(t *testing.T) {
	body := []byte(`{
		"run_number": 62892,
		"instrument": "WISH",
		"rb_number": 1234567,
		"data": "/archive/WISH00062892.nxs",
		"facility": "ISIS",
		"reduction_arguments": {"standard_vars": {"bins": 100}}
	}`)

	msg, err := ParseReductionMessage(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.RunNumber.Int() != 62892 {
		t.Errorf("run_number = %d", msg.RunNumber.Int())
	}
	if msg.Instrument != "WISH" {
		t.Errorf("instrument = %q", msg.Instrument)
	}
	if msg.RBNumber.Int() != 1234567 {
		t.Errorf("rb_number = %d", msg.RBNumber.Int())
	}
	// Argument numbers must survive as json.Number so variable
	// resolution can tell integers from floats.
	raw := msg.ReductionArguments["standard_vars"]["bins"]
	if _, ok := raw.(json.Number); !ok {
		t.Errorf("expected json.Number, got %T", raw)
	}
}

func TestIntLike_Tolerant(t *testing.T) {
	cases := []struct {
		json string
		want int
	}{
		{`123`, 123},
		{`"123"`, 123},
		{`" 123 "`, 123},
		{`"12a"`, 0},
		{`"RB1234567"`, 0},
		{`null`, 0},
	}

	for _, c := range cases {
		var n IntLike
		if err := json.Unmarshal([]byte(c.json), &n); err != nil {
			t.Fatalf("IntLike(%s): unexpected error: %v", c.json, err)
		}
		if n.Int() != c.want {
			t.Errorf("IntLike(%s) = %d, want %d", c.json, n.Int(), c.want)
		}
	}
}

func TestIntLike_MarshalAsNumber(t *testing.T) {
	out, err := json.Marshal(IntLike(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "42" {
		t.Errorf("got %s", out)
	}
}

func TestValidate(t *testing.T) {
	valid := ReductionMessage{
		RunNumber:  62892,
		Instrument: "WISH",
		RBNumber:   1234567,
		Data:       "/archive/WISH00062892.nxs",
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}

	noInstrument := valid
	noInstrument.Instrument = ""
	if err := noInstrument.Validate(); err == nil {
		t.Error("missing instrument must be rejected")
	}

	badRun := valid
	badRun.RunNumber = 0
	if err := badRun.Validate(); err == nil {
		t.Error("non-positive run_number must be rejected")
	}

	noData := valid
	noData.Data = ""
	if err := noData.Validate(); err == nil {
		t.Error("missing data path must be rejected")
	}

	// Invalid RB number does not fail validation: the run goes to
	// the calibration bucket instead.
	badRB := valid
	badRB.RBNumber = 0
	if err := badRB.Validate(); err != nil {
		t.Errorf("invalid rb_number must not fail validation: %v", err)
	}
}

func TestValidRBNumber(t *testing.T) {
	cases := []struct {
		n    int
		want bool
	}{
		{1234567, true},
		{1000000, true},
		{9999999, true},
		{999999, false},
		{10000000, false},
		{0, false},
		{-1234567, false},
	}
	for _, c := range cases {
		if got := ValidRBNumber(c.n); got != c.want {
			t.Errorf("ValidRBNumber(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}
