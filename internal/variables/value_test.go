package variables

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shaiso/Reducta/internal/domain"
)

func TestInfer(t *testing.T) {
	cases := []struct {
		raw        any
		wantType   domain.VarType
		serialized string
	}{
		{"7.5,8.0", domain.VarTypeText, "7.5,8.0"},
		{true, domain.VarTypeBoolean, "true"},
		{json.Number("42"), domain.VarTypeInteger, "42"},
		{json.Number("4.2"), domain.VarTypeFloat, "4.2"},
		{json.Number("1e3"), domain.VarTypeFloat, "1000"},
		{3, domain.VarTypeInteger, "3"},
		{2.5, domain.VarTypeFloat, "2.5"},
		{[]any{json.Number("1"), json.Number("2")}, domain.VarTypeList, "1, 2"},
		{nil, domain.VarTypeText, ""},
	}

	for _, c := range cases {
		v := Infer(c.raw)
		if v.Type != c.wantType {
			t.Errorf("Infer(%v): type %s, want %s", c.raw, v.Type, c.wantType)
		}
		if v.Serialize() != c.serialized {
			t.Errorf("Infer(%v): serialized %q, want %q", c.raw, v.Serialize(), c.serialized)
		}
	}
}

func TestSerialize_ListNoBrackets(t *testing.T) {
	v := List([]string{"0.5", "6.0"})
	if got := v.Serialize(); got != "0.5, 6.0" {
		t.Errorf("expected comma-joined form without brackets, got %q", got)
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		raw        any
		target     domain.VarType
		serialized string
	}{
		// Override arrives as string, default established integer type
		{"3", domain.VarTypeInteger, "3"},
		{"2.5", domain.VarTypeFloat, "2.5"},
		{json.Number("1"), domain.VarTypeBoolean, "true"},
		{"True", domain.VarTypeBoolean, "true"},
		{"a, b, c", domain.VarTypeList, "a, b, c"},
		{json.Number("5"), domain.VarTypeText, "5"},
		{json.Number("2.9"), domain.VarTypeInteger, "2"},
		{"garbage", domain.VarTypeInteger, "0"},
	}

	for _, c := range cases {
		v := Coerce(c.raw, c.target)
		if v.Type != c.target {
			t.Errorf("Coerce(%v, %s): type %s", c.raw, c.target, v.Type)
		}
		if v.Serialize() != c.serialized {
			t.Errorf("Coerce(%v, %s): serialized %q, want %q", c.raw, c.target, v.Serialize(), c.serialized)
		}
	}
}

func TestParseValue_RoundTrip(t *testing.T) {
	cases := []Value{
		Text("plain"),
		Integer(-17),
		Float(0.125),
		Boolean(true),
		List([]string{"1", "2", "3"}),
	}

	for _, v := range cases {
		back := ParseValue(v.Serialize(), v.Type)
		if !back.Equal(v) {
			t.Errorf("round trip of %s %q changed value to %q", v.Type, v.Serialize(), back.Serialize())
		}
	}
}

func TestValue_Native(t *testing.T) {
	if got := Integer(5).Native(); got != int64(5) {
		t.Errorf("expected int64(5), got %v (%T)", got, got)
	}
	if got := Boolean(false).Native(); got != false {
		t.Errorf("expected false, got %v", got)
	}
	if got := List([]string{"x"}).Native(); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("expected [x], got %v", got)
	}
}

func TestSanitizeHelp(t *testing.T) {
	got := SanitizeHelp("<b>bold</b>\nnext\tcol")
	want := "&lt;b&gt;bold&lt;/b&gt;<br>next&nbsp;&nbsp;&nbsp;&nbsp;col"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMerge_OverrideCoercedToEstablishedType(t *testing.T) {
	defaults := &ScriptDefaults{
		Standard: map[string]any{"bins": json.Number("100")},
		Advanced: map[string]any{},
	}
	overrides := map[string]map[string]any{
		KeyStandard: {"bins": "250"},
	}

	args := Merge(defaults, overrides)

	v := args.Standard["bins"]
	if v.Type != domain.VarTypeInteger {
		t.Errorf("override should keep the script's type, got %s", v.Type)
	}
	if v.Serialize() != "250" {
		t.Errorf("expected 250, got %q", v.Serialize())
	}
}

func TestMerge_UnknownOverrideDropped(t *testing.T) {
	defaults := &ScriptDefaults{
		Standard: map[string]any{"bins": json.Number("100")},
		Advanced: map[string]any{},
	}
	overrides := map[string]map[string]any{
		KeyStandard: {"no_such_var": "1"},
	}

	args := Merge(defaults, overrides)

	if _, ok := args.Standard["no_such_var"]; ok {
		t.Error("unknown override name should be silently dropped")
	}
	if args.Standard["bins"].Serialize() != "100" {
		t.Error("known defaults should be untouched")
	}
}
