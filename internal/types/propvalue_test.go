package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPropValueJSONRoundTrip(t *testing.T) {
	cases := []PropValue{
		NewString("hello"),
		NewNumber(3.5),
		NewBool(true),
		NewDate(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)),
		NewDateTime(time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC)),
		NewArray([]PropValue{NewString("a"), NewNumber(1)}),
		NewMap(map[string]PropValue{"k": NewBool(false)}),
	}

	for _, in := range cases {
		data, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal %v: %v", in.Kind, err)
		}
		var out PropValue
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshal %v: %v", in.Kind, err)
		}
		if out.Kind != in.Kind {
			t.Fatalf("kind mismatch: got %v want %v", out.Kind, in.Kind)
		}
		switch in.Kind {
		case PropString:
			if out.Str != in.Str {
				t.Fatalf("str mismatch: got %q want %q", out.Str, in.Str)
			}
		case PropDate:
			if !out.Date.Equal(in.Date) {
				t.Fatalf("date mismatch: got %v want %v", out.Date, in.Date)
			}
		case PropDateTime:
			if !out.DateTime.Equal(in.DateTime) {
				t.Fatalf("datetime mismatch: got %v want %v", out.DateTime, in.DateTime)
			}
		}
	}
}

func TestPropValueDepth(t *testing.T) {
	scalar := NewString("x")
	if got := scalar.Depth(); got != 1 {
		t.Fatalf("scalar depth = %d, want 1", got)
	}

	nested := NewArray([]PropValue{
		NewMap(map[string]PropValue{"a": NewString("b")}),
	})
	if got := nested.Depth(); got != 3 {
		t.Fatalf("nested depth = %d, want 3", got)
	}
}

func TestPropValueLen(t *testing.T) {
	arr := NewArray([]PropValue{NewNumber(1), NewNumber(2), NewNumber(3)})
	if got := arr.Len(); got != 3 {
		t.Fatalf("array len = %d, want 3", got)
	}
	if got := NewString("x").Len(); got != 0 {
		t.Fatalf("scalar len = %d, want 0", got)
	}
}

func TestUnmarshalUnknownKind(t *testing.T) {
	var v PropValue
	err := json.Unmarshal([]byte(`{"kind":"bogus"}`), &v)
	if err == nil {
		t.Fatal("expected error for unknown kind, got nil")
	}
}
