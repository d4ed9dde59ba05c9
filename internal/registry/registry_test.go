package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aidekernel/aide/internal/types"
)

func TestDecodeEntityCreate(t *testing.T) {
	raw := json.RawMessage(`{"id":"grocery","parent":"root","display":"table","props":{"title":{"kind":"string","str":"Groceries"}}}`)
	payload, err := Decode(types.PrimEntityCreate, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, ok := payload.(*types.EntityCreatePayload)
	if !ok {
		t.Fatalf("payload has wrong type: %T", payload)
	}
	if p.ID != "grocery" || p.Parent != "root" || p.Display != types.DisplayTable {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestDecodeRejectsUnknownDisplay(t *testing.T) {
	raw := json.RawMessage(`{"id":"x","parent":"root","display":"bogus"}`)
	_, err := Decode(types.PrimEntityCreate, raw)
	if err == nil {
		t.Fatal("expected error for unknown display")
	}
	if !errors.Is(err, types.ErrUnknownDisplay) {
		t.Fatalf("expected ErrUnknownDisplay, got %v", err)
	}
}

func TestDecodeRejectsReservedPropKey(t *testing.T) {
	raw := json.RawMessage(`{"id":"x","parent":"root","display":"card","props":{"_internal":{"kind":"string","str":"v"}}}`)
	_, err := Decode(types.PrimEntityCreate, raw)
	if err == nil {
		t.Fatal("expected error for reserved prop key")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	raw := json.RawMessage(`{not valid json`)
	_, err := Decode(types.PrimEntityCreate, raw)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !errors.Is(err, types.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestDecodeUnrecognisedPrimitive(t *testing.T) {
	_, err := Decode(types.Primitive("bogus.primitive"), json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for unrecognised primitive")
	}
}

func TestValidID(t *testing.T) {
	cases := map[string]bool{
		"grocery_milk": true,
		"root":         true,
		"Grocery":      false,
		"1abc":         false,
		"":             false,
	}
	for id, want := range cases {
		if got := ValidID(id); got != want {
			t.Errorf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestIsMutating(t *testing.T) {
	if !IsMutating(types.PrimEntityCreate) {
		t.Fatal("entity.create should be mutating")
	}
	if IsMutating(types.PrimVoice) {
		t.Fatal("voice should not be mutating")
	}
	if IsMutating(types.PrimBatchStart) {
		t.Fatal("batch.start should not be mutating")
	}
}

func TestCapacityChecks(t *testing.T) {
	if c := CheckEntitiesPerPage(100); c.Err != nil || c.Warning != "" {
		t.Fatalf("expected no warning/error under soft limit, got %+v", c)
	}
	if c := CheckEntitiesPerPage(250); c.Err != nil || c.Warning == "" {
		t.Fatalf("expected warning between soft and hard limit, got %+v", c)
	}
	if c := CheckEntitiesPerPage(600); c.Err == nil {
		t.Fatalf("expected error above hard limit, got %+v", c)
	}
}

func TestValidTimezone(t *testing.T) {
	if !ValidTimezone("America/New_York") {
		t.Fatal("America/New_York should be valid")
	}
	if ValidTimezone("Not/AZone") {
		t.Fatal("Not/AZone should be invalid")
	}
}

func TestSuggestDisplay(t *testing.T) {
	got, ok := SuggestDisplay("tabel")
	if !ok || got != "table" {
		t.Fatalf("SuggestDisplay(tabel) = (%q, %v), want (table, true)", got, ok)
	}
}
