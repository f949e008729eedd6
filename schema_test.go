package main

import (
	"errors"
	"testing"
)

func TestColumnsMatchRegistryOrder(t *testing.T) {
	cols := Columns()
	if len(cols) != len(fieldRegistry) {
		t.Fatalf("expected %d columns, got %d", len(fieldRegistry), len(cols))
	}
	if cols[0] != "scope_decision" {
		t.Fatalf("expected scope_decision first, got %q", cols[0])
	}
	if cols[len(cols)-1] != "original_text" {
		t.Fatalf("expected original_text last, got %q", cols[len(cols)-1])
	}
}

func TestFallbackPolicy(t *testing.T) {
	expected := map[string]string{
		"axis_A":              naValue,
		"axis_B":              naValue,
		"axis_C":              naValue,
		"participation_level": naValue,
		"equity_level":        naValue,
		"env_level":           naValue,
		"explicit_definition": "No",
		"typology_proposed":   "No",
		"evidence_quality":    "Moderate",
		"inferred":            "No",
		"split_case":          "No",
		"scope_decision":      "Include",
		"unit_of_analysis":    "Village/community",
		"verbatim_definition": "",
		"notes":               "",
		"original_text":       "",
	}
	for field, want := range expected {
		got, err := FallbackFor(field)
		if err != nil {
			t.Fatalf("FallbackFor(%q) returned error: %v", field, err)
		}
		if got != want {
			t.Fatalf("FallbackFor(%q) = %q, want %q", field, got, want)
		}
	}
}

func TestEnumeratedFallbacksAreAllowed(t *testing.T) {
	for _, def := range fieldRegistry {
		if def.Allowed == nil {
			continue
		}
		if !containsValue(def.Allowed, def.Fallback) {
			t.Fatalf("field %q fallback %q is not in its allowed set", def.Name, def.Fallback)
		}
	}
}

func TestUnknownFieldError(t *testing.T) {
	if _, err := FallbackFor("no_such_field"); err == nil {
		t.Fatal("expected FallbackFor to fail for unregistered field")
	} else {
		var unknownErr *UnknownFieldError
		if !errors.As(err, &unknownErr) {
			t.Fatalf("expected *UnknownFieldError, got %T: %v", err, err)
		}
		if unknownErr.Field != "no_such_field" {
			t.Fatalf("unexpected field in error: %q", unknownErr.Field)
		}
	}

	if _, err := AllowedValues("no_such_field"); err == nil {
		t.Fatal("expected AllowedValues to fail for unregistered field")
	}
	if _, err := IsEnumerated("no_such_field"); err == nil {
		t.Fatal("expected IsEnumerated to fail for unregistered field")
	}
}

func TestAllowedValuesForFreeTextIsNil(t *testing.T) {
	allowed, err := AllowedValues("notes")
	if err != nil {
		t.Fatalf("AllowedValues(notes) returned error: %v", err)
	}
	if allowed != nil {
		t.Fatalf("expected nil allowed set for free-text field, got %v", allowed)
	}

	enumerated, err := IsEnumerated("notes")
	if err != nil {
		t.Fatalf("IsEnumerated(notes) returned error: %v", err)
	}
	if enumerated {
		t.Fatal("notes must not be enumerated")
	}

	enumerated, err = IsEnumerated("axis_B")
	if err != nil {
		t.Fatalf("IsEnumerated(axis_B) returned error: %v", err)
	}
	if !enumerated {
		t.Fatal("axis_B must be enumerated")
	}
}
