package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCodebookFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codebook.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write codebook: %v", err)
	}
	return path
}

func TestLoadCodebook(t *testing.T) {
	path := writeCodebookFile(t, `
text: |
  Codebook v1.1 — Tourism Village Scoping Review
  Axis A: governance and ownership...
axis_hints:
  - phrase: "Green Destinations certification"
    axis: axis_C
    value: "C2 Process-based/criteria"
`)
	cb, err := LoadCodebook(path)
	if err != nil {
		t.Fatalf("LoadCodebook failed: %v", err)
	}
	if !strings.Contains(cb.Text, "Codebook v1.1") {
		t.Fatalf("codebook text not loaded: %q", cb.Text)
	}
	if len(cb.AxisHints) != 1 || cb.AxisHints[0].Axis != "axis_C" {
		t.Fatalf("axis hints not loaded: %+v", cb.AxisHints)
	}
}

func TestLoadCodebookEmptyText(t *testing.T) {
	path := writeCodebookFile(t, `text: "  "`)
	if _, err := LoadCodebook(path); err == nil {
		t.Fatal("expected error for empty codebook text")
	}
}

func TestLoadCodebookRejectsBadHints(t *testing.T) {
	cases := []string{
		// value outside the axis enumeration
		"text: body\naxis_hints:\n  - {phrase: x, axis: axis_A, value: \"A9 Bogus\"}\n",
		// enumerated but not an axis
		"text: body\naxis_hints:\n  - {phrase: x, axis: inferred, value: \"Yes\"}\n",
		// unregistered field
		"text: body\naxis_hints:\n  - {phrase: x, axis: axis_Z, value: \"A1 State-led\"}\n",
		// empty phrase
		"text: body\naxis_hints:\n  - {phrase: \"\", axis: axis_A, value: \"A1 State-led\"}\n",
	}
	for i, content := range cases {
		path := writeCodebookFile(t, content)
		if _, err := LoadCodebook(path); err == nil {
			t.Fatalf("case %d: expected hint validation error", i)
		}
	}
}

func TestApplyAxisHints(t *testing.T) {
	hints := []AxisHint{
		{Phrase: "green destinations", Axis: "axis_C", Value: "C2 Process-based/criteria"},
		{Phrase: "unmentioned phrase", Axis: "axis_A", Value: "A1 State-led"},
	}
	rec := NormalizeRecord(map[string]string{"axis_C": "C1 Claimed/aspirational"})
	article := "The village obtained Green Destinations status in 2019."

	out := ApplyAxisHints(rec, article, hints)
	if out["axis_C"] != "C2 Process-based/criteria" {
		t.Fatalf("axis_C = %q, want hint value", out["axis_C"])
	}
	if out["axis_A"] != naValue {
		t.Fatalf("non-matching hint must not fire, axis_A = %q", out["axis_A"])
	}
	if !strings.Contains(out["notes"], "codebook hint") {
		t.Fatalf("hint override must be annotated: %q", out["notes"])
	}
	// Input record untouched.
	if rec["axis_C"] != "C1 Claimed/aspirational" {
		t.Fatalf("input record mutated: %q", rec["axis_C"])
	}
}

func TestApplyAxisHintsNoNoteWhenValueAlreadySet(t *testing.T) {
	hints := []AxisHint{{Phrase: "eco-label", Axis: "axis_C", Value: "C3 Measured/verified"}}
	rec := NormalizeRecord(map[string]string{"axis_C": "C3 Measured/verified"})
	out := ApplyAxisHints(rec, "the eco-label audit", hints)
	if out["notes"] != "" {
		t.Fatalf("no note expected when hint matches existing value: %q", out["notes"])
	}
}
