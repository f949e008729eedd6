package main

import (
	"strings"
	"testing"
)

func qcInput(overrides map[string]string) CodingRecord {
	return NormalizeRecord(overrides)
}

func TestEvidenceGatingDowngradesUnsupportedOutcomes(t *testing.T) {
	cases := []struct {
		level    string
		evidence string
		label    string
	}{
		{"participation_level", "participation_evidence", "participation"},
		{"equity_level", "equity_evidence", "equity"},
		{"env_level", "env_evidence", "environmental"},
	}
	for _, tc := range cases {
		rec := qcInput(map[string]string{tc.level: "2"})
		out := ApplyQC(rec)
		if out[tc.level] != naValue {
			t.Fatalf("%s: level = %q, want %q", tc.label, out[tc.level], naValue)
		}
		if !strings.Contains(out["notes"], tc.label) {
			t.Fatalf("%s: notes missing downgrade annotation: %q", tc.label, out["notes"])
		}
	}
}

func TestEvidenceGatingTreatsNAEvidenceAsMissing(t *testing.T) {
	for _, evidence := range []string{"na", "NA", "not applicable", "Not Applicable", "  "} {
		rec := qcInput(map[string]string{
			"equity_level":    "3",
			"equity_evidence": evidence,
		})
		out := ApplyQC(rec)
		if out["equity_level"] != naValue {
			t.Fatalf("evidence %q: equity_level = %q, want %q", evidence, out["equity_level"], naValue)
		}
	}
}

func TestEvidenceGatingKeepsSupportedLevels(t *testing.T) {
	rec := qcInput(map[string]string{
		"participation_level":    "3",
		"participation_evidence": `"villagers led the committee" p. 7`,
	})
	out := ApplyQC(rec)
	if out["participation_level"] != "3" {
		t.Fatalf("supported level must survive, got %q", out["participation_level"])
	}
	if strings.Contains(out["notes"], "participation") {
		t.Fatalf("no downgrade note expected, got %q", out["notes"])
	}
}

func TestTypologyDowngradedWhenDetailsTooBrief(t *testing.T) {
	rec := qcInput(map[string]string{
		"typology_proposed": "Yes",
		"typology_details":  "yes",
	})
	out := ApplyQC(rec)
	if out["typology_proposed"] != "Partial" {
		t.Fatalf("typology_proposed = %q, want Partial", out["typology_proposed"])
	}
	if !strings.Contains(out["notes"], "typology_proposed") {
		t.Fatalf("notes missing typology annotation: %q", out["notes"])
	}
}

func TestTypologyDowngradedOnNotExplicitMarker(t *testing.T) {
	longEnough := strings.Repeat("x", minTypologyDetailChars)
	for _, marker := range []string{"Not Explicit", "TIDAK EKSPLISIT"} {
		rec := qcInput(map[string]string{
			"typology_proposed": "Yes",
			"typology_details":  longEnough + " but the classes are " + marker,
		})
		out := ApplyQC(rec)
		if out["typology_proposed"] != "Partial" {
			t.Fatalf("marker %q: typology_proposed = %q, want Partial", marker, out["typology_proposed"])
		}
	}
}

func TestTypologyKeptWhenElaborated(t *testing.T) {
	rec := qcInput(map[string]string{
		"typology_proposed": "Yes",
		"typology_details":  "Three classes: state-initiated, community-initiated, and hybrid villages, distinguished by founding actor (Table 2).",
	})
	out := ApplyQC(rec)
	if out["typology_proposed"] != "Yes" {
		t.Fatalf("typology_proposed = %q, want Yes", out["typology_proposed"])
	}
}

func TestScopeCascadeForcesNA(t *testing.T) {
	rec := qcInput(map[string]string{
		"scope_decision":         "Exclude",
		"axis_A":                 "A1 State-led",
		"axis_B":                 "B2 Nature-led",
		"axis_C":                 "C3 Measured/verified",
		"participation_level":    "3",
		"participation_evidence": "quote p.4",
		"equity_level":           "1",
		"equity_evidence":        "quote p.5",
		"env_level":              "2",
		"env_evidence":           "quote p.6",
		"evidence_quality":       "High",
	})
	out := ApplyQC(rec)
	for _, field := range []string{"axis_A", "axis_B", "axis_C", "participation_level", "equity_level", "env_level"} {
		if out[field] != naValue {
			t.Fatalf("%s = %q after exclusion, want %q", field, out[field], naValue)
		}
	}
	// An already-set evidence quality survives the cascade.
	if out["evidence_quality"] != "High" {
		t.Fatalf("evidence_quality = %q, want High", out["evidence_quality"])
	}
	if !strings.Contains(out["notes"], "Exclude") {
		t.Fatalf("notes missing cascade annotation: %q", out["notes"])
	}
}

func TestScopeCascadeSetsEvidenceQualityLowOnlyWhenEmpty(t *testing.T) {
	rec := qcInput(map[string]string{"scope_decision": "Exclude"})
	rec["evidence_quality"] = ""
	out := ApplyQC(rec)
	if out["evidence_quality"] != "Low" {
		t.Fatalf("evidence_quality = %q, want Low", out["evidence_quality"])
	}
}

func TestAnchorCompletenessAnnotatesWithoutRewriting(t *testing.T) {
	rec := qcInput(map[string]string{
		"axis_B": "B3 Mixed-portfolio",
	})
	out := ApplyQC(rec)
	if out["axis_B"] != "B3 Mixed-portfolio" {
		t.Fatalf("axis_B must not be rewritten, got %q", out["axis_B"])
	}
	if !strings.Contains(out["notes"], "axis_B has no anchor") {
		t.Fatalf("notes missing anchor flag: %q", out["notes"])
	}

	anchored := qcInput(map[string]string{
		"axis_B":        "B3 Mixed-portfolio",
		"axis_B_anchor": "Table 1, p. 9",
	})
	out = ApplyQC(anchored)
	if strings.Contains(out["notes"], "axis_B") {
		t.Fatalf("anchored axis must not be flagged: %q", out["notes"])
	}
}

func TestNotesAppendAfterExisting(t *testing.T) {
	rec := qcInput(map[string]string{
		"notes":        "model note: weak sampling section",
		"equity_level": "2",
	})
	out := ApplyQC(rec)
	if !strings.HasPrefix(out["notes"], "model note: weak sampling section; ") {
		t.Fatalf("pre-existing notes must be preserved first: %q", out["notes"])
	}
}

func TestQCOutputSatisfiesEnumValidity(t *testing.T) {
	rec := qcInput(map[string]string{
		"scope_decision":    "Exclude",
		"typology_proposed": "Yes",
		"equity_level":      "2",
	})
	out := ApplyQC(rec)
	for _, def := range fieldRegistry {
		if def.Allowed == nil {
			continue
		}
		if !containsValue(def.Allowed, out[def.Name]) {
			t.Fatalf("post-QC field %q holds out-of-domain value %q", def.Name, out[def.Name])
		}
	}
}

func TestScenarioEquityAssertedWithoutEvidence(t *testing.T) {
	rec := qcInput(map[string]string{
		"axis_A":          "A1 State-led",
		"axis_A_anchor":   "p. 2",
		"equity_level":    "2",
		"equity_evidence": "",
		"scope_decision":  "Include",
	})
	out := ApplyQC(rec)
	if out["equity_level"] != naValue {
		t.Fatalf("equity_level = %q, want %q", out["equity_level"], naValue)
	}
	if !strings.Contains(out["notes"], "equity") {
		t.Fatalf("notes missing equity downgrade: %q", out["notes"])
	}
	if out["axis_A"] != "A1 State-led" {
		t.Fatalf("axis_A must be unchanged, got %q", out["axis_A"])
	}
}

func TestScenarioExclusionOverridesEvidence(t *testing.T) {
	rec := qcInput(map[string]string{
		"scope_decision":         "Exclude",
		"axis_B":                 "B2 Nature-led",
		"participation_level":    "3",
		"participation_evidence": "quote p.4",
	})
	out := ApplyQC(rec)
	if out["axis_B"] != naValue {
		t.Fatalf("axis_B = %q, want %q", out["axis_B"], naValue)
	}
	if out["participation_level"] != naValue {
		t.Fatalf("participation_level = %q, want %q despite evidence", out["participation_level"], naValue)
	}
}
