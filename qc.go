package main

import (
	"fmt"
	"strings"
)

// minTypologyDetailChars is the elaboration threshold below which a claimed
// full typology counts as Partial.
const minTypologyDetailChars = 40

// notExplicitMarkers flag typology details that admit the typology is not
// actually explicit in the source (English and Indonesian).
var notExplicitMarkers = []string{"not explicit", "tidak eksplisit"}

type outcomePair struct {
	Label    string
	Level    string
	Evidence string
}

var outcomePairs = []outcomePair{
	{"participation", "participation_level", "participation_evidence"},
	{"equity", "equity_level", "equity_evidence"},
	{"environmental", "env_level", "env_evidence"},
}

type axisPair struct {
	Label  string
	Field  string
	Anchor string
}

var axisPairs = []axisPair{
	{"A", "axis_A", "axis_A_anchor"},
	{"B", "axis_B", "axis_B_anchor"},
	{"C", "axis_C", "axis_C_anchor"},
}

// ApplyQC runs the fixed, ordered consistency rules over a normalized record
// and returns the corrected record. Rules may rewrite fields; every trigger is
// appended to the notes field for reviewer visibility, never raised as an
// error. The result is re-normalized before returning, so QC output is always
// a complete, valid record. Callers must normalize first: ApplyQC assumes all
// registered fields are present. The rule order matters — the scope cascade
// overrides earlier evidence-based decisions.
func ApplyQC(rec CodingRecord) CodingRecord {
	out := rec.Clone()
	var notes []string

	// Rule 1: an outcome level asserted without quoted support must not
	// silently stand as a positive finding.
	for _, oc := range outcomePairs {
		if out[oc.Level] == naValue {
			continue
		}
		if missingEvidence(out[oc.Evidence]) {
			out[oc.Level] = naValue
			notes = append(notes, fmt.Sprintf("QC: %s level downgraded to NA (no supporting evidence)", oc.Label))
		}
	}

	// Rule 2: a claimed full typology without sufficient elaboration is
	// treated as partial, not full.
	if out["typology_proposed"] == "Yes" {
		details := strings.TrimSpace(out["typology_details"])
		if len(details) < minTypologyDetailChars || containsNotExplicitMarker(details) {
			out["typology_proposed"] = "Partial"
			notes = append(notes, "QC: typology_proposed downgraded to Partial (details too brief or marked not explicit)")
		}
	}

	// Rule 3: excluded records must not carry substantive classification.
	// Evidence quality is only forced to Low when currently unset — an
	// already-set value survives the cascade.
	if out["scope_decision"] == "Exclude" {
		for _, ax := range axisPairs {
			out[ax.Field] = naValue
		}
		for _, oc := range outcomePairs {
			out[oc.Level] = naValue
		}
		if strings.TrimSpace(out["evidence_quality"]) == "" {
			out["evidence_quality"] = "Low"
		}
		notes = append(notes, "QC: scope_decision=Exclude, axes and outcome levels forced to NA")
	}

	// Rule 4: a substantive axis without a citation anchor is a quality flag,
	// not grounds for invalidating the classification. Annotate only.
	for _, ax := range axisPairs {
		if out[ax.Field] != naValue && strings.TrimSpace(out[ax.Anchor]) == "" {
			notes = append(notes, fmt.Sprintf("QC: axis_%s has no anchor reference", ax.Label))
		}
	}

	if len(notes) > 0 {
		out["notes"] = appendNotes(out["notes"], notes)
	}
	return NormalizeRecord(out)
}

func missingEvidence(evidence string) bool {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return true
	}
	return strings.EqualFold(evidence, naValue) || strings.EqualFold(evidence, "not applicable")
}

func containsNotExplicitMarker(details string) bool {
	lower := strings.ToLower(details)
	for _, marker := range notExplicitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// appendNotes concatenates triggered rule notes after any pre-existing note
// text, joined with "; ". Prior notes are never overwritten.
func appendNotes(existing string, notes []string) string {
	joined := strings.Join(notes, "; ")
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return joined
	}
	return existing + "; " + joined
}
