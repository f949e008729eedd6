package main

import "fmt"

// UnknownFieldError reports a registry lookup for a field name that was never
// registered. This is a programming defect in the caller, not a data-quality
// condition, and must not be swallowed.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown codebook field %q", e.Field)
}

// naValue is the codebook's not-applicable sentinel.
const naValue = "NA"

// fieldDef describes one codebook field. Allowed lists the closed value set
// for enumerated fields (nil means free text). Fallback is the deterministic
// replacement used when an incoming value is missing or out of domain; for
// enumerated fields it is always a member of Allowed.
type fieldDef struct {
	Name     string
	Allowed  []string
	Fallback string
}

var (
	yesPartialNo  = []string{"Yes", "Partial", "No"}
	yesNo         = []string{"Yes", "No"}
	outcomeLevels = []string{"1", "2", "3", naValue}
)

// fieldRegistry lists every codebook field (Codebook v1.1 minimal reporting
// checklist) in canonical order. The order also defines the column order of
// every tabular export.
var fieldRegistry = []fieldDef{
	{Name: "scope_decision", Allowed: []string{"Include", "Exclude"}, Fallback: "Include"},
	{Name: "scope_justification"},
	{Name: "unit_of_analysis", Allowed: []string{"Village/community", "Destination/region", "Household/enterprise", "Policy/program", naValue}, Fallback: "Village/community"},

	{Name: "explicit_definition", Allowed: yesPartialNo, Fallback: "No"},
	{Name: "verbatim_definition"},
	{Name: "typology_proposed", Allowed: yesPartialNo, Fallback: "No"},
	{Name: "typology_details"},

	{Name: "axis_A", Allowed: []string{"A1 State-led", "A2 Co-managed", "A3 Community-led", naValue}, Fallback: naValue},
	{Name: "axis_A_anchor"},
	{Name: "axis_B", Allowed: []string{"B1 Heritage-led", "B2 Nature-led", "B3 Mixed-portfolio", "B4 Commodified/amenities-led", naValue}, Fallback: naValue},
	{Name: "axis_B_anchor"},
	{Name: "axis_C", Allowed: []string{"C1 Claimed/aspirational", "C2 Process-based/criteria", "C3 Measured/verified", naValue}, Fallback: naValue},
	{Name: "axis_C_anchor"},

	{Name: "purpose_tokens"},
	{Name: "key_findings"},

	{Name: "participation_level", Allowed: outcomeLevels, Fallback: naValue},
	{Name: "participation_evidence"},
	{Name: "equity_level", Allowed: outcomeLevels, Fallback: naValue},
	{Name: "equity_evidence"},
	{Name: "env_level", Allowed: outcomeLevels, Fallback: naValue},
	{Name: "env_evidence"},

	{Name: "equity_tags"},
	{Name: "engagement_tags"},

	{Name: "evidence_quality", Allowed: []string{"Low", "Moderate", "High"}, Fallback: "Moderate"},
	{Name: "inferred", Allowed: yesNo, Fallback: "No"},
	{Name: "notes"},
	{Name: "split_case", Allowed: yesNo, Fallback: "No"},

	{Name: "original_text"},
}

var fieldIndex = buildFieldIndex()

func buildFieldIndex() map[string]fieldDef {
	idx := make(map[string]fieldDef, len(fieldRegistry))
	for _, def := range fieldRegistry {
		idx[def.Name] = def
	}
	return idx
}

// Columns returns the registered field names in canonical order.
func Columns() []string {
	out := make([]string, len(fieldRegistry))
	for i, def := range fieldRegistry {
		out[i] = def.Name
	}
	return out
}

// FallbackFor returns the deterministic fallback value for a registered field.
func FallbackFor(field string) (string, error) {
	def, ok := fieldIndex[field]
	if !ok {
		return "", &UnknownFieldError{Field: field}
	}
	return def.Fallback, nil
}

// AllowedValues returns the closed value set for an enumerated field, or nil
// for a free-text field.
func AllowedValues(field string) ([]string, error) {
	def, ok := fieldIndex[field]
	if !ok {
		return nil, &UnknownFieldError{Field: field}
	}
	return def.Allowed, nil
}

// IsEnumerated reports whether a registered field has a closed value set.
func IsEnumerated(field string) (bool, error) {
	def, ok := fieldIndex[field]
	if !ok {
		return false, &UnknownFieldError{Field: field}
	}
	return def.Allowed != nil, nil
}

func isRegisteredField(field string) bool {
	_, ok := fieldIndex[field]
	return ok
}

func containsValue(values []string, v string) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}
