package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codebook carries the full codebook text sent to the model plus optional
// curator-maintained axis hints applied deterministically after drafting.
type Codebook struct {
	Text      string     `yaml:"text"`
	AxisHints []AxisHint `yaml:"axis_hints"`
}

// AxisHint forces an axis value whenever its phrase occurs in the article
// text. Hints encode settled team decisions (e.g. a named certification
// scheme always means C2) so the model cannot re-litigate them.
type AxisHint struct {
	Phrase string `yaml:"phrase"`
	Axis   string `yaml:"axis"`
	Value  string `yaml:"value"`
}

func LoadCodebook(path string) (*Codebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read codebook: %w", err)
	}
	var cb Codebook
	if err := yaml.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("parse codebook yaml: %w", err)
	}
	if strings.TrimSpace(cb.Text) == "" {
		return nil, fmt.Errorf("codebook %s has empty text", path)
	}
	for i, hint := range cb.AxisHints {
		if err := validateAxisHint(hint); err != nil {
			return nil, fmt.Errorf("codebook axis_hints[%d]: %w", i, err)
		}
	}
	return &cb, nil
}

func validateAxisHint(hint AxisHint) error {
	if strings.TrimSpace(hint.Phrase) == "" {
		return fmt.Errorf("empty phrase")
	}
	allowed, err := AllowedValues(hint.Axis)
	if err != nil {
		return err
	}
	validAxis := false
	for _, ax := range axisPairs {
		if hint.Axis == ax.Field {
			validAxis = true
		}
	}
	if !validAxis {
		return fmt.Errorf("%q is not a classification axis", hint.Axis)
	}
	if !containsValue(allowed, hint.Value) {
		return fmt.Errorf("value %q not allowed for %s", hint.Value, hint.Axis)
	}
	return nil
}

// ApplyAxisHints rewrites axis values whose hint phrase appears in the
// article text, annotating each override in notes. Returns the record
// unchanged when no hint matches.
func ApplyAxisHints(rec CodingRecord, articleText string, hints []AxisHint) CodingRecord {
	if len(hints) == 0 {
		return rec
	}
	article := strings.ToLower(articleText)
	out := rec.Clone()
	var notes []string
	for _, hint := range hints {
		phrase := strings.ToLower(strings.TrimSpace(hint.Phrase))
		if phrase == "" || !strings.Contains(article, phrase) {
			continue
		}
		if out[hint.Axis] == hint.Value {
			continue
		}
		out[hint.Axis] = hint.Value
		notes = append(notes, fmt.Sprintf("codebook hint set %s=%s (phrase %q)", hint.Axis, hint.Value, hint.Phrase))
	}
	if len(notes) > 0 {
		out["notes"] = appendNotes(out["notes"], notes)
	}
	return out
}
