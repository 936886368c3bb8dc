package formwork

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// DocStatus represents the validation state of an evaluated document.
type DocStatus string

const (
	StatusReady      DocStatus = "READY"      // All visible fields pass validation
	StatusIncomplete DocStatus = "INCOMPLETE" // Only required fields are missing
	StatusInvalid    DocStatus = "INVALID"    // Type errors or rule violations
)

// Result is the evaluated form returned by Run.
type Result struct {
	ID         string                `json:"id,omitempty"`
	Title      string                `json:"title,omitempty"`
	Status     DocStatus             `json:"status"`
	Values     map[string]any        `json:"values"`
	Visibility map[string]bool       `json:"visibility"`
	Errors     map[string]FieldError `json:"errors,omitempty"`
	Arrays     map[string]ArrayView  `json:"arrays,omitempty"`
	Warnings   []Warning             `json:"warnings,omitempty"`
}

// Run evaluates a document as of now: defaults and the optional `values`
// block are mounted, visibility settles, and every visible field validates.
// Returns the evaluated result as JSON.
//
// This is the "Transformer" - it takes raw input and returns a fully evaluated form.
func Run(jsonText string, now time.Time) (string, error) {
	doc, err := LoadJSON([]byte(jsonText))
	if err != nil {
		return "", err
	}
	res, err := evaluate(doc, doc.Values, now)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(out), nil
}

func evaluate(doc *Document, values map[string]any, now time.Time) (*Result, error) {
	s, err := New(doc,
		WithValues(values),
		WithClock(func() time.Time { return now }),
		WithKeyGenerator(SequentialKeys("e")),
	)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	submit, err := s.Submit(context.Background())
	if err != nil {
		return nil, err
	}
	snap := s.Snapshot()
	res := &Result{
		ID:         doc.ID,
		Title:      doc.Title,
		Values:     submit.Values,
		Visibility: snap.Visibility,
		Errors:     s.Issues(),
		Arrays:     snap.Arrays,
		Warnings:   snap.SchemaWarnings,
	}
	res.Status = determineStatus(res.Errors)
	return res, nil
}

func determineStatus(errs map[string]FieldError) DocStatus {
	status := StatusReady
	for _, fe := range errs {
		if fe.Code != CodeRequired {
			return StatusInvalid
		}
		status = StatusIncomplete
	}
	return status
}

// Verify checks that payloadJSON is a legal submission of schemaJSON. It
// replays the payload into a fresh session and requires the replay to be
// valid and to resolve to exactly the submitted values: a value for a field
// that should be hidden, or a missing visible field, fails verification.
//
// This is the "Auditor" - it proves the submission was legal.
func Verify(payloadJSON, schemaJSON string) (bool, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return false, fmt.Errorf("unmarshal payload: %w", err)
	}
	doc, err := LoadJSON([]byte(schemaJSON))
	if err != nil {
		return false, err
	}

	res, err := evaluate(doc, payload, time.Now())
	if err != nil {
		return false, fmt.Errorf("replay failed: %w", err)
	}
	if len(res.Errors) > 0 {
		ref := sortedKeys(res.Errors)[0]
		return false, fmt.Errorf("field '%s' fails validation: %s", ref, res.Errors[ref].Message)
	}

	for _, id := range sortedKeys(payload) {
		got, ok := res.Values[id]
		if !ok {
			return false, fmt.Errorf("field '%s' is not submittable", id)
		}
		if !deepEqual(payload[id], got) {
			return false, fmt.Errorf("field '%s' value mismatch: got %v, expected %v", id, payload[id], got)
		}
	}
	for _, id := range sortedKeys(res.Values) {
		if _, ok := payload[id]; !ok {
			return false, fmt.Errorf("field '%s' missing in payload", id)
		}
	}
	return true, nil
}
