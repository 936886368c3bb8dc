// Package lint provides static analysis for form schemas.
// It detects potential issues without mounting a session.
package lint

import (
	"fmt"
	"sort"

	"github.com/dlovans/formwork/pkg/formwork"
)

// Issue represents a problem found during static analysis.
type Issue struct {
	Severity string `json:"severity"` // "error", "warning", "info"
	Field    string `json:"field,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Message  string `json:"message"`
}

// Result contains all issues found by the linter.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// errorCodes are the runtime warnings that make a schema invalid.
// The remaining codes fail open at runtime and are reported as warnings.
var errorCodes = map[string]bool{
	formwork.WarnUnknownReference: true,
	formwork.WarnUnknownRule:      true,
	formwork.WarnInvalidPattern:   true,
	formwork.WarnDuplicateField:   true,
}

// Run performs static analysis on a JSON schema.
func Run(jsonText string) (*Result, error) {
	doc, err := formwork.LoadJSON([]byte(jsonText))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return Document(doc)
}

// Document performs static analysis on a decoded schema.
// Detects undefined references, unknown rules, cycles and cardinality mistakes.
func Document(doc *formwork.Document) (*Result, error) {
	result := &Result{
		Valid:  true,
		Issues: make([]Issue, 0),
	}

	// Check 1: everything the runtime would report while building the graph
	warnings, err := formwork.Analyze(doc)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		if errorCodes[w.Code] {
			result.addError(w.Field, w.Code, w.Message)
		} else {
			result.addWarning(w.Field, w.Code, w.Message)
		}
	}

	// Check 2: per-field structure
	walk(doc.Sections, "", false, func(path string, f *formwork.Field, inArray bool) {
		if f.Kind == "" {
			result.addWarning(path, "", fmt.Sprintf("field '%s' has no kind specified", path))
		}
		if f.Kind == formwork.KindArray {
			if inArray {
				result.addWarning(path, "", fmt.Sprintf("array '%s' is nested in another array; its entries are stored as a plain list", path))
			}
			checkCardinality(result, doc, path, f)
		}
		if (f.Kind == "select" || f.Kind == "radio" || f.Kind == "multiselect") && len(f.Options) == 0 {
			result.addInfo(path, "", fmt.Sprintf("field '%s' has no options; any value is accepted", path))
		}
	})

	sort.SliceStable(result.Issues, func(i, j int) bool {
		return result.Issues[i].Field < result.Issues[j].Field
	})
	return result, nil
}

// checkCardinality flags contradictory bounds and defaults that will be truncated at mount.
func checkCardinality(result *Result, doc *formwork.Document, id string, f *formwork.Field) {
	bounds := make(map[formwork.RuleKind]int)
	for _, r := range f.Rules {
		switch r.Kind {
		case formwork.RuleMinItems, formwork.RuleMaxItems, formwork.RuleExactItems:
			if n, ok := r.Value.(float64); ok {
				bounds[r.Kind] = int(n)
			}
		}
	}
	minItems, hasMin := bounds[formwork.RuleMinItems]
	maxItems, hasMax := bounds[formwork.RuleMaxItems]
	exact, hasExact := bounds[formwork.RuleExactItems]

	if hasMin && hasMax && minItems > maxItems {
		result.addError(id, string(formwork.RuleMinItems), fmt.Sprintf(
			"array '%s' requires at least %d entries but allows at most %d", id, minItems, maxItems))
	}
	if hasExact && (hasMin || hasMax) {
		result.addWarning(id, string(formwork.RuleExactItems), fmt.Sprintf(
			"array '%s' declares exactItems; minItems and maxItems are ignored", id))
	}
	if !hasExact {
		return
	}
	defaults := f.Default
	if v, ok := doc.DefaultValues[id]; ok {
		defaults = v
	}
	if list, ok := defaults.([]any); ok && len(list) > exact {
		result.addWarning(id, string(formwork.RuleExactItems), fmt.Sprintf(
			"array '%s' declares %d defaults; only the first %d are kept", id, len(list), exact))
	}
}

// walk visits every field in sorted order with its dotted path.
func walk(nodes map[string]*formwork.Field, prefix string, inArray bool, fn func(string, *formwork.Field, bool)) {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := nodes[id]
		if f == nil {
			continue
		}
		path := id
		if prefix != "" {
			path = prefix + "." + id
		}
		fn(path, f, inArray)
		if f.Kind == formwork.KindArray {
			walk(f.Children, path, true, fn)
			continue
		}
		// Only array children are scoped; other ids are flat.
		next := ""
		if inArray {
			next = prefix
		}
		walk(f.Children, next, inArray, fn)
	}
}

func (r *Result) addError(field, rule, message string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{
		Severity: "error",
		Field:    field,
		Rule:     rule,
		Message:  message,
	})
}

func (r *Result) addWarning(field, rule, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity: "warning",
		Field:    field,
		Rule:     rule,
		Message:  message,
	})
}

func (r *Result) addInfo(field, rule, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity: "info",
		Field:    field,
		Rule:     rule,
		Message:  message,
	})
}
