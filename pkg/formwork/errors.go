package formwork

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Issue codes attached to validation failures.
const (
	CodeRequired      = "required"
	CodeInvalidType   = "invalid_type"
	CodeInvalidEnum   = "invalid_enum"
	CodeInvalidFormat = "invalid_format"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodePattern       = "pattern"
	CodeNotEqual      = "not_equal"
	CodeDateRange     = "date_range"
	CodeCustom        = "custom"
)

// Schema authoring warning codes. These never stop a session.
const (
	WarnUnknownRule           = "unknown_rule"
	WarnDependencyCycle       = "dependency_cycle"
	WarnUnknownReference      = "unknown_reference"
	WarnUnknownOverrideTarget = "unknown_override_target"
	WarnUnknownCustomRule     = "unknown_custom_rule"
	WarnInvalidPattern        = "invalid_pattern"
	WarnDuplicateField        = "duplicate_field"
)

// Sentinel errors for API misuse.
var (
	ErrUnknownField        = errors.New("formwork: unknown field")
	ErrUnknownArray        = errors.New("formwork: unknown array field")
	ErrUnknownEntry        = errors.New("formwork: unknown array entry")
	ErrConfirmationPending = errors.New("formwork: removal awaits confirmation")
	ErrCardinality         = errors.New("formwork: array cardinality bound reached")
	ErrNoSections          = errors.New("formwork: document has no sections")
)

// Warning is a non-fatal schema authoring problem.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Field == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.Field, w.Message)
}

// InvariantError signals a programmer error, such as an array key collision.
// It is raised with panic and is never part of normal control flow.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("formwork: invariant %q violated: %s", e.Invariant, e.Detail)
}

func invariant(name, format string, args ...any) {
	panic(&InvariantError{Invariant: name, Detail: fmt.Sprintf(format, args...)})
}

// reporter deduplicates warnings so each one surfaces once per session.
type reporter struct {
	seen   map[Warning]bool
	list   []Warning
	logger *zap.SugaredLogger
	notify func(Warning)
}

func newReporter(logger *zap.SugaredLogger, notify func(Warning)) *reporter {
	return &reporter{
		seen:   make(map[Warning]bool),
		logger: logger,
		notify: notify,
	}
}

func (r *reporter) warn(code, field, format string, args ...any) {
	if r == nil {
		return
	}
	w := Warning{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
	if r.seen[w] {
		return
	}
	r.seen[w] = true
	r.list = append(r.list, w)

	if r.logger != nil {
		r.logger.Warnw("schema warning", "code", w.Code, "field", w.Field, "message", w.Message)
	}
	if r.notify != nil {
		r.notify(w)
	}
}

// warnings returns the reported warnings sorted by code then field.
func (r *reporter) warnings() []Warning {
	if r == nil {
		return nil
	}
	out := make([]Warning, len(r.list))
	copy(out, r.list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Field < out[j].Field
	})
	return out
}
