// Package formwork provides a schema-driven runtime for interactive forms.
// It evaluates conditional visibility, composes validators, and manages repeatable
// field groups for a live form session built from a declarative JSON document.
package formwork

import (
	"sort"

	json "github.com/goccy/go-json"
)

// Document is the root container for a form schema.
// Only `sections` is required. All other fields are optional.
type Document struct {
	ID               string            `json:"id,omitempty"`               // Form identifier (optional)
	Title            string            `json:"title,omitempty"`            // Human-readable title (optional)
	Sections         map[string]*Field `json:"sections"`                   // REQUIRED: top-level sections
	DefaultValues    map[string]any    `json:"defaultValues,omitempty"`    // Field id -> default, wins over Field.Default
	Overrides        map[string]any    `json:"overrides,omitempty"`        // Field id -> partial field patch, or null to delete
	ValidationMode   ValidationMode    `json:"validationMode,omitempty"`   // When fields validate before the first submit
	RevalidationMode ValidationMode    `json:"revalidationMode,omitempty"` // When fields validate after a submit attempt
	RestoreMode      RestoreMode       `json:"restoreMode,omitempty"`      // Default restore policy for hidden->visible
	StripUnknown     bool              `json:"stripUnknown,omitempty"`     // Drop undeclared values from the payload

	// Values seeds the store for batch evaluation (Run/Verify). Sessions ignore it.
	Values map[string]any `json:"values,omitempty"`
}

// Field is one addressable node of the schema tree: an input, a display element or a group.
// ID is the key under which the node is stored in its parent and is filled by index().
type Field struct {
	ID            string            `json:"-"`
	Kind          string            `json:"kind"`                    // "text", "number", "select", "group", "array", ...
	Label         string            `json:"label,omitempty"`         // Human-readable label
	Rules         []Rule            `json:"rules,omitempty"`         // Validation rules, in declaration order
	Condition     Condition         `json:"condition,omitempty"`     // Visibility condition (nil = always visible)
	Default       any               `json:"default,omitempty"`       // Schema default value
	Options       []Option          `json:"options,omitempty"`       // For select/radio/multiselect kinds
	RestoreMode   RestoreMode       `json:"restoreMode,omitempty"`   // Overrides Document.RestoreMode
	ConfirmRemove bool              `json:"confirmRemove,omitempty"` // Arrays: removal needs confirmation
	Children      map[string]*Field `json:"children,omitempty"`      // Nested nodes (sections, groups, arrays)
}

// Option is one choice of a select-like field. It decodes from a bare scalar
// or from {"value": ..., "label": ...}.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label,omitempty"`
}

// UnmarshalJSON accepts both scalar and object option forms.
func (o *Option) UnmarshalJSON(data []byte) error {
	var obj struct {
		Value any    `json:"value"`
		Label string `json:"label"`
	}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		o.Value, o.Label = obj.Value, obj.Label
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Condition is an OR of clauses. The condition holds if any clause holds.
type Condition []Clause

// Clause maps a referenced field id to rules that must all hold for that field.
type Clause map[string][]Rule

// RestoreMode governs the value a field receives when it becomes visible again.
type RestoreMode string

const (
	RestoreNone      RestoreMode = "none"          // Clear the value
	RestoreDefault   RestoreMode = "default-value" // Reset to the schema default
	RestoreUserInput RestoreMode = "user-input"    // Replay the last value entered before hiding
)

// ValidationMode selects which host events trigger per-field validation.
type ValidationMode string

const (
	ModeOnSubmit ValidationMode = "onSubmit"
	ModeOnChange ValidationMode = "onChange"
	ModeOnBlur   ValidationMode = "onBlur"
	ModeAll      ValidationMode = "all"
)

// Field kinds with structural meaning to the runtime. Any other kind is an input.
const (
	KindSection = "section"
	KindGroup   = "group"
	KindArray   = "array"
	KindDisplay = "display"
)

// IsContainer reports whether the field only groups other fields.
func (f *Field) IsContainer() bool {
	return f.Kind == KindSection || f.Kind == KindGroup
}

// HoldsValue reports whether the field stores a value of its own.
func (f *Field) HoldsValue() bool {
	return !f.IsContainer() && f.Kind != KindDisplay
}

// restoreMode resolves the field's restore policy against the document default.
func (f *Field) restoreMode(doc RestoreMode) RestoreMode {
	if f.RestoreMode != "" {
		return f.RestoreMode
	}
	if doc != "" {
		return doc
	}
	return RestoreDefault
}

// childIDs returns the sorted ids of the direct children.
func (f *Field) childIDs() []string {
	return sortedKeys(f.Children)
}

// schemaIndex is the flattened, read-only view of a document used by one session pass.
type schemaIndex struct {
	doc    *Document
	fields map[string]*Field // every top-level-scoped node by id (containers included)
	parent map[string]string // node id -> enclosing container id ("" at the root)
	order  []string          // deterministic depth-first order
	arrays map[string]*arrayShape
}

// arrayShape is the flattened child tree of one array field, scoped to an entry.
type arrayShape struct {
	field  *Field
	fields map[string]*Field
	parent map[string]string
	order  []string
}

// index walks the document and assigns ids. Duplicate ids keep the first
// occurrence in depth-first order and are reported through dup.
func (d *Document) index(dup func(id string)) *schemaIndex {
	idx := &schemaIndex{
		doc:    d,
		fields: make(map[string]*Field),
		parent: make(map[string]string),
		arrays: make(map[string]*arrayShape),
	}
	var walk func(parent string, nodes map[string]*Field)
	walk = func(parent string, nodes map[string]*Field) {
		for _, id := range sortedKeys(nodes) {
			f := nodes[id]
			if f == nil {
				continue
			}
			f.ID = id
			if _, seen := idx.fields[id]; seen {
				if dup != nil {
					dup(id)
				}
				continue
			}
			idx.fields[id] = f
			idx.parent[id] = parent
			idx.order = append(idx.order, id)
			if f.Kind == KindArray {
				idx.arrays[id] = newArrayShape(f)
				continue
			}
			walk(id, f.Children)
		}
	}
	walk("", d.Sections)
	return idx
}

func newArrayShape(f *Field) *arrayShape {
	shape := &arrayShape{
		field:  f,
		fields: make(map[string]*Field),
		parent: make(map[string]string),
	}
	var walk func(parent string, nodes map[string]*Field)
	walk = func(parent string, nodes map[string]*Field) {
		for _, id := range sortedKeys(nodes) {
			c := nodes[id]
			if c == nil {
				continue
			}
			c.ID = id
			if _, seen := shape.fields[id]; seen {
				continue
			}
			shape.fields[id] = c
			shape.parent[id] = parent
			shape.order = append(shape.order, id)
			// Nested arrays are flattened to plain list values; pkg/lint flags them.
			if c.Kind != KindArray {
				walk(id, c.Children)
			}
		}
	}
	walk("", f.Children)
	return shape
}

// valueIDs returns the ids of child fields that hold values.
func (s *arrayShape) valueIDs() map[string]bool {
	ids := make(map[string]bool, len(s.fields))
	for id, f := range s.fields {
		if f.HoldsValue() {
			ids[id] = true
		}
	}
	return ids
}

// defaultFor returns the declared default of a top-level field.
func (idx *schemaIndex) defaultFor(id string) any {
	if v, ok := idx.doc.DefaultValues[id]; ok {
		return cloneValue(v)
	}
	if f, ok := idx.fields[id]; ok {
		return cloneValue(f.Default)
	}
	return nil
}

// clone returns a deep copy of the document. Callers may mutate the copy freely.
func (d *Document) clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
