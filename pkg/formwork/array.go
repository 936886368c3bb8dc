package formwork

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// KeyGenerator produces opaque entry keys. Keys must never repeat within a session.
type KeyGenerator func() string

// UUIDKeys is the default key generator.
func UUIDKeys() string { return uuid.NewString() }

// SequentialKeys returns a deterministic generator yielding prefix1, prefix2, ...
func SequentialKeys(prefix string) KeyGenerator {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// ArrayState is the controller's lifecycle state.
type ArrayState int

const (
	ArrayIdle ArrayState = iota
	ArrayReconciling
)

func (s ArrayState) String() string {
	if s == ArrayReconciling {
		return "Reconciling"
	}
	return "Idle"
}

// ArrayEntry is one instance of an array field's child subtree.
// Key is its identity for its whole lifetime; position is never used.
type ArrayEntry struct {
	Key    string         `json:"key"`
	Values map[string]any `json:"values"`
}

func (e *ArrayEntry) clone() ArrayEntry {
	vals := make(map[string]any, len(e.Values))
	for k, v := range e.Values {
		vals[k] = cloneValue(v)
	}
	return ArrayEntry{Key: e.Key, Values: vals}
}

// ArrayController manages the entries of one array field. Entries live in an
// arena keyed by entry key; order holds the keys in display order.
type ArrayController struct {
	field *Field
	keys  KeyGenerator

	entries map[string]*ArrayEntry
	order   []string
	issued  map[string]bool
	pending map[string]bool
	state   ArrayState

	min, max, exact int // -1 when unbounded

	// OnReconcile runs after every membership or shape change, while the
	// controller is still Reconciling.
	OnReconcile func(*ArrayController)
}

// NewArrayController creates an empty controller for an array field.
func NewArrayController(f *Field, keys KeyGenerator) *ArrayController {
	if keys == nil {
		keys = UUIDKeys
	}
	c := &ArrayController{
		field:   f,
		keys:    keys,
		entries: make(map[string]*ArrayEntry),
		issued:  make(map[string]bool),
		pending: make(map[string]bool),
	}
	c.setBounds(f)
	return c
}

// setBounds derives cardinality from the field's minItems/maxItems/exactItems rules.
func (c *ArrayController) setBounds(f *Field) {
	c.min, c.max, c.exact = -1, -1, -1
	for _, r := range f.Rules {
		n, ok := r.numParam()
		if !ok {
			continue
		}
		switch r.Kind {
		case RuleMinItems:
			c.min = int(n)
		case RuleMaxItems:
			c.max = int(n)
		case RuleExactItems:
			c.exact = int(n)
		}
	}
}

func (c *ArrayController) Field() *Field     { return c.field }
func (c *ArrayController) State() ArrayState { return c.state }
func (c *ArrayController) Len() int          { return len(c.order) }

// Keys returns the entry keys in display order.
func (c *ArrayController) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Entry returns a copy of the entry stored under key.
func (c *ArrayController) Entry(key string) (ArrayEntry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return ArrayEntry{}, false
	}
	return e.clone(), true
}

// Entries returns copies of all entries in display order.
func (c *ArrayController) Entries() []ArrayEntry {
	out := make([]ArrayEntry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key].clone())
	}
	return out
}

// List returns the per-entry value maps in display order.
func (c *ArrayController) List() []any {
	out := make([]any, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key].clone().Values)
	}
	return out
}

// CanAdd reports whether the add affordance is available.
func (c *ArrayController) CanAdd() bool {
	if c.exact >= 0 {
		return false
	}
	return c.max < 0 || len(c.order) < c.max
}

// CanRemove reports whether the remove affordance is available.
func (c *ArrayController) CanRemove() bool {
	if c.exact >= 0 || len(c.order) == 0 {
		return false
	}
	return c.min < 0 || len(c.order) > c.min
}

// Pending reports whether key awaits removal confirmation.
func (c *ArrayController) Pending(key string) bool {
	return c.pending[key]
}

// Seed populates the array at mount. Declared defaults create entries, excess
// defaults are truncated to exactItems, and the list is padded up to the
// minItems/exactItems floor with fresh entries.
func (c *ArrayController) Seed(defaults []any) {
	c.reconcile(func() {
		if c.exact >= 0 && len(defaults) > c.exact {
			defaults = defaults[:c.exact]
		}
		for i := len(c.order); i < len(defaults); i++ {
			c.insert(len(c.order), entryValues(defaults[i]))
		}
		floor := max(c.min, c.exact)
		for len(c.order) < floor {
			c.insert(len(c.order), c.childDefaults())
		}
		if c.exact >= 0 {
			for len(c.order) > c.exact {
				c.drop(c.order[len(c.order)-1])
			}
		}
	})
}

// Add inserts a new entry at position at (-1 or out of range appends) and returns its key.
func (c *ArrayController) Add(at int) (string, error) {
	if !c.CanAdd() {
		return "", fmt.Errorf("add to %q: %w", c.field.ID, ErrCardinality)
	}
	var key string
	c.reconcile(func() {
		if at < 0 || at > len(c.order) {
			at = len(c.order)
		}
		key = c.insert(at, c.childDefaults())
	})
	return key, nil
}

// Remove deletes the entry under key. Arrays configured with confirmRemove
// park the key instead and return ErrConfirmationPending.
func (c *ArrayController) Remove(key string) error {
	if _, ok := c.entries[key]; !ok {
		return fmt.Errorf("remove %q from %q: %w", key, c.field.ID, ErrUnknownEntry)
	}
	if !c.CanRemove() {
		return fmt.Errorf("remove from %q: %w", c.field.ID, ErrCardinality)
	}
	if c.field.ConfirmRemove {
		c.pending[key] = true
		return ErrConfirmationPending
	}
	c.reconcile(func() { c.drop(key) })
	return nil
}

// ConfirmRemove completes a pending removal.
func (c *ArrayController) ConfirmRemove(key string) error {
	if !c.pending[key] {
		return fmt.Errorf("confirm removal of %q from %q: %w", key, c.field.ID, ErrUnknownEntry)
	}
	delete(c.pending, key)
	if !c.CanRemove() {
		return fmt.Errorf("remove from %q: %w", c.field.ID, ErrCardinality)
	}
	c.reconcile(func() { c.drop(key) })
	return nil
}

// CancelRemove abandons a pending removal.
func (c *ArrayController) CancelRemove(key string) error {
	if !c.pending[key] {
		return fmt.Errorf("cancel removal of %q from %q: %w", key, c.field.ID, ErrUnknownEntry)
	}
	delete(c.pending, key)
	return nil
}

// SetValue writes one child value of one entry.
func (c *ArrayController) SetValue(key, child string, value any) error {
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("set %q in %q: %w", child, c.field.ID, ErrUnknownEntry)
	}
	e.Values[child] = value
	return nil
}

// ReconcileChildren adopts a new child schema. Values keyed to child ids that
// no longer hold values are pruned from every entry, as are choices a child
// no longer offers among its options. The rest are kept verbatim.
func (c *ArrayController) ReconcileChildren(f *Field) {
	c.reconcile(func() {
		c.field = f
		c.setBounds(f)
		shape := newArrayShape(f)
		ids := shape.valueIDs()
		for _, key := range c.order {
			e := c.entries[key]
			for child, v := range e.Values {
				if !ids[child] {
					delete(e.Values, child)
					continue
				}
				if next, changed := pruneOptions(shape.fields[child], v); changed {
					e.Values[child] = next
				}
			}
		}
	})
}

// ReplaceFromList mirrors a wholesale host write of the array value. Existing
// entries take the new values position by position and keep their keys;
// surplus items get new keys and missing ones are dropped from the tail.
// The list is held to the array's cardinality: items past exactItems (or
// maxItems) are discarded and fresh entries pad it up to the floor.
func (c *ArrayController) ReplaceFromList(list []any) {
	if ceiling := c.ceiling(); ceiling >= 0 && len(list) > ceiling {
		list = list[:ceiling]
	}
	c.reconcile(func() {
		for i, item := range list {
			if i < len(c.order) {
				c.entries[c.order[i]].Values = entryValues(item)
				continue
			}
			c.insert(len(c.order), entryValues(item))
		}
		keep := max(len(list), c.floor())
		for len(c.order) > keep {
			c.drop(c.order[len(c.order)-1])
		}
		for i := len(list); i < len(c.order); i++ {
			c.entries[c.order[i]].Values = c.childDefaults()
		}
		for len(c.order) < keep {
			c.insert(len(c.order), c.childDefaults())
		}
	})
}

// floor is the least number of entries the array may hold.
func (c *ArrayController) floor() int {
	if c.exact >= 0 {
		return c.exact
	}
	return max(c.min, 0)
}

// ceiling is the most entries the array may hold, -1 when unbounded.
func (c *ArrayController) ceiling() int {
	if c.exact >= 0 {
		return c.exact
	}
	return c.max
}

// Reset destroys every entry and seeds again. Keys issued before stay retired.
func (c *ArrayController) Reset(defaults []any) {
	c.reconcile(func() {
		for len(c.order) > 0 {
			c.drop(c.order[len(c.order)-1])
		}
	})
	c.Seed(defaults)
}

func (c *ArrayController) reconcile(fn func()) {
	c.state = ArrayReconciling
	defer func() { c.state = ArrayIdle }()
	fn()
	if c.OnReconcile != nil {
		c.OnReconcile(c)
	}
}

func (c *ArrayController) insert(at int, values map[string]any) string {
	key := c.keys()
	if c.issued[key] {
		invariant("array-key-unique", "key %q issued twice for %q", key, c.field.ID)
	}
	c.issued[key] = true
	c.entries[key] = &ArrayEntry{Key: key, Values: values}
	c.order = append(c.order, "")
	copy(c.order[at+1:], c.order[at:])
	c.order[at] = key
	return key
}

func (c *ArrayController) drop(key string) {
	delete(c.entries, key)
	delete(c.pending, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// childDefaults builds the values of a fresh entry from the child defaults.
func (c *ArrayController) childDefaults() map[string]any {
	vals := make(map[string]any)
	shape := newArrayShape(c.field)
	for _, id := range shape.order {
		if f := shape.fields[id]; f.HoldsValue() && f.Default != nil {
			vals[id] = cloneValue(f.Default)
		}
	}
	return vals
}

// entryValues converts one list item into entry values. Non-object items
// produce an empty entry.
func entryValues(item any) map[string]any {
	vals := make(map[string]any)
	if m, ok := cloneValue(item).(map[string]any); ok {
		for k, v := range m {
			vals[k] = v
		}
	}
	return vals
}
