package formwork

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithWarningHandler receives each schema warning once, as it is first reported.
func WithWarningHandler(fn func(Warning)) SessionOption {
	return func(s *Session) { s.onWarning = fn }
}

// WithClock overrides the clock used by date rules.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithKeyGenerator overrides array entry key generation.
func WithKeyGenerator(k KeyGenerator) SessionOption {
	return func(s *Session) { s.keys = k }
}

// WithStore binds the session to a host-owned store.
func WithStore(st *Store) SessionOption {
	return func(s *Session) { s.store = st }
}

// WithValues seeds a fresh store. Declared fields missing from values mount with their defaults.
func WithValues(values map[string]any) SessionOption {
	return func(s *Session) { s.store = NewStore(values) }
}

// WithCustomRules shares a custom rule registry between sessions.
func WithCustomRules(c *CustomRules) SessionOption {
	return func(s *Session) { s.custom = c }
}

// WithSubmitHandler runs after a submission passes validation.
func WithSubmitHandler(fn func(ctx context.Context, values map[string]any) error) SessionOption {
	return func(s *Session) { s.onSubmit = fn }
}

// trigger is the host event that started a cascade.
type trigger int

const (
	triggerNone trigger = iota
	triggerChange
	triggerBlur
)

func (m ValidationMode) validatesOn(t trigger) bool {
	switch t {
	case triggerChange:
		return m == ModeOnChange || m == ModeAll
	case triggerBlur:
		return m == ModeOnBlur || m == ModeAll
	}
	return false
}

// Session is one live form. It owns visibility, validators and array entries
// and recomputes them synchronously after every value or schema change.
// A Session is not safe for concurrent use.
type Session struct {
	id     string
	doc    *Document
	idx    *schemaIndex
	store  *Store
	logger *zap.SugaredLogger
	report *reporter

	ev       *Evaluator
	composer *Composer
	custom   *CustomRules
	keys     KeyGenerator
	now      func() time.Time

	arrays     map[string]*ArrayController
	graph      *Graph
	graphDirty bool
	visible    map[string]bool
	validators map[string]*Validator
	shadow     map[string]any

	errors        map[string]*FieldError // engine validation errors
	external      map[string]string // errors injected with SetErrors
	fieldWarnings map[string]string
	submitted     bool
	cascading     bool

	events      *eventBus
	unsubscribe func()
	onWarning   func(Warning)
	onSubmit    func(ctx context.Context, values map[string]any) error
}

// New mounts a session for doc. Document overrides are applied first, then
// every declared field receives its default value unless the store already
// holds one, and a first cascade settles visibility and validators.
func New(doc *Document, opts ...SessionOption) (*Session, error) {
	if doc == nil || len(doc.Sections) == 0 {
		return nil, ErrNoSections
	}
	s := &Session{
		id:            uuid.NewString(),
		logger:        zap.NewNop().Sugar(),
		keys:          UUIDKeys,
		arrays:        make(map[string]*ArrayController),
		shadow:        make(map[string]any),
		validators:    make(map[string]*Validator),
		errors:        make(map[string]*FieldError),
		external:      make(map[string]string),
		fieldWarnings: make(map[string]string),
		events:        newEventBus(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.custom == nil {
		s.custom = NewCustomRules()
	}
	if s.store == nil {
		s.store = NewStore(nil)
	}
	s.report = newReporter(s.logger, s.onWarning)
	s.ev = NewEvaluator(s.custom)
	s.ev.report = s.report
	if s.now != nil {
		s.ev.Now = s.now
	}
	s.composer = NewComposer(s.ev)

	resolved, err := applyOverrides(doc, doc.Overrides, s.report)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	s.cascading = true
	s.install(resolved)
	s.cascading = false

	s.unsubscribe = s.store.Subscribe(ObserverFunc(s.valueChanged))
	s.cascade(triggerNone, "")
	s.logger.Infow("session mounted", "session", s.id, "form", resolved.ID, "fields", len(s.idx.order), "arrays", len(s.arrays))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Document returns a copy of the schema currently in effect.
func (s *Session) Document() *Document {
	doc, err := s.doc.clone()
	if err != nil {
		return s.doc
	}
	return doc
}

// Store returns the value store the session observes.
func (s *Session) Store() *Store { return s.store }

// Close detaches the session from its store.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// install adopts doc as the schema: mounts values of new fields, drops values
// of fields that no longer exist, and reconciles array controllers.
func (s *Session) install(doc *Document) {
	idx := doc.index(func(id string) {
		s.report.warn(WarnDuplicateField, id, "field id %q is declared more than once", id)
	})

	if s.idx != nil {
		for _, id := range s.idx.order {
			f := s.idx.fields[id]
			nf, kept := idx.fields[id]
			if kept && nf.HoldsValue() == f.HoldsValue() && (nf.Kind == KindArray) == (f.Kind == KindArray) {
				if nf.Kind != KindArray {
					s.pruneChoices(id, nf)
				}
				continue
			}
			s.store.Delete(id)
			delete(s.arrays, id)
			delete(s.shadow, id)
			s.logger.Debugw("field removed", "session", s.id, "field", id)
		}
	}
	s.doc, s.idx = doc, idx
	for ref, v := range s.shadow {
		array, _, child, ok := ParseEntryRef(ref)
		if !ok {
			continue
		}
		if shape, ok := idx.arrays[array]; ok && shape.fields[child] != nil {
			if next, changed := pruneOptions(shape.fields[child], v); changed {
				s.shadow[ref] = next
			}
		}
	}

	for _, id := range idx.order {
		f := idx.fields[id]
		if !f.HoldsValue() {
			continue
		}
		if f.Kind != KindArray {
			if !s.store.Has(id) {
				s.store.Set(id, idx.defaultFor(id))
			}
			continue
		}
		if ctl, ok := s.arrays[id]; ok {
			ctl.ReconcileChildren(f)
			continue
		}
		ctl := NewArrayController(f, s.keys)
		ctl.OnReconcile = s.arrayReconciled
		var seed []any
		if cur, ok := s.store.Get(id); ok && !isEmpty(cur) {
			seed, _ = toList(cur)
		} else {
			seed, _ = toList(idx.defaultFor(id))
		}
		ctl.Seed(seed)
		s.arrays[id] = ctl
	}
	s.graphDirty = true
}

// pruneChoices clears choices of a top-level field, live or shadowed, that
// its new schema no longer offers.
func (s *Session) pruneChoices(id string, f *Field) {
	if v, ok := s.store.Get(id); ok {
		if next, changed := pruneOptions(f, v); changed {
			s.store.Set(id, next)
			s.logger.Debugw("options pruned", "session", s.id, "field", id)
		}
	}
	if v, ok := s.shadow[id]; ok {
		if next, changed := pruneOptions(f, v); changed {
			s.shadow[id] = next
		}
	}
}

func (s *Session) arrayReconciled(c *ArrayController) {
	s.graphDirty = true
	s.logger.Debugw("array reconciled", "session", s.id, "array", c.Field().ID, "entries", c.Len())
}

// valueChanged receives host writes to the store.
func (s *Session) valueChanged(id string, value any, deleted bool) {
	if s.cascading {
		return
	}
	if ctl, ok := s.arrays[id]; ok {
		list, _ := toList(value)
		ctl.ReplaceFromList(list)
	}
	s.cascade(triggerChange, id)
}

// cascade recomputes visibility, then validators, then the array mirrors,
// from a snapshot of the values taken at entry. Writes made by the cascade
// itself do not re-trigger it.
func (s *Session) cascade(t trigger, ref string) {
	s.cascading = true
	defer func() { s.cascading = false }()

	if s.graph == nil || s.graphDirty {
		s.graph = buildGraph(s.idx, s.entryKeys(), s.report)
		s.graphDirty = false
	}

	p := newPass(s.graph, s.ev, s.idx, s.values(), s.visible, s.shadow)
	p.run()
	s.visible = p.next
	for _, r := range sortedKeys(p.changed) {
		n := s.graph.nodes[r]
		value := p.work.get(n)
		if n.scope == "" {
			s.store.Set(n.field.ID, value)
			continue
		}
		array, key, child, _ := ParseEntryRef(r)
		if ctl, ok := s.arrays[array]; ok {
			if err := ctl.SetValue(key, child, value); err != nil {
				s.logger.Debugw("restore skipped", "session", s.id, "ref", r, "error", err)
			}
		}
	}
	for r := range s.shadow {
		if _, ok := s.graph.nodes[r]; !ok {
			delete(s.shadow, r)
		}
	}

	validators := make(map[string]*Validator, len(s.graph.order))
	for _, r := range s.graph.order {
		if v := s.composer.Compose(s.graph.nodes[r].field, s.visible[r]); v != nil {
			validators[r] = v
		}
	}
	s.validators = validators
	for r := range s.errors {
		if validators[r] == nil {
			delete(s.errors, r)
		}
	}
	for r := range s.external {
		if _, ok := s.graph.nodes[r]; ok && !s.visible[r] {
			delete(s.external, r)
		}
	}
	if ref != "" && s.mode().validatesOn(t) {
		s.validate(ref)
	}

	for _, id := range sortedKeys(s.arrays) {
		list := s.arrays[id].List()
		if cur, ok := s.store.Get(id); !ok || !deepEqual(cur, list) {
			s.store.Set(id, list)
		}
	}

	s.logger.Debugw("cascade",
		"session", s.id,
		"trigger", ref,
		"transitions", len(p.transitions),
		"validators", len(validators),
	)
}

// values snapshots the store and the array entries for one pass.
func (s *Session) values() valueSet {
	vs := valueSet{top: s.store.Snapshot(), entries: make(map[string]map[string]any)}
	for id, ctl := range s.arrays {
		vs.top[id] = ctl.List()
		for _, e := range ctl.Entries() {
			vs.entries[entryScope(id, e.Key)] = e.Values
		}
	}
	return vs
}

func (s *Session) entryKeys() map[string][]string {
	out := make(map[string][]string, len(s.arrays))
	for id, ctl := range s.arrays {
		out[id] = ctl.Keys()
	}
	return out
}

func (s *Session) mode() ValidationMode {
	if s.submitted {
		if s.doc.RevalidationMode == "" {
			return ModeOnChange
		}
		return s.doc.RevalidationMode
	}
	if s.doc.ValidationMode == "" {
		return ModeOnSubmit
	}
	return s.doc.ValidationMode
}

// validate runs the active validator of ref. A pass clears engine and external errors.
func (s *Session) validate(ref string) bool {
	v := s.validators[ref]
	if v == nil {
		delete(s.errors, ref)
		return true
	}
	if fe := v.Validate(s.valueOf(ref)); fe != nil {
		s.errors[ref] = fe
		return false
	}
	delete(s.errors, ref)
	delete(s.external, ref)
	return true
}

func (s *Session) valueOf(ref string) any {
	if array, key, child, ok := ParseEntryRef(ref); ok {
		if ctl, ok := s.arrays[array]; ok {
			if e, ok := ctl.Entry(key); ok {
				return e.Values[child]
			}
		}
		return nil
	}
	if ctl, ok := s.arrays[ref]; ok {
		return ctl.List()
	}
	v, _ := s.store.Get(ref)
	return v
}

// SetValue writes one field value through the store and runs a cascade.
// Writing an array field replaces its entries position by position.
func (s *Session) SetValue(id string, value any) error {
	if f, ok := s.idx.fields[id]; ok && !f.HoldsValue() {
		return fmt.Errorf("set %q: %w", id, ErrUnknownField)
	}
	s.store.Set(id, value)
	return nil
}

// SetEntryValue writes one child value of one array entry and runs a cascade.
func (s *Session) SetEntryValue(array, key, child string, value any) error {
	ctl, err := s.array(array)
	if err != nil {
		return err
	}
	shape := s.idx.arrays[array]
	if f, ok := shape.fields[child]; !ok || !f.HoldsValue() {
		return fmt.Errorf("set %q in %q: %w", child, array, ErrUnknownField)
	}
	if err := ctl.SetValue(key, child, value); err != nil {
		return err
	}
	s.cascade(triggerChange, EntryRef(array, key, child))
	return nil
}

// Blur marks a field as left by the user; onBlur modes validate it.
func (s *Session) Blur(ref string) error {
	if _, ok := s.graph.nodes[ref]; !ok {
		return fmt.Errorf("blur %q: %w", ref, ErrUnknownField)
	}
	if s.mode().validatesOn(triggerBlur) {
		s.validate(ref)
	}
	return nil
}

// GetValues returns a copy of every stored value, hidden fields included.
func (s *Session) GetValues() map[string]any {
	return s.store.Snapshot()
}

// Visible reports the settled visibility of a ref. Unknown refs are not visible.
func (s *Session) Visible(ref string) bool {
	return s.visible[ref]
}

// Validator returns the active validator of ref, or nil when none is registered.
func (s *Session) Validator(ref string) *Validator {
	return s.validators[ref]
}

// Errors returns engine validation errors merged with external errors.
// An engine error wins when both exist for the same field.
func (s *Session) Errors() map[string]string {
	out := make(map[string]string, len(s.errors)+len(s.external))
	for ref, msg := range s.external {
		out[ref] = msg
	}
	for ref, fe := range s.errors {
		out[ref] = fe.Message
	}
	return out
}

// Issues returns the engine validation failures with their issue codes.
func (s *Session) Issues() map[string]FieldError {
	out := make(map[string]FieldError, len(s.errors))
	for ref, fe := range s.errors {
		out[ref] = *fe
	}
	return out
}

// SetErrors merges externally reported errors. An empty message clears one.
func (s *Session) SetErrors(errs map[string]string) {
	for ref, msg := range errs {
		if msg == "" {
			delete(s.external, ref)
			continue
		}
		s.external[ref] = msg
	}
}

// SetWarnings merges display-only field warnings. An empty message clears one.
// Warnings never block submission.
func (s *Session) SetWarnings(warnings map[string]string) {
	for ref, msg := range warnings {
		if msg == "" {
			delete(s.fieldWarnings, ref)
			continue
		}
		s.fieldWarnings[ref] = msg
	}
}

// FieldWarnings returns the display-only warnings set by the host.
func (s *Session) FieldWarnings() map[string]string {
	out := make(map[string]string, len(s.fieldWarnings))
	for k, v := range s.fieldWarnings {
		out[k] = v
	}
	return out
}

// SchemaWarnings returns the authoring problems reported so far.
func (s *Session) SchemaWarnings() []Warning {
	return s.report.warnings()
}

// AddCustomValidation registers a custom predicate and recomposes validators.
func (s *Session) AddCustomValidation(kind, name string, pred Predicate) {
	s.custom.Add(kind, name, pred)
	s.cascade(triggerNone, "")
}

// AddFieldEventListener subscribes to events named name on field.
// The returned handle removes the listener.
func (s *Session) AddFieldEventListener(field, name string, fn FieldListener) int {
	return s.events.add(field, name, fn)
}

// RemoveFieldEventListener drops a listener by handle.
func (s *Session) RemoveFieldEventListener(handle int) bool {
	return s.events.remove(handle)
}

// DispatchFieldEvent delivers an event to the listeners of one field.
func (s *Session) DispatchFieldEvent(field, name string, detail any) int {
	n := s.events.dispatch(FieldEvent{Field: field, Name: name, Detail: detail})
	s.logger.Debugw("field event", "session", s.id, "field", field, "event", name, "listeners", n)
	return n
}

func (s *Session) array(id string) (*ArrayController, error) {
	ctl, ok := s.arrays[id]
	if !ok {
		return nil, fmt.Errorf("array %q: %w", id, ErrUnknownArray)
	}
	return ctl, nil
}

// AddEntry inserts an entry into an array (-1 appends) and returns its key.
func (s *Session) AddEntry(array string, at int) (string, error) {
	ctl, err := s.array(array)
	if err != nil {
		return "", err
	}
	key, err := ctl.Add(at)
	if err != nil {
		return "", err
	}
	s.cascade(triggerChange, array)
	return key, nil
}

// RemoveEntry removes an entry by key. Arrays that require confirmation
// return ErrConfirmationPending and keep the entry until ConfirmRemoveEntry.
func (s *Session) RemoveEntry(array, key string) error {
	ctl, err := s.array(array)
	if err != nil {
		return err
	}
	if err := ctl.Remove(key); err != nil {
		return err
	}
	s.dropEntryState(array, key)
	s.cascade(triggerChange, array)
	return nil
}

// ConfirmRemoveEntry completes a pending removal.
func (s *Session) ConfirmRemoveEntry(array, key string) error {
	ctl, err := s.array(array)
	if err != nil {
		return err
	}
	if err := ctl.ConfirmRemove(key); err != nil {
		return err
	}
	s.dropEntryState(array, key)
	s.cascade(triggerChange, array)
	return nil
}

// CancelRemoveEntry abandons a pending removal.
func (s *Session) CancelRemoveEntry(array, key string) error {
	ctl, err := s.array(array)
	if err != nil {
		return err
	}
	return ctl.CancelRemove(key)
}

// Entries returns copies of an array's entries in display order.
func (s *Session) Entries(array string) ([]ArrayEntry, error) {
	ctl, err := s.array(array)
	if err != nil {
		return nil, err
	}
	return ctl.Entries(), nil
}

// dropEntryState forgets errors and cached values of a removed entry.
func (s *Session) dropEntryState(array, key string) {
	prefix := entryScope(array, key) + "."
	for ref := range s.errors {
		if strings.HasPrefix(ref, prefix) {
			delete(s.errors, ref)
		}
	}
	for _, m := range []map[string]string{s.external, s.fieldWarnings} {
		for ref := range m {
			if strings.HasPrefix(ref, prefix) {
				delete(m, ref)
			}
		}
	}
}

// ApplyOverride patches fields by id (field id -> partial field, or nil to
// delete the field) onto the current schema.
func (s *Session) ApplyOverride(overrides map[string]any) error {
	doc, err := applyOverrides(s.doc, overrides, s.report)
	if err != nil {
		return err
	}
	s.replace(doc)
	return nil
}

// MergeSchema deep-merges a partial document onto the current schema.
func (s *Session) MergeSchema(patch map[string]any) error {
	doc, err := Apply(s.doc, patch)
	if err != nil {
		return err
	}
	logMerge(s.logger, patch)
	s.replace(doc)
	return nil
}

// ReplaceSchema swaps in a new document. Values of fields that still exist
// survive; values of removed fields are dropped.
func (s *Session) ReplaceSchema(doc *Document) error {
	if doc == nil || len(doc.Sections) == 0 {
		return ErrNoSections
	}
	resolved, err := applyOverrides(doc, doc.Overrides, s.report)
	if err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	s.replace(resolved)
	return nil
}

func (s *Session) replace(doc *Document) {
	s.cascading = true
	s.install(doc)
	s.cascading = false
	s.cascade(triggerNone, "")
	s.logger.Infow("schema replaced", "session", s.id, "fields", len(s.idx.order))
}

// Reset returns the form to its mounted state. With ignoreDefaults every field
// is cleared instead of receiving its default. Shadow values, errors and the
// submitted flag are discarded and array keys are reissued.
func (s *Session) Reset(ignoreDefaults bool) {
	s.cascading = true
	for _, id := range s.store.Keys() {
		s.store.Delete(id)
	}
	for _, id := range s.idx.order {
		f := s.idx.fields[id]
		if !f.HoldsValue() || f.Kind == KindArray {
			continue
		}
		var v any
		if !ignoreDefaults {
			v = s.idx.defaultFor(id)
		}
		s.store.Set(id, v)
	}
	for _, id := range sortedKeys(s.arrays) {
		var defaults []any
		if !ignoreDefaults {
			defaults, _ = toList(s.idx.defaultFor(id))
		}
		s.arrays[id].Reset(defaults)
	}
	s.shadow = make(map[string]any)
	s.errors = make(map[string]*FieldError)
	s.external = make(map[string]string)
	s.fieldWarnings = make(map[string]string)
	s.visible = nil
	s.submitted = false
	s.cascading = false

	s.cascade(triggerNone, "")
	s.logger.Infow("session reset", "session", s.id, "ignoreDefaults", ignoreDefaults)
}

// SubmitResult is the outcome of a submission. Validation failures are data, not errors.
type SubmitResult struct {
	OK     bool              `json:"ok"`
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Submit validates every visible field and resolves the payload. The submit
// handler runs only for a valid payload; its error is returned as is.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, err
	}
	s.submitted = true
	for _, ref := range s.graph.order {
		s.validate(ref)
	}
	res := SubmitResult{Values: s.Payload(), Errors: s.Errors()}
	res.OK = len(res.Errors) == 0
	if !res.OK {
		s.logger.Infow("submit rejected", "session", s.id, "errors", len(res.Errors))
		return res, nil
	}
	if s.onSubmit != nil {
		if err := s.onSubmit(ctx, res.Values); err != nil {
			return res, fmt.Errorf("submit: %w", err)
		}
	}
	s.logger.Infow("submit accepted", "session", s.id, "fields", len(res.Values))
	return res, nil
}

// Payload resolves the values to submit: visible declared fields, arrays as
// ordered lists of per-entry maps keyed by child id, and undeclared values
// unless the document strips them.
func (s *Session) Payload() map[string]any {
	out := make(map[string]any)
	for _, id := range s.idx.order {
		f := s.idx.fields[id]
		if !f.HoldsValue() || !s.visible[id] {
			continue
		}
		if ctl, ok := s.arrays[id]; ok {
			out[id] = s.entryPayload(id, ctl)
			continue
		}
		v, _ := s.store.Get(id)
		out[id] = cloneValue(v)
	}
	if !s.doc.StripUnknown {
		for _, id := range s.store.Keys() {
			if _, declared := s.idx.fields[id]; declared {
				continue
			}
			v, _ := s.store.Get(id)
			out[id] = cloneValue(v)
		}
	}
	return out
}

func (s *Session) entryPayload(array string, ctl *ArrayController) []any {
	shape := s.idx.arrays[array]
	list := make([]any, 0, ctl.Len())
	for _, e := range ctl.Entries() {
		m := make(map[string]any)
		for _, child := range shape.order {
			if !shape.fields[child].HoldsValue() || !s.visible[EntryRef(array, e.Key, child)] {
				continue
			}
			m[child] = e.Values[child]
		}
		list = append(list, m)
	}
	return list
}

// ArrayView is the host-facing view of one array field.
type ArrayView struct {
	Keys      []string     `json:"keys"`
	Entries   []ArrayEntry `json:"entries"`
	Pending   []string     `json:"pending,omitempty"`
	CanAdd    bool         `json:"canAdd"`
	CanRemove bool         `json:"canRemove"`
}

// Snapshot is the settled state a host renders from.
type Snapshot struct {
	Session        string               `json:"session"`
	Visibility     map[string]bool      `json:"visibility"`
	Values         map[string]any       `json:"values"`
	Errors         map[string]string    `json:"errors,omitempty"`
	Warnings       map[string]string    `json:"warnings,omitempty"`
	Arrays         map[string]ArrayView `json:"arrays,omitempty"`
	Validators     []string             `json:"validators"`
	SchemaWarnings []Warning            `json:"schemaWarnings,omitempty"`
	Submitted      bool                 `json:"submitted"`
}

// Snapshot captures visibility, values, errors and array state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Session:        s.id,
		Visibility:     make(map[string]bool, len(s.visible)),
		Values:         s.store.Snapshot(),
		Errors:         s.Errors(),
		Warnings:       s.FieldWarnings(),
		Arrays:         make(map[string]ArrayView, len(s.arrays)),
		Validators:     sortedKeys(s.validators),
		SchemaWarnings: s.SchemaWarnings(),
		Submitted:      s.submitted,
	}
	for ref, v := range s.visible {
		snap.Visibility[ref] = v
	}
	for id, ctl := range s.arrays {
		view := ArrayView{
			Keys:      ctl.Keys(),
			Entries:   ctl.Entries(),
			CanAdd:    ctl.CanAdd(),
			CanRemove: ctl.CanRemove(),
		}
		for _, key := range view.Keys {
			if ctl.Pending(key) {
				view.Pending = append(view.Pending, key)
			}
		}
		snap.Arrays[id] = view
	}
	return snap
}
