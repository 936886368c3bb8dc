package formwork

// Transition records a field whose visibility flipped during a pass.
type Transition struct {
	Ref      string `json:"ref"`
	Visible  bool   `json:"visible"`
	Restored bool   `json:"restored,omitempty"` // a value was written by the restore policy
}

// valueSet is the working copy of form values for one pass: top-level values
// plus the child values of each array entry keyed by entry scope.
type valueSet struct {
	top     map[string]any
	entries map[string]map[string]any
}

func (v valueSet) get(n *node) any {
	if n.scope == "" {
		return v.top[n.field.ID]
	}
	return v.entries[n.scope][n.field.ID]
}

func (v valueSet) set(n *node, value any) {
	if n.scope == "" {
		v.top[n.field.ID] = value
		return
	}
	vals := v.entries[n.scope]
	if vals == nil {
		vals = make(map[string]any)
		v.entries[n.scope] = vals
	}
	vals[n.field.ID] = value
}

func (v valueSet) clone() valueSet {
	out := valueSet{
		top:     make(map[string]any, len(v.top)),
		entries: make(map[string]map[string]any, len(v.entries)),
	}
	for k, val := range v.top {
		out.top[k] = cloneValue(val)
	}
	for scope, vals := range v.entries {
		m := make(map[string]any, len(vals))
		for k, val := range vals {
			m[k] = cloneValue(val)
		}
		out.entries[scope] = m
	}
	return out
}

// pass recomputes visibility once over a graph, in graph order. Reads of a
// ref that has not been evaluated yet (only possible on a cycle) see the
// previous pass's visibility and the values as of pass entry.
type pass struct {
	g       *Graph
	ev      *Evaluator
	idx     *schemaIndex
	restore RestoreMode

	entry valueSet
	work  valueSet
	prev  map[string]bool
	next  map[string]bool
	done  map[string]bool

	shadow      map[string]any
	changed     map[string]bool
	transitions []Transition
}

func newPass(g *Graph, ev *Evaluator, idx *schemaIndex, values valueSet, prev map[string]bool, shadow map[string]any) *pass {
	return &pass{
		g:       g,
		ev:      ev,
		idx:     idx,
		restore: idx.doc.RestoreMode,
		entry:   values,
		work:    values.clone(),
		prev:    prev,
		next:    make(map[string]bool, len(g.nodes)),
		done:    make(map[string]bool, len(g.nodes)),
		shadow:  shadow,
		changed: make(map[string]bool),
	}
}

// run evaluates every node once. Refs without a previous visibility (first
// mount, fresh entries) settle without applying restore policies.
func (p *pass) run() {
	for _, ref := range p.g.order {
		n := p.g.nodes[ref]
		visible := true
		if n.parent != "" {
			visible = p.visible(n.parent)
		}
		if visible && !n.failOpen {
			visible = Resolve(p.ev, n.field.Condition, passScope{p: p, scope: n.scope})
		}
		p.next[ref] = visible
		p.done[ref] = true

		was, known := p.prev[ref]
		if !known || was == visible || !n.field.HoldsValue() || n.field.Kind == KindArray {
			continue
		}
		t := Transition{Ref: ref, Visible: visible}
		if visible {
			t.Restored = p.applyRestore(n)
		} else {
			p.shadow[ref] = cloneValue(p.work.get(n))
		}
		p.transitions = append(p.transitions, t)
	}
}

// applyRestore writes the value a field receives on a hidden->visible flip.
func (p *pass) applyRestore(n *node) bool {
	var value any
	switch n.field.restoreMode(p.restore) {
	case RestoreNone:
		value = nil
	case RestoreUserInput:
		if cached, ok := p.shadow[n.ref]; ok {
			value = cloneValue(cached)
		} else {
			value = p.defaultFor(n)
		}
	default:
		value = p.defaultFor(n)
	}
	p.work.set(n, value)
	p.changed[n.ref] = true
	return true
}

func (p *pass) defaultFor(n *node) any {
	if n.scope == "" {
		return p.idx.defaultFor(n.field.ID)
	}
	return cloneValue(n.field.Default)
}

func (p *pass) visible(ref string) bool {
	if p.done[ref] {
		return p.next[ref]
	}
	if v, ok := p.prev[ref]; ok {
		return v
	}
	return true
}

// passScope implements Lookup for one scope of a running pass.
type passScope struct {
	p     *pass
	scope string
}

func (s passScope) ref(id string) string {
	if s.scope != "" {
		if _, ok := s.p.g.nodes[s.scope+"."+id]; ok {
			return s.scope + "." + id
		}
	}
	return id
}

func (s passScope) Value(id string) (any, bool) {
	ref := s.ref(id)
	n, ok := s.p.g.nodes[ref]
	if !ok {
		v, ok := s.p.work.top[id]
		return v, ok
	}
	if s.p.done[ref] {
		return s.p.work.get(n), true
	}
	return s.p.entry.get(n), true
}

func (s passScope) Visible(id string) bool {
	return s.p.visible(s.ref(id))
}

func (s passScope) Kind(id string) string {
	if n, ok := s.p.g.nodes[s.ref(id)]; ok {
		return n.field.Kind
	}
	return ""
}
