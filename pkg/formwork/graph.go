package formwork

import (
	"sort"
	"strings"
)

// node is one ref in the visibility graph: a top-level field, or a child field
// inside one array entry.
type node struct {
	ref      string
	field    *Field
	scope    string   // "" for top-level fields, entryScope(array, key) for entry children
	parent   string   // ref of the enclosing container or array ("" at the root)
	deps     []string // refs read by the condition
	failOpen bool     // condition references something that does not exist
}

// Graph holds the dependency edges between refs and the evaluation order.
// It is rebuilt whenever the schema or the set of array entries changes.
type Graph struct {
	nodes      map[string]*node
	dependents map[string][]string
	order      []string
	cyclic     map[string]bool
	cycles     [][]string
}

// entryScope names the scope of one array entry.
func entryScope(array, key string) string {
	return array + "[" + key + "]"
}

// EntryRef returns the ref of a child field inside an array entry.
func EntryRef(array, key, child string) string {
	return entryScope(array, key) + "." + child
}

// ParseEntryRef splits an entry ref into its parts.
func ParseEntryRef(ref string) (array, key, child string, ok bool) {
	open := strings.IndexByte(ref, '[')
	closing := strings.Index(ref, "].")
	if open <= 0 || closing < open {
		return "", "", "", false
	}
	return ref[:open], ref[open+1 : closing], ref[closing+2:], true
}

// buildGraph creates nodes for every field of idx and for every child of every
// live array entry, then orders them. entries maps array id to its ordered keys.
func buildGraph(idx *schemaIndex, entries map[string][]string, report *reporter) *Graph {
	g := &Graph{
		nodes:      make(map[string]*node),
		dependents: make(map[string][]string),
		cyclic:     make(map[string]bool),
	}

	for _, id := range idx.order {
		f := idx.fields[id]
		n := &node{ref: id, field: f, parent: idx.parent[id]}
		for _, dep := range f.Condition.References() {
			if _, ok := idx.fields[dep]; ok {
				n.deps = append(n.deps, dep)
				continue
			}
			report.warn(WarnUnknownReference, id, "condition references unknown field %q", dep)
			n.failOpen = true
		}
		g.nodes[id] = n
	}

	for _, arrayID := range sortedKeys(idx.arrays) {
		shape := idx.arrays[arrayID]
		for _, key := range entries[arrayID] {
			scope := entryScope(arrayID, key)
			for _, child := range shape.order {
				f := shape.fields[child]
				ref := scope + "." + child
				parent := arrayID
				if p := shape.parent[child]; p != "" {
					parent = scope + "." + p
				}
				n := &node{ref: ref, field: f, scope: scope, parent: parent}
				for _, dep := range f.Condition.References() {
					switch {
					case shape.fields[dep] != nil:
						n.deps = append(n.deps, scope+"."+dep)
					case idx.fields[dep] != nil:
						n.deps = append(n.deps, dep)
					default:
						report.warn(WarnUnknownReference, arrayID+"."+child, "condition references unknown field %q", dep)
						n.failOpen = true
					}
				}
				g.nodes[ref] = n
			}
		}
	}

	for _, ref := range sortedKeys(g.nodes) {
		n := g.nodes[ref]
		for _, src := range n.sources() {
			g.dependents[src] = append(g.dependents[src], ref)
		}
	}
	g.sort(report)
	return g
}

// sources returns the refs a node must be evaluated after: its parent and its condition deps.
func (n *node) sources() []string {
	out := make([]string, 0, len(n.deps)+1)
	if n.parent != "" {
		out = append(out, n.parent)
	}
	return append(out, n.deps...)
}

// sort computes a topological order with sorted tie-breaking. Nodes on a cycle
// are flagged and released one at a time, smallest ref first, so every node is
// still evaluated exactly once per pass.
func (g *Graph) sort(report *reporter) {
	g.findCycles()
	for _, cycle := range g.cycles {
		report.warn(WarnDependencyCycle, cycle[0], "conditions form a cycle: %s", strings.Join(cycle, " -> "))
	}

	indegree := make(map[string]int, len(g.nodes))
	for ref, n := range g.nodes {
		for _, src := range n.sources() {
			if _, ok := g.nodes[src]; ok {
				indegree[ref]++
			}
		}
	}

	done := make(map[string]bool, len(g.nodes))
	var ready []string
	for ref := range g.nodes {
		if indegree[ref] == 0 {
			ready = append(ready, ref)
		}
	}
	sort.Strings(ready)

	emit := func(ref string) {
		done[ref] = true
		g.order = append(g.order, ref)
		for _, dep := range g.dependents[ref] {
			indegree[dep]--
			if indegree[dep] == 0 && !done[dep] {
				ready = insertSorted(ready, dep)
			}
		}
	}

	for len(g.order) < len(g.nodes) {
		if len(ready) > 0 {
			ref := ready[0]
			ready = ready[1:]
			if !done[ref] {
				emit(ref)
			}
			continue
		}
		// Stuck on a cycle: force the smallest pending cyclic ref.
		forced := ""
		for _, ref := range sortedKeys(g.nodes) {
			if !done[ref] && g.cyclic[ref] {
				forced = ref
				break
			}
		}
		if forced == "" {
			for _, ref := range sortedKeys(g.nodes) {
				if !done[ref] {
					forced = ref
					break
				}
			}
		}
		emit(forced)
	}
}

// findCycles runs Tarjan's strongly connected components over the graph.
func (g *Graph) findCycles() {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string

	var connect func(ref string)
	connect = func(ref string) {
		indices[ref] = index
		lowlink[ref] = index
		index++
		stack = append(stack, ref)
		onStack[ref] = true

		for _, next := range g.dependents[ref] {
			if _, seen := indices[next]; !seen {
				connect(next)
				lowlink[ref] = min(lowlink[ref], lowlink[next])
			} else if onStack[next] {
				lowlink[ref] = min(lowlink[ref], indices[next])
			}
		}

		if lowlink[ref] != indices[ref] {
			return
		}
		var scc []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			scc = append(scc, top)
			if top == ref {
				break
			}
		}
		if len(scc) == 1 && !g.selfLoop(scc[0]) {
			return
		}
		sort.Strings(scc)
		for _, r := range scc {
			g.cyclic[r] = true
		}
		g.cycles = append(g.cycles, scc)
	}

	for _, ref := range sortedKeys(g.nodes) {
		if _, seen := indices[ref]; !seen {
			connect(ref)
		}
	}
	sort.Slice(g.cycles, func(i, j int) bool { return g.cycles[i][0] < g.cycles[j][0] })
}

func (g *Graph) selfLoop(ref string) bool {
	for _, dep := range g.dependents[ref] {
		if dep == ref {
			return true
		}
	}
	return false
}

// Order returns the evaluation order of the last build.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Cyclic reports whether ref sits on a dependency cycle.
func (g *Graph) Cyclic(ref string) bool {
	return g.cyclic[ref]
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
