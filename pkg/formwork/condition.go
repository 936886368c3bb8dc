package formwork

import "sort"

// Lookup gives the condition resolver read access to one scope of the form:
// the top-level fields, or an array entry layered over them.
type Lookup interface {
	// Value returns the retained value of a field, hidden or not.
	Value(id string) (any, bool)
	// Visible reports the visibility of a field as currently settled.
	Visible(id string) bool
	// Kind returns the field kind used for kind-scoped custom rules.
	Kind(id string) string
}

// Resolve evaluates a condition: an OR over clauses, each an AND over its rules.
// An empty condition always holds.
func Resolve(ev *Evaluator, cond Condition, scope Lookup) bool {
	if len(cond) == 0 {
		return true
	}
	for _, clause := range cond {
		if resolveClause(ev, clause, scope) {
			return true
		}
	}
	return false
}

// resolveClause short-circuits on the first failing predicate.
// Referenced ids are visited in sorted order so evaluation is deterministic.
func resolveClause(ev *Evaluator, clause Clause, scope Lookup) bool {
	for _, id := range sortedKeys(clause) {
		for _, rule := range clause[id] {
			if !resolveRule(ev, id, rule, scope) {
				return false
			}
		}
	}
	return true
}

func resolveRule(ev *Evaluator, id string, rule Rule, scope Lookup) bool {
	switch rule.Kind {
	case RuleShown:
		return scope.Visible(id)
	case RuleHidden:
		return !scope.Visible(id)
	}
	value, _ := scope.Value(id)
	return ev.Evaluate(rule, scope.Kind(id), value)
}

// References returns the sorted, unique field ids a condition reads.
func (c Condition) References() []string {
	seen := make(map[string]bool)
	for _, clause := range c {
		for id := range clause {
			seen[id] = true
		}
	}
	refs := make([]string, 0, len(seen))
	for id := range seen {
		refs = append(refs, id)
	}
	sort.Strings(refs)
	return refs
}
