package formwork

// Analyze resolves overrides, indexes the document and builds its visibility
// graph without mounting a session, returning every authoring warning found.
// Each array is analyzed with one placeholder entry so entry-scoped
// conditions are checked too.
func Analyze(doc *Document) ([]Warning, error) {
	report := newReporter(nil, nil)
	resolved, err := applyOverrides(doc, doc.Overrides, report)
	if err != nil {
		return nil, err
	}
	idx := resolved.index(func(id string) {
		report.warn(WarnDuplicateField, id, "field id %q is declared more than once", id)
	})

	entries := make(map[string][]string, len(idx.arrays))
	for id := range idx.arrays {
		entries[id] = []string{"0"}
	}
	buildGraph(idx, entries, report)

	ev := NewEvaluator(nil)
	ev.report = report
	check := func(field string, rules []Rule) {
		for _, r := range rules {
			switch {
			case !r.Kind.known():
				report.warn(WarnUnknownRule, field, "unknown rule kind %q", r.Kind)
			case r.Kind == RulePattern:
				ev.pattern(r)
			}
		}
	}
	visit := func(field string, f *Field) {
		check(field, f.Rules)
		for _, clause := range f.Condition {
			for _, id := range sortedKeys(clause) {
				check(field, clause[id])
			}
		}
	}
	for _, id := range idx.order {
		visit(id, idx.fields[id])
	}
	for _, arrayID := range sortedKeys(idx.arrays) {
		shape := idx.arrays[arrayID]
		for _, child := range shape.order {
			visit(arrayID+"."+child, shape.fields[child])
		}
	}
	return report.warnings(), nil
}
