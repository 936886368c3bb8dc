package formwork

import (
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Merge deep-merges patch onto base and returns a new tree; neither input is
// modified. Objects merge key by key and a nil value at a key deletes it.
// Lists merge by position and a nil slot keeps the base element.
// Any other patch value replaces the base value.
func Merge(base, patch any) any {
	switch p := patch.(type) {
	case nil:
		return cloneValue(base)
	case map[string]any:
		b, ok := base.(map[string]any)
		if !ok {
			return stripNils(p)
		}
		out := make(map[string]any, len(b)+len(p))
		for k, v := range b {
			out[k] = cloneValue(v)
		}
		for k, v := range p {
			if v == nil {
				delete(out, k)
				continue
			}
			out[k] = Merge(b[k], v)
		}
		return out
	case []any:
		b, ok := base.([]any)
		if !ok {
			return cloneValue(p)
		}
		out := make([]any, max(len(b), len(p)))
		for i := range out {
			var bv, pv any
			if i < len(b) {
				bv = b[i]
			}
			if i < len(p) {
				pv = p[i]
			}
			out[i] = Merge(bv, pv)
		}
		return out
	default:
		return cloneValue(p)
	}
}

// stripNils copies an object patch that has no base, dropping deletion markers.
func stripNils(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = stripNils(sub)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// Apply merges a partial document onto a copy of base. base is never mutated,
// so different patches may be applied to the same base repeatedly.
func Apply(base *Document, patch map[string]any) (*Document, error) {
	tree, err := toTree(base)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	merged, _ := Merge(tree, patch).(map[string]any)
	out, err := fromTree(merged)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	return out, nil
}

// ApplyOverrides resolves the document's id-addressed overrides into tree
// patches and applies them. The returned document carries no overrides.
// Override targets missing from the schema are reported as warnings.
func ApplyOverrides(doc *Document) (*Document, []Warning, error) {
	report := newReporter(nil, nil)
	out, err := applyOverrides(doc, doc.Overrides, report)
	return out, report.warnings(), err
}

func applyOverrides(doc *Document, overrides map[string]any, report *reporter) (*Document, error) {
	base, err := doc.clone()
	if err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	base.Overrides = nil
	if len(overrides) == 0 {
		return base, nil
	}

	idx := base.index(nil)
	patch := make(map[string]any)
	for _, id := range sortedKeys(overrides) {
		path := idx.pathTo(id)
		if path == nil {
			report.warn(WarnUnknownOverrideTarget, id, "override targets unknown field %q", id)
			continue
		}
		setPath(patch, path, overrides[id])
		if report != nil && report.logger != nil {
			report.logger.Debugw("override applied", "field", id, "delete", overrides[id] == nil)
		}
	}
	return Apply(base, patch)
}

// pathTo returns the tree path of a top-level-scoped field, e.g.
// ["sections", "s1", "children", "name"], or nil when id is unknown.
func (idx *schemaIndex) pathTo(id string) []string {
	if _, ok := idx.fields[id]; !ok {
		return nil
	}
	var chain []string
	for cur := id; cur != ""; cur = idx.parent[cur] {
		chain = append(chain, cur)
	}
	path := []string{"sections"}
	for i := len(chain) - 1; i >= 0; i-- {
		if i < len(chain)-1 {
			path = append(path, "children")
		}
		path = append(path, chain[i])
	}
	return path
}

// setPath writes value at path inside a nested patch, creating objects on the way.
func setPath(tree map[string]any, path []string, value any) {
	cur := tree
	for _, key := range path[:len(path)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[key] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

func toTree(doc *Document) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func fromTree(tree map[string]any) (*Document, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// logMerge records the shape of a schema patch at debug level.
func logMerge(logger *zap.SugaredLogger, patch map[string]any) {
	if logger == nil {
		return
	}
	logger.Debugw("schema patch merged", "keys", sortedKeys(patch))
}
