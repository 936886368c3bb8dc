package formwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	doc := mustLoad(t, `{
		"sections": {
			"a": {"kind": "section", "children": {
				"x": {"kind": "text", "rules": [{"kind": "pattern", "value": "(["}]}
			}},
			"b": {"kind": "section", "children": {"x": {"kind": "text"}}},
			"p": {"kind": "text", "condition": [{"q": [{"kind": "filled"}]}]},
			"q": {"kind": "text", "condition": [{"p": [{"kind": "filled"}]}], "rules": [{"kind": "bogus"}]},
			"list": {"kind": "array", "children": {
				"c": {"kind": "text", "condition": [{"nowhere": [{"kind": "filled"}]}]}
			}}
		}
	}`)

	warnings, err := Analyze(doc)
	require.NoError(t, err)

	byCode := make(map[string]Warning)
	var codes []string
	for _, w := range warnings {
		codes = append(codes, w.Code)
		byCode[w.Code] = w
	}
	assert.Equal(t, []string{
		WarnDependencyCycle,
		WarnDuplicateField,
		WarnInvalidPattern,
		WarnUnknownReference,
		WarnUnknownRule,
	}, codes)
	assert.Equal(t, "x", byCode[WarnDuplicateField].Field)
	assert.Equal(t, "list.c", byCode[WarnUnknownReference].Field)
	assert.Equal(t, "q", byCode[WarnUnknownRule].Field)
}

func TestAnalyzeCleanDocument(t *testing.T) {
	warnings, err := Analyze(mustLoad(t, planDoc))
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestAnalyzeDoesNotMutate(t *testing.T) {
	doc := mustLoad(t, mergeDoc)
	doc.Overrides = map[string]any{"age": nil}

	_, err := Analyze(doc)
	require.NoError(t, err)
	assert.Contains(t, doc.Sections["main"].Children, "age")
	assert.Len(t, doc.Overrides, 1)
}
