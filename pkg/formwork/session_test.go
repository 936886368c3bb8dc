package formwork

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, src string, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithKeyGenerator(SequentialKeys("k")), WithClock(fixedClock)}, opts...)
	s, err := New(mustLoad(t, src), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

const conditionalDefaultDoc = `{
	"sections": {
		"main": {"kind": "section", "children": {
			"field1": {"kind": "text"},
			"field2": {"kind": "text", "default": "y", "condition": [{"field1": [{"kind": "filled"}]}]}
		}}
	}
}`

func TestConditionalDefault(t *testing.T) {
	s := newSession(t, conditionalDefaultDoc)

	require.NoError(t, s.SetValue("field1", ""))
	assert.False(t, s.Visible("field2"))
	assert.Equal(t, map[string]any{"field1": ""}, s.Payload())

	require.NoError(t, s.SetValue("field1", "x"))
	assert.True(t, s.Visible("field2"))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, map[string]any{"field1": "x", "field2": "y"}, res.Values)
}

func TestArrayRemovalAfterConfirmation(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"field": {"kind": "array", "confirmRemove": true, "children": {
				"input": {"kind": "text"}
			}}
		},
		"defaultValues": {"field": [{"input": "Hello"}, {"input": "World"}]}
	}`)

	entries, err := s.Entries("field")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	first := entries[0].Key

	err = s.RemoveEntry("field", first)
	assert.ErrorIs(t, err, ErrConfirmationPending)
	assert.Equal(t, []string{first}, s.Snapshot().Arrays["field"].Pending)
	assert.Len(t, s.Payload()["field"], 2)

	require.NoError(t, s.ConfirmRemoveEntry("field", first))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, map[string]any{"field": []any{map[string]any{"input": "World"}}}, res.Values)
	assert.Equal(t, []any{map[string]any{"input": "World"}}, s.GetValues()["field"])
}

func restoreDoc(mode RestoreMode) string {
	return fmt.Sprintf(`{
		"restoreMode": %q,
		"sections": {
			"toggle": {"kind": "text"},
			"target": {"kind": "text", "default": "d", "condition": [{"toggle": [{"kind": "filled"}]}]}
		}
	}`, mode)
}

func TestRestoreModes(t *testing.T) {
	tests := []struct {
		mode RestoreMode
		want any
	}{
		{RestoreNone, nil},
		{RestoreDefault, "d"},
		{RestoreUserInput, "typed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			s := newSession(t, restoreDoc(tt.mode), WithValues(map[string]any{"toggle": "on"}))
			require.True(t, s.Visible("target"))
			assert.Equal(t, "d", s.GetValues()["target"])

			require.NoError(t, s.SetValue("target", "typed"))
			require.NoError(t, s.SetValue("toggle", ""))
			assert.False(t, s.Visible("target"))
			assert.Equal(t, "typed", s.GetValues()["target"], "hidden values are retained")
			assert.NotContains(t, s.Payload(), "target")

			require.NoError(t, s.SetValue("toggle", "on"))
			assert.True(t, s.Visible("target"))
			assert.Equal(t, tt.want, s.GetValues()["target"])
		})
	}
}

func TestFieldRestoreModeOverridesDocument(t *testing.T) {
	s := newSession(t, `{
		"restoreMode": "none",
		"sections": {
			"toggle": {"kind": "text"},
			"target": {"kind": "text", "restoreMode": "user-input", "condition": [{"toggle": [{"kind": "filled"}]}]}
		}
	}`, WithValues(map[string]any{"toggle": "on"}))

	require.NoError(t, s.SetValue("target", "kept"))
	require.NoError(t, s.SetValue("toggle", ""))
	require.NoError(t, s.SetValue("toggle", "on"))
	assert.Equal(t, "kept", s.GetValues()["target"])
}

const emailDoc = `{
	%s
	"sections": {
		"email": {"kind": "email", "rules": [{"kind": "required"}]},
		"nickname": {"kind": "text"}
	}
}`

func TestValidationModes(t *testing.T) {
	t.Run("onSubmit then onChange", func(t *testing.T) {
		s := newSession(t, fmt.Sprintf(emailDoc, ""))

		require.NoError(t, s.SetValue("email", ""))
		assert.Empty(t, s.Errors())

		res, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, "This field is required", res.Errors["email"])
		assert.Equal(t, CodeRequired, s.Issues()["email"].Code)

		require.NoError(t, s.SetValue("email", "not-an-email"))
		assert.Equal(t, CodeInvalidFormat, s.Issues()["email"].Code)

		require.NoError(t, s.SetValue("email", "ada@example.com"))
		assert.Empty(t, s.Errors())
	})

	t.Run("onBlur", func(t *testing.T) {
		s := newSession(t, fmt.Sprintf(emailDoc, `"validationMode": "onBlur",`))

		require.NoError(t, s.SetValue("email", ""))
		assert.Empty(t, s.Errors())

		require.NoError(t, s.Blur("email"))
		assert.Contains(t, s.Errors(), "email")
		assert.ErrorIs(t, s.Blur("ghost"), ErrUnknownField)
	})

	t.Run("onChange", func(t *testing.T) {
		s := newSession(t, fmt.Sprintf(emailDoc, `"validationMode": "onChange",`))

		require.NoError(t, s.SetValue("email", ""))
		assert.Contains(t, s.Errors(), "email")
		require.NoError(t, s.Blur("email"))
		assert.Contains(t, s.Errors(), "email")
	})

	t.Run("revalidation on blur", func(t *testing.T) {
		s := newSession(t, fmt.Sprintf(emailDoc, `"revalidationMode": "onBlur",`))
		_, err := s.Submit(context.Background())
		require.NoError(t, err)

		require.NoError(t, s.SetValue("email", "ada@example.com"))
		assert.Contains(t, s.Errors(), "email", "change does not revalidate")
		require.NoError(t, s.Blur("email"))
		assert.Empty(t, s.Errors())
	})
}

func TestExternalErrors(t *testing.T) {
	s := newSession(t, fmt.Sprintf(emailDoc, `"validationMode": "onChange",`))

	s.SetErrors(map[string]string{"nickname": "taken"})
	assert.Equal(t, map[string]string{"nickname": "taken"}, s.Errors())

	require.NoError(t, s.SetValue("email", "ada@example.com"))
	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "taken", res.Errors["nickname"])

	s.SetErrors(map[string]string{"nickname": ""})
	res, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)

	s.SetErrors(map[string]string{"email": "server says no"})
	assert.Equal(t, "server says no", s.Errors()["email"])
	require.NoError(t, s.SetValue("email", "other@example.com"))
	assert.Empty(t, s.Errors(), "a passing validator clears external errors")
}

func TestExternalErrorOnHiddenFieldIsDropped(t *testing.T) {
	s := newSession(t, conditionalDefaultDoc)
	require.NoError(t, s.SetValue("field1", "x"))

	s.SetErrors(map[string]string{"field2": "bad"})
	require.Contains(t, s.Errors(), "field2")

	require.NoError(t, s.SetValue("field1", ""))
	assert.NotContains(t, s.Errors(), "field2")
}

func TestHiddenFieldsAreNotValidated(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"hasCompany": {"kind": "checkbox", "default": false},
			"company": {"kind": "text", "rules": [{"kind": "required"}], "condition": [{"hasCompany": [{"kind": "equals", "value": true}]}]}
		}
	}`)

	assert.Nil(t, s.Validator("company"))
	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, map[string]any{"hasCompany": false}, res.Values)

	require.NoError(t, s.SetValue("hasCompany", true))
	assert.NotNil(t, s.Validator("company"))
	res, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Errors, "company")

	require.NoError(t, s.SetValue("hasCompany", false))
	assert.Empty(t, s.Errors())
}

func TestStripUnknown(t *testing.T) {
	src := `{%s "sections": {"a": {"kind": "text"}}}`

	s := newSession(t, fmt.Sprintf(src, ""), WithValues(map[string]any{"a": "1", "extra": "2"}))
	assert.Equal(t, map[string]any{"a": "1", "extra": "2"}, s.Payload())

	s = newSession(t, fmt.Sprintf(src, `"stripUnknown": true,`), WithValues(map[string]any{"a": "1", "extra": "2"}))
	assert.Equal(t, map[string]any{"a": "1"}, s.Payload())
}

const entriesDoc = `{
	"sections": {
		"items": {"kind": "array", "children": {
			"name": {"kind": "text", "rules": [{"kind": "required"}]},
			"type": {"kind": "text"},
			"note": {"kind": "text", "condition": [{"type": [{"kind": "filled"}, {"kind": "equals", "value": "other"}]}]}
		}}
	}
}`

func TestArrayEntries(t *testing.T) {
	s := newSession(t, entriesDoc)

	k1, err := s.AddEntry("items", -1)
	require.NoError(t, err)
	assert.Equal(t, "k1", k1)
	assert.False(t, s.Visible(EntryRef("items", k1, "note")))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Errors, "items[k1].name")

	require.NoError(t, s.SetEntryValue("items", k1, "name", "Widget"))
	assert.Empty(t, s.Errors())

	require.NoError(t, s.SetEntryValue("items", k1, "type", "other"))
	assert.True(t, s.Visible("items[k1].note"))

	k2, err := s.AddEntry("items", 0)
	require.NoError(t, err)
	assert.False(t, s.Visible(EntryRef("items", k2, "note")))
	assert.True(t, s.Visible("items[k1].note"), "sibling scopes do not leak")

	res, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Errors, "items[k2].name")
	assert.NotContains(t, res.Errors, "items[k1].name")

	require.NoError(t, s.RemoveEntry("items", k2))
	assert.Empty(t, s.Errors())
	assert.Equal(t, []any{map[string]any{"name": "Widget", "type": "other", "note": nil}}, s.Payload()["items"])
}

func TestArrayEntryErrors(t *testing.T) {
	s := newSession(t, entriesDoc)

	_, err := s.AddEntry("ghost", -1)
	assert.ErrorIs(t, err, ErrUnknownArray)

	k1, err := s.AddEntry("items", -1)
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetEntryValue("items", k1, "ghost", "x"), ErrUnknownField)
	assert.ErrorIs(t, s.SetEntryValue("items", "k99", "name", "x"), ErrUnknownEntry)
	assert.ErrorIs(t, s.RemoveEntry("items", "k99"), ErrUnknownEntry)
}

func TestHostWritesArrayThroughStore(t *testing.T) {
	s := newSession(t, entriesDoc)
	_, err := s.AddEntry("items", -1)
	require.NoError(t, err)
	_, err = s.AddEntry("items", -1)
	require.NoError(t, err)

	s.Store().Set("items", []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}, map[string]any{"name": "C"}})

	entries, err := s.Entries("items")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "k1", entries[0].Key)
	assert.Equal(t, "k2", entries[1].Key)
	assert.Equal(t, "C", entries[2].Values["name"])
	assert.False(t, s.Visible(EntryRef("items", entries[2].Key, "note")))
	assert.True(t, s.Visible(EntryRef("items", entries[2].Key, "name")))
}

func TestHostArrayWritesKeepCardinality(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"pair": {"kind": "array", "rules": [{"kind": "exactItems", "value": 2}], "children": {"v": {"kind": "text"}}},
			"one": {"kind": "array", "rules": [{"kind": "minItems", "value": 1}], "children": {"v": {"kind": "text"}}}
		}
	}`)
	pair := s.Snapshot().Arrays["pair"].Keys
	require.Len(t, pair, 2)

	require.NoError(t, s.SetValue("pair", []any{
		map[string]any{"v": "a"}, map[string]any{"v": "b"}, map[string]any{"v": "c"},
	}))
	view := s.Snapshot().Arrays["pair"]
	assert.Equal(t, pair, view.Keys)
	assert.False(t, view.CanAdd)
	assert.Equal(t, []any{map[string]any{"v": "a"}, map[string]any{"v": "b"}}, s.GetValues()["pair"])

	require.NoError(t, s.SetValue("pair", []any{}))
	assert.Equal(t, pair, s.Snapshot().Arrays["pair"].Keys)

	require.NoError(t, s.SetValue("one", []any{}))
	view = s.Snapshot().Arrays["one"]
	assert.Len(t, view.Keys, 1)
	assert.False(t, view.CanRemove)
	list, ok := s.GetValues()["one"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestArrayCardinalityInSession(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"contacts": {"kind": "array", "rules": [{"kind": "minItems", "value": 1}, {"kind": "maxItems", "value": 2}], "children": {
				"phone": {"kind": "text"}
			}}
		}
	}`)

	view := s.Snapshot().Arrays["contacts"]
	require.Len(t, view.Keys, 1)
	assert.False(t, view.CanRemove)
	assert.True(t, view.CanAdd)
	assert.ErrorIs(t, s.RemoveEntry("contacts", view.Keys[0]), ErrCardinality)

	_, err := s.AddEntry("contacts", -1)
	require.NoError(t, err)
	view = s.Snapshot().Arrays["contacts"]
	assert.False(t, view.CanAdd)
	assert.True(t, view.CanRemove)

	_, err = s.AddEntry("contacts", -1)
	assert.ErrorIs(t, err, ErrCardinality)
}

func TestSetValueOnContainer(t *testing.T) {
	s := newSession(t, conditionalDefaultDoc)
	assert.ErrorIs(t, s.SetValue("main", "x"), ErrUnknownField)
}

func TestReset(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"name": {"kind": "text", "default": "anon", "rules": [{"kind": "minLength", "value": 5}]},
			"tags": {"kind": "array", "children": {"tag": {"kind": "text"}}}
		},
		"defaultValues": {"tags": [{"tag": "new"}]}
	}`)

	require.NoError(t, s.SetValue("name", "bo"))
	_, err := s.AddEntry("tags", -1)
	require.NoError(t, err)
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.Errors())

	s.Reset(false)
	snap := s.Snapshot()
	assert.False(t, snap.Submitted)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, "anon", snap.Values["name"])
	assert.Equal(t, []string{"k3"}, snap.Arrays["tags"].Keys, "keys are reissued")
	assert.Equal(t, []any{map[string]any{"tag": "new"}}, snap.Values["tags"])

	s.Reset(true)
	values := s.GetValues()
	assert.Nil(t, values["name"])
	assert.Empty(t, values["tags"])
}

func TestSchemaChanges(t *testing.T) {
	t.Run("override reveals a field", func(t *testing.T) {
		s := newSession(t, conditionalDefaultDoc)
		require.NoError(t, s.SetValue("field1", ""))
		require.False(t, s.Visible("field2"))

		require.NoError(t, s.ApplyOverride(map[string]any{
			"field2": map[string]any{"condition": nil, "label": "Second"},
		}))
		assert.True(t, s.Visible("field2"))
		assert.Equal(t, "y", s.GetValues()["field2"])
		assert.Equal(t, "Second", s.Document().Sections["main"].Children["field2"].Label)
	})

	t.Run("merge patch", func(t *testing.T) {
		s := newSession(t, conditionalDefaultDoc)
		require.NoError(t, s.MergeSchema(map[string]any{"title": "Renamed"}))
		assert.Equal(t, "Renamed", s.Document().Title)
	})

	t.Run("replace prunes removed fields", func(t *testing.T) {
		s := newSession(t, `{"sections": {"a": {"kind": "text"}, "b": {"kind": "text"}}}`)
		require.NoError(t, s.SetValue("a", "1"))
		require.NoError(t, s.SetValue("b", "2"))

		require.NoError(t, s.ReplaceSchema(mustLoad(t, `{"sections": {"a": {"kind": "text"}, "c": {"kind": "text", "default": "3"}}}`)))
		assert.Equal(t, map[string]any{"a": "1", "c": "3"}, s.GetValues())
		assert.ErrorIs(t, s.ReplaceSchema(&Document{}), ErrNoSections)
	})

	t.Run("array children reconcile", func(t *testing.T) {
		s := newSession(t, entriesDoc)
		k1, err := s.AddEntry("items", -1)
		require.NoError(t, err)
		require.NoError(t, s.SetEntryValue("items", k1, "name", "x"))
		require.NoError(t, s.SetEntryValue("items", k1, "type", "t"))

		require.NoError(t, s.ApplyOverride(map[string]any{
			"items": map[string]any{"children": map[string]any{"type": nil, "note": nil}},
		}))
		entries, err := s.Entries("items")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, k1, entries[0].Key)
		assert.Equal(t, map[string]any{"name": "x"}, entries[0].Values)
	})
}

func TestSchemaChangePrunesRemovedOptions(t *testing.T) {
	s := newSession(t, `{
		"sections": {
			"tags": {"kind": "multiselect", "options": ["a", "b", "c"]},
			"color": {"kind": "select", "options": ["red", "blue"]},
			"size": {"kind": "radio", "options": ["s", "m"]},
			"rows": {"kind": "array", "children": {"pick": {"kind": "select", "options": ["x", "y"]}}}
		}
	}`)
	require.NoError(t, s.SetValue("tags", []any{"a", "b"}))
	require.NoError(t, s.SetValue("color", "blue"))
	require.NoError(t, s.SetValue("size", "m"))
	k1, err := s.AddEntry("rows", -1)
	require.NoError(t, err)
	require.NoError(t, s.SetEntryValue("rows", k1, "pick", "y"))

	require.NoError(t, s.ReplaceSchema(mustLoad(t, `{
		"sections": {
			"tags": {"kind": "multiselect", "options": [{"value": "a", "label": "A"}, "c"]},
			"color": {"kind": "select", "options": ["red", "green"]},
			"size": {"kind": "radio", "options": ["m", "l"]},
			"rows": {"kind": "array", "children": {"pick": {"kind": "select", "options": ["x"]}}}
		}
	}`)))

	values := s.GetValues()
	assert.Equal(t, []any{"a"}, values["tags"])
	assert.Nil(t, values["color"])
	assert.Equal(t, "m", values["size"])

	entries, err := s.Entries("rows")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, k1, entries[0].Key)
	assert.Nil(t, entries[0].Values["pick"])
}

func TestSchemaWarnings(t *testing.T) {
	var got []Warning
	s := newSession(t, `{
		"sections": {
			"a": {"kind": "text", "condition": [{"ghost": [{"kind": "filled"}]}]},
			"code": {"kind": "text", "rules": [{"kind": "custom", "name": "upper"}]}
		},
		"overrides": {"missing": {"label": "x"}}
	}`, WithWarningHandler(func(w Warning) { got = append(got, w) }))

	assert.True(t, s.Visible("a"), "unknown references fail open")
	require.NoError(t, s.SetValue("a", "x"))

	var codes []string
	for _, w := range s.SchemaWarnings() {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{WarnUnknownCustomRule, WarnUnknownOverrideTarget, WarnUnknownReference}, codes)
	assert.Len(t, got, 3)
}

func TestAddCustomValidation(t *testing.T) {
	s := newSession(t, `{
		"sections": {"code": {"kind": "text", "rules": [{"kind": "custom", "name": "upper", "errorMessage": "Use capitals"}]}}
	}`, WithValues(map[string]any{"code": "abc"}))
	assert.Nil(t, s.Validator("code"))

	s.AddCustomValidation("text", "upper", func(v any) bool {
		str, _ := v.(string)
		return str == strings.ToUpper(str)
	})
	require.NotNil(t, s.Validator("code"))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Use capitals", res.Errors["code"])
	assert.Equal(t, CodeCustom, s.Issues()["code"].Code)
}

func TestSubmitHandler(t *testing.T) {
	t.Run("receives payload", func(t *testing.T) {
		var got map[string]any
		s := newSession(t, conditionalDefaultDoc, WithSubmitHandler(func(_ context.Context, values map[string]any) error {
			got = values
			return nil
		}))
		require.NoError(t, s.SetValue("field1", "x"))
		_, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"field1": "x", "field2": "y"}, got)
	})

	t.Run("handler error", func(t *testing.T) {
		s := newSession(t, conditionalDefaultDoc, WithSubmitHandler(func(context.Context, map[string]any) error {
			return errors.New("boom")
		}))
		res, err := s.Submit(context.Background())
		assert.ErrorContains(t, err, "boom")
		assert.True(t, res.OK)
	})

	t.Run("not called when invalid", func(t *testing.T) {
		called := false
		s := newSession(t, fmt.Sprintf(emailDoc, ""), WithSubmitHandler(func(context.Context, map[string]any) error {
			called = true
			return nil
		}))
		_, err := s.Submit(context.Background())
		require.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newSession(t, conditionalDefaultDoc)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Submit(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, s.Snapshot().Submitted)
	})
}

func TestFieldEvents(t *testing.T) {
	s := newSession(t, conditionalDefaultDoc)

	var got []FieldEvent
	h := s.AddFieldEventListener("field1", "upload", func(ev FieldEvent) { got = append(got, ev) })
	s.AddFieldEventListener("field2", "upload", func(FieldEvent) { t.Error("wrong field") })

	assert.Equal(t, 1, s.DispatchFieldEvent("field1", "upload", 50))
	require.Len(t, got, 1)
	assert.Equal(t, FieldEvent{Field: "field1", Name: "upload", Detail: 50}, got[0])

	assert.True(t, s.RemoveFieldEventListener(h))
	assert.False(t, s.RemoveFieldEventListener(h))
	assert.Equal(t, 0, s.DispatchFieldEvent("field1", "upload", 60))
}

func TestFieldWarnings(t *testing.T) {
	s := newSession(t, conditionalDefaultDoc)
	s.SetWarnings(map[string]string{"field1": "looks odd"})
	assert.Equal(t, map[string]string{"field1": "looks odd"}, s.FieldWarnings())

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK, "warnings never block submission")

	s.SetWarnings(map[string]string{"field1": ""})
	assert.Empty(t, s.FieldWarnings())
}

func TestSharedStore(t *testing.T) {
	st := NewStore(map[string]any{"field1": "x"})
	s := newSession(t, conditionalDefaultDoc, WithStore(st))
	assert.True(t, s.Visible("field2"))

	st.Set("field1", "")
	assert.False(t, s.Visible("field2"))

	s.Close()
	st.Set("field1", "again")
	assert.False(t, s.Visible("field2"), "closed sessions stop observing")
}

func TestNewRejectsEmptyDocument(t *testing.T) {
	_, err := New(&Document{})
	assert.ErrorIs(t, err, ErrNoSections)
	_, err = New(nil)
	assert.ErrorIs(t, err, ErrNoSections)
}
