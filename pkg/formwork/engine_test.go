package formwork

import (
	"fmt"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signupDoc = `{
	"id": "signup",
	"title": "Signup",
	"sections": {
		"name": {"kind": "text", "rules": [{"kind": "required"}]},
		"age": {"kind": "number", "rules": [{"kind": "min", "value": 18}]},
		"start": {"kind": "date", "rules": [{"kind": "withinDays", "value": 30}]}
	},
	"values": %s
}`

func runDoc(t *testing.T, values string) Result {
	t.Helper()
	out, err := Run(fmt.Sprintf(signupDoc, values), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var res Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return res
}

func TestRunStatus(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		res := runDoc(t, `{"name": "Ada", "age": 36, "start": "2025-06-20"}`)
		assert.Equal(t, StatusReady, res.Status)
		assert.Equal(t, "signup", res.ID)
		assert.Equal(t, "Signup", res.Title)
		assert.Equal(t, "Ada", res.Values["name"])
		assert.Empty(t, res.Errors)
	})

	t.Run("incomplete", func(t *testing.T) {
		res := runDoc(t, `{"age": 36}`)
		assert.Equal(t, StatusIncomplete, res.Status)
		assert.Equal(t, CodeRequired, res.Errors["name"].Code)
	})

	t.Run("invalid", func(t *testing.T) {
		res := runDoc(t, `{"name": "Ada", "age": 12}`)
		assert.Equal(t, StatusInvalid, res.Status)
		assert.Equal(t, CodeTooSmall, res.Errors["age"].Code)
	})

	t.Run("date window uses the given date", func(t *testing.T) {
		res := runDoc(t, `{"name": "Ada", "start": "2025-09-01"}`)
		assert.Equal(t, StatusInvalid, res.Status)
		assert.Equal(t, CodeDateRange, res.Errors["start"].Code)
	})
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := Run(`{`, time.Now())
	assert.Error(t, err)

	_, err = Run(`{"sections": {}}`, time.Now())
	assert.ErrorIs(t, err, ErrNoSections)
}

func TestDetermineStatus(t *testing.T) {
	assert.Equal(t, StatusReady, determineStatus(nil))
	assert.Equal(t, StatusIncomplete, determineStatus(map[string]FieldError{"a": {Code: CodeRequired}}))
	assert.Equal(t, StatusInvalid, determineStatus(map[string]FieldError{
		"a": {Code: CodeRequired},
		"b": {Code: CodePattern},
	}))
}

const planDoc = `{
	"sections": {
		"plan": {"kind": "select", "options": ["free", "pro"], "rules": [{"kind": "required"}]},
		"seats": {"kind": "number", "condition": [{"plan": [{"kind": "equals", "value": "pro"}]}]},
		"members": {"kind": "array", "children": {"email": {"kind": "email"}}}
	}
}`

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ok      bool
		errText string
	}{
		{"legal", `{"plan": "pro", "seats": 5, "members": [{"email": "a@example.com"}]}`, true, ""},
		{"hidden field submitted", `{"plan": "free", "seats": 5, "members": []}`, false, "not submittable"},
		{"visible field missing", `{"plan": "pro", "members": []}`, false, "missing in payload"},
		{"invalid option", `{"plan": "gold", "members": []}`, false, "fails validation"},
		{"invalid entry", `{"plan": "free", "members": [{"email": "nope"}]}`, false, "fails validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify(tt.payload, planDoc)
			assert.Equal(t, tt.ok, ok)
			if tt.errText == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestVerifyBadPayload(t *testing.T) {
	ok, err := Verify(`not json`, planDoc)
	assert.False(t, ok)
	assert.Error(t, err)
}
