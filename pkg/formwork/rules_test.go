package formwork

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func newTestEvaluator() *Evaluator {
	ev := NewEvaluator(nil)
	ev.Now = fixedClock
	ev.report = newReporter(nil, nil)
	return ev
}

func TestEvaluateRules(t *testing.T) {
	ev := newTestEvaluator()

	tests := []struct {
		name  string
		rule  Rule
		kind  string
		value any
		want  bool
	}{
		{"required nil", Rule{Kind: RuleRequired}, "text", nil, false},
		{"required empty string", Rule{Kind: RuleRequired}, "text", "", false},
		{"required whitespace", Rule{Kind: RuleRequired}, "text", "   ", false},
		{"required value", Rule{Kind: RuleRequired}, "text", "x", true},
		{"required zero", Rule{Kind: RuleRequired}, "number", float64(0), true},
		{"required false", Rule{Kind: RuleRequired}, "checkbox", false, true},
		{"required empty list", Rule{Kind: RuleRequired}, "multiselect", []any{}, false},
		{"empty on nil", Rule{Kind: RuleEmpty}, "text", nil, true},
		{"empty on value", Rule{Kind: RuleEmpty}, "text", "x", false},

		{"minLength pass", Rule{Kind: RuleMinLength, Value: float64(3)}, "text", "abc", true},
		{"minLength fail", Rule{Kind: RuleMinLength, Value: float64(3)}, "text", "ab", false},
		{"minLength runes", Rule{Kind: RuleMinLength, Value: float64(3)}, "text", "åäö", true},
		{"maxLength fail", Rule{Kind: RuleMaxLength, Value: 2}, "text", "abc", false},
		{"length exact", Rule{Kind: RuleLength, Value: 4}, "text", "abcd", true},
		{"length skips empty", Rule{Kind: RuleLength, Value: 4}, "text", "", true},

		{"min pass", Rule{Kind: RuleMin, Value: 18}, "number", float64(21), true},
		{"min fail", Rule{Kind: RuleMin, Value: 18}, "number", float64(17), false},
		{"min numeric string", Rule{Kind: RuleMin, Value: 18}, "number", "21", true},
		{"min not a number", Rule{Kind: RuleMin, Value: 18}, "number", "abc", false},
		{"max pass", Rule{Kind: RuleMax, Value: "100"}, "number", 100, true},

		{"equals coerces", Rule{Kind: RuleEquals, Value: "5"}, "text", float64(5), true},
		{"equals bool", Rule{Kind: RuleEquals, Value: true}, "checkbox", true, true},
		{"notEquals", Rule{Kind: RuleNotEquals, Value: "no"}, "text", "yes", true},
		{"oneOf pass", Rule{Kind: RuleOneOf, Value: []any{"a", "b"}}, "select", "b", true},
		{"oneOf fail", Rule{Kind: RuleOneOf, Value: []any{"a", "b"}}, "select", "c", false},
		{"oneOf list", Rule{Kind: RuleOneOf, Value: []any{"a", "b"}}, "multiselect", []any{"a", "b"}, true},

		{"pattern pass", Rule{Kind: RulePattern, Value: `^\d{3}$`}, "text", "123", true},
		{"pattern fail", Rule{Kind: RulePattern, Value: `^\d{3}$`}, "text", "12a", false},
		{"email pass", Rule{Kind: RuleEmail}, "text", "ada@example.com", true},
		{"email fail", Rule{Kind: RuleEmail}, "text", "ada@", false},
		{"url pass", Rule{Kind: RuleURL}, "text", "https://example.com/x", true},
		{"url fail", Rule{Kind: RuleURL}, "text", "example", false},

		{"before date", Rule{Kind: RuleBefore, Value: "2025-01-01"}, "date", "2024-12-31", true},
		{"before now", Rule{Kind: RuleBefore, Value: "now"}, "date", "2025-06-16", false},
		{"after now", Rule{Kind: RuleAfter, Value: "now"}, "date", "2025-06-16", true},
		{"after invalid value", Rule{Kind: RuleAfter, Value: "2025-01-01"}, "date", "soon", false},
		{"withinDays near", Rule{Kind: RuleWithinDays, Value: 7}, "date", "2025-06-10", true},
		{"withinDays future", Rule{Kind: RuleWithinDays, Value: 7}, "date", "2025-06-20", true},
		{"withinDays far", Rule{Kind: RuleWithinDays, Value: 7}, "date", "2025-05-01", false},

		{"minItems counts empty", Rule{Kind: RuleMinItems, Value: 1}, "array", nil, false},
		{"minItems pass", Rule{Kind: RuleMinItems, Value: 1}, "array", []any{map[string]any{}}, true},
		{"maxItems fail", Rule{Kind: RuleMaxItems, Value: 1}, "array", []any{1, 2}, false},
		{"exactItems pass", Rule{Kind: RuleExactItems, Value: 2}, "array", []any{1, 2}, true},

		{"absent passes range", Rule{Kind: RuleMin, Value: 18}, "number", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Evaluate(tt.rule, tt.kind, tt.value))
		})
	}
}

func TestEvaluateWarnings(t *testing.T) {
	t.Run("unknown kind passes and warns once", func(t *testing.T) {
		ev := newTestEvaluator()
		assert.True(t, ev.Evaluate(Rule{Kind: "between"}, "text", "x"))
		assert.True(t, ev.Evaluate(Rule{Kind: "between"}, "text", "y"))

		warnings := ev.report.warnings()
		require.Len(t, warnings, 1)
		assert.Equal(t, WarnUnknownRule, warnings[0].Code)
	})

	t.Run("invalid pattern passes", func(t *testing.T) {
		ev := newTestEvaluator()
		assert.True(t, ev.Evaluate(Rule{Kind: RulePattern, Value: "(["}, "text", "x"))

		warnings := ev.report.warnings()
		require.Len(t, warnings, 1)
		assert.Equal(t, WarnInvalidPattern, warnings[0].Code)
	})

	t.Run("unregistered custom rule passes", func(t *testing.T) {
		ev := newTestEvaluator()
		assert.True(t, ev.Evaluate(Rule{Kind: RuleCustom, Name: "even"}, "number", float64(3)))
		assert.Equal(t, WarnUnknownCustomRule, ev.report.warnings()[0].Code)
	})
}

func TestCustomRules(t *testing.T) {
	even := func(v any) bool {
		n, ok := parseNumber(v)
		return ok && int(n)%2 == 0
	}

	t.Run("kind scoped", func(t *testing.T) {
		ev := newTestEvaluator()
		ev.Custom.Add("number", "even", even)

		assert.True(t, ev.Evaluate(Rule{Kind: RuleCustom, Name: "even"}, "number", float64(4)))
		assert.False(t, ev.Evaluate(Rule{Kind: RuleCustom, Name: "even"}, "number", float64(3)))

		_, ok := ev.Custom.Lookup("text", "even")
		assert.False(t, ok)
	})

	t.Run("wildcard", func(t *testing.T) {
		rules := NewCustomRules()
		rules.Add("", "even", even)

		pred, ok := rules.Lookup("slider", "even")
		require.True(t, ok)
		assert.True(t, pred(2))
	})

	t.Run("kind wins over wildcard", func(t *testing.T) {
		rules := NewCustomRules()
		rules.Add(AnyKind, "check", func(any) bool { return false })
		rules.Add("text", "check", func(any) bool { return true })

		pred, ok := rules.Lookup("text", "check")
		require.True(t, ok)
		assert.True(t, pred("x"))
	})

	t.Run("nil registry", func(t *testing.T) {
		var rules *CustomRules
		_, ok := rules.Lookup("text", "x")
		assert.False(t, ok)
	})
}

func TestRuleCodes(t *testing.T) {
	assert.Equal(t, CodeRequired, Rule{Kind: RuleRequired}.Code())
	assert.Equal(t, CodeTooSmall, Rule{Kind: RuleMin}.Code())
	assert.Equal(t, CodeInvalidType, Rule{Kind: checkType}.Code())
	assert.Equal(t, CodeInvalidEnum, Rule{Kind: checkOption}.Code())
	assert.Equal(t, CodeCustom, Rule{Kind: RuleCustom}.Code())

	assert.Equal(t, "Must be at least 3 characters", Rule{Kind: RuleMinLength, Value: float64(3)}.Message())
	assert.Equal(t, "Too young", Rule{Kind: RuleMin, Value: 18, ErrorMessage: "Too young"}.Message())
}
