package formwork

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"time"
)

// RuleKind discriminates the Rule variants.
type RuleKind string

const (
	// Existence
	RuleRequired RuleKind = "required"
	RuleFilled   RuleKind = "filled"
	RuleEmpty    RuleKind = "empty"

	// Visibility of the referenced field (conditions only)
	RuleShown  RuleKind = "shown"
	RuleHidden RuleKind = "hidden"

	// String length
	RuleMinLength RuleKind = "minLength"
	RuleMaxLength RuleKind = "maxLength"
	RuleLength    RuleKind = "length"

	// Numeric range
	RuleMin RuleKind = "min"
	RuleMax RuleKind = "max"

	// Equality
	RuleEquals    RuleKind = "equals"
	RuleNotEquals RuleKind = "notEquals"
	RuleOneOf     RuleKind = "oneOf"

	// Format
	RulePattern RuleKind = "pattern"
	RuleEmail   RuleKind = "email"
	RuleURL     RuleKind = "url"

	// Date window
	RuleBefore     RuleKind = "before"
	RuleAfter      RuleKind = "after"
	RuleWithinDays RuleKind = "withinDays"

	// Array cardinality
	RuleMinItems   RuleKind = "minItems"
	RuleMaxItems   RuleKind = "maxItems"
	RuleExactItems RuleKind = "exactItems"

	RuleCustom RuleKind = "custom"
)

// Pseudo kinds naming the structural checks a validator adds for a field kind.
const (
	checkType   RuleKind = "type"
	checkOption RuleKind = "option"
	checkFormat RuleKind = "format"
)

// Rule is one typed predicate. Value holds the kind's parameter: a count for
// length and cardinality kinds, a number for min/max, a regular expression for
// pattern, a date (or "now") for before/after, a day count for withinDays, a list
// for oneOf. Custom rules are addressed by Name.
type Rule struct {
	Kind         RuleKind `json:"kind"`
	Value        any      `json:"value,omitempty"`
	Name         string   `json:"name,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// phase orders validator steps: existence, kind structure, range/format, custom.
type phase int

const (
	phaseExistence phase = iota
	phaseStructure
	phaseRange
	phaseCustom
	phaseUnknown
)

func (k RuleKind) phase() phase {
	switch k {
	case RuleRequired, RuleFilled:
		return phaseExistence
	case RuleEmpty, RuleMinLength, RuleMaxLength, RuleLength, RuleMin, RuleMax,
		RuleEquals, RuleNotEquals, RuleOneOf, RulePattern, RuleEmail, RuleURL,
		RuleBefore, RuleAfter, RuleWithinDays, RuleMinItems, RuleMaxItems, RuleExactItems:
		return phaseRange
	case RuleCustom:
		return phaseCustom
	default:
		return phaseUnknown
	}
}

// known reports whether the kind is part of the rule vocabulary.
func (k RuleKind) known() bool {
	return k.phase() != phaseUnknown || k == RuleShown || k == RuleHidden
}

// countsEmpty reports whether the kind inspects absent values instead of passing them.
func (k RuleKind) countsEmpty() bool {
	switch k {
	case RuleRequired, RuleFilled, RuleEmpty, RuleMinItems, RuleExactItems:
		return true
	default:
		return false
	}
}

func (r Rule) intParam() int {
	n, _ := parseNumber(r.Value)
	return int(n)
}

func (r Rule) numParam() (float64, bool) {
	return parseNumber(r.Value)
}

// Code returns the issue code reported when the rule fails.
func (r Rule) Code() string {
	switch r.Kind {
	case RuleRequired, RuleFilled:
		return CodeRequired
	case RuleMinLength, RuleMinItems:
		return CodeTooShort
	case RuleMaxLength, RuleMaxItems:
		return CodeTooLong
	case RuleLength, RuleExactItems:
		return CodeTooShort
	case RuleMin:
		return CodeTooSmall
	case RuleMax:
		return CodeTooBig
	case RuleEquals, RuleNotEquals, RuleEmpty:
		return CodeNotEqual
	case RuleOneOf:
		return CodeInvalidEnum
	case RulePattern:
		return CodePattern
	case RuleEmail, RuleURL, checkFormat:
		return CodeInvalidFormat
	case checkType:
		return CodeInvalidType
	case checkOption:
		return CodeInvalidEnum
	case RuleBefore, RuleAfter, RuleWithinDays:
		return CodeDateRange
	default:
		return CodeCustom
	}
}

// Message returns the explicit error message, or the kind default.
func (r Rule) Message() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	switch r.Kind {
	case RuleRequired, RuleFilled:
		return "This field is required"
	case RuleEmpty:
		return "This field must be empty"
	case RuleMinLength:
		return fmt.Sprintf("Must be at least %d characters", r.intParam())
	case RuleMaxLength:
		return fmt.Sprintf("Must be at most %d characters", r.intParam())
	case RuleLength:
		return fmt.Sprintf("Must be exactly %d characters", r.intParam())
	case RuleMin:
		return fmt.Sprintf("Must be at least %v", r.Value)
	case RuleMax:
		return fmt.Sprintf("Must be at most %v", r.Value)
	case RuleEquals:
		return fmt.Sprintf("Must equal %v", r.Value)
	case RuleNotEquals:
		return fmt.Sprintf("Must not equal %v", r.Value)
	case RuleOneOf:
		return "Must be one of the allowed values"
	case RulePattern:
		return "Invalid format"
	case RuleEmail:
		return "Must be a valid email address"
	case RuleURL:
		return "Must be a valid URL"
	case RuleBefore:
		return fmt.Sprintf("Must be before %v", r.Value)
	case RuleAfter:
		return fmt.Sprintf("Must be after %v", r.Value)
	case RuleWithinDays:
		return fmt.Sprintf("Must be within %d days", r.intParam())
	case RuleMinItems:
		return fmt.Sprintf("Must have at least %d entries", r.intParam())
	case RuleMaxItems:
		return fmt.Sprintf("Must have at most %d entries", r.intParam())
	case RuleExactItems:
		return fmt.Sprintf("Must have exactly %d entries", r.intParam())
	default:
		return "Invalid value"
	}
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Evaluator tests single values against typed rules. It is shared by the
// condition resolver and the validator composer so both agree on every predicate.
type Evaluator struct {
	Now    func() time.Time
	Custom *CustomRules

	report   *reporter
	patterns map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator using the wall clock.
func NewEvaluator(custom *CustomRules) *Evaluator {
	if custom == nil {
		custom = NewCustomRules()
	}
	return &Evaluator{
		Now:      time.Now,
		Custom:   custom,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Evaluate tests value against rule for a field of the given kind.
// Absent values pass every rule except existence and cardinality rules.
// Unknown rule kinds pass and are reported once as schema warnings.
func (e *Evaluator) Evaluate(rule Rule, kind string, value any) bool {
	if e.Now == nil {
		e.Now = time.Now
	}
	if !rule.Kind.known() {
		e.report.warn(WarnUnknownRule, "", "unknown rule kind %q", rule.Kind)
		return true
	}
	if isEmpty(value) && !rule.Kind.countsEmpty() {
		return true
	}

	switch rule.Kind {
	case RuleRequired, RuleFilled:
		return !isEmpty(value)
	case RuleEmpty:
		return isEmpty(value)
	case RuleShown, RuleHidden:
		// Resolved against visibility by the condition resolver.
		return true

	case RuleMinLength:
		return lengthOf(value) >= rule.intParam()
	case RuleMaxLength:
		return lengthOf(value) <= rule.intParam()
	case RuleLength:
		return lengthOf(value) == rule.intParam()

	case RuleMin:
		return e.compareNumber(rule, value, func(x, y float64) bool { return x >= y })
	case RuleMax:
		return e.compareNumber(rule, value, func(x, y float64) bool { return x <= y })

	case RuleEquals:
		return valuesEqual(value, rule.Value)
	case RuleNotEquals:
		return !valuesEqual(value, rule.Value)
	case RuleOneOf:
		allowed, _ := toList(rule.Value)
		return memberOf(value, allowed)

	case RulePattern:
		re := e.pattern(rule)
		return re == nil || re.MatchString(fmt.Sprint(value))
	case RuleEmail:
		s, ok := value.(string)
		return ok && emailPattern.MatchString(s)
	case RuleURL:
		s, ok := value.(string)
		if !ok {
			return false
		}
		u, err := url.ParseRequestURI(s)
		return err == nil && u.Scheme != "" && u.Host != ""

	case RuleBefore:
		return e.compareDates(rule, value, func(x, y time.Time) bool { return x.Before(y) })
	case RuleAfter:
		return e.compareDates(rule, value, func(x, y time.Time) bool { return x.After(y) })
	case RuleWithinDays:
		t, ok := parseDate(value)
		if !ok {
			return false
		}
		days, ok := rule.numParam()
		if !ok {
			return true
		}
		return math.Abs(t.Sub(e.Now()).Hours()) <= days*24

	case RuleMinItems:
		return itemCount(value) >= rule.intParam()
	case RuleMaxItems:
		return itemCount(value) <= rule.intParam()
	case RuleExactItems:
		return itemCount(value) == rule.intParam()

	case RuleCustom:
		pred, ok := e.Custom.Lookup(kind, rule.Name)
		if !ok {
			e.report.warn(WarnUnknownCustomRule, "", "custom rule %q is not registered for kind %q", rule.Name, kind)
			return true
		}
		return pred(value)
	}
	return true
}

// compareNumber compares value to the rule parameter.
// Non-numeric values fail; a non-numeric parameter passes.
func (e *Evaluator) compareNumber(rule Rule, value any, cmp func(float64, float64) bool) bool {
	bound, ok := rule.numParam()
	if !ok {
		return true
	}
	n, ok := parseNumber(value)
	if !ok {
		return false
	}
	return cmp(n, bound)
}

// compareDates compares value to the rule's date. The literal "now" uses the evaluator clock.
func (e *Evaluator) compareDates(rule Rule, value any, cmp func(time.Time, time.Time) bool) bool {
	var bound time.Time
	if s, ok := rule.Value.(string); ok && s == "now" {
		bound = e.Now()
	} else {
		var ok bool
		if bound, ok = parseDate(rule.Value); !ok {
			return true
		}
	}
	t, ok := parseDate(value)
	if !ok {
		return false
	}
	return cmp(t, bound)
}

func (e *Evaluator) pattern(rule Rule) *regexp.Regexp {
	src := fmt.Sprint(rule.Value)
	if e.patterns == nil {
		e.patterns = make(map[string]*regexp.Regexp)
	}
	if re, ok := e.patterns[src]; ok {
		return re
	}
	re, err := regexp.Compile(src)
	if err != nil {
		e.report.warn(WarnInvalidPattern, "", "pattern %q does not compile: %v", src, err)
		re = nil
	}
	e.patterns[src] = re
	return re
}

func lengthOf(value any) int {
	if n, ok := valueLength(value); ok {
		return n
	}
	return len([]rune(fmt.Sprint(value)))
}

func itemCount(value any) int {
	if list, ok := toList(value); ok {
		return len(list)
	}
	if isEmpty(value) {
		return 0
	}
	return 1
}

// memberOf reports whether value (or every element of a list value) is in allowed.
func memberOf(value any, allowed []any) bool {
	if list, ok := toList(value); ok {
		for _, v := range list {
			if !memberOf(v, allowed) {
				return false
			}
		}
		return true
	}
	for _, a := range allowed {
		if valuesEqual(value, a) {
			return true
		}
	}
	return false
}
