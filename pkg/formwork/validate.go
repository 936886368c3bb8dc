package formwork

import "net/url"

// Predicate is a host-registered custom check.
type Predicate func(value any) bool

// AnyKind registers a custom rule for every field kind.
const AnyKind = "*"

// CustomRules is the runtime-extensible registry of custom predicates,
// keyed by field kind and rule name.
type CustomRules struct {
	rules map[string]map[string]Predicate
}

func NewCustomRules() *CustomRules {
	return &CustomRules{rules: make(map[string]map[string]Predicate)}
}

// Add registers pred under (kind, name), replacing any previous registration.
func (c *CustomRules) Add(kind, name string, pred Predicate) {
	if kind == "" {
		kind = AnyKind
	}
	byName := c.rules[kind]
	if byName == nil {
		byName = make(map[string]Predicate)
		c.rules[kind] = byName
	}
	byName[name] = pred
}

// Lookup finds the predicate for (kind, name), falling back to the wildcard kind.
func (c *CustomRules) Lookup(kind, name string) (Predicate, bool) {
	if c == nil {
		return nil, false
	}
	if pred, ok := c.rules[kind][name]; ok {
		return pred, true
	}
	pred, ok := c.rules[AnyKind][name]
	return pred, ok
}

// FieldError is the first failure of a validator chain.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// step is one link in a validator chain.
type step struct {
	rule  Rule
	check func(value any) bool
}

// Validator is the composed, ordered check chain for one visible field.
type Validator struct {
	steps []step
}

// Validate runs the chain and returns the first failure, or nil.
func (v *Validator) Validate(value any) *FieldError {
	if v == nil {
		return nil
	}
	for _, s := range v.steps {
		if !s.check(value) {
			return &FieldError{Code: s.rule.Code(), Message: s.rule.Message()}
		}
	}
	return nil
}

// Rules lists the chain's rules in execution order. Structural checks appear
// with the pseudo kinds "type", "option" and "format".
func (v *Validator) Rules() []Rule {
	if v == nil {
		return nil
	}
	out := make([]Rule, len(v.steps))
	for i, s := range v.steps {
		out[i] = s.rule
	}
	return out
}

// Composer builds validators from field rules. A Composer holds no per-field
// state, so composing the same field twice yields equivalent chains.
type Composer struct {
	ev *Evaluator
}

func NewComposer(ev *Evaluator) *Composer {
	return &Composer{ev: ev}
}

// Compose returns the validator for f, or nil when f is hidden or holds no value.
func (c *Composer) Compose(f *Field, visible bool) *Validator {
	if !visible || f == nil || !f.HoldsValue() {
		return nil
	}
	v := &Validator{}

	for _, r := range rulesIn(f.Rules, phaseExistence) {
		v.steps = append(v.steps, c.ruleStep(f.Kind, r))
	}
	if s, ok := structuralStep(f); ok {
		v.steps = append(v.steps, s)
	}
	for _, r := range rulesIn(f.Rules, phaseRange) {
		v.steps = append(v.steps, c.ruleStep(f.Kind, r))
	}
	for _, r := range rulesIn(f.Rules, phaseCustom) {
		if _, ok := c.ev.Custom.Lookup(f.Kind, r.Name); !ok {
			c.ev.report.warn(WarnUnknownCustomRule, f.ID, "custom rule %q is not registered for kind %q", r.Name, f.Kind)
			continue
		}
		v.steps = append(v.steps, c.ruleStep(f.Kind, r))
	}
	for _, r := range rulesIn(f.Rules, phaseUnknown) {
		if r.Kind == RuleShown || r.Kind == RuleHidden {
			continue
		}
		c.ev.report.warn(WarnUnknownRule, f.ID, "unknown rule kind %q", r.Kind)
	}

	if len(v.steps) == 0 {
		return nil
	}
	return v
}

func (c *Composer) ruleStep(kind string, r Rule) step {
	return step{rule: r, check: func(value any) bool { return c.ev.Evaluate(r, kind, value) }}
}

func rulesIn(rules []Rule, p phase) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Kind.phase() == p {
			out = append(out, r)
		}
	}
	return out
}

// structuralStep returns the kind-specific shape check for f. Empty values
// pass; existence is the required rule's job.
func structuralStep(f *Field) (step, bool) {
	var (
		rule  Rule
		check func(any) bool
	)
	switch f.Kind {
	case "number", "integer", "slider", "rating", "currency":
		rule = Rule{Kind: checkType, ErrorMessage: "Must be a number"}
		check = func(v any) bool {
			_, ok := parseNumber(v)
			return ok
		}
	case "date", "datetime":
		rule = Rule{Kind: checkType, ErrorMessage: "Must be a valid date"}
		check = func(v any) bool {
			_, ok := parseDate(v)
			return ok
		}
	case "checkbox", "switch", "toggle":
		rule = Rule{Kind: checkType, ErrorMessage: "Must be true or false"}
		check = func(v any) bool {
			_, ok := v.(bool)
			return ok
		}
	case "select", "radio":
		if len(f.Options) == 0 {
			return step{}, false
		}
		allowed := optionValues(f.Options)
		rule = Rule{Kind: checkOption, ErrorMessage: "Must be one of the available options"}
		check = func(v any) bool {
			if _, isList := toList(v); isList {
				return false
			}
			return memberOf(v, allowed)
		}
	case "multiselect", "checkboxes":
		allowed := optionValues(f.Options)
		rule = Rule{Kind: checkOption, ErrorMessage: "Must be a list of available options"}
		check = func(v any) bool {
			list, ok := toList(v)
			if !ok {
				return false
			}
			return len(allowed) == 0 || memberOf(list, allowed)
		}
	case "email":
		rule = Rule{Kind: checkFormat, ErrorMessage: "Must be a valid email address"}
		check = func(v any) bool {
			s, ok := v.(string)
			return ok && emailPattern.MatchString(s)
		}
	case "url":
		rule = Rule{Kind: checkFormat, ErrorMessage: "Must be a valid URL"}
		check = func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			u, err := url.ParseRequestURI(s)
			return err == nil && u.Scheme != "" && u.Host != ""
		}
	case KindArray:
		rule = Rule{Kind: checkType, ErrorMessage: "Must be a list of entries"}
		check = func(v any) bool {
			_, ok := toList(v)
			return ok
		}
	default:
		return step{}, false
	}
	return step{rule: rule, check: func(v any) bool { return isEmpty(v) || check(v) }}, true
}

func optionValues(opts []Option) []any {
	out := make([]any, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

// pruneOptions drops values the field no longer offers as options, matching
// by option value. Single-choice fields lose the whole value, multi-choice
// fields keep their surviving items. changed reports whether anything went.
func pruneOptions(f *Field, value any) (pruned any, changed bool) {
	if len(f.Options) == 0 || isEmpty(value) {
		return value, false
	}
	allowed := optionValues(f.Options)
	switch f.Kind {
	case "select", "radio":
		if memberOf(value, allowed) {
			return value, false
		}
		return nil, true
	case "multiselect", "checkboxes":
		list, ok := toList(value)
		if !ok {
			return value, false
		}
		kept := make([]any, 0, len(list))
		for _, v := range list {
			if memberOf(v, allowed) {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(list) {
			return value, false
		}
		return kept, true
	}
	return value, false
}
