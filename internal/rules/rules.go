package rules

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
)

// Field keys of the contact form, in declaration order.
const (
	FieldName      = "userName"
	FieldEmail     = "userEmail"
	FieldPhone     = "userPhone"
	FieldChallenge = "captchaAnswer"
	FieldConfirm   = "confirmHuman"

	// FieldMessage is free text carried with the lead; it has no rule.
	FieldMessage = "userMessage"
)

// FailureKind classifies why a field did not pass.
type FailureKind int

const (
	None FailureKind = iota
	Required
	TooShort
	PatternMismatch
	DigitCountOutOfRange
	ChallengeMismatch
)

func (k FailureKind) String() string {
	switch k {
	case None:
		return "none"
	case Required:
		return "required"
	case TooShort:
		return "tooShort"
	case PatternMismatch:
		return "pattern"
	case DigitCountOutOfRange:
		return "digits"
	case ChallengeMismatch:
		return "dynamicValue"
	default:
		return "unknown"
	}
}

func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FailureKind) UnmarshalText(b []byte) error {
	kind, err := ParseFailureKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseFailureKind maps the names used in rules files to a FailureKind.
func ParseFailureKind(s string) (FailureKind, error) {
	switch s {
	case "required":
		return Required, nil
	case "tooShort", "minLength":
		return TooShort, nil
	case "pattern":
		return PatternMismatch, nil
	case "digits":
		return DigitCountOutOfRange, nil
	case "dynamicValue", "mismatch":
		return ChallengeMismatch, nil
	default:
		return None, fmt.Errorf("unknown failure kind %q", s)
	}
}

// Kind is the family of checks a rule belongs to.
type Kind int

const (
	KindText Kind = iota
	KindDigits
	KindCheckbox
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDigits:
		return "digits"
	case KindCheckbox:
		return "checkbox"
	case KindDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// FieldRule describes the constraints on one input.
type FieldRule struct {
	Key       string
	Required  bool
	MinLength int
	Pattern   *regexp.Regexp
	MinDigits int
	MaxDigits int
	Checkbox  bool
	Dynamic   bool
	Messages  map[FailureKind]string
}

// Kind reports which family of checks applies to the rule.
func (r FieldRule) Kind() Kind {
	switch {
	case r.Checkbox:
		return KindCheckbox
	case r.Dynamic:
		return KindDynamic
	case r.MinDigits > 0 || r.MaxDigits > 0:
		return KindDigits
	default:
		return KindText
	}
}

// Message returns the text configured for kind, or an empty string.
func (r FieldRule) Message(kind FailureKind) string {
	return r.Messages[kind]
}

func (r FieldRule) validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("rule key must not be empty")
	}

	families := 0
	text := r.MinLength > 0 || r.Pattern != nil
	digits := r.MinDigits > 0 || r.MaxDigits > 0
	for _, set := range []bool{text, digits, r.Checkbox, r.Dynamic} {
		if set {
			families++
		}
	}
	if families > 1 {
		return fmt.Errorf("rule %s mixes text, digit-count, checkbox and dynamic constraints", r.Key)
	}

	if r.MinLength < 0 {
		return fmt.Errorf("rule %s: minLength must not be negative", r.Key)
	}
	if digits {
		if r.MinDigits < 1 || r.MaxDigits < r.MinDigits {
			return fmt.Errorf("rule %s: invalid digit bounds [%d, %d]", r.Key, r.MinDigits, r.MaxDigits)
		}
	}
	return nil
}

func (r FieldRule) clone() FieldRule {
	r.Messages = maps.Clone(r.Messages)
	return r
}

// Table is an ordered, immutable set of rules keyed by field.
type Table struct {
	rules []FieldRule
	index map[string]int
}

// NewTable validates rules and freezes them in the given order.
func NewTable(rules ...FieldRule) (*Table, error) {
	t := &Table{
		rules: make([]FieldRule, 0, len(rules)),
		index: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.index[r.Key]; dup {
			return nil, fmt.Errorf("duplicate rule for field %s", r.Key)
		}
		t.index[r.Key] = len(t.rules)
		t.rules = append(t.rules, r.clone())
	}
	return t, nil
}

// Rule returns a copy of the rule for key.
func (t *Table) Rule(key string) (FieldRule, bool) {
	i, ok := t.index[key]
	if !ok {
		return FieldRule{}, false
	}
	return t.rules[i].clone(), true
}

// Keys returns the field keys in declaration order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.rules))
	for i, r := range t.rules {
		keys[i] = r.Key
	}
	return keys
}

// Rules returns copies of all rules in declaration order.
func (t *Table) Rules() []FieldRule {
	out := make([]FieldRule, len(t.rules))
	for i, r := range t.rules {
		out[i] = r.clone()
	}
	return out
}

func (t *Table) Len() int {
	return len(t.rules)
}

// DynamicKey returns the key of the first dynamic-value rule, if any.
func (t *Table) DynamicKey() (string, bool) {
	for _, r := range t.rules {
		if r.Dynamic {
			return r.Key, true
		}
	}
	return "", false
}

// FullMatch compiles pattern so that it only matches whole values.
func FullMatch(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// MustFullMatch is FullMatch for package-level patterns.
func MustFullMatch(pattern string) *regexp.Regexp {
	re, err := FullMatch(pattern)
	if err != nil {
		panic(err)
	}
	return re
}
