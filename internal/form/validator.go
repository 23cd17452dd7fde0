package form

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/libops/leadguard/internal/rules"
)

// Value is the raw state of one input as supplied by the UI layer.
type Value struct {
	Text    string `json:"text,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// Text is shorthand for a text input value.
func Text(s string) Value {
	return Value{Text: s}
}

// Checkbox is shorthand for a checkbox input value.
func Checkbox(checked bool) Value {
	return Value{Checked: checked}
}

// Values maps field keys to their current values.
type Values map[string]Value

// Result is the outcome of validating one field.
type Result struct {
	Key     string            `json:"key"`
	Failure rules.FailureKind `json:"failure"`
	Message string            `json:"message,omitempty"`
}

func (r Result) OK() bool {
	return r.Failure == rules.None
}

// Evaluation aggregates the results of a whole-form pass.
type Evaluation struct {
	AllValid bool              `json:"allValid"`
	PerField map[string]Result `json:"perField"`
	Order    []string          `json:"order"`
}

// FirstInvalid returns the first failing key in declaration order.
func (e Evaluation) FirstInvalid() (string, bool) {
	for _, key := range e.Order {
		if !e.PerField[key].OK() {
			return key, true
		}
	}
	return "", false
}

// Validator evaluates values against a rule table.
type Validator struct {
	table *rules.Table
}

func NewValidator(table *rules.Table) *Validator {
	return &Validator{table: table}
}

func (v *Validator) Table() *rules.Table {
	return v.table
}

// Validate checks a single field. The result depends only on the rule, the
// value and expected, which is the current challenge answer. Keys without a
// rule always pass.
func (v *Validator) Validate(key string, value Value, expected string) Result {
	rule, ok := v.table.Rule(key)
	if !ok {
		return Result{Key: key}
	}
	kind := check(rule, value, expected)
	if kind == rules.None {
		return Result{Key: key}
	}
	return Result{Key: key, Failure: kind, Message: rule.Message(kind)}
}

// ValidateAll runs Validate over every rule in declaration order without
// stopping at the first failure.
func (v *Validator) ValidateAll(values Values, expected string) Evaluation {
	keys := v.table.Keys()
	eval := Evaluation{
		AllValid: true,
		PerField: make(map[string]Result, len(keys)),
		Order:    keys,
	}
	for _, key := range keys {
		res := v.Validate(key, values[key], expected)
		eval.PerField[key] = res
		if !res.OK() {
			eval.AllValid = false
		}
	}
	return eval
}

func check(rule rules.FieldRule, value Value, expected string) rules.FailureKind {
	if rule.Checkbox {
		if rule.Required && !value.Checked {
			return rules.Required
		}
		return rules.None
	}

	text := strings.TrimSpace(value.Text)
	if rule.Required && text == "" {
		return rules.Required
	}
	if text == "" && !rule.Dynamic {
		return rules.None
	}
	if rule.MinLength > 0 && utf8.RuneCountInString(text) < rule.MinLength {
		return rules.TooShort
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(text) {
		return rules.PatternMismatch
	}
	if rule.Kind() == rules.KindDigits {
		n := CountDigits(text)
		if n < rule.MinDigits || n > rule.MaxDigits {
			return rules.DigitCountOutOfRange
		}
	}
	// An unset expected answer never matches.
	if rule.Dynamic && (expected == "" || text != expected) {
		return rules.ChallengeMismatch
	}
	return rules.None
}

// CountDigits counts the ASCII digits in s.
func CountDigits(s string) int {
	n := 0
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
