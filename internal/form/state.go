package form

import (
	"slices"
	"sync"
)

// MessageKind selects the style of the form-level banner.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Display is the UI the form drives.
type Display interface {
	ShowFieldError(key, message string)
	ClearFieldError(key string)
	ShowFormMessage(kind MessageKind, text string)
	SetSubmitButtonBusy(busy bool)
	RenderChallengeQuestion(text string)
	FocusField(key string)
}

// Validity of a field as last determined by a validation pass.
type Validity int

const (
	Untouched Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "untouched"
	}
}

func (v Validity) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

type FieldState struct {
	Value    Value    `json:"value"`
	Validity Validity `json:"validity"`
	Message  string   `json:"message,omitempty"`
}

// State tracks FieldState for every key of a form.
type State struct {
	mu     sync.Mutex
	fields map[string]FieldState
}

func NewState() *State {
	return &State{fields: make(map[string]FieldState)}
}

// Field returns the state for key; unknown keys are untouched.
func (s *State) Field(key string) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[key]
}

// Values returns the current value of every known field.
func (s *State) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Values, len(s.fields))
	for k, f := range s.fields {
		out[k] = f.Value
	}
	return out
}

// Set records a new value without changing validity.
func (s *State) Set(key string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fields[key]
	f.Value = v
	s.fields[key] = f
}

// Apply records a validation result and mirrors it on d.
func (s *State) Apply(res Result, d Display) {
	s.mu.Lock()
	f := s.fields[res.Key]
	if res.OK() {
		f.Validity = Valid
		f.Message = ""
	} else {
		f.Validity = Invalid
		f.Message = res.Message
	}
	s.fields[res.Key] = f
	s.mu.Unlock()

	if res.OK() {
		d.ClearFieldError(res.Key)
	} else {
		d.ShowFieldError(res.Key, res.Message)
	}
}

// ApplyAll records every result of e in declaration order.
func (s *State) ApplyAll(e Evaluation, d Display) {
	for _, key := range e.Order {
		s.Apply(e.PerField[key], d)
	}
}

// Clear drops the error mark on key and returns it to untouched. The value is
// kept. Calling it repeatedly has the same effect as calling it once.
func (s *State) Clear(key string, d Display) {
	s.mu.Lock()
	f := s.fields[key]
	f.Validity = Untouched
	f.Message = ""
	s.fields[key] = f
	s.mu.Unlock()

	d.ClearFieldError(key)
}

// Reset empties key and clears its mark.
func (s *State) Reset(key string, d Display) {
	s.mu.Lock()
	s.fields[key] = FieldState{}
	s.mu.Unlock()

	d.ClearFieldError(key)
}

// ResetAll empties every field and clears all marks.
func (s *State) ResetAll(d Display) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	s.fields = make(map[string]FieldState)
	s.mu.Unlock()

	slices.Sort(keys)
	for _, k := range keys {
		d.ClearFieldError(k)
	}
}

// NopDisplay discards every call.
type NopDisplay struct{}

func (NopDisplay) ShowFieldError(string, string) {}
func (NopDisplay) ClearFieldError(string) {}
func (NopDisplay) ShowFormMessage(MessageKind, string) {}
func (NopDisplay) SetSubmitButtonBusy(bool) {}
func (NopDisplay) RenderChallengeQuestion(string) {}
func (NopDisplay) FocusField(string) {}
