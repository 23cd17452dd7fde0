package form

import "sync"

// Event is one call made on a Display.
type Event struct {
	Op   string      `json:"op"`
	Key  string      `json:"key,omitempty"`
	Kind MessageKind `json:"kind,omitempty"`
	Text string      `json:"text,omitempty"`
	Busy bool        `json:"busy"`
}

const (
	OpShowFieldError  = "showFieldError"
	OpClearFieldError = "clearFieldError"
	OpShowFormMessage = "showFormMessage"
	OpSetBusy         = "setSubmitButtonBusy"
	OpRenderChallenge = "renderChallengeQuestion"
	OpFocusField      = "focusField"
)

// Recorder is a Display that buffers calls until drained. It is safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) ShowFieldError(key, message string) {
	r.add(Event{Op: OpShowFieldError, Key: key, Text: message})
}

func (r *Recorder) ClearFieldError(key string) {
	r.add(Event{Op: OpClearFieldError, Key: key})
}

func (r *Recorder) ShowFormMessage(kind MessageKind, text string) {
	r.add(Event{Op: OpShowFormMessage, Kind: kind, Text: text})
}

func (r *Recorder) SetSubmitButtonBusy(busy bool) {
	r.add(Event{Op: OpSetBusy, Busy: busy})
}

func (r *Recorder) RenderChallengeQuestion(text string) {
	r.add(Event{Op: OpRenderChallenge, Text: text})
}

func (r *Recorder) FocusField(key string) {
	r.add(Event{Op: OpFocusField, Key: key})
}

// Events returns a copy of the buffered events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Drain returns the buffered events and empties the buffer.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
