package submit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/libops/leadguard/internal/challenge"
	"github.com/libops/leadguard/internal/form"
	"github.com/libops/leadguard/internal/guard"
	"github.com/libops/leadguard/internal/i18n"
	"github.com/libops/leadguard/internal/rules"
	"github.com/libops/leadguard/internal/session"
)

// DefaultLatency is how long an accepted attempt stays busy before the
// outcome is shown.
const DefaultLatency = 1200 * time.Millisecond

// Phase of the submission state machine.
type Phase int

const (
	Idle Phase = iota
	GuardCheck
	FakeSuccess
	Validate
	RealSuccess
	Rejected
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case GuardCheck:
		return "guard_check"
	case FakeSuccess:
		return "fake_success"
	case Validate:
		return "validate"
	case RealSuccess:
		return "real_success"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Attempt describes how a submission was routed. Outcome and Reason are for
// logs and tests only; the display never tells a FakeSuccess apart from a
// RealSuccess.
type Attempt struct {
	Outcome    Phase
	Reason     guard.Reason
	Evaluation form.Evaluation
	done       chan struct{}
}

// Done is closed once every display update of the attempt has been made.
func (a Attempt) Done() <-chan struct{} {
	return a.done
}

type Options struct {
	Validator *form.Validator
	Guard     guard.Guard
	Generator *challenge.Generator
	Submitter Submitter
	Display   form.Display
	Messages  rules.Messages
	// Latency simulates the network round trip before an outcome is shown.
	Latency time.Duration
	Now     func() time.Time
	Log     *slog.Logger
}

// Orchestrator sequences guard checks, validation and outcome reporting for
// one page session.
type Orchestrator struct {
	validator *form.Validator
	guard     guard.Guard
	gen       *challenge.Generator
	submitter Submitter
	display   form.Display
	msgs      rules.Messages
	latency   time.Duration
	now       func() time.Time
	log       *slog.Logger

	scheduler *Scheduler
	state     *form.State
	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	sc           session.Context
	current      challenge.Challenge
	phase        Phase
	pending      int
	pendingPhase Phase
	challengeKey string
}

// New builds an orchestrator and initializes the form: the session starts
// now and the first challenge is generated and rendered.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Display == nil {
		opts.Display = form.NopDisplay{}
	}
	if opts.Submitter == nil {
		opts.Submitter = LogSubmitter{Log: opts.Log}
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		validator: opts.Validator,
		guard:     opts.Guard,
		gen:       opts.Generator,
		submitter: opts.Submitter,
		display:   opts.Display,
		msgs:      opts.Messages,
		latency:   opts.Latency,
		now:       opts.Now,
		log:       opts.Log,
		scheduler: NewScheduler(),
		state:     form.NewState(),
		ctx:       ctx,
		cancel:    cancel,
		closed:    make(chan struct{}),
	}
	o.challengeKey, _ = opts.Validator.Table().DynamicKey()

	o.mu.Lock()
	o.sc = session.NewContext(o.now())
	o.regenerate()
	o.mu.Unlock()

	return o
}

// Context returns the current submission context.
func (o *Orchestrator) Context() session.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sc
}

// Challenge returns the challenge currently shown.
func (o *Orchestrator) Challenge() challenge.Challenge {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Prompt returns the localized question for the current challenge.
func (o *Orchestrator) Prompt() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prompt()
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Field returns the tracked state of key.
func (o *Orchestrator) Field(key string) form.FieldState {
	return o.state.Field(key)
}

// Closed is closed once Close has been called.
func (o *Orchestrator) Closed() <-chan struct{} {
	return o.closed
}

// Input records a keystroke-level change and clears any error on the field.
func (o *Orchestrator) Input(key string, v form.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Set(key, v)
	o.state.Clear(key, o.display)
}

// Blur validates a single field as the user leaves it.
func (o *Orchestrator) Blur(key string, v form.Value) form.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Set(key, v)
	res := o.validator.Validate(key, v, o.current.Answer)
	o.state.Apply(res, o.display)
	return res
}

// Submit runs one submission attempt. honeypot is the value of the hidden
// field. The returned attempt's Done channel closes when the outcome has
// been displayed; for FakeSuccess and RealSuccess that happens after the
// configured latency.
func (o *Orchestrator) Submit(values form.Values, honeypot string) Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()

	attempt := Attempt{done: make(chan struct{})}
	now := o.now()

	o.phase = GuardCheck
	assessment := o.guard.Assess(o.sc.WithHoneypot(honeypot), now)
	if !assessment.HumanLikely {
		o.log.Warn("Submission flagged as automated", "reason", assessment.Reason.String())
		attempt.Outcome = FakeSuccess
		attempt.Reason = assessment.Reason
		o.phase = FakeSuccess
		// Mirror the display calls of an accepted attempt.
		for k, v := range values {
			o.state.Set(k, v)
		}
		for _, key := range o.validator.Table().Keys() {
			o.state.Clear(key, o.display)
		}
		o.display.SetSubmitButtonBusy(true)
		o.pending++
		o.pendingPhase = FakeSuccess
		o.later(attempt.done, func() {
			o.display.SetSubmitButtonBusy(false)
			o.display.ShowFormMessage(form.MessageSuccess, o.msgs.Message(i18n.FormSuccess, nil))
			o.state.ResetAll(o.display)
			o.regenerate()
		})
		return attempt
	}

	o.phase = Validate
	for k, v := range values {
		o.state.Set(k, v)
	}
	eval := o.validator.ValidateAll(values, o.current.Answer)
	attempt.Evaluation = eval

	if !eval.AllValid {
		attempt.Outcome = Rejected
		o.phase = Rejected
		o.state.ApplyAll(eval, o.display)
		o.display.ShowFormMessage(form.MessageError, o.msgs.Message(i18n.FormError, nil))
		// a fresh question always starts untouched
		o.regenerate()
		if first, ok := eval.FirstInvalid(); ok {
			o.display.FocusField(first)
		}
		o.rest()
		close(attempt.done)
		return attempt
	}

	attempt.Outcome = RealSuccess
	o.phase = RealSuccess
	o.state.ApplyAll(eval, o.display)
	o.sc = o.sc.Accepted(now)
	lead := NewLead(values, now)
	o.display.SetSubmitButtonBusy(true)
	o.pending++
	o.pendingPhase = RealSuccess
	o.laterUnlocked(attempt.done, func() {
		err := o.submitter.Submit(o.ctx, lead)

		o.mu.Lock()
		defer o.mu.Unlock()
		if o.ctx.Err() != nil {
			return
		}
		o.display.SetSubmitButtonBusy(false)
		if err != nil {
			o.log.Error("Unable to submit lead", "err", err)
			o.display.ShowFormMessage(form.MessageError, o.msgs.Message(i18n.SubmitFailed, nil))
			o.regenerate()
		} else {
			o.display.ShowFormMessage(form.MessageSuccess, o.msgs.Message(i18n.FormSuccess, nil))
			o.state.ResetAll(o.display)
			o.regenerate()
		}
		o.settle()
	})
	return attempt
}

// Close cancels pending outcomes; their display updates never happen.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.cancel()
		o.scheduler.Close()
		close(o.closed)
	})
}

// later schedules fn under the orchestrator lock and closes done after it.
func (o *Orchestrator) later(done chan struct{}, fn func()) {
	o.laterUnlocked(done, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.ctx.Err() != nil {
			return
		}
		fn()
		o.settle()
	})
}

// settle ends one scheduled attempt. The phase returns to Idle once no
// attempt is pending, otherwise it shows the latest pending one. Callers
// hold o.mu.
func (o *Orchestrator) settle() {
	o.pending--
	o.rest()
}

func (o *Orchestrator) rest() {
	if o.pending > 0 {
		o.phase = o.pendingPhase
		return
	}
	o.phase = Idle
}

// laterUnlocked schedules fn without taking the lock; fn must lock itself.
func (o *Orchestrator) laterUnlocked(done chan struct{}, fn func()) {
	o.scheduler.After(o.latency, func() {
		defer close(done)
		fn()
	})
}

// regenerate replaces the challenge, empties its field and renders the new
// question. Callers hold o.mu.
func (o *Orchestrator) regenerate() {
	o.current = o.gen.Generate()
	if o.challengeKey != "" {
		o.state.Reset(o.challengeKey, o.display)
	}
	o.display.RenderChallengeQuestion(o.prompt())
}

func (o *Orchestrator) prompt() string {
	return o.msgs.Message(i18n.ChallengePrompt, map[string]any{"Question": o.current.Question})
}

// Wait blocks until the attempt is displayed, the orchestrator is closed or
// ctx is done. It reports whether the attempt completed.
func (o *Orchestrator) Wait(ctx context.Context, a Attempt) bool {
	select {
	case <-a.done:
		return true
	case <-o.closed:
		return false
	case <-ctx.Done():
		return false
	}
}
