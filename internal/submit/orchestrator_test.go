package submit

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/libops/leadguard/internal/challenge"
	"github.com/libops/leadguard/internal/form"
	"github.com/libops/leadguard/internal/guard"
	"github.com/libops/leadguard/internal/i18n"
	"github.com/libops/leadguard/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSubmitter struct {
	mu    sync.Mutex
	leads []Lead
	err   error
}

func (s *recordingSubmitter) Submit(_ context.Context, lead Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, lead)
	return s.err
}

func (s *recordingSubmitter) Leads() []Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Lead(nil), s.leads...)
}

type harness struct {
	o       *Orchestrator
	display *form.Recorder
	clock   *fakeClock
	sub     *recordingSubmitter
}

func newHarness(t *testing.T, latency time.Duration) *harness {
	t.Helper()
	trans, err := i18n.NewTranslations("en", "")
	require.NoError(t, err)
	table, err := rules.Default(trans, 0, 0)
	require.NoError(t, err)

	h := &harness{
		display: &form.Recorder{},
		clock:   &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		sub:     &recordingSubmitter{},
	}
	h.o = New(Options{
		Validator: form.NewValidator(table),
		Guard:     guard.New(guard.DefaultThresholds()),
		Generator: challenge.NewGeneratorWithSource(rand.NewPCG(3, 4)),
		Submitter: h.sub,
		Display:   h.display,
		Messages:  trans,
		Latency:   latency,
		Now:       h.clock.Now,
	})
	t.Cleanup(h.o.Close)
	return h
}

func (h *harness) values() form.Values {
	return form.Values{
		rules.FieldName:      form.Text("Al"),
		rules.FieldEmail:     form.Text("a@b.co"),
		rules.FieldPhone:     form.Text("555-123-4567"),
		rules.FieldChallenge: form.Text(h.o.Challenge().Answer),
		rules.FieldConfirm:   form.Checkbox(true),
		rules.FieldMessage:   form.Text("<b>Call</b> me"),
	}
}

func (h *harness) wait(t *testing.T, a Attempt) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, h.o.Wait(ctx, a), "attempt did not complete")
}

func messages(events []form.Event) []form.Event {
	var out []form.Event
	for _, e := range events {
		if e.Op == form.OpShowFormMessage {
			out = append(out, e)
		}
	}
	return out
}

func count(events []form.Event, op string) int {
	n := 0
	for _, e := range events {
		if e.Op == op {
			n++
		}
	}
	return n
}

func TestNewRendersFirstChallenge(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)

	c := h.o.Challenge()
	require.False(t, c.IsZero())
	assert.Equal(t, "What is "+c.Question+"?", h.o.Prompt())
	assert.Equal(t, h.clock.Now(), h.o.Context().FormLoadedAt)
	assert.False(t, h.o.Context().Submitted())
	assert.Equal(t, Idle, h.o.Phase())

	events := h.display.Drain()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, form.OpRenderChallenge, last.Op)
	assert.Equal(t, h.o.Prompt(), last.Text)
	assert.Equal(t, form.Untouched, h.o.Field(rules.FieldChallenge).Validity)
}

// Scenario A
func TestSubmitRealSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, 5*time.Millisecond)
	h.clock.Advance(5 * time.Second)
	h.display.Drain()

	a := h.o.Submit(h.values(), "")
	assert.Equal(t, RealSuccess, a.Outcome)
	assert.True(t, a.Evaluation.AllValid)
	assert.Equal(t, h.clock.Now(), h.o.Context().LastSubmissionAt)
	h.wait(t, a)

	leads := h.sub.Leads()
	require.Len(t, leads, 1)
	assert.Equal(t, Lead{
		Name:        "Al",
		Email:       "a@b.co",
		Phone:       "(555) 123-4567",
		Message:     "Call me",
		SubmittedAt: h.clock.Now(),
	}, leads[0])

	events := h.display.Drain()
	assert.Equal(t, []form.Event{{Op: form.OpShowFormMessage, Kind: form.MessageSuccess, Text: "Thank you! We'll contact you within 24 hours."}}, messages(events))
	assert.Equal(t, form.Event{Op: form.OpSetBusy, Busy: true}, events[5])
	assert.Equal(t, 2, count(events, form.OpSetBusy))
	assert.Equal(t, 1, count(events, form.OpRenderChallenge))
	assert.Zero(t, count(events, form.OpShowFieldError))

	assert.Empty(t, h.o.Field(rules.FieldName).Value.Text)
	assert.Equal(t, form.Untouched, h.o.Field(rules.FieldName).Validity)
	assert.Equal(t, Idle, h.o.Phase())
}

// Scenario B
func TestSubmitRejectedMissingName(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, 5*time.Millisecond)
	h.clock.Advance(5 * time.Second)
	h.display.Drain()

	values := h.values()
	values[rules.FieldName] = form.Text("")
	a := h.o.Submit(values, "")
	h.wait(t, a)

	assert.Equal(t, Rejected, a.Outcome)
	assert.False(t, a.Evaluation.AllValid)
	name := a.Evaluation.PerField[rules.FieldName]
	assert.Equal(t, rules.Required, name.Failure)
	assert.Equal(t, "Please enter your name.", name.Message)

	events := h.display.Drain()
	assert.Contains(t, events, form.Event{Op: form.OpShowFieldError, Key: rules.FieldName, Text: "Please enter your name."})
	assert.Contains(t, events, form.Event{Op: form.OpShowFormMessage, Kind: form.MessageError, Text: "Please fix the errors below and try again."})
	assert.Equal(t, form.Event{Op: form.OpFocusField, Key: rules.FieldName}, events[len(events)-1])
	assert.Equal(t, 1, count(events, form.OpRenderChallenge), "challenge is regenerated on every rejection")
	assert.Zero(t, count(events, form.OpSetBusy))

	assert.Equal(t, form.Invalid, h.o.Field(rules.FieldName).Validity)
	assert.Equal(t, "a@b.co", h.o.Field(rules.FieldEmail).Value.Text, "other values are kept for correction")
	assert.Equal(t, form.Valid, h.o.Field(rules.FieldEmail).Validity)
	assert.Equal(t, form.Untouched, h.o.Field(rules.FieldChallenge).Validity)
	assert.Empty(t, h.sub.Leads())
	assert.False(t, h.o.Context().Submitted())
}

// Scenario C
func TestSubmitRejectedShortPhone(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.clock.Advance(5 * time.Second)

	values := h.values()
	values[rules.FieldPhone] = form.Text("12-345")
	a := h.o.Submit(values, "")

	assert.Equal(t, Rejected, a.Outcome)
	assert.Equal(t, rules.DigitCountOutOfRange, a.Evaluation.PerField[rules.FieldPhone].Failure)
}

// Scenario D
func TestSubmitRejectedWrongAnswer(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.clock.Advance(5 * time.Second)
	rejected := h.o.Challenge()
	h.display.Drain()

	values := h.values()
	values[rules.FieldChallenge] = form.Text(rejected.Answer + "1")
	a := h.o.Submit(values, "")

	assert.Equal(t, Rejected, a.Outcome)
	assert.Equal(t, rules.ChallengeMismatch, a.Evaluation.PerField[rules.FieldChallenge].Failure)

	// regenerated, though a random draw may repeat the same numbers
	events := h.display.Drain()
	assert.Equal(t, 1, count(events, form.OpRenderChallenge))
	assert.Contains(t, events, form.Event{Op: form.OpShowFieldError, Key: rules.FieldChallenge, Text: "Incorrect answer. Please try again."})
	assert.Equal(t, form.Event{Op: form.OpFocusField, Key: rules.FieldChallenge}, events[len(events)-1])

	// the new question's field starts over
	f := h.o.Field(rules.FieldChallenge)
	assert.Equal(t, form.Untouched, f.Validity)
	assert.Empty(t, f.Message)
	assert.Empty(t, f.Value.Text)
	shown := slices.Index(events, form.Event{Op: form.OpShowFieldError, Key: rules.FieldChallenge, Text: "Incorrect answer. Please try again."})
	cleared := slices.Index(events, form.Event{Op: form.OpClearFieldError, Key: rules.FieldChallenge})
	assert.Less(t, shown, cleared)

	// the regenerated question is answerable
	next := h.o.Challenge()
	values[rules.FieldChallenge] = form.Text(next.Answer)
	h.clock.Advance(time.Second)
	a = h.o.Submit(values, "")
	assert.Equal(t, RealSuccess, a.Outcome)
	h.wait(t, a)
}

// Scenario E
func TestSubmitHoneypotMasksAsSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, 5*time.Millisecond)
	h.clock.Advance(5 * time.Second)
	h.display.Drain()

	a := h.o.Submit(h.values(), "http://spam.example")
	assert.Equal(t, FakeSuccess, a.Outcome)
	assert.Equal(t, guard.ReasonHoneypot, a.Reason)
	h.wait(t, a)

	events := h.display.Drain()
	assert.Equal(t, []form.Event{{Op: form.OpShowFormMessage, Kind: form.MessageSuccess, Text: "Thank you! We'll contact you within 24 hours."}}, messages(events))
	assert.Equal(t, 1, count(events, form.OpRenderChallenge))
	assert.Empty(t, h.sub.Leads(), "real submission must not happen")
	assert.False(t, h.o.Context().Submitted(), "timing state must not change")
}

func TestSubmitTooFastMasksAsSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.clock.Advance(time.Second)

	a := h.o.Submit(h.values(), "")
	assert.Equal(t, FakeSuccess, a.Outcome)
	assert.Equal(t, guard.ReasonTooFast, a.Reason)
	h.wait(t, a)
	assert.Empty(t, h.sub.Leads())
	assert.False(t, h.o.Context().Submitted())
}

// Scenario F
func TestSubmitRapidResubmission(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.clock.Advance(5 * time.Second)

	first := h.o.Submit(h.values(), "")
	require.Equal(t, RealSuccess, first.Outcome)
	h.wait(t, first)
	acceptedAt := h.o.Context().LastSubmissionAt

	h.clock.Advance(time.Second)
	second := h.o.Submit(h.values(), "")
	assert.Equal(t, FakeSuccess, second.Outcome)
	assert.Equal(t, guard.ReasonRapidResubmit, second.Reason)
	h.wait(t, second)

	assert.Len(t, h.sub.Leads(), 1)
	assert.Equal(t, acceptedAt, h.o.Context().LastSubmissionAt)

	h.clock.Advance(3 * time.Second)
	third := h.o.Submit(h.values(), "")
	assert.Equal(t, RealSuccess, third.Outcome)
	h.wait(t, third)
	assert.Len(t, h.sub.Leads(), 2)
}

func TestFakeAndRealSuccessLookTheSame(t *testing.T) {
	defer goleak.VerifyNone(t)
	human := newHarness(t, time.Millisecond)
	bot := newHarness(t, time.Millisecond)
	human.clock.Advance(5 * time.Second)
	bot.clock.Advance(5 * time.Second)
	human.display.Drain()
	bot.display.Drain()

	a := human.o.Submit(human.values(), "")
	b := bot.o.Submit(bot.values(), "http://spam.example")
	human.wait(t, a)
	bot.wait(t, b)

	require.Equal(t, RealSuccess, a.Outcome)
	require.Equal(t, FakeSuccess, b.Outcome)
	assert.Equal(t, human.display.Drain(), bot.display.Drain())
}

func TestSubmitterFailureShowsError(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.sub.err = errors.New("backend down")
	h.clock.Advance(5 * time.Second)
	h.display.Drain()

	a := h.o.Submit(h.values(), "")
	h.wait(t, a)

	events := h.display.Drain()
	assert.Equal(t, []form.Event{{Op: form.OpShowFormMessage, Kind: form.MessageError, Text: "We couldn't send your request. Please try again in a few minutes."}}, messages(events))
	assert.Equal(t, "Al", h.o.Field(rules.FieldName).Value.Text)
}

func TestCloseCancelsPendingOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Hour)
	h.clock.Advance(5 * time.Second)
	h.display.Drain()

	a := h.o.Submit(h.values(), "")
	require.Equal(t, RealSuccess, a.Outcome)
	h.o.Close()

	assert.False(t, h.o.Wait(context.Background(), a))
	assert.Empty(t, h.sub.Leads())

	events := h.display.Drain()
	assert.Equal(t, form.Event{Op: form.OpSetBusy, Busy: true}, events[len(events)-1], "no update after teardown")

	// closing twice is harmless
	h.o.Close()
}

func TestWaitHonorsContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Hour)
	h.clock.Advance(5 * time.Second)
	a := h.o.Submit(h.values(), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, h.o.Wait(ctx, a))
}

func TestBlurAndInput(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, time.Millisecond)
	h.display.Drain()

	res := h.o.Blur(rules.FieldEmail, form.Text("nope"))
	assert.Equal(t, rules.PatternMismatch, res.Failure)
	assert.Equal(t, form.Invalid, h.o.Field(rules.FieldEmail).Validity)

	h.o.Input(rules.FieldEmail, form.Text("nope@"))
	assert.Equal(t, form.Untouched, h.o.Field(rules.FieldEmail).Validity)
	assert.Equal(t, "nope@", h.o.Field(rules.FieldEmail).Value.Text)

	res = h.o.Blur(rules.FieldChallenge, form.Text(h.o.Challenge().Answer))
	assert.True(t, res.OK())

	assert.Equal(t, []form.Event{
		{Op: form.OpShowFieldError, Key: rules.FieldEmail, Text: "Please enter a valid email address."},
		{Op: form.OpClearFieldError, Key: rules.FieldEmail},
		{Op: form.OpClearFieldError, Key: rules.FieldChallenge},
	}, h.display.Drain())
}

type gatedSubmitter struct {
	gate chan struct{}
}

func (s gatedSubmitter) Submit(ctx context.Context, _ Lead) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
	}
	return nil
}

func TestPhaseFollowsLatestAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)
	trans, err := i18n.NewTranslations("en", "")
	require.NoError(t, err)
	table, err := rules.Default(trans, 0, 0)
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	sub := gatedSubmitter{gate: make(chan struct{})}
	o := New(Options{
		Validator: form.NewValidator(table),
		Guard:     guard.New(guard.DefaultThresholds()),
		Generator: challenge.NewGeneratorWithSource(rand.NewPCG(3, 4)),
		Submitter: sub,
		Messages:  trans,
		Latency:   time.Millisecond,
		Now:       clock.Now,
	})
	defer o.Close()

	values := func() form.Values {
		return form.Values{
			rules.FieldName:      form.Text("Al"),
			rules.FieldEmail:     form.Text("a@b.co"),
			rules.FieldPhone:     form.Text("555-123-4567"),
			rules.FieldChallenge: form.Text(o.Challenge().Answer),
			rules.FieldConfirm:   form.Checkbox(true),
		}
	}

	clock.Advance(5 * time.Second)
	first := o.Submit(values(), "")
	clock.Advance(4 * time.Second)
	second := o.Submit(values(), "")
	require.Equal(t, RealSuccess, first.Outcome)
	require.Equal(t, RealSuccess, second.Outcome)

	// let one of the two pending deliveries finish
	sub.gate <- struct{}{}
	select {
	case <-first.Done():
	case <-second.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("no attempt completed")
	}
	assert.Equal(t, RealSuccess, o.Phase(), "an attempt is still pending")

	close(sub.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.True(t, o.Wait(ctx, first))
	require.True(t, o.Wait(ctx, second))
	assert.Equal(t, Idle, o.Phase())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "guard_check", GuardCheck.String())
	assert.Equal(t, "fake_success", FakeSuccess.String())
	assert.Equal(t, "validate", Validate.String())
	assert.Equal(t, "real_success", RealSuccess.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
