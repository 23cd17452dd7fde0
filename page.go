package leadguard

import (
	"time"

	"github.com/libops/leadguard/internal/form"
	"github.com/libops/leadguard/internal/submit"
)

// page is one loaded contact form: its submission state machine and the
// display calls not yet sent to the browser.
type page struct {
	orchestrator *submit.Orchestrator
	display      *form.Recorder
}

type pageStats struct {
	FormLoadedAt     time.Time `json:"formLoadedAt"`
	LastSubmissionAt time.Time `json:"lastSubmissionAt,omitzero"`
	Phase            string    `json:"phase"`
	PendingEvents    int       `json:"pendingEvents"`
}

func (lg *LeadGuard) newPage() *page {
	display := &form.Recorder{}
	o := submit.New(submit.Options{
		Validator: lg.validator,
		Guard:     lg.guard,
		Generator: lg.generator,
		Submitter: lg.submitter,
		Display:   display,
		Messages:  lg.trans,
		Latency:   time.Duration(lg.config.LatencyMs) * time.Millisecond,
		Log:       lg.log,
	})
	return &page{orchestrator: o, display: display}
}

func (p *page) close() {
	p.orchestrator.Close()
}

func (p *page) describe() pageStats {
	sc := p.orchestrator.Context()
	return pageStats{
		FormLoadedAt:     sc.FormLoadedAt,
		LastSubmissionAt: sc.LastSubmissionAt,
		Phase:            p.orchestrator.Phase().String(),
		PendingEvents:    len(p.display.Events()),
	}
}
