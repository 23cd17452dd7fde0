package submit

import (
	"context"
	"log/slog"
	"time"

	"github.com/libops/leadguard/internal/form"
	"github.com/libops/leadguard/internal/helper"
	"github.com/libops/leadguard/internal/rules"
)

// Lead is the data handed to a Submitter once a human-looking attempt passes
// validation.
type Lead struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Message     string    `json:"message,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Submitter delivers leads.
type Submitter interface {
	Submit(ctx context.Context, lead Lead) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, lead Lead) error

func (f SubmitterFunc) Submit(ctx context.Context, lead Lead) error {
	return f(ctx, lead)
}

// LogSubmitter only logs the lead. It stands in for a real backend.
type LogSubmitter struct {
	Log *slog.Logger
}

func (s LogSubmitter) Submit(ctx context.Context, lead Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Log.Info("Lead received",
		"name", lead.Name,
		"email", lead.Email,
		"phone", lead.Phone,
		"messageLength", len(lead.Message),
		"submittedAt", lead.SubmittedAt,
	)
	return nil
}

// NewLead builds a lead from raw form values. Text is stripped of markup and
// the phone number is normalized to its display format.
func NewLead(values form.Values, at time.Time) Lead {
	return Lead{
		Name:        helper.Sanitize(values[rules.FieldName].Text),
		Email:       helper.Sanitize(values[rules.FieldEmail].Text),
		Phone:       helper.FormatPhone(values[rules.FieldPhone].Text),
		Message:     helper.Sanitize(values[rules.FieldMessage].Text),
		SubmittedAt: at,
	}
}
