package rules

import (
	"github.com/libops/leadguard/internal/i18n"
)

const (
	DefaultMinNameLength = 2
	DefaultMinDigits     = 10
	DefaultMaxDigits     = 15
)

var (
	namePattern  = MustFullMatch(`[a-zA-Z\s'-]+`)
	emailPattern = MustFullMatch(`[^\s@]+@[^\s@]+\.[^\s@]+`)
)

// Messages resolves a message id to display text.
type Messages interface {
	Message(id string, templateData map[string]any) string
}

// Default builds the contact form table with text from msgs. The phone
// digit bounds are the only integrator-tunable part; pass zero to use
// DefaultMinDigits/DefaultMaxDigits.
func Default(msgs Messages, minDigits, maxDigits int) (*Table, error) {
	if minDigits == 0 {
		minDigits = DefaultMinDigits
	}
	if maxDigits == 0 {
		maxDigits = DefaultMaxDigits
	}

	return NewTable(
		FieldRule{
			Key:       FieldName,
			Required:  true,
			MinLength: DefaultMinNameLength,
			Pattern:   namePattern,
			Messages: map[FailureKind]string{
				Required:        msgs.Message(i18n.NameRequired, nil),
				TooShort:        msgs.Message(i18n.NameTooShort, map[string]any{"Min": DefaultMinNameLength}),
				PatternMismatch: msgs.Message(i18n.NamePattern, nil),
			},
		},
		FieldRule{
			Key:      FieldEmail,
			Required: true,
			Pattern:  emailPattern,
			Messages: map[FailureKind]string{
				Required:        msgs.Message(i18n.EmailRequired, nil),
				PatternMismatch: msgs.Message(i18n.EmailPattern, nil),
			},
		},
		FieldRule{
			Key:       FieldPhone,
			Required:  true,
			MinDigits: minDigits,
			MaxDigits: maxDigits,
			Messages: map[FailureKind]string{
				Required:             msgs.Message(i18n.PhoneRequired, nil),
				DigitCountOutOfRange: msgs.Message(i18n.PhoneDigits, map[string]any{"Min": minDigits, "Max": maxDigits}),
			},
		},
		FieldRule{
			Key:      FieldChallenge,
			Required: true,
			Dynamic:  true,
			Messages: map[FailureKind]string{
				Required:          msgs.Message(i18n.ChallengeRequired, nil),
				ChallengeMismatch: msgs.Message(i18n.ChallengeMismatch, nil),
			},
		},
		FieldRule{
			Key:      FieldConfirm,
			Required: true,
			Checkbox: true,
			Messages: map[FailureKind]string{
				Required: msgs.Message(i18n.ConfirmRequired, nil),
			},
		},
	)
}
