// Package guard decides whether a submission looks automated.
//
// This is a UX heuristic and not an anti-bot defense: a client that waits a
// few seconds and leaves the hidden field blank passes. Callers route a
// rejection through the same success path shown to humans so that simple
// form-filling scripts stop retrying.
package guard

import (
	"strings"
	"time"

	"github.com/libops/leadguard/internal/session"
)

const (
	DefaultMinDwell       = 2000 * time.Millisecond
	DefaultMinResubmitGap = 3000 * time.Millisecond
)

// Reason names the check that flagged a submission.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonHoneypot
	ReasonTooFast
	ReasonRapidResubmit
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonHoneypot:
		return "honeypot"
	case ReasonTooFast:
		return "too_fast"
	case ReasonRapidResubmit:
		return "rapid_resubmit"
	default:
		return "unknown"
	}
}

// Thresholds configure the timing checks. A zero duration disables its check.
type Thresholds struct {
	MinDwell       time.Duration
	MinResubmitGap time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDwell:       DefaultMinDwell,
		MinResubmitGap: DefaultMinResubmitGap,
	}
}

type Assessment struct {
	HumanLikely bool
	Reason      Reason
}

type Guard struct {
	thresholds Thresholds
}

func New(t Thresholds) Guard {
	return Guard{thresholds: t}
}

func (g Guard) Thresholds() Thresholds {
	return g.thresholds
}

// Assess runs the honeypot, dwell and resubmission checks in that order.
func (g Guard) Assess(c session.Context, now time.Time) Assessment {
	if strings.TrimSpace(c.Honeypot) != "" {
		return Assessment{Reason: ReasonHoneypot}
	}

	if g.thresholds.MinDwell > 0 && now.Sub(c.FormLoadedAt) < g.thresholds.MinDwell {
		return Assessment{Reason: ReasonTooFast}
	}

	if g.thresholds.MinResubmitGap > 0 && c.Submitted() && now.Sub(c.LastSubmissionAt) < g.thresholds.MinResubmitGap {
		return Assessment{Reason: ReasonRapidResubmit}
	}

	return Assessment{HumanLikely: true}
}
