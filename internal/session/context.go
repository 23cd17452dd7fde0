package session

import "time"

// Context carries the timing and honeypot signals of one page session.
// LastSubmissionAt is zero until the first attempt accepted as human.
type Context struct {
	FormLoadedAt     time.Time `json:"formLoadedAt"`
	LastSubmissionAt time.Time `json:"lastSubmissionAt"`
	Honeypot         string    `json:"-"`
}

// NewContext starts a session whose form was displayed at loadedAt.
func NewContext(loadedAt time.Time) Context {
	return Context{FormLoadedAt: loadedAt}
}

// Submitted reports whether an attempt was ever accepted.
func (c Context) Submitted() bool {
	return !c.LastSubmissionAt.IsZero()
}

// WithHoneypot returns a copy carrying the honeypot value of an attempt.
func (c Context) WithHoneypot(v string) Context {
	c.Honeypot = v
	return c
}

// Accepted returns a copy with LastSubmissionAt moved to at.
func (c Context) Accepted(at time.Time) Context {
	c.LastSubmissionAt = at
	return c
}
