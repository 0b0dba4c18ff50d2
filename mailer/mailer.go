// Package mailer delivers guidewatch email: administrator review alerts and
// approved outreach to patients and clinicians.
package mailer

import "context"

// Mailer sends one HTML email. Implementations report a failed attempt as an
// error and never retry; retry policy belongs to the caller.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// Sender identity stamped on every outgoing message.
type Sender struct {
	FromName  string
	FromEmail string
}

func (s *Sender) defaults() {
	if s.FromName == "" {
		s.FromName = "Guideline Monitoring"
	}
}

// From renders the RFC 5322 from header value.
func (s Sender) From() string {
	return s.FromName + " <" + s.FromEmail + ">"
}
