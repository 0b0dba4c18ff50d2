// Package summarizer turns detected guideline changes into an administrator
// summary and audience-specific outreach drafts, and personalizes those
// drafts per recipient.
package summarizer

import (
	"context"
	"strings"
)

// Placeholders substituted during personalization. Drafts are generated with
// these literal tokens so one draft serves every recipient of its audience.
const (
	PatientPlaceholder   = "[PATIENT_NAME]"
	ClinicianPlaceholder = "[CLINICIAN_NAME]"
)

// Request describes one change to summarize.
type Request struct {
	URL          string
	DiffText     string // unified diff; empty on first capture
	NewText      string // full normalized page text
	FirstCapture bool   // no prior snapshot: summarize content, not a diff
}

// Drafts is the generated review bundle for one change.
type Drafts struct {
	Summary        string // for the reviewing administrator
	PatientDraft   string // plain-language, with PatientPlaceholder
	ClinicianDraft string // clinical register, with ClinicianPlaceholder
}

// Summarizer generates the review bundle for a change.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*Drafts, error)
}

// Personalizer tailors an approved draft to one recipient.
type Personalizer interface {
	Personalize(ctx context.Context, template, name, recipientType string, conditions []string) (string, error)
}

// SubstitutePlaceholders replaces both name placeholders with the recipient
// name. This is the personalization floor: always applied, and the whole of
// it when AI tailoring is unavailable or fails.
func SubstitutePlaceholders(template, name string) string {
	out := strings.ReplaceAll(template, PatientPlaceholder, name)
	return strings.ReplaceAll(out, ClinicianPlaceholder, name)
}
