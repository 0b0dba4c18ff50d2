package monitor

import (
	"context"

	"github.com/guidewatch/guidewatch/mailer"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
)

// adminAlerter emails the reviewing administrator when a change lands.
type adminAlerter struct {
	mailer  mailer.Mailer
	email   string
	name    string
	baseURL string
}

func (a *adminAlerter) AlertAdmin(ctx context.Context, c *store.Change) error {
	subject, body, err := mailer.RenderAdminAlert(mailer.AdminAlert{
		ChangeID:       c.ID,
		SourceURL:      c.SourceURL,
		Summary:        c.AISummary,
		PatientDraft:   c.PatientDraft,
		ClinicianDraft: c.ClinicianDraft,
		BaseURL:        a.baseURL,
	})
	if err != nil {
		return err
	}
	return a.mailer.Send(ctx, a.email, a.name, subject, body)
}
