package mailer

import (
	"fmt"
	"html/template"
	"strings"
)

// AdminAlert is the review notification for one detected change.
type AdminAlert struct {
	ChangeID       string
	SourceURL      string
	Summary        string
	PatientDraft   string
	ClinicianDraft string
	// BaseURL prefixes the approve/reject/review action links.
	BaseURL string
}

var adminAlertTmpl = template.Must(template.New("admin_alert").Parse(`<html><body style="font-family: Arial, sans-serif; max-width: 700px; margin: auto; padding: 24px;">
  <h2 style="color: #b91c1c;">Guideline Change Detected</h2>
  <p><strong>Change ID:</strong> {{.ChangeID}}<br>
     <strong>Source URL:</strong> <a href="{{.SourceURL}}">{{.SourceURL}}</a></p>
  <hr style="border-color: #e5e7eb; margin: 20px 0;">

  <h3 style="color: #1e40af;">AI Summary</h3>
  <div style="background:#f0f9ff; border-left:4px solid #3b82f6; padding:16px; border-radius:4px;">
    <pre style="white-space:pre-wrap; font-family:Arial; font-size:14px;">{{.Summary}}</pre>
  </div>

  <h3 style="color: #059669;">Draft — Patient Message</h3>
  <div style="background:#f0fdf4; border-left:4px solid #10b981; padding:16px; border-radius:4px;">
    <pre style="white-space:pre-wrap; font-family:Arial; font-size:14px;">{{.PatientDraft}}</pre>
  </div>

  <h3 style="color: #7c3aed;">Draft — Clinician Message</h3>
  <div style="background:#faf5ff; border-left:4px solid #8b5cf6; padding:16px; border-radius:4px;">
    <pre style="white-space:pre-wrap; font-family:Arial; font-size:14px;">{{.ClinicianDraft}}</pre>
  </div>

  <hr style="border-color: #e5e7eb; margin: 20px 0;">
  <h3>Your Action Required</h3>
  <p>Please review the drafts above. Use the buttons below, or visit the
     <a href="{{.BaseURL}}/review/{{.ChangeID}}">review page</a> to edit messages before approving.</p>
  <table><tr>
    <td style="padding-right:12px;">
      <a href="{{.BaseURL}}/approve/{{.ChangeID}}" style="background:#16a34a; color:white; padding:12px 24px; text-decoration:none; border-radius:6px; font-weight:bold;">Approve &amp; Send</a>
    </td>
    <td>
      <a href="{{.BaseURL}}/reject/{{.ChangeID}}" style="background:#dc2626; color:white; padding:12px 24px; text-decoration:none; border-radius:6px; font-weight:bold;">Reject / Dismiss</a>
    </td>
  </tr></table>

  <p style="color:#6b7280; font-size:12px; margin-top:32px;">
    This is an automated alert from the guideline monitoring system.<br>
    No messages have been sent to patients or clinicians yet.
  </p>
</body></html>`))

// RenderAdminAlert produces the subject and HTML body of the review alert.
func RenderAdminAlert(a AdminAlert) (subject, htmlBody string, err error) {
	var buf strings.Builder
	if err := adminAlertTmpl.Execute(&buf, a); err != nil {
		return "", "", fmt.Errorf("render admin alert: %w", err)
	}
	subject = fmt.Sprintf("Guideline Change Detected — Action Required (Change %s)", a.ChangeID)
	return subject, buf.String(), nil
}

// Outreach wraps a personalized message body in the audience email shell.
type Outreach struct {
	HeaderLabel string // e.g. "Patient Update"
	HeaderColor string // hex color for the banner
	Body        string // personalized plain-text message
	ChangeID    string
	FromName    string
}

var outreachTmpl = template.Must(template.New("outreach").Parse(`<html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: auto; padding: 24px;">
  <div style="background:{{.HeaderColor}}; color:white; padding:16px 24px; border-radius:6px 6px 0 0;">
    <h2 style="margin:0;">{{.HeaderLabel}}</h2>
  </div>
  <div style="border:1px solid #e5e7eb; border-top:none; padding:24px; border-radius:0 0 6px 6px;">
    <pre style="white-space:pre-wrap; font-family:Arial; font-size:15px; line-height:1.6;">{{.Body}}</pre>
  </div>
  <p style="color:#9ca3af; font-size:11px; margin-top:16px; text-align:center;">
    Reference: Change {{.ChangeID}} | {{.FromName}}<br>
    If you have questions, please contact our office.
  </p>
</body></html>`))

// RenderOutreach produces the HTML body for one outreach email. The audience
// decides the banner.
func RenderOutreach(recipientType, body, changeID, fromName string) (string, error) {
	o := Outreach{
		HeaderLabel: "Clinical Practice Update",
		HeaderColor: "#1e40af",
		Body:        body,
		ChangeID:    changeID,
		FromName:    fromName,
	}
	if recipientType == "patient" {
		o.HeaderLabel = "Patient Update"
		o.HeaderColor = "#059669"
	}

	var buf strings.Builder
	if err := outreachTmpl.Execute(&buf, o); err != nil {
		return "", fmt.Errorf("render outreach: %w", err)
	}
	return buf.String(), nil
}
