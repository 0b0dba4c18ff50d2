package main

import (
	"html/template"
	"net/http"
	"time"

	"github.com/guidewatch/guidewatch/monitor"
)

// Minimal HTML pages for the admin-email action links. The full dashboard is
// out of scope; these exist so the approve/reject/review links resolve to
// something readable.

var actionTmpl = template.Must(template.New("action").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}} — guidewatch</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 48px auto;">
  <h1>{{.Title}}</h1>
  <p>{{.Detail}}</p>
</body></html>`))

func writeActionPage(w http.ResponseWriter, code int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	actionTmpl.Execute(w, struct{ Title, Detail string }{title, detail})
}

var reviewTmpl = template.Must(template.New("review").Parse(`<!DOCTYPE html>
<html><head><title>Review change {{.ID}} — guidewatch</title></head>
<body style="font-family: Arial, sans-serif; max-width: 700px; margin: 48px auto;">
  <h1>Change {{.ID}}</h1>
  <p><strong>Source:</strong> <a href="{{.SourceURL}}">{{.SourceURL}}</a><br>
     <strong>Status:</strong> {{.Status}}<br>
     <strong>Captured:</strong> {{.Captured}}</p>

  <h2>AI Summary</h2>
  <pre style="white-space:pre-wrap; background:#f6f6f6; padding:16px;">{{.AISummary}}</pre>

  <h2>Patient Draft</h2>
  <pre style="white-space:pre-wrap; background:#f6f6f6; padding:16px;">{{.PatientDraft}}</pre>

  <h2>Clinician Draft</h2>
  <pre style="white-space:pre-wrap; background:#f6f6f6; padding:16px;">{{.ClinicianDraft}}</pre>

  {{if eq .Status "pending"}}
  <p>
    <a href="/approve/{{.ID}}">Approve &amp; send</a> ·
    <a href="/reject/{{.ID}}">Reject</a>
  </p>
  {{end}}

  <h2>Diff</h2>
  <pre style="white-space:pre-wrap; background:#f6f6f6; padding:16px;">{{.DiffText}}</pre>
</body></html>`))

func writeReviewPage(w http.ResponseWriter, c *monitor.Change, snap *monitor.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	reviewTmpl.Execute(w, struct {
		*monitor.Change
		Captured string
	}{c, time.UnixMilli(snap.CapturedAt).UTC().Format(time.RFC1123)})
}
