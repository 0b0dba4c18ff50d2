// Package dispatch delivers an approved change to every active recipient,
// recording an audit row per delivery attempt.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/guidewatch/guidewatch/idgen"
	"github.com/guidewatch/guidewatch/mailer"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
	"github.com/guidewatch/guidewatch/summarizer"
)

// Fixed subjects per audience.
const (
	SubjectPatient   = "An Update from Your Genetic Counseling Team"
	SubjectClinician = "Practice Guideline Update"
)

// ErrNotApproved is returned when dispatch is requested for a change that is
// not in approved status.
var ErrNotApproved = errors.New("dispatch: change is not approved")

// ErrNoRecipients is returned when the roster holds no active recipients.
var ErrNoRecipients = errors.New("dispatch: no active recipients")

// Mailer sends one outreach email. A returned error is final for that
// attempt; the dispatcher never retries.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// Result summarizes one dispatch run.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Config configures a Dispatcher.
type Config struct {
	Store        *store.Store
	Personalizer summarizer.Personalizer
	Mailer       Mailer
	Logger       *slog.Logger
	NewID        idgen.Generator
	// Concurrency bounds parallel sends. Default: 4.
	Concurrency int
	// FromName appears in the outreach email footer.
	FromName string
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = idgen.Default
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Dispatcher fans an approved change out to the recipient roster.
type Dispatcher struct {
	store        *store.Store
	personalizer summarizer.Personalizer
	mailer       Mailer
	log          *slog.Logger
	newID        idgen.Generator
	concurrency  int
	fromName     string
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	cfg.defaults()
	return &Dispatcher{
		store:        cfg.Store,
		personalizer: cfg.Personalizer,
		mailer:       cfg.Mailer,
		log:          cfg.Logger.With("component", "dispatch"),
		newID:        cfg.NewID,
		concurrency:  cfg.Concurrency,
		fromName:     cfg.FromName,
	}
}

// Dispatch sends the approved change to every active recipient. The change
// is claimed approved→sent up front through the status-guarded update, so of
// two concurrent dispatch calls exactly one fans out; the loser reports
// ErrNotApproved. Each recipient then gets the draft for their audience,
// personalized, persisted as a pending audit row before the send attempt,
// and marked sent or failed. Delivery failures never undo the claim.
func (d *Dispatcher) Dispatch(ctx context.Context, changeID string) (*Result, error) {
	change, err := d.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, fmt.Errorf("get change: %w", err)
	}
	if change == nil {
		return nil, fmt.Errorf("dispatch: change %s not found", changeID)
	}
	if change.Status != store.StatusApproved {
		return nil, fmt.Errorf("%w (status: %s)", ErrNotApproved, change.Status)
	}

	recipients, err := d.store.ListActiveRecipients(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	// Claim the change before any send. The guarded update admits exactly
	// one dispatcher even when the earlier status read raced another call.
	applied, err := d.store.MarkChangeSent(ctx, changeID)
	if err != nil {
		return nil, fmt.Errorf("mark change sent: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w (already claimed)", ErrNotApproved)
	}

	d.log.Info("dispatch started",
		"change_id", changeID, "recipients", len(recipients))

	result := &Result{Total: len(recipients)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)

	for _, r := range recipients {
		wg.Add(1)
		sem <- struct{}{}
		go func(r *store.Recipient) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := d.deliverOne(ctx, change, r)
			mu.Lock()
			if ok {
				result.Sent++
			} else {
				result.Failed++
			}
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	d.log.Info("dispatch complete",
		"change_id", changeID, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

// deliverOne personalizes, records, and sends to a single recipient.
// Reports delivery success.
func (d *Dispatcher) deliverOne(ctx context.Context, change *store.Change, r *store.Recipient) bool {
	template := change.ClinicianDraft
	subject := SubjectClinician
	if r.Type == store.TypePatient {
		template = change.PatientDraft
		subject = SubjectPatient
	}

	body, err := d.personalizer.Personalize(ctx, template, r.Name, r.Type, parseConditions(r.ConditionsJSON))
	if err != nil {
		// Deterministic fallback: the recipient still gets the draft with
		// their name substituted.
		d.log.Warn("personalization failed, using plain substitution",
			"change_id", change.ID, "recipient_id", r.ID, "error", err)
		body = summarizer.SubstitutePlaceholders(template, r.Name)
	}

	msg := &store.OutboundMessage{
		ID:          d.newID(),
		ChangeID:    change.ID,
		RecipientID: r.ID,
		Subject:     subject,
		Body:        body,
	}
	if err := d.store.InsertOutbound(ctx, msg); err != nil {
		d.log.Error("audit row write failed, skipping send",
			"change_id", change.ID, "recipient_id", r.ID, "error", err)
		return false
	}

	// The audit row keeps the plain personalized text; the email wraps it in
	// the audience HTML shell.
	htmlBody, err := mailer.RenderOutreach(r.Type, body, change.ID, d.fromName)
	if err != nil {
		d.log.Error("outreach render failed, sending plain body",
			"change_id", change.ID, "recipient_id", r.ID, "error", err)
		htmlBody = body
	}

	if err := d.mailer.Send(ctx, r.Email, r.Name, subject, htmlBody); err != nil {
		d.log.Warn("delivery failed",
			"change_id", change.ID, "recipient_id", r.ID, "error", err)
		if _, merr := d.store.MarkMessageFailed(ctx, msg.ID, err.Error()); merr != nil {
			d.log.Error("failed-status write failed", "message_id", msg.ID, "error", merr)
		}
		return false
	}

	if _, err := d.store.MarkMessageSent(ctx, msg.ID); err != nil {
		d.log.Error("sent-status write failed", "message_id", msg.ID, "error", err)
	}
	return true
}

// parseConditions decodes the stored JSON tag array. Malformed data reads as
// no conditions rather than blocking the send.
func parseConditions(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
