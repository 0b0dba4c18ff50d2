// Package monitor is the guideline change monitoring orchestrator: it sweeps
// configured sources for changes, runs the approval lifecycle, and dispatches
// approved updates to the recipient roster.
package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/guidewatch/guidewatch/idgen"
	"github.com/guidewatch/guidewatch/mailer"
	"github.com/guidewatch/guidewatch/monitor/internal/detect"
	"github.com/guidewatch/guidewatch/monitor/internal/dispatch"
	"github.com/guidewatch/guidewatch/monitor/internal/fetch"
	"github.com/guidewatch/guidewatch/monitor/internal/scheduler"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
	"github.com/guidewatch/guidewatch/summarizer"
)

// Service is the monitoring orchestrator.
type Service struct {
	store      *store.Store
	detector   *detect.Detector
	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler
	fetcher    detect.PageFetcher
	alerter    detect.Alerter
	logger     *slog.Logger
	config     *Config
	newID      idgen.Generator
}

// New creates a monitoring Service. The schema is applied to db on creation.
func New(db *sql.DB, sum summarizer.Summarizer, pers summarizer.Personalizer,
	sender mailer.Mailer, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	svc := &Service{
		store:  store.NewStore(db),
		logger: logger,
		config: cfg,
		newID:  idgen.Default,
	}
	if cfg.Admin.Email != "" {
		svc.alerter = &adminAlerter{
			mailer:  sender,
			email:   cfg.Admin.Email,
			name:    cfg.Admin.Name,
			baseURL: cfg.BaseURL,
		}
	}

	// Apply options before wiring the pipeline so overrides take effect.
	for _, opt := range opts {
		opt(svc)
	}

	if svc.fetcher == nil {
		svc.fetcher = fetch.New(fetch.Config{
			Timeout:   cfg.FetchTimeout,
			UserAgent: cfg.UserAgent,
		})
	}

	svc.detector = detect.New(detect.Config{
		Store:      svc.store,
		Fetcher:    svc.fetcher,
		Summarizer: sum,
		Alerter:    svc.alerter,
		Logger:     logger,
		NewID:      svc.newID,
	})
	svc.dispatcher = dispatch.New(dispatch.Config{
		Store:        svc.store,
		Personalizer: pers,
		Mailer:       sender,
		Logger:       logger,
		NewID:        svc.newID,
		Concurrency:  cfg.DispatchConcurrency,
		FromName:     cfg.FromName,
	})
	svc.scheduler = scheduler.New(func(ctx context.Context) (int, error) {
		return svc.RunSweep(ctx)
	}, scheduler.Config{Interval: cfg.SweepInterval}, logger)

	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithFetcher replaces the page fetcher.
func WithFetcher(f detect.PageFetcher) ServiceOption {
	return func(s *Service) { s.fetcher = f }
}

// WithAlerter replaces the admin alerter.
func WithAlerter(a detect.Alerter) ServiceOption {
	return func(s *Service) { s.alerter = a }
}

// WithIDGenerator replaces the ID generator.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.scheduler.Run(ctx)
}

// RunSweep checks every configured source once and returns how many changes
// were detected. A failing source is logged and skipped; the sweep goes on.
func (s *Service) RunSweep(ctx context.Context) (int, error) {
	found := 0
	for _, url := range s.config.Sources {
		change, err := s.detector.CheckSource(ctx, url)
		if err != nil {
			s.logger.Error("source check failed", "url", url, "error", err)
			continue
		}
		if change != nil {
			found++
		}
	}
	return found, nil
}

// CheckSource runs the detection pipeline for a single URL. Returns the new
// pending change, or nil when the page is unchanged.
func (s *Service) CheckSource(ctx context.Context, url string) (*Change, error) {
	return s.detector.CheckSource(ctx, url)
}

// Approve moves a pending change to approved, recording the actor. When the
// change has already left pending the outcome reports the status that won
// instead of an error; the caller decides whether that matters.
func (s *Service) Approve(ctx context.Context, changeID, actor string) (*ReviewOutcome, error) {
	return s.resolve(ctx, changeID, StatusApproved, actor)
}

// Reject moves a pending change to rejected, recording the actor.
func (s *Service) Reject(ctx context.Context, changeID, actor string) (*ReviewOutcome, error) {
	return s.resolve(ctx, changeID, StatusRejected, actor)
}

func (s *Service) resolve(ctx context.Context, changeID, target, actor string) (*ReviewOutcome, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	applied, err := s.store.ResolveChange(ctx, changeID, target, actor)
	if err != nil {
		return nil, err
	}
	if applied {
		s.logger.Info("change resolved", "change_id", changeID, "status", target, "actor", actor)
		return &ReviewOutcome{Applied: true, Status: target}, nil
	}

	c, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: change %s", ErrNotFound, changeID)
	}
	return &ReviewOutcome{Applied: false, Status: c.Status}, nil
}

// Dispatch sends an approved change to all active recipients.
func (s *Service) Dispatch(ctx context.Context, changeID string) (*DispatchResult, error) {
	c, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: change %s", ErrNotFound, changeID)
	}

	res, err := s.dispatcher.Dispatch(ctx, changeID)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, dispatch.ErrNotApproved):
		return nil, fmt.Errorf("%w: change %s is %s", ErrPreconditionFailed, changeID, c.Status)
	case errors.Is(err, dispatch.ErrNoRecipients):
		return nil, ErrNoRecipients
	default:
		return nil, err
	}
}

// GetChange retrieves one change.
func (s *Service) GetChange(ctx context.Context, changeID string) (*Change, error) {
	c, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: change %s", ErrNotFound, changeID)
	}
	return c, nil
}

// GetSnapshot returns a captured snapshot by ID.
func (s *Service) GetSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot %s", ErrNotFound, snapshotID)
	}
	return snap, nil
}

// ListChanges returns changes newest first, optionally filtered by status.
func (s *Service) ListChanges(ctx context.Context, status string) ([]*Change, error) {
	switch status {
	case "", StatusPending, StatusApproved, StatusRejected, StatusSent:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.ListChanges(ctx, status)
}

// UpdateDrafts replaces both draft texts on a still-pending change.
func (s *Service) UpdateDrafts(ctx context.Context, changeID, patientDraft, clinicianDraft string) error {
	applied, err := s.store.UpdateDrafts(ctx, changeID, patientDraft, clinicianDraft)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	c, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: change %s", ErrNotFound, changeID)
	}
	return fmt.Errorf("%w: drafts are frozen once a change is %s", ErrPreconditionFailed, c.Status)
}

// AddRecipient registers a recipient. A repeated add with a known email is a
// no-op that returns the existing row; created reports which happened.
func (s *Service) AddRecipient(ctx context.Context, name, email, recipientType string, conditions []string) (r *Recipient, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return nil, false, fmt.Errorf("%w: email %q: %v", ErrInvalidInput, email, err)
	}
	if recipientType != TypePatient && recipientType != TypeClinician {
		return nil, false, fmt.Errorf("%w: type must be %s or %s", ErrInvalidInput, TypePatient, TypeClinician)
	}
	if conditions == nil {
		conditions = []string{}
	}
	condJSON, err := json.Marshal(conditions)
	if err != nil {
		return nil, false, err
	}

	id, created, err := s.store.InsertRecipient(ctx, &store.Recipient{
		ID:             s.newID(),
		Name:           name,
		Email:          addr.Address,
		Type:           recipientType,
		ConditionsJSON: string(condJSON),
		Active:         true,
	})
	if err != nil {
		return nil, false, err
	}
	stored, err := s.store.GetRecipient(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// ListActiveRecipients returns the active roster, optionally one audience.
func (s *Service) ListActiveRecipients(ctx context.Context, recipientType string) ([]*Recipient, error) {
	switch recipientType {
	case "", TypePatient, TypeClinician:
	default:
		return nil, fmt.Errorf("%w: unknown recipient type %q", ErrInvalidInput, recipientType)
	}
	return s.store.ListActiveRecipients(ctx, recipientType)
}

// DeactivateRecipient soft-deletes a recipient from the roster.
func (s *Service) DeactivateRecipient(ctx context.Context, id string) error {
	applied, err := s.store.DeactivateRecipient(ctx, id)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: recipient %s", ErrNotFound, id)
	}
	return nil
}

// ListOutbound returns the delivery audit trail for one change.
func (s *Service) ListOutbound(ctx context.Context, changeID string) ([]*OutboundMessage, error) {
	c, err := s.store.GetChange(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: change %s", ErrNotFound, changeID)
	}
	return s.store.ListOutbound(ctx, changeID)
}

// ListPendingOutbound returns messages whose delivery outcome is unknown
// (e.g. after a crash mid-dispatch), for manual reconciliation.
func (s *Service) ListPendingOutbound(ctx context.Context) ([]*OutboundMessage, error) {
	return s.store.ListPendingOutbound(ctx)
}
