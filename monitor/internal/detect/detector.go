package detect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/guidewatch/guidewatch/idgen"
	"github.com/guidewatch/guidewatch/monitor/internal/fetch"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
	"github.com/guidewatch/guidewatch/summarizer"
)

// PageFetcher captures a page as normalized text with a content hash.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Alerter notifies the administrator that a change is awaiting review.
type Alerter interface {
	AlertAdmin(ctx context.Context, change *store.Change) error
}

// Config configures a Detector.
type Config struct {
	Store      *store.Store
	Fetcher    PageFetcher
	Summarizer summarizer.Summarizer
	Alerter    Alerter // optional; alert failures never block detection
	Logger     *slog.Logger
	NewID      idgen.Generator
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.NewID == nil {
		c.NewID = idgen.Default
	}
}

// Detector runs the capture-compare-summarize pipeline for one source.
type Detector struct {
	store      *store.Store
	fetcher    PageFetcher
	summarizer summarizer.Summarizer
	alerter    Alerter
	log        *slog.Logger
	newID      idgen.Generator
}

// New creates a Detector.
func New(cfg Config) *Detector {
	cfg.defaults()
	return &Detector{
		store:      cfg.Store,
		fetcher:    cfg.Fetcher,
		summarizer: cfg.Summarizer,
		alerter:    cfg.Alerter,
		log:        cfg.Logger.With("component", "detect"),
		newID:      cfg.NewID,
	}
}

// CheckSource fetches url, compares against the latest snapshot, and when
// the content hash differs persists a new snapshot plus a pending change.
// Returns nil change when the page is unchanged.
//
// The snapshot is persisted before summarization. If summarization fails the
// error propagates and no change row is written; because the snapshot stays,
// the next sweep sees a matching hash and the change is absorbed. Logged at
// ERROR so the absorption is never silent.
func (d *Detector) CheckSource(ctx context.Context, url string) (*store.Change, error) {
	res, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	prev, err := d.store.LatestSnapshot(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	if prev != nil && prev.ContentHash == res.Hash {
		d.log.Debug("no change", "url", url, "hash", res.Hash)
		return nil, nil
	}

	snap := &store.Snapshot{
		ID:             d.newID(),
		SourceURL:      url,
		ContentHash:    res.Hash,
		NormalizedText: res.Text,
	}
	if err := d.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	firstCapture := prev == nil
	var oldText string
	var oldSnapshotID *string
	if prev != nil {
		oldText = prev.NormalizedText
		oldSnapshotID = &prev.ID
	}

	// A first capture has nothing to diff against; the change carries the
	// full text through NewText and an empty diff.
	var diffText string
	if !firstCapture {
		diffText, err = UnifiedDiff(oldText, res.Text)
		if err != nil {
			return nil, err
		}
	}

	drafts, err := d.summarizer.Summarize(ctx, summarizer.Request{
		URL:          url,
		DiffText:     diffText,
		NewText:      res.Text,
		FirstCapture: firstCapture,
	})
	if err != nil {
		// Snapshot is already saved, so this change will not resurface on
		// the next sweep. Loud log plus the returned error are the only
		// trace.
		d.log.Error("summarization failed, change absorbed",
			"url", url, "snapshot_id", snap.ID, "error", err)
		return nil, fmt.Errorf("summarize %s: %w", url, err)
	}

	change := &store.Change{
		ID:             d.newID(),
		SourceURL:      url,
		OldSnapshotID:  oldSnapshotID,
		NewSnapshotID:  snap.ID,
		DiffText:       diffText,
		AISummary:      drafts.Summary,
		PatientDraft:   drafts.PatientDraft,
		ClinicianDraft: drafts.ClinicianDraft,
	}
	if err := d.store.InsertChange(ctx, change); err != nil {
		return nil, fmt.Errorf("insert change: %w", err)
	}

	d.log.Info("change detected",
		"url", url, "change_id", change.ID, "first_capture", firstCapture)

	if d.alerter != nil {
		if err := d.alerter.AlertAdmin(ctx, change); err != nil {
			d.log.Warn("admin alert failed", "change_id", change.ID, "error", err)
		}
	}
	return change, nil
}
