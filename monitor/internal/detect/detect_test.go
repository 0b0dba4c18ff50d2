package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/guidewatch/guidewatch/dbopen"
	"github.com/guidewatch/guidewatch/monitor/internal/fetch"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
	"github.com/guidewatch/guidewatch/summarizer"
)

type fakeFetcher struct {
	text string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	sum := sha256.Sum256([]byte(f.text))
	return &fetch.Result{StatusCode: 200, Text: f.text, Hash: hex.EncodeToString(sum[:])}, nil
}

type fakeSummarizer struct {
	err   error
	calls int
	last  summarizer.Request
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Drafts, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &summarizer.Drafts{
		Summary:        "summary of " + req.URL,
		PatientDraft:   "Dear [PATIENT_NAME]",
		ClinicianDraft: "Dear [CLINICIAN_NAME]",
	}, nil
}

type fakeAlerter struct {
	alerted []*store.Change
	err     error
}

func (f *fakeAlerter) AlertAdmin(ctx context.Context, c *store.Change) error {
	f.alerted = append(f.alerted, c)
	return f.err
}

func newTestDetector(t *testing.T, fetcher *fakeFetcher, sum *fakeSummarizer, al *fakeAlerter) (*Detector, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatal(err)
	}
	st := store.NewStore(db)
	var alerter Alerter
	if al != nil {
		alerter = al
	}
	return New(Config{Store: st, Fetcher: fetcher, Summarizer: sum, Alerter: alerter}), st
}

const srcURL = "https://guidelines.example.org/practice"

// WHAT: the first capture of a source creates a snapshot and a pending
// change with no old snapshot reference and an empty diff, and the
// summarizer is told it is a first capture.
// WHY: there is no prior version to diff against; a diff-from-empty would
// just duplicate the full text the change already carries.
func TestCheckSourceFirstCapture(t *testing.T) {
	sum := &fakeSummarizer{}
	al := &fakeAlerter{}
	d, st := newTestDetector(t, &fakeFetcher{text: "BRCA1: annual screening"}, sum, al)

	change, err := d.CheckSource(context.Background(), srcURL)
	if err != nil {
		t.Fatal(err)
	}
	if change == nil {
		t.Fatal("expected a change on first capture")
	}
	if change.OldSnapshotID != nil {
		t.Fatalf("old_snapshot_id = %v, want nil", *change.OldSnapshotID)
	}
	if change.Status != store.StatusPending {
		t.Fatalf("status = %s", change.Status)
	}
	if change.DiffText != "" {
		t.Fatalf("first-capture diff = %q, want empty", change.DiffText)
	}
	if !sum.last.FirstCapture {
		t.Fatal("summarizer not told this is a first capture")
	}
	if sum.last.DiffText != "" {
		t.Fatalf("summarizer diff = %q, want empty", sum.last.DiffText)
	}
	if len(al.alerted) != 1 {
		t.Fatalf("admin alerts = %d, want 1", len(al.alerted))
	}

	n, err := st.CountSnapshots(context.Background(), srcURL)
	if err != nil || n != 1 {
		t.Fatalf("snapshots = %d err=%v", n, err)
	}
}

// WHAT: an unchanged page produces no new snapshot and no change.
// WHY: the hash comparison is the dedup gate; without it every sweep would
// re-open a review for identical content.
func TestCheckSourceUnchanged(t *testing.T) {
	f := &fakeFetcher{text: "stable content"}
	sum := &fakeSummarizer{}
	d, st := newTestDetector(t, f, sum, nil)
	ctx := context.Background()

	if _, err := d.CheckSource(ctx, srcURL); err != nil {
		t.Fatal(err)
	}
	change, err := d.CheckSource(ctx, srcURL)
	if err != nil {
		t.Fatal(err)
	}
	if change != nil {
		t.Fatalf("unchanged page produced change %+v", change)
	}
	if sum.calls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", sum.calls)
	}
	n, _ := st.CountSnapshots(ctx, srcURL)
	if n != 1 {
		t.Fatalf("snapshots = %d, want 1", n)
	}
}

// WHAT: a changed page links old and new snapshots and carries a unified
// diff mentioning both versions.
func TestCheckSourceDetectsEdit(t *testing.T) {
	f := &fakeFetcher{text: "interval: every 2 years"}
	sum := &fakeSummarizer{}
	d, _ := newTestDetector(t, f, sum, nil)
	ctx := context.Background()

	first, err := d.CheckSource(ctx, srcURL)
	if err != nil || first == nil {
		t.Fatalf("first capture: %v %v", first, err)
	}

	f.text = "interval: annual"
	second, err := d.CheckSource(ctx, srcURL)
	if err != nil {
		t.Fatal(err)
	}
	if second == nil {
		t.Fatal("edit not detected")
	}
	if second.OldSnapshotID == nil || *second.OldSnapshotID != first.NewSnapshotID {
		t.Fatalf("old snapshot link = %v, want %s", second.OldSnapshotID, first.NewSnapshotID)
	}
	if !strings.Contains(second.DiffText, "-interval: every 2 years") ||
		!strings.Contains(second.DiffText, "+interval: annual") {
		t.Fatalf("diff missing edit lines:\n%s", second.DiffText)
	}
	if sum.last.FirstCapture {
		t.Fatal("second capture flagged as first")
	}
}

// WHAT: when summarization fails the error propagates, the snapshot is
// still saved, and no change row is written — so the next sweep of identical
// content stays quiet.
func TestCheckSourceSummarizerFailure(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("model unavailable")}
	d, st := newTestDetector(t, &fakeFetcher{text: "content"}, sum, nil)
	ctx := context.Background()

	change, err := d.CheckSource(ctx, srcURL)
	if err == nil {
		t.Fatal("expected summarization error to propagate")
	}
	if change != nil {
		t.Fatalf("change written despite failure: %+v", change)
	}

	n, _ := st.CountSnapshots(ctx, srcURL)
	if n != 1 {
		t.Fatalf("snapshots = %d, want 1", n)
	}
	changes, _ := st.ListChanges(ctx, "")
	if len(changes) != 0 {
		t.Fatalf("changes = %d, want 0", len(changes))
	}
}

// WHAT: a failing admin alert is logged and dropped; the change still lands.
func TestCheckSourceAlertFailureNonFatal(t *testing.T) {
	al := &fakeAlerter{err: errors.New("smtp down")}
	d, st := newTestDetector(t, &fakeFetcher{text: "content"}, &fakeSummarizer{}, al)

	change, err := d.CheckSource(context.Background(), srcURL)
	if err != nil {
		t.Fatal(err)
	}
	if change == nil {
		t.Fatal("change lost to alert failure")
	}
	got, _ := st.GetChange(context.Background(), change.ID)
	if got == nil {
		t.Fatal("change not persisted")
	}
}

// WHAT: a fetch failure aborts the check without touching the store.
func TestCheckSourceFetchFailure(t *testing.T) {
	d, st := newTestDetector(t, &fakeFetcher{err: errors.New("timeout")}, &fakeSummarizer{}, nil)

	if _, err := d.CheckSource(context.Background(), srcURL); err == nil {
		t.Fatal("expected fetch error")
	}
	n, _ := st.CountSnapshots(context.Background(), srcURL)
	if n != 0 {
		t.Fatalf("snapshots = %d, want 0", n)
	}
}
