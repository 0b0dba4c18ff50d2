package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/guidewatch/guidewatch/dbopen"
	"github.com/guidewatch/guidewatch/monitor/internal/fetch"
	"github.com/guidewatch/guidewatch/summarizer"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *fakeFetcher) set(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = text
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no route to host")
	}
	sum := sha256.Sum256([]byte(text))
	return &fetch.Result{StatusCode: 200, Text: text, Hash: hex.EncodeToString(sum[:])}, nil
}

type fakeAI struct{}

func (fakeAI) Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Drafts, error) {
	return &summarizer.Drafts{
		Summary:        "summary for " + req.URL,
		PatientDraft:   "Dear [PATIENT_NAME], guideline news.",
		ClinicianDraft: "Dear [CLINICIAN_NAME]: guideline revised.",
	}, nil
}

func (fakeAI) Personalize(ctx context.Context, template, name, recipientType string, conditions []string) (string, error) {
	return summarizer.SubstitutePlaceholders(template, name), nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string // "email|subject"
}

func (m *recordingMailer) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail+"|"+subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

const testSource = "https://guidelines.example.org/practice"

func newTestService(t *testing.T) (*Service, *fakeFetcher, *recordingMailer) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	f := &fakeFetcher{pages: map[string]string{testSource: "v1 guidance"}}
	m := &recordingMailer{}
	cfg := &Config{
		Sources: []string{testSource},
		Admin:   AdminConfig{Email: "admin@example.org", Name: "Admin"},
		BaseURL: "https://guidewatch.example.org",
	}
	svc, err := New(db, fakeAI{}, fakeAI{}, m, cfg, nil, WithFetcher(f))
	if err != nil {
		t.Fatal(err)
	}
	return svc, f, m
}

// WHAT: a full first sweep produces one pending change per source and one
// admin alert, and a second sweep of identical content produces nothing.
func TestSweepLifecycle(t *testing.T) {
	svc, _, m := newTestService(t)
	ctx := context.Background()

	found, err := svc.RunSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if found != 1 {
		t.Fatalf("found = %d, want 1", found)
	}
	if m.count() != 1 {
		t.Fatalf("admin alerts = %d, want 1", m.count())
	}

	changes, err := svc.ListChanges(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("pending = %d", len(changes))
	}

	found, err = svc.RunSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if found != 0 {
		t.Fatalf("second sweep found = %d, want 0", found)
	}
}

// WHAT: a sweep keeps going past a broken source and still reports changes
// from the healthy ones.
func TestSweepSkipsFailingSource(t *testing.T) {
	svc, f, _ := newTestService(t)
	svc.config.Sources = []string{"https://dead.example.org/x", testSource}
	f.set(testSource, "v1")

	found, err := svc.RunSweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if found != 1 {
		t.Fatalf("found = %d, want 1", found)
	}
}

// WHAT: approve then dispatch carries a change through pending→approved→sent
// with per-recipient audit rows.
func TestApproveAndDispatch(t *testing.T) {
	svc, _, m := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RunSweep(ctx); err != nil {
		t.Fatal(err)
	}
	changes, _ := svc.ListChanges(ctx, StatusPending)
	id := changes[0].ID

	if _, _, err := svc.AddRecipient(ctx, "Ada", "ada@example.org", TypePatient, []string{"BRCA1"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.AddRecipient(ctx, "Dr. Okafor", "okafor@example.org", TypeClinician, nil); err != nil {
		t.Fatal(err)
	}

	out, err := svc.Approve(ctx, id, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied || out.Status != StatusApproved {
		t.Fatalf("outcome = %+v", out)
	}

	alerts := m.count() // admin alert from the sweep
	res, err := svc.Dispatch(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 2 || res.Failed != 0 {
		t.Fatalf("dispatch = %+v", res)
	}
	if got := m.count() - alerts; got != 2 {
		t.Fatalf("outreach emails = %d, want 2", got)
	}

	c, err := svc.GetChange(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != StatusSent || c.SentAt == nil {
		t.Fatalf("change = %+v", c)
	}

	msgs, err := svc.ListOutbound(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("audit rows = %d", len(msgs))
	}
	for _, msg := range msgs {
		if msg.Status != MessageSent {
			t.Fatalf("row = %+v", msg)
		}
		if strings.Contains(msg.Body, "[PATIENT_NAME]") || strings.Contains(msg.Body, "[CLINICIAN_NAME]") {
			t.Fatalf("unpersonalized body: %q", msg.Body)
		}
	}
}

// WHAT: when approve and reject race on one change, exactly one applies and
// the loser learns the winning status.
func TestApproveRejectRace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RunSweep(ctx); err != nil {
		t.Fatal(err)
	}
	changes, _ := svc.ListChanges(ctx, "")
	id := changes[0].ID

	approve, err := svc.Approve(ctx, id, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	reject, err := svc.Reject(ctx, id, "beta")
	if err != nil {
		t.Fatal(err)
	}
	if !approve.Applied {
		t.Fatal("first decision lost")
	}
	if reject.Applied {
		t.Fatal("both decisions applied")
	}
	if reject.Status != StatusApproved {
		t.Fatalf("loser sees status %s, want approved", reject.Status)
	}
}

// WHAT: dispatch refuses a change that is not approved with a precondition
// error, and an unknown change with not-found.
func TestDispatchPreconditionMapping(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RunSweep(ctx); err != nil {
		t.Fatal(err)
	}
	changes, _ := svc.ListChanges(ctx, "")
	id := changes[0].ID

	if _, err := svc.Dispatch(ctx, id); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("pending dispatch err = %v", err)
	}
	if _, err := svc.Dispatch(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown dispatch err = %v", err)
	}

	// Approved but nobody to send to.
	if _, err := svc.Approve(ctx, id, "admin"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Dispatch(ctx, id); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("empty roster err = %v", err)
	}
}

// WHAT: draft edits apply while pending and are refused afterwards.
func TestUpdateDrafts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RunSweep(ctx); err != nil {
		t.Fatal(err)
	}
	changes, _ := svc.ListChanges(ctx, "")
	id := changes[0].ID

	if err := svc.UpdateDrafts(ctx, id, "p2", "c2"); err != nil {
		t.Fatal(err)
	}
	c, _ := svc.GetChange(ctx, id)
	if c.PatientDraft != "p2" || c.ClinicianDraft != "c2" {
		t.Fatalf("drafts = %q %q", c.PatientDraft, c.ClinicianDraft)
	}

	if _, err := svc.Reject(ctx, id, "admin"); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdateDrafts(ctx, id, "p3", "c3"); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("post-review edit err = %v", err)
	}
	if err := svc.UpdateDrafts(ctx, "nope", "p", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown change err = %v", err)
	}
}

// WHAT: recipient registration validates its inputs and normalizes repeat
// adds to the existing row.
func TestAddRecipientValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.AddRecipient(ctx, "", "a@example.org", TypePatient, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty name err = %v", err)
	}
	if _, _, err := svc.AddRecipient(ctx, "Ada", "not-an-email", TypePatient, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad email err = %v", err)
	}
	if _, _, err := svc.AddRecipient(ctx, "Ada", "a@example.org", "robot", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad type err = %v", err)
	}

	first, created, err := svc.AddRecipient(ctx, "Ada", "a@example.org", TypePatient, []string{"BRCA1"})
	if err != nil || !created {
		t.Fatalf("first add: %v created=%v", err, created)
	}
	again, created, err := svc.AddRecipient(ctx, "Ada Again", "a@example.org", TypeClinician, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("repeat add: created=%v id=%s want %s", created, again.ID, first.ID)
	}
}

// WHAT: actor is mandatory on review decisions.
func TestResolveRequiresActor(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Approve(context.Background(), "x", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

// WHAT: a change's new snapshot is retrievable for the review view, and an
// unknown snapshot ID reads as not found.
func TestGetSnapshotForReview(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RunSweep(ctx); err != nil {
		t.Fatal(err)
	}
	changes, _ := svc.ListChanges(ctx, StatusPending)
	c := changes[0]

	snap, err := svc.GetSnapshot(ctx, c.NewSnapshotID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NormalizedText != "v1 guidance" || snap.CapturedAt == 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if _, err := svc.GetSnapshot(ctx, "no-such-snapshot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
