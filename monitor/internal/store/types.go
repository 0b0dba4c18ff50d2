package store

// Change lifecycle states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusSent     = "sent"
)

// Outbound message delivery states.
const (
	MessagePending = "pending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
)

// Recipient audience types.
const (
	TypePatient   = "patient"
	TypeClinician = "clinician"
)

// Snapshot is the full normalized text of one source at one point in time.
// Immutable once created.
type Snapshot struct {
	ID             string `json:"id"`
	SourceURL      string `json:"source_url"`
	ContentHash    string `json:"content_hash"`
	NormalizedText string `json:"normalized_text"`
	CapturedAt     int64  `json:"captured_at"`
}

// Change is a detected difference between two snapshots, carrying the AI
// summary, both audience drafts, and the approval lifecycle.
type Change struct {
	ID             string  `json:"id"`
	SourceURL      string  `json:"source_url"`
	OldSnapshotID  *string `json:"old_snapshot_id,omitempty"` // nil on first capture
	NewSnapshotID  string  `json:"new_snapshot_id"`
	DiffText       string  `json:"diff_text"`
	AISummary      string  `json:"ai_summary"`
	PatientDraft   string  `json:"patient_draft"`
	ClinicianDraft string  `json:"clinician_draft"`
	Status         string  `json:"status"`
	DetectedAt     int64   `json:"detected_at"`
	ApprovedAt     *int64  `json:"approved_at,omitempty"`
	ApprovedBy     *string `json:"approved_by,omitempty"`
	SentAt         *int64  `json:"sent_at,omitempty"`
}

// Recipient is a patient or clinician on the outreach roster.
// Soft-deactivated, never deleted, to preserve audit linkage.
type Recipient struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Type           string `json:"type"`
	ConditionsJSON string `json:"relevant_conditions"` // JSON array of condition tags
	Active         bool   `json:"active"`
	CreatedAt      int64  `json:"created_at"`
}

// OutboundMessage is the audit record of one delivery attempt to one
// recipient for one change. Written in pending state before the send attempt;
// exactly one terminal write afterwards.
type OutboundMessage struct {
	ID          string `json:"id"`
	ChangeID    string `json:"change_id"`
	RecipientID string `json:"recipient_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Status      string `json:"status"`
	SentAt      *int64 `json:"sent_at,omitempty"`
	Error       string `json:"error"`
	CreatedAt   int64  `json:"created_at"`
}
