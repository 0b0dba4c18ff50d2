package monitor

import (
	"github.com/guidewatch/guidewatch/monitor/internal/dispatch"
	"github.com/guidewatch/guidewatch/monitor/internal/store"
)

// Re-exported internal types; callers outside the package see these.
type (
	Snapshot        = store.Snapshot
	Change          = store.Change
	Recipient       = store.Recipient
	OutboundMessage = store.OutboundMessage
	DispatchResult  = dispatch.Result
)

// Change lifecycle states.
const (
	StatusPending  = store.StatusPending
	StatusApproved = store.StatusApproved
	StatusRejected = store.StatusRejected
	StatusSent     = store.StatusSent
)

// Recipient audience types.
const (
	TypePatient   = store.TypePatient
	TypeClinician = store.TypeClinician
)

// Outbound message delivery states.
const (
	MessagePending = store.MessagePending
	MessageSent    = store.MessageSent
	MessageFailed  = store.MessageFailed
)
