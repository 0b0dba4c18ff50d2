package monitor

import "github.com/guidewatch/guidewatch/monitor/internal/store"

// The approval lifecycle is a one-way machine:
//
//	pending ──approve──▶ approved ──dispatch──▶ sent
//	   └─────reject────▶ rejected
//
// approved, rejected, and sent never transition backwards; rejected and sent
// are terminal.
var legalTransitions = map[string]map[string]bool{
	store.StatusPending: {
		store.StatusApproved: true,
		store.StatusRejected: true,
	},
	store.StatusApproved: {
		store.StatusSent: true,
	},
}

// CanTransition reports whether moving a change from one status to another
// is legal.
func CanTransition(from, to string) bool {
	return legalTransitions[from][to]
}

// ReviewOutcome reports the result of an approve or reject call. When
// Applied is false the change had already left pending; Status carries the
// state that won.
type ReviewOutcome struct {
	Applied bool   `json:"applied"`
	Status  string `json:"status"`
}
