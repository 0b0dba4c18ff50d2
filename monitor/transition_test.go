package monitor

import (
	"testing"

	"github.com/guidewatch/guidewatch/monitor/internal/store"
)

// WHAT: the lifecycle admits exactly pending→{approved,rejected} and
// approved→sent; everything else, including any move out of a terminal
// state, is illegal.
func TestCanTransition(t *testing.T) {
	statuses := []string{store.StatusPending, store.StatusApproved, store.StatusRejected, store.StatusSent}
	legal := map[[2]string]bool{
		{store.StatusPending, store.StatusApproved}: true,
		{store.StatusPending, store.StatusRejected}: true,
		{store.StatusApproved, store.StatusSent}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := legal[[2]string{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// WHAT: unknown statuses never transition anywhere.
func TestCanTransitionUnknown(t *testing.T) {
	if CanTransition("draft", store.StatusApproved) {
		t.Fatal("unknown from-status allowed")
	}
	if CanTransition(store.StatusPending, "archived") {
		t.Fatal("unknown to-status allowed")
	}
}
