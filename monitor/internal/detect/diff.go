// Package detect decides whether a monitored page changed and records the
// change with its diff, AI summary, and outreach drafts.
package detect

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders a unified diff between two normalized page texts with
// three lines of context. Empty when the texts are identical.
func UnifiedDiff(oldText, newText string) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("unified diff: %w", err)
	}
	return text, nil
}
