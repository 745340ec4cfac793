package report

import (
	"strings"

	"github.com/varalys/auditkit/internal/types"
)

// ShouldFail reports whether any finding is at or above failOn
// (low|medium|high). Unknown thresholds default to medium; "none" never
// fails. Passing runtime results never trigger a failure.
func ShouldFail(findings []types.Finding, failOn string) bool {
	if strings.EqualFold(failOn, "none") {
		return false
	}
	th, ok := types.ParseSeverity(failOn)
	if !ok {
		th = types.SevMed
	}
	for _, f := range findings {
		if f.Runtime && f.Passed {
			continue
		}
		if f.Severity.Rank() >= th.Rank() {
			return true
		}
	}
	return false
}
