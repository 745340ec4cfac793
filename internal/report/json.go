package report

import (
	"encoding/json"
	"io"

	"github.com/varalys/auditkit/internal/types"
)

type jsonFinding struct {
	ID string `json:"id"`
	types.Finding
}

type jsonReport struct {
	types.AuditReport
	Findings []jsonFinding `json:"findings"`
}

// WriteJSON pretty-prints the report with a fingerprint id per finding.
func WriteJSON(w io.Writer, r types.AuditReport) error {
	out := jsonReport{AuditReport: r, Findings: make([]jsonFinding, 0, len(r.Findings))}
	for _, f := range r.Findings {
		out.Findings = append(out.Findings, jsonFinding{ID: f.Fingerprint(), Finding: f})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
