package core

import (
	"encoding/json"
	"io"

	"github.com/varalys/auditkit/internal/report"
)

// MarshalReport pretty-prints a report as JSON with a fingerprint id per
// finding.
func MarshalReport(w io.Writer, r Report) error { return report.WriteJSON(w, r) }

// UnmarshalReport decodes report JSON, useful for ingestion tests. Finding ids
// are recomputable from Finding.Fingerprint and are not kept.
func UnmarshalReport(r io.Reader) (Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return Report{}, err
	}
	return rep, nil
}
