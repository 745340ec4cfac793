package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/varalys/auditkit/internal/types"
)

// FilePrefix starts every report artifact name. Names sort chronologically.
const FilePrefix = "audit_report_"

// maxSameSecond bounds the artifacts written for a single timestamp.
const maxSameSecond = 999

// FileName returns the artifact name for a report generated at t.
func FileName(t time.Time) string {
	return FilePrefix + t.UTC().Format("20060102_150405") + ".md"
}

// sequencedName returns the name of the n-th extra artifact for t. It sorts
// after FileName(t) and before any later second.
func sequencedName(t time.Time, n int) string {
	return strings.TrimSuffix(FileName(t), ".md") + fmt.Sprintf("_%03d.md", n)
}

// WriteFile renders r into dir and returns the written path. dir is created
// when missing. An existing artifact is never overwritten; a report generated
// in the same second as an earlier one gets a numeric suffix.
func WriteFile(dir string, r types.AuditReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	body := []byte(RenderString(r))
	name := FileName(r.GeneratedAt)
	for n := 1; ; n++ {
		p := filepath.Join(dir, name)
		err := writeNew(p, body)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("write report: %w", err)
		}
		if n > maxSameSecond {
			return "", fmt.Errorf("write report: too many reports for %s", FileName(r.GeneratedAt))
		}
		name = sequencedName(r.GeneratedAt, n)
	}
}

func writeNew(p string, body []byte) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
