package report

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/varalys/auditkit/internal/types"
)

// FormatVersion is embedded in every rendered report so readers can detect
// grammar changes.
const FormatVersion = "1.0.0"

// FormatMarker prefixes the version comment in the report preamble.
const FormatMarker = "<!-- auditkit-report-format:"

// Field markers of a finding block. Each sits at the start of its own line.
const (
	CategoryMarker    = "**Category:**"
	LocationMarker    = "**Location:**"
	DescriptionMarker = "**Description:**"
	StatusMarker      = "**Status:**"
	MetricsMarker     = "**Metrics:**"
	GeneratedMarker   = "**Generated:**"
)

// Render writes r as a Markdown report. Output depends only on r, so
// rendering the same report twice yields identical bytes.
func Render(w io.Writer, r types.AuditReport) error {
	_, err := io.WriteString(w, RenderString(r))
	return err
}

// RenderString returns the rendered report.
func RenderString(r types.AuditReport) string {
	var b strings.Builder
	b.WriteString("# Audit Report\n\n")
	b.WriteString(FormatMarker + " " + FormatVersion + " -->\n\n")
	b.WriteString(GeneratedMarker + " " + r.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	if r.Target.Root != "" {
		b.WriteString("**Target:** `" + oneLine(r.Target.Root) + "`")
		var meta []string
		if r.Target.Branch != "" {
			meta = append(meta, "branch "+r.Target.Branch)
		}
		if r.Target.Commit != "" {
			c := r.Target.Commit
			if len(c) > 12 {
				c = c[:12]
			}
			meta = append(meta, "commit "+c)
		}
		if len(meta) > 0 {
			b.WriteString(" (" + strings.Join(meta, ", ") + ")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Summary\n\n")
	counts := severityCounts(r)
	b.WriteString("| Severity | Findings |\n|----------|----------|\n")
	for _, s := range types.Severities() {
		b.WriteString("| " + s.Icon() + " " + string(s) + " | " + strconv.Itoa(counts[s]) + " |\n")
	}
	b.WriteString("\nCheckers: " + strconv.Itoa(r.Stats.Checkers) +
		", testers: " + strconv.Itoa(r.Stats.Testers) +
		" (passed: " + strconv.Itoa(r.Stats.Passed) +
		", failed: " + strconv.Itoa(r.Stats.Failed) + ")" +
		", duplicates merged: " + strconv.Itoa(r.Stats.Deduplicated) + "\n")

	if len(r.Findings) == 0 {
		b.WriteString("\nNo findings.\n")
		return b.String()
	}

	for _, s := range types.Severities() {
		if counts[s] == 0 {
			continue
		}
		b.WriteString("\n## " + s.Icon() + " " + string(s) + "\n")
		for _, f := range r.Findings {
			if displaySeverity(f.Severity) != s {
				continue
			}
			b.WriteString("\n")
			writeBlock(&b, f)
		}
	}
	return b.String()
}

// displaySeverity maps a severity onto one the report grammar can carry.
// Unrecognized values render as LOW.
func displaySeverity(s types.Severity) types.Severity {
	if s.Valid() {
		return s
	}
	if p, ok := types.ParseSeverity(string(s)); ok {
		return p
	}
	return types.SevLow
}

// severityCounts tallies findings by their displayed severity.
func severityCounts(r types.AuditReport) map[types.Severity]int {
	out := map[types.Severity]int{}
	for _, f := range r.Findings {
		out[displaySeverity(f.Severity)]++
	}
	return out
}

func writeBlock(b *strings.Builder, f types.Finding) {
	sev := displaySeverity(f.Severity)
	b.WriteString("### " + sev.Icon() + " [" + string(sev) + "] " + oneLine(f.Title) + "\n")
	b.WriteString(CategoryMarker + " " + string(f.Category) + "\n")
	b.WriteString(LocationMarker + " `" + oneLine(f.Location) + "`\n")
	b.WriteString(DescriptionMarker + " " + oneLine(f.Description) + "\n")
	if !f.Runtime {
		return
	}
	status := "FAIL"
	if f.Passed {
		status = "PASS"
	}
	b.WriteString(StatusMarker + " " + status + "\n")
	if len(f.Metrics) > 0 {
		b.WriteString(MetricsMarker + " " + FormatMetrics(f.Metrics) + "\n")
	}
}

// FormatMetrics renders metrics as "k=v, k=v" with keys sorted.
func FormatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(m[k], 'g', -1, 64)
	}
	return strings.Join(parts, ", ")
}

var lineFolder = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// oneLine folds line breaks so every field stays on its marker line.
func oneLine(s string) string { return lineFolder.Replace(s) }
