package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/varalys/auditkit/internal/types"
)

// PrintOptions controls terminal output.
type PrintOptions struct {
	NoColor    bool
	Duration   time.Duration
	ReportPath string
}

var (
	sevHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	sevMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// ColorSeverity styles a severity label for terminals.
func ColorSeverity(s types.Severity, noColor bool) string {
	if noColor {
		return string(s)
	}
	switch s {
	case types.SevHigh:
		return sevHighStyle.Render(string(s))
	case types.SevMed:
		return sevMedStyle.Render(string(s))
	default:
		return sevLowStyle.Render(string(s))
	}
}

// PrintTable writes findings as a bordered table followed by a summary footer.
func PrintTable(w io.Writer, r types.AuditReport, opts PrintOptions) error {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No findings ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("Severity", "Category", "Title", "Location", "Source")
		for _, f := range r.Findings {
			title := f.Title
			if f.Runtime && !f.Passed {
				title += " (failed)"
			}
			if err := table.Append([]string{
				ColorSeverity(displaySeverity(f.Severity), opts.NoColor),
				string(f.Category),
				title,
				f.Location,
				f.Source,
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	counts := severityCounts(r)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d (high: %d, medium: %d, low: %d)\n",
		len(r.Findings), counts[types.SevHigh], counts[types.SevMed], counts[types.SevLow])
	if r.Stats.Testers > 0 {
		fmt.Fprintf(w, "Runtime checks: %d passed, %d failed\n", r.Stats.Passed, r.Stats.Failed)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Audit duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", opts.ReportPath)
	}
	return nil
}
