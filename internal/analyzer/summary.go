package analyzer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/varalys/auditkit/internal/report"
	"github.com/varalys/auditkit/internal/types"
)

// DefaultLimit is how many representative findings a category lists.
const DefaultLimit = 5

// SummaryOptions controls how much detail a summary carries.
type SummaryOptions struct {
	// Limit caps the findings listed per category; <= 0 uses DefaultLimit.
	Limit int
	// CountOnly categories hold bulk, low-signal findings and are reported
	// as counts. Nil means imports.
	CountOnly []types.Category
}

func (o SummaryOptions) withDefaults() SummaryOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.CountOnly == nil {
		o.CountOnly = []types.Category{types.CatImports}
	}
	return o
}

// CategorySummary is the digest of one category.
type CategorySummary struct {
	Category   types.Category
	Count      int
	BySeverity map[types.Severity]int
	// Findings lists the first Limit findings in report order. It is empty
	// for count-only categories.
	Findings  []ParsedFinding
	CountOnly bool
}

// Summary is the categorized view of one report.
type Summary struct {
	Report        string
	FormatVersion string
	GeneratedAt   time.Time
	Total         int
	BySeverity    map[types.Severity]int
	Categories    []CategorySummary
	// Dropped counts findings whose category token is not known.
	Dropped  int
	Warnings []string
}

// Bucket groups parsed findings by known category, preserving report order.
// Findings with unknown categories are left out.
func Bucket(p Parsed) map[types.Category][]ParsedFinding {
	out := map[types.Category][]ParsedFinding{}
	for _, f := range p.Findings {
		c, ok := types.ParseCategory(f.Category)
		if !ok {
			continue
		}
		out[c] = append(out[c], f)
	}
	return out
}

// Summarize builds the categorized summary of a parsed report.
func Summarize(p Parsed, opts SummaryOptions) Summary {
	opts = opts.withDefaults()
	countOnly := map[types.Category]bool{}
	for _, c := range opts.CountOnly {
		countOnly[c] = true
	}

	s := Summary{
		FormatVersion: p.FormatVersion,
		GeneratedAt:   p.GeneratedAt,
		BySeverity:    map[types.Severity]int{},
	}
	if err := CheckFormat(p.FormatVersion); err != nil {
		s.Warnings = append(s.Warnings, err.Error())
	}

	buckets := Bucket(p)
	for _, f := range p.Findings {
		if _, ok := types.ParseCategory(f.Category); !ok {
			s.Dropped++
		}
	}
	for _, c := range types.Categories() {
		fs := buckets[c]
		if len(fs) == 0 {
			continue
		}
		cs := CategorySummary{
			Category:   c,
			Count:      len(fs),
			BySeverity: map[types.Severity]int{},
			CountOnly:  countOnly[c],
		}
		for _, f := range fs {
			cs.BySeverity[f.Severity]++
			s.BySeverity[f.Severity]++
		}
		if !cs.CountOnly {
			n := opts.Limit
			if n > len(fs) {
				n = len(fs)
			}
			cs.Findings = append([]ParsedFinding(nil), fs[:n]...)
		}
		s.Total += cs.Count
		s.Categories = append(s.Categories, cs)
	}
	return s
}

// PrintSummary writes a human-readable summary.
func PrintSummary(w io.Writer, s Summary, noColor bool) error {
	if s.Report != "" {
		fmt.Fprintf(w, "Audit report: %s\n", s.Report)
	}
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "Generated: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	fmt.Fprintf(w, "Findings: %d (high: %d, medium: %d, low: %d)\n",
		s.Total, s.BySeverity[types.SevHigh], s.BySeverity[types.SevMed], s.BySeverity[types.SevLow])
	if s.Dropped > 0 {
		fmt.Fprintf(w, "Skipped %d finding(s) with unrecognized categories\n", s.Dropped)
	}
	if len(s.Categories) == 0 {
		fmt.Fprintln(w, "No findings ✅")
		return nil
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Category", "High", "Medium", "Low", "Total")
	for _, cs := range s.Categories {
		if err := table.Append([]string{
			string(cs.Category),
			strconv.Itoa(cs.BySeverity[types.SevHigh]),
			strconv.Itoa(cs.BySeverity[types.SevMed]),
			strconv.Itoa(cs.BySeverity[types.SevLow]),
			strconv.Itoa(cs.Count),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	var counted []string
	for _, cs := range s.Categories {
		if cs.CountOnly {
			counted = append(counted, fmt.Sprintf("%s: %d", cs.Category, cs.Count))
			continue
		}
		fmt.Fprintf(w, "\n%s (%d)\n", strings.ToUpper(string(cs.Category)), cs.Count)
		for i, f := range cs.Findings {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, report.ColorSeverity(f.Severity, noColor), f.Title)
			fmt.Fprintf(w, "     Location: %s\n", f.Location)
			if f.Description != "" {
				fmt.Fprintf(w, "     %s\n", f.Description)
			}
		}
		if rest := cs.Count - len(cs.Findings); rest > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", rest)
		}
	}
	if len(counted) > 0 {
		fmt.Fprintf(w, "\nCount only: %s\n", strings.Join(counted, ", "))
	}
	return nil
}
