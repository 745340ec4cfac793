package core

import (
	"context"
	"io"

	"github.com/varalys/auditkit/internal/analyzer"
	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/engine"
	"github.com/varalys/auditkit/internal/plugins"
	"github.com/varalys/auditkit/internal/report"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Config          = engine.Config
	Override        = engine.Override
	TesterEntry     = engine.TesterEntry
	Checker         = checker.Checker
	Target          = checker.Target
	Tester          = tester.Tester
	TesterConfig    = tester.Config
	System          = tester.System
	Issue           = types.Issue
	TestResult      = types.TestResult
	Finding         = types.Finding
	Report          = types.AuditReport
	Severity        = types.Severity
	Category        = types.Category
	Parsed          = analyzer.Parsed
	ParsedFinding   = analyzer.ParsedFinding
	Summary         = analyzer.Summary
	SummaryOptions  = analyzer.SummaryOptions
	CategorySummary = analyzer.CategorySummary
)

// ErrNoReport is matched by errors from AnalyzeDir when no report exists.
var ErrNoReport = analyzer.ErrNoReport

// NewTarget opens a directory as an audit target.
func NewTarget(root string) (*Target, error) { return checker.NewTarget(root) }

// Run audits target and sys with the given plugins.
func Run(ctx context.Context, cfg Config, checkers []Checker, testers []TesterEntry, target *Target, sys System) Report {
	return engine.New(cfg, checkers, testers).Run(ctx, target, sys)
}

// RunBuiltin audits target and sys with the built-in plugins.
func RunBuiltin(ctx context.Context, cfg Config, tcfg TesterConfig, target *Target, sys System) Report {
	cs, ts := plugins.Builtin(plugins.Options{Log: cfg.Logger, Tester: tcfg})
	return Run(ctx, cfg, cs, ts, target, sys)
}

// Render writes the Markdown report.
func Render(w io.Writer, r Report) error { return report.Render(w, r) }

// WriteReport writes the Markdown report artifact into dir and returns its path.
func WriteReport(dir string, r Report) (string, error) { return report.WriteFile(dir, r) }

// Parse recovers findings from Markdown report text.
func Parse(r io.Reader) (Parsed, error) { return analyzer.Parse(r) }

// Summarize builds the categorized view of a parsed report.
func Summarize(p Parsed, opts SummaryOptions) Summary { return analyzer.Summarize(p, opts) }

// AnalyzeDir summarizes the latest report artifact in dir.
func AnalyzeDir(dir string, opts SummaryOptions) (Summary, error) {
	return analyzer.AnalyzeDir(dir, opts)
}

// PluginNames returns the names of the built-in plugins.
func PluginNames() []string { return plugins.Names() }
