package types

import (
	"strings"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
)

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SevHigh Severity = "HIGH"
	SevMed  Severity = "MEDIUM"
	SevLow  Severity = "LOW"
)

// Severities returns the severity levels from highest to lowest.
func Severities() []Severity { return []Severity{SevHigh, SevMed, SevLow} }

// Rank orders severities: HIGH=3, MEDIUM=2, LOW=1. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SevHigh:
		return 3
	case SevMed:
		return 2
	case SevLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// Icon is the marker rendered in front of severity headers.
func (s Severity) Icon() string {
	switch s {
	case SevHigh:
		return "🟠"
	case SevMed:
		return "🟡"
	default:
		return "🟢"
	}
}

// ParseSeverity maps a case-insensitive token to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH":
		return SevHigh, true
	case "MEDIUM", "MED":
		return SevMed, true
	case "LOW":
		return SevLow, true
	}
	return "", false
}

// Category is the audit domain a finding belongs to.
type Category string

const (
	CatImports   Category = "imports"
	CatSchema    Category = "schema"
	CatAPI       Category = "api"
	CatMemory    Category = "memory"
	CatRetrieval Category = "retrieval"
	CatLearning  Category = "learning"
	CatFrontend  Category = "frontend"
	CatConfig    Category = "config"
)

var categoryOrder = []Category{
	CatImports, CatSchema, CatAPI, CatMemory, CatRetrieval, CatLearning, CatFrontend, CatConfig,
}

// Categories returns the fixed category enumeration in report order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Index returns the position of c in the enumeration, or -1 if unknown.
func (c Category) Index() int {
	for i, k := range categoryOrder {
		if k == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c belongs to the enumeration.
func (c Category) Valid() bool { return c.Index() >= 0 }

// ParseCategory maps a token to a known Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Issue is a static finding produced by a checker. Text fields may be empty
// but are always present.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
}

// TestResult is a runtime finding produced by a tester.
type TestResult struct {
	Issue
	Passed  bool               `json:"passed"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Finding is a single report entry: a static Issue or a runtime TestResult,
// tagged with the plugin that produced it.
type Finding struct {
	Issue
	Source    string             `json:"source,omitempty"`
	Runtime   bool               `json:"runtime,omitempty"`
	Passed    bool               `json:"passed,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Synthetic bool               `json:"synthetic,omitempty"`
}

// FromIssue wraps a checker Issue.
func FromIssue(source string, is Issue) Finding {
	return Finding{Issue: is, Source: source}
}

// FromTestResult wraps a tester TestResult.
func FromTestResult(source string, tr TestResult) Finding {
	return Finding{
		Issue:   tr.Issue,
		Source:  source,
		Runtime: true,
		Passed:  tr.Passed,
		Metrics: tr.Metrics,
	}
}

// Key identifies findings that describe the same defect.
type Key struct {
	Category Category
	Location string
	Title    string
}

// Key returns the (category, location, title) tuple used for deduplication.
func (f Finding) Key() Key {
	return Key{Category: f.Category, Location: f.Location, Title: f.Title}
}

// Fingerprint is a stable 16-char hex digest of the finding key.
func (f Finding) Fingerprint() string {
	k := f.Key()
	sum := xxhash.Sum64String(string(k.Category) + "\x00" + k.Location + "\x00" + k.Title)
	var buf [16]byte
	const hex = "0123456789abcdef"
	for i := 15; i >= 0; i-- {
		buf[i] = hex[sum&0xF]
		sum >>= 4
	}
	return string(buf[:])
}

// Target describes the codebase an audit ran against.
type Target struct {
	Root   string `json:"root"`
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Stats summarizes one audit run.
type Stats struct {
	Checkers     int           `json:"checkers"`
	Testers      int           `json:"testers"`
	Passed       int           `json:"passed"`
	Failed       int           `json:"failed"`
	Deduplicated int           `json:"deduplicated"`
	Duration     time.Duration `json:"duration"`
}

// AuditReport is the ordered, deduplicated aggregate of one audit run. It is
// never mutated after the engine returns it.
type AuditReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Target      Target    `json:"target"`
	Findings    []Finding `json:"findings"`
	Stats       Stats     `json:"stats"`
}

// CountBySeverity tallies findings per severity.
func (r AuditReport) CountBySeverity() map[Severity]int {
	out := map[Severity]int{}
	for _, f := range r.Findings {
		out[f.Severity]++
	}
	return out
}
