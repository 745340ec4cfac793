package analyzer

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/varalys/auditkit/internal/types"
)

// ParsedFinding is one finding block recovered from report text. Category
// holds the raw token, which may be outside the known enumeration.
type ParsedFinding struct {
	Severity    types.Severity
	Category    string
	Title       string
	Location    string
	Description string
	// Status is "PASS", "FAIL" or empty for static findings.
	Status  string
	Metrics map[string]float64
}

// Parsed is the structured content of one report.
type Parsed struct {
	FormatVersion string
	GeneratedAt   time.Time
	Findings      []ParsedFinding
}

var (
	headerRe      = regexp.MustCompile(`^###\s+(?:\S+\s+)?\[(HIGH|MEDIUM|LOW)\] ?(.*)$`)
	categoryRe    = regexp.MustCompile(`^\*\*Category:\*\* ?(.*)$`)
	locationRe    = regexp.MustCompile("^\\*\\*Location:\\*\\* ?(?:`(.*)`|(.*))$")
	descriptionRe = regexp.MustCompile(`^\*\*Description:\*\* ?(.*)$`)
	statusRe      = regexp.MustCompile(`^\*\*Status:\*\* ?(\S*)`)
	metricsRe     = regexp.MustCompile(`^\*\*Metrics:\*\* ?(.*)$`)
	generatedRe   = regexp.MustCompile(`^\*\*Generated:\*\* ?(\S+)`)
	formatRe      = regexp.MustCompile(`^<!--\s*auditkit-report-format:\s*(\S+)\s*-->`)
)

// block accumulates fields of the finding currently being read.
type block struct {
	f                            ParsedFinding
	hasCategory, hasLoc, hasDesc bool
	hasStatus, hasMetrics        bool
}

// Parse recovers finding blocks in a single pass. A block starts at a
// "### <icon> [SEVERITY] <title>" header and ends at the next header or
// section heading. Fields are taken from their marker lines regardless of
// order; blocks without a Category line are skipped.
func Parse(r io.Reader) (Parsed, error) {
	var p Parsed
	var cur *block
	flush := func() {
		if cur != nil && cur.hasCategory {
			p.Findings = append(p.Findings, cur.f)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")

		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &block{f: ParsedFinding{Severity: types.Severity(m[1]), Title: m[2]}}
			continue
		}
		if strings.HasPrefix(line, "#") {
			flush()
			continue
		}
		if cur == nil {
			if m := formatRe.FindStringSubmatch(line); m != nil && p.FormatVersion == "" {
				p.FormatVersion = m[1]
			} else if m := generatedRe.FindStringSubmatch(line); m != nil && p.GeneratedAt.IsZero() {
				if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
					p.GeneratedAt = t
				}
			}
			continue
		}
		cur.field(line)
	}
	if err := sc.Err(); err != nil {
		return p, err
	}
	flush()
	return p, nil
}

// ParseString parses report text held in memory.
func ParseString(s string) (Parsed, error) {
	return Parse(strings.NewReader(s))
}

// field applies one line to the block. The first occurrence of a marker wins.
func (b *block) field(line string) {
	switch {
	case !b.hasCategory && categoryRe.MatchString(line):
		b.f.Category = strings.TrimSpace(categoryRe.FindStringSubmatch(line)[1])
		b.hasCategory = true
	case !b.hasLoc && locationRe.MatchString(line):
		idx := locationRe.FindStringSubmatchIndex(line)
		if idx[2] >= 0 {
			b.f.Location = line[idx[2]:idx[3]]
		} else {
			b.f.Location = strings.TrimSpace(line[idx[4]:idx[5]])
		}
		b.hasLoc = true
	case !b.hasDesc && descriptionRe.MatchString(line):
		b.f.Description = descriptionRe.FindStringSubmatch(line)[1]
		b.hasDesc = true
	case !b.hasStatus && statusRe.MatchString(line):
		b.f.Status = strings.ToUpper(statusRe.FindStringSubmatch(line)[1])
		b.hasStatus = true
	case !b.hasMetrics && metricsRe.MatchString(line):
		b.f.Metrics = parseMetrics(metricsRe.FindStringSubmatch(line)[1])
		b.hasMetrics = true
	}
}

func parseMetrics(s string) map[string]float64 {
	out := map[string]float64{}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			continue
		}
		out[k] = f
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
