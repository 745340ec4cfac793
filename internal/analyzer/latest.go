package analyzer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/varalys/auditkit/internal/report"
)

// DefaultPattern matches report artifacts written by the renderer.
const DefaultPattern = report.FilePrefix + "*"

// ErrNoReport is matched (via errors.Is) by every NotFoundError.
var ErrNoReport = errors.New("no report found")

// NotFoundError reports that a directory holds no report artifact.
type NotFoundError struct {
	Dir     string
	Pattern string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no report found: no file matching %q in %s", e.Pattern, e.Dir)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNoReport }

// FindLatest returns the lexicographically last regular file in dir whose
// name matches pattern (DefaultPattern when empty). A missing directory or no
// match yields a *NotFoundError.
func FindLatest(dir, pattern string) (string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("invalid report pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NotFoundError{Dir: dir, Pattern: pattern}
		}
		return "", fmt.Errorf("read report dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", &NotFoundError{Dir: dir, Pattern: pattern}
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// AnalyzeDir parses the latest report in dir and summarizes it.
func AnalyzeDir(dir string, opts SummaryOptions) (Summary, error) {
	p, err := FindLatest(dir, "")
	if err != nil {
		return Summary{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return Summary{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	parsed, err := Parse(f)
	if err != nil {
		return Summary{}, fmt.Errorf("read report %s: %w", p, err)
	}
	s := Summarize(parsed, opts)
	s.Report = p
	return s, nil
}
