// Package ignore reads gitignore-style pattern files that exclude paths from
// static checks.
package ignore

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
)

// FileName is the ignore file looked up at the target root.
const FileName = ".auditkitignore"

// Matcher tests slash-separated relative paths against ignore patterns.
type Matcher struct {
	patterns []pattern
}

type pattern struct {
	glob   string
	dir    bool
	negate bool
}

// Parse reads patterns, one per line. Blank lines and "#" comments are
// skipped, a trailing "/" matches a directory and everything below it, and a
// leading "!" re-includes a previously ignored path.
func Parse(r io.Reader) (*Matcher, error) {
	m := &Matcher{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var p pattern
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dir = true
			line = strings.TrimSuffix(line, "/")
		}
		p.glob = strings.TrimPrefix(line, "/")
		if p.glob == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m, sc.Err()
}

// Load reads an ignore file from fsys. A missing file yields an empty matcher.
func Load(fsys fs.FS, name string) (*Matcher, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Matcher{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Len returns the number of patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Match reports whether rel is ignored. The last matching pattern wins.
func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "./")
	ignored := false
	for _, p := range m.patterns {
		if p.matches(rel) {
			ignored = !p.negate
		}
	}
	return ignored
}

func (p pattern) matches(rel string) bool {
	if p.dir {
		// any ancestor directory named by the pattern
		dir := path.Dir(rel)
		for dir != "." && dir != "/" {
			if globMatch(p.glob, dir) {
				return true
			}
			dir = path.Dir(dir)
		}
		return false
	}
	return globMatch(p.glob, rel)
}

// globMatch matches anchored patterns (containing "/") against the full path
// and bare patterns against every path suffix.
func globMatch(glob, rel string) bool {
	if strings.Contains(glob, "/") {
		ok, _ := doublestar.Match(glob, rel)
		return ok
	}
	if ok, _ := doublestar.Match(glob, path.Base(rel)); ok {
		return true
	}
	ok, _ := doublestar.Match("**/"+glob, rel)
	return ok
}
