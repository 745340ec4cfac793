package checker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/varalys/auditkit/internal/ignore"
)

// Target is a read-only handle to the codebase under audit.
type Target struct {
	// Root is the display path of the codebase (absolute when built from disk).
	Root string
	// FS serves the files; paths are slash-separated and relative to Root.
	FS fs.FS

	IncludeGlobs    string
	ExcludeGlobs    string
	MaxBytes        int64
	DefaultExcludes bool
	// Ignore holds patterns from the target's .auditkitignore, if any.
	Ignore *ignore.Matcher
}

// NewTarget opens a directory on disk as a read-only target.
func NewTarget(root string) (*Target, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, errors.New("target is not a directory: " + root)
	}
	fsys := os.DirFS(abs)
	ig, err := ignore.Load(fsys, ignore.FileName)
	if err != nil {
		return nil, err
	}
	return &Target{Root: abs, FS: fsys, MaxBytes: 1 << 20, DefaultExcludes: true, Ignore: ig}, nil
}

// ReadFile reads a file from the target.
func (t *Target) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(t.FS, name)
}

// Walk invokes handle for every eligible file, honoring include/exclude globs,
// the size limit and default excludes. A walk error on one entry is passed to
// handle with nil data so checkers can record it and move on. Walk stops early
// when ctx is done.
func (t *Target) Walk(ctx context.Context, handle func(rel string, err error)) error {
	if t == nil || t.FS == nil {
		return errors.New("target has no filesystem")
	}
	return fs.WalkDir(t.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p != "." {
				handle(p, err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != "." && t.DefaultExcludes && isDefaultDirExcluded(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !t.Allowed(p) || t.Ignore.Match(p) {
			return nil
		}
		if t.DefaultExcludes && isDefaultFileExcluded(strings.ToLower(p)) {
			return nil
		}
		if t.MaxBytes > 0 {
			if info, ierr := d.Info(); ierr == nil && info.Size() > t.MaxBytes {
				return nil
			}
		}
		handle(p, nil)
		return nil
	})
}

// Allowed returns true if rel passes the include/exclude configuration.
// Include globs, if provided, act as a positive filter; exclude globs are
// subtracted last.
func (t *Target) Allowed(rel string) bool {
	rp := strings.ReplaceAll(rel, "\\", "/")
	includes := parseGlobsList(t.IncludeGlobs)
	excludes := parseGlobsList(t.ExcludeGlobs)
	if len(includes) > 0 && !matchAnyGlob(rp, includes) {
		return false
	}
	if len(excludes) > 0 && matchAnyGlob(rp, excludes) {
		return false
	}
	return true
}

func parseGlobsList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p, trimGlobPrefix(p))
		}
	}
	return out
}

func matchAnyGlob(p string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, path.Base(p)); ok {
			return true
		}
	}
	return false
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}
