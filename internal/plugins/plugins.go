// Package plugins holds the registry of built-in checkers and testers in the
// order the engine runs them.
package plugins

import (
	"go.uber.org/zap"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/checker/configcheck"
	"github.com/varalys/auditkit/internal/engine"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/tester/httpprobe"
	"github.com/varalys/auditkit/internal/types"
)

// Kind distinguishes static checkers from runtime testers.
type Kind string

const (
	KindChecker Kind = "checker"
	KindTester  Kind = "tester"
)

// Info describes one registered plugin.
type Info struct {
	Name     string
	Kind     Kind
	Category types.Category
	ReadOnly bool
}

// Options configure the built-in plugins.
type Options struct {
	Log *zap.Logger
	// Tester applies to every built-in tester.
	Tester tester.Config
}

// Builtin returns the registered checkers and testers.
func Builtin(opts Options) ([]checker.Checker, []engine.TesterEntry) {
	checkers := []checker.Checker{
		configcheck.New(opts.Log),
	}
	testers := []engine.TesterEntry{
		{Tester: httpprobe.New(opts.Log), Config: opts.Tester},
	}
	return checkers, testers
}

// Describe lists plugins in registration order.
func Describe(checkers []checker.Checker, testers []engine.TesterEntry) []Info {
	out := make([]Info, 0, len(checkers)+len(testers))
	for _, c := range checkers {
		out = append(out, Info{Name: c.Name(), Kind: KindChecker, Category: c.Category(), ReadOnly: true})
	}
	for _, t := range testers {
		out = append(out, Info{Name: t.Tester.Name(), Kind: KindTester, Category: t.Tester.Category(), ReadOnly: tester.IsReadOnly(t.Tester)})
	}
	return out
}

// Names returns the names of all built-in plugins.
func Names() []string {
	cs, ts := Builtin(Options{})
	var out []string
	for _, i := range Describe(cs, ts) {
		out = append(out, i.Name)
	}
	return out
}
