package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/git"
	"github.com/varalys/auditkit/internal/logging"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/types"
)

// DefaultTesterTimeout bounds a tester invocation when neither the engine nor
// the tester config sets a timeout.
const DefaultTesterTimeout = 30 * time.Second

// Override adjusts a registered plugin by name.
type Override struct {
	Disabled bool
	// Severity, when set, replaces the severity of the plugin's own findings.
	// Synthetic failure findings keep their severity.
	Severity types.Severity
}

// Config controls orchestration behavior.
type Config struct {
	Threads       int
	TesterTimeout time.Duration
	IncludePassed bool
	Overrides     map[string]Override
	Logger        *zap.Logger
	Now           func() time.Time
}

// TesterEntry pairs a tester with its configuration.
type TesterEntry struct {
	Tester tester.Tester
	Config tester.Config
}

// Engine runs a fixed, ordered set of plugins supplied at construction.
type Engine struct {
	cfg      Config
	log      *zap.Logger
	checkers []checker.Checker
	testers  []TesterEntry
}

// New builds an engine. Plugins disabled through cfg.Overrides are left out.
func New(cfg Config, checkers []checker.Checker, testers []TesterEntry) *Engine {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	if cfg.TesterTimeout <= 0 {
		cfg.TesterTimeout = DefaultTesterTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := logging.OrNop(cfg.Logger)
	e := &Engine{cfg: cfg, log: log}
	for _, c := range checkers {
		if cfg.Overrides[c.Name()].Disabled {
			log.Debug("plugin disabled", zap.String("plugin", c.Name()))
			continue
		}
		e.checkers = append(e.checkers, c)
	}
	for _, t := range testers {
		if cfg.Overrides[t.Tester.Name()].Disabled {
			log.Debug("plugin disabled", zap.String("plugin", t.Tester.Name()))
			continue
		}
		e.testers = append(e.testers, t)
	}
	return e
}

// Checkers returns the active checkers in registration order.
func (e *Engine) Checkers() []checker.Checker { return append([]checker.Checker(nil), e.checkers...) }

// Testers returns the active testers in registration order.
func (e *Engine) Testers() []TesterEntry { return append([]TesterEntry(nil), e.testers...) }

// Run executes every checker against target and every tester against sys,
// then merges the results. Plugin failures never abort the run; they are
// reported as findings.
func (e *Engine) Run(ctx context.Context, target *checker.Target, sys tester.System) types.AuditReport {
	started := time.Now()
	report := types.AuditReport{
		GeneratedAt: e.cfg.Now().UTC().Truncate(time.Second),
		Stats: types.Stats{
			Checkers: len(e.checkers),
			Testers:  len(e.testers),
		},
	}
	if target != nil {
		report.Target.Root = target.Root
		if target.Root != "" {
			_, report.Target.Commit, report.Target.Branch = git.RepoMetadata(target.Root)
		}
	}

	var all []types.Finding
	for _, fs := range e.runCheckers(ctx, target) {
		all = append(all, fs...)
	}
	for _, fs := range e.runTesters(ctx, sys) {
		all = append(all, fs...)
	}

	// Runtime outcomes are counted after deduplication.
	merged, dropped := Merge(all)
	kept := merged[:0]
	for _, f := range merged {
		if f.Runtime {
			if f.Passed {
				report.Stats.Passed++
				if !e.cfg.IncludePassed {
					continue
				}
			} else {
				report.Stats.Failed++
			}
		}
		kept = append(kept, f)
	}
	report.Findings = kept
	report.Stats.Deduplicated = dropped
	report.Stats.Duration = time.Since(started)
	e.log.Debug("audit finished",
		zap.Int("findings", len(kept)),
		zap.Int("deduplicated", dropped),
		zap.Duration("duration", report.Stats.Duration))
	return report
}

// runCheckers runs checkers in parallel, bounded by cfg.Threads. Each checker
// writes only its own slot; the caller reads them after Wait.
func (e *Engine) runCheckers(ctx context.Context, target *checker.Target) [][]types.Finding {
	out := make([][]types.Finding, len(e.checkers))
	var g errgroup.Group
	g.SetLimit(e.cfg.Threads)
	for i, c := range e.checkers {
		g.Go(func() error {
			out[i] = e.runChecker(ctx, c, target)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) runChecker(ctx context.Context, c checker.Checker, target *checker.Target) (found []types.Finding) {
	name, cat := c.Name(), c.Category()
	if err := ctx.Err(); err != nil {
		return []types.Finding{e.failure(name, cat, false, fmt.Errorf("not run: %w", err))}
	}
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			found = append(found, e.failure(name, cat, false, fmt.Errorf("panic: %v", r)))
		}
	}()

	issues, err := c.Run(ctx, target)
	for _, is := range issues {
		found = append(found, e.normalize(name, cat, types.FromIssue(name, is)))
	}
	if err != nil {
		found = append(found, e.failure(name, cat, false, err))
	}
	e.log.Debug("checker finished",
		zap.String("plugin", name),
		zap.Int("findings", len(found)),
		zap.Duration("duration", time.Since(started)))
	return found
}

// runTesters runs mutating testers one at a time in registration order, then
// the read-only testers concurrently.
func (e *Engine) runTesters(ctx context.Context, sys tester.System) [][]types.Finding {
	out := make([][]types.Finding, len(e.testers))
	var readOnly []int
	for i, te := range e.testers {
		if tester.IsReadOnly(te.Tester) {
			readOnly = append(readOnly, i)
			continue
		}
		out[i] = e.runTester(ctx, te, sys)
	}
	var g errgroup.Group
	g.SetLimit(e.cfg.Threads)
	for _, i := range readOnly {
		g.Go(func() error {
			out[i] = e.runTester(ctx, e.testers[i], sys)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type testerOutcome struct {
	results []types.TestResult
	err     error
}

// runTester invokes one tester under its own deadline. The engine stops
// waiting when the deadline passes; a tester that ignores cancellation is
// abandoned and its late output discarded.
func (e *Engine) runTester(ctx context.Context, te TesterEntry, sys tester.System) []types.Finding {
	t := te.Tester
	name, cat := t.Name(), pluginCategory(t.Category())
	timeout := te.Config.Timeout
	if timeout <= 0 {
		timeout = e.cfg.TesterTimeout
	}
	if err := ctx.Err(); err != nil {
		return []types.Finding{types.FromTestResult(name, tester.TimeoutResult(name, cat, timeout, err))}
	}

	started := time.Now()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan testerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- testerOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		rs, err := t.Run(tctx, sys, te.Config)
		done <- testerOutcome{results: rs, err: err}
	}()

	var found []types.Finding
	select {
	case o := <-done:
		if o.err != nil && tctx.Err() != nil && errors.Is(o.err, tctx.Err()) {
			e.log.Warn("tester timed out", zap.String("plugin", name), zap.Duration("timeout", timeout))
			return []types.Finding{types.FromTestResult(name, tester.TimeoutResult(name, cat, timeout, tctx.Err()))}
		}
		for _, r := range o.results {
			found = append(found, e.normalize(name, cat, types.FromTestResult(name, r)))
		}
		if o.err != nil {
			found = append(found, e.failure(name, cat, true, o.err))
		}
	case <-tctx.Done():
		e.log.Warn("tester timed out", zap.String("plugin", name), zap.Duration("timeout", timeout))
		return []types.Finding{types.FromTestResult(name, tester.TimeoutResult(name, cat, timeout, tctx.Err()))}
	}
	e.log.Debug("tester finished",
		zap.String("plugin", name),
		zap.Int("results", len(found)),
		zap.Duration("duration", time.Since(started)))
	return found
}

// failure is the synthetic HIGH finding recorded when a plugin cannot run.
func (e *Engine) failure(name string, cat types.Category, isRuntime bool, err error) types.Finding {
	cat = pluginCategory(cat)
	kind := "Checker"
	if isRuntime {
		kind = "Tester"
	}
	e.log.Warn("plugin failed", zap.String("plugin", name), zap.String("kind", kind), zap.Error(err))
	return types.Finding{
		Issue: types.Issue{
			Severity:    types.SevHigh,
			Category:    cat,
			Title:       kind + " failed: " + name,
			Location:    name,
			Description: err.Error(),
		},
		Source:    name,
		Runtime:   isRuntime,
		Synthetic: true,
	}
}

// normalize enforces the model invariants on plugin output and applies
// severity overrides.
func (e *Engine) normalize(name string, cat types.Category, f types.Finding) types.Finding {
	if !f.Severity.Valid() {
		if s, ok := types.ParseSeverity(string(f.Severity)); ok {
			f.Severity = s
		} else {
			e.log.Warn("invalid severity coerced to LOW", zap.String("plugin", name), zap.String("severity", string(f.Severity)))
			f.Severity = types.SevLow
		}
	}
	if !f.Category.Valid() {
		if c, ok := types.ParseCategory(string(f.Category)); ok {
			f.Category = c
		} else {
			cat = pluginCategory(cat)
			e.log.Warn("invalid category replaced", zap.String("plugin", name), zap.String("category", string(f.Category)))
			f.Category = cat
		}
	}
	if ov, ok := e.cfg.Overrides[name]; ok && ov.Severity.Valid() {
		f.Severity = ov.Severity
	}
	return f
}

// pluginCategory is the category used for findings attributed to a plugin as
// a whole. Plugins declaring no valid category report under config.
func pluginCategory(cat types.Category) types.Category {
	if cat.Valid() {
		return cat
	}
	return types.CatConfig
}
