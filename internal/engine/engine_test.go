package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/types"
)

func fakeTarget() *checker.Target {
	return &checker.Target{FS: fstest.MapFS{
		"app/models.py": {Data: []byte("class User: pass\n")},
		"app/broken.py": {Data: []byte("\x00\x00")},
	}}
}

func staticChecker(name string, cat types.Category, issues ...types.Issue) checker.Checker {
	return checker.Func{ID: name, Cat: cat, Fn: func(context.Context, *checker.Target) ([]types.Issue, error) {
		return issues, nil
	}}
}

func fixedNow() time.Time { return time.Date(2026, 10, 19, 8, 30, 15, 500, time.UTC) }

func TestRun_CollectsAndOrders(t *testing.T) {
	eng := New(Config{Threads: 2, Now: fixedNow}, []checker.Checker{
		staticChecker("schema", types.CatSchema,
			types.Issue{Severity: types.SevLow, Category: types.CatSchema, Title: "Unused label", Location: "graph:Orphan"},
			types.Issue{Severity: types.SevHigh, Category: types.CatSchema, Title: "Missing field", Location: "foo.py:10", Description: "field X absent"},
		),
		staticChecker("imports", types.CatImports,
			types.Issue{Severity: types.SevHigh, Category: types.CatImports, Title: "Circular import", Location: "b.py"},
			types.Issue{Severity: types.SevHigh, Category: types.CatImports, Title: "Circular import", Location: "a.py"},
		),
	}, nil)

	rep := eng.Run(context.Background(), fakeTarget(), tester.System{})
	require.Len(t, rep.Findings, 4)
	got := make([]string, len(rep.Findings))
	for i, f := range rep.Findings {
		got[i] = string(f.Severity) + " " + string(f.Category) + " " + f.Location
	}
	assert.Equal(t, []string{
		"HIGH imports a.py",
		"HIGH imports b.py",
		"HIGH schema foo.py:10",
		"LOW schema graph:Orphan",
	}, got)
	assert.Equal(t, time.Date(2026, 10, 19, 8, 30, 15, 0, time.UTC), rep.GeneratedAt)
	assert.Equal(t, 2, rep.Stats.Checkers)
	assert.Equal(t, "schema", rep.Findings[2].Source)
}

func TestRun_DeduplicatesAcrossCheckers(t *testing.T) {
	dup := types.Issue{Category: types.CatAPI, Title: "Route mismatch", Location: "api/routes.py:42"}
	low, high := dup, dup
	low.Severity, high.Severity = types.SevLow, types.SevHigh
	low.Description = "reported by first"
	high.Description = "reported by second"

	eng := New(Config{}, []checker.Checker{
		staticChecker("first", types.CatAPI, low),
		staticChecker("second", types.CatAPI, high),
	}, nil)
	rep := eng.Run(context.Background(), fakeTarget(), tester.System{})
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, types.SevHigh, rep.Findings[0].Severity)
	assert.Equal(t, "reported by second", rep.Findings[0].Description)
	assert.Equal(t, 1, rep.Stats.Deduplicated)
}

func TestRun_CheckerHardFailureBecomesHighIssue(t *testing.T) {
	broken := checker.Func{ID: "neo4j-schema", Cat: types.CatSchema, Fn: func(context.Context, *checker.Target) ([]types.Issue, error) {
		return nil, errors.New("cannot connect to schema source")
	}}
	panicky := checker.Func{ID: "imports", Cat: types.CatImports, Fn: func(context.Context, *checker.Target) ([]types.Issue, error) {
		panic("boom")
	}}
	ok := staticChecker("config", types.CatConfig, types.Issue{Severity: types.SevLow, Category: types.CatConfig, Title: "Empty value", Location: ".env"})

	core, logs := observer.New(zapcore.WarnLevel)
	eng := New(Config{Logger: zap.New(core)}, []checker.Checker{broken, panicky, ok}, nil)
	rep := eng.Run(context.Background(), fakeTarget(), tester.System{})

	require.Len(t, rep.Findings, 3)
	assert.Equal(t, "Checker failed: imports", rep.Findings[0].Title)
	assert.Contains(t, rep.Findings[0].Description, "panic: boom")
	assert.Equal(t, "Checker failed: neo4j-schema", rep.Findings[1].Title)
	assert.Equal(t, types.SevHigh, rep.Findings[1].Severity)
	assert.Equal(t, types.CatSchema, rep.Findings[1].Category)
	assert.True(t, rep.Findings[1].Synthetic)
	assert.Equal(t, "Empty value", rep.Findings[2].Title)
	assert.Equal(t, 2, logs.FilterMessage("plugin failed").Len())
}

func TestRun_RecoverableFileErrorDoesNotStopOthers(t *testing.T) {
	perFile := checker.Func{ID: "imports", Cat: types.CatImports, Fn: func(ctx context.Context, target *checker.Target) ([]types.Issue, error) {
		var out []types.Issue
		err := target.Walk(ctx, func(rel string, err error) {
			if rel == "app/broken.py" {
				out = append(out, checker.FileIssue(types.CatImports, rel, errors.New("invalid syntax")))
				return
			}
			out = append(out, types.Issue{Severity: types.SevMed, Category: types.CatImports, Title: "Unused import", Location: rel})
		})
		return out, err
	}}
	other := staticChecker("api", types.CatAPI, types.Issue{Severity: types.SevMed, Category: types.CatAPI, Title: "Undocumented route", Location: "/v1/memory"})

	rep := New(Config{}, []checker.Checker{perFile, other}, nil).Run(context.Background(), fakeTarget(), tester.System{})
	var lows []types.Finding
	for _, f := range rep.Findings {
		if f.Severity == types.SevLow {
			lows = append(lows, f)
		}
	}
	require.Len(t, lows, 1)
	assert.Equal(t, "app/broken.py", lows[0].Location)
	assert.Contains(t, lows[0].Description, "invalid syntax")
	assert.Len(t, rep.Findings, 3)
}

func TestRun_NormalizesInvalidFindings(t *testing.T) {
	c := staticChecker("frontend", types.CatFrontend,
		types.Issue{Severity: "critical", Category: "ui", Title: "Contract drift", Location: "web/api.ts"},
		types.Issue{Severity: "medium", Category: "API", Title: "Casing", Location: "web/x.ts"},
	)
	rep := New(Config{}, []checker.Checker{c}, nil).Run(context.Background(), fakeTarget(), tester.System{})
	require.Len(t, rep.Findings, 2)
	for _, f := range rep.Findings {
		assert.True(t, f.Severity.Valid())
		assert.True(t, f.Category.Valid())
	}
	assert.Equal(t, types.SevMed, rep.Findings[0].Severity)
	assert.Equal(t, types.CatAPI, rep.Findings[0].Category)
	assert.Equal(t, types.SevLow, rep.Findings[1].Severity)
	assert.Equal(t, types.CatFrontend, rep.Findings[1].Category)
}

func TestRun_Overrides(t *testing.T) {
	cfg := Config{Overrides: map[string]Override{
		"noisy":  {Disabled: true},
		"schema": {Severity: types.SevLow},
	}}
	eng := New(cfg, []checker.Checker{
		staticChecker("noisy", types.CatImports, types.Issue{Severity: types.SevHigh, Category: types.CatImports, Title: "x"}),
		staticChecker("schema", types.CatSchema, types.Issue{Severity: types.SevHigh, Category: types.CatSchema, Title: "y"}),
	}, nil)
	require.Len(t, eng.Checkers(), 1)
	rep := eng.Run(context.Background(), fakeTarget(), tester.System{})
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, types.SevLow, rep.Findings[0].Severity)
}

func TestRun_TesterTimeout(t *testing.T) {
	hang := tester.Func{ID: "retrieval-recall", Cat: types.CatRetrieval, Fn: func(ctx context.Context, _ tester.System, _ tester.Config) ([]types.TestResult, error) {
		<-ctx.Done()
		return []types.TestResult{tester.Pass(types.CatRetrieval, "late", "q1", nil)}, ctx.Err()
	}}
	ignoresCtx := tester.Func{ID: "memory-tiers", Cat: types.CatMemory, Fn: func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		time.Sleep(2 * time.Second)
		return nil, nil
	}}
	eng := New(Config{TesterTimeout: 50 * time.Millisecond}, nil, []TesterEntry{
		{Tester: hang},
		{Tester: ignoresCtx, Config: tester.Config{Timeout: 80 * time.Millisecond}},
	})

	started := time.Now()
	rep := eng.Run(context.Background(), nil, tester.System{})
	elapsed := time.Since(started)

	assert.Less(t, elapsed, time.Second, "engine must not wait past tester timeouts")
	require.Len(t, rep.Findings, 2)
	for _, f := range rep.Findings {
		assert.False(t, f.Passed)
		assert.True(t, f.Runtime)
		assert.Equal(t, "Tester timed out", f.Title)
	}
	assert.Equal(t, 2, rep.Stats.Failed)
}

func TestRun_TesterTimeoutWithoutCategory(t *testing.T) {
	slow := tester.Func{ID: "slow", Fn: func(ctx context.Context, _ tester.System, _ tester.Config) ([]types.TestResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	rep := New(Config{TesterTimeout: 20 * time.Millisecond}, nil, []TesterEntry{{Tester: slow}}).Run(context.Background(), nil, tester.System{})
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "Tester timed out", rep.Findings[0].Title)
	assert.Equal(t, types.CatConfig, rep.Findings[0].Category)
	assert.True(t, rep.Findings[0].Category.Valid())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep = New(Config{}, nil, []TesterEntry{{Tester: slow}}).Run(ctx, nil, tester.System{})
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "Tester canceled", rep.Findings[0].Title)
	assert.Equal(t, types.CatConfig, rep.Findings[0].Category)
}

func TestRun_RuntimeStatsCountedAfterMerge(t *testing.T) {
	fail := tester.Fail(types.SevMed, types.CatAPI, "Endpoint slow", "health", "", nil)
	twice := tester.Func{ID: "latency", Cat: types.CatAPI, Fn: func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		return []types.TestResult{
			fail,
			fail,
			tester.Pass(types.CatAPI, "Endpoint healthy", "ready", nil),
		}, nil
	}}
	rep := New(Config{}, nil, []TesterEntry{{Tester: twice}}).Run(context.Background(), nil, tester.System{})
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, 1, rep.Stats.Failed)
	assert.Equal(t, 1, rep.Stats.Passed)
	assert.Equal(t, 1, rep.Stats.Deduplicated)
}

func TestRun_TesterFailureAndPassedResults(t *testing.T) {
	learning := tester.Func{ID: "feedback-loop", Cat: types.CatLearning, Fn: func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		return []types.TestResult{
			tester.Pass(types.CatLearning, "Feedback stored", "feedback_store", map[string]float64{"convergence": 0.93}),
			tester.Fail(types.SevMed, types.CatLearning, "Slow convergence", "feedback_store", "rate below threshold", map[string]float64{"convergence": 0.41}),
		}, nil
	}}
	broken := tester.Func{ID: "e2e", Cat: types.CatAPI, Fn: func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		return nil, errors.New("system handle missing endpoints")
	}}

	rep := New(Config{}, nil, []TesterEntry{{Tester: learning}, {Tester: broken}}).Run(context.Background(), nil, tester.System{})
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, "Tester failed: e2e", rep.Findings[0].Title)
	assert.Equal(t, types.SevHigh, rep.Findings[0].Severity)
	assert.Equal(t, "Slow convergence", rep.Findings[1].Title)
	assert.Equal(t, 0.41, rep.Findings[1].Metrics["convergence"])
	assert.Equal(t, 1, rep.Stats.Passed)

	withPassed := New(Config{IncludePassed: true}, nil, []TesterEntry{{Tester: learning}}).Run(context.Background(), nil, tester.System{})
	assert.Len(t, withPassed.Findings, 2)
}

func TestRun_SerializesMutatingTesters(t *testing.T) {
	var active, maxActive int32
	track := func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil, nil
	}
	var entries []TesterEntry
	for _, id := range []string{"l0", "l1", "l2", "l3"} {
		entries = append(entries, TesterEntry{Tester: tester.Func{ID: id, Cat: types.CatMemory, Fn: track}})
	}
	New(Config{Threads: 4}, nil, entries).Run(context.Background(), nil, tester.System{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestRun_ReadOnlyTestersRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started int32
	wait := func(ctx context.Context, _ tester.System, _ tester.Config) ([]types.TestResult, error) {
		if atomic.AddInt32(&started, 1) == 2 {
			close(release)
		}
		select {
		case <-release:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	entries := []TesterEntry{
		{Tester: tester.Func{ID: "recall-a", Cat: types.CatRetrieval, Readonly: true, Fn: wait}},
		{Tester: tester.Func{ID: "recall-b", Cat: types.CatRetrieval, Readonly: true, Fn: wait}},
	}
	rep := New(Config{Threads: 2, TesterTimeout: time.Second}, nil, entries).Run(context.Background(), nil, tester.System{})
	assert.Empty(t, rep.Findings, "both read-only testers should finish without timing out")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	c := checker.Func{ID: "imports", Cat: types.CatImports, Fn: func(context.Context, *checker.Target) ([]types.Issue, error) {
		called = true
		return nil, nil
	}}
	tr := tester.Func{ID: "memory", Cat: types.CatMemory, Fn: func(context.Context, tester.System, tester.Config) ([]types.TestResult, error) {
		called = true
		return nil, nil
	}}
	rep := New(Config{}, []checker.Checker{c}, []TesterEntry{{Tester: tr}}).Run(ctx, fakeTarget(), tester.System{})
	assert.False(t, called)
	require.Len(t, rep.Findings, 2)
	assert.Equal(t, "Tester canceled", rep.Findings[1].Title)
}
