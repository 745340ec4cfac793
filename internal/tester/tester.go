package tester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/varalys/auditkit/internal/types"
)

// System is a handle to the live application under audit.
type System struct {
	// Name is a display label for the system (e.g. "staging").
	Name string
	// Endpoints maps a logical endpoint name to its URL.
	Endpoints map[string]string
	// Env holds connection settings loaded from an env file. It is never
	// copied into the process environment.
	Env map[string]string
}

// Config is the per-tester configuration supplied at registration.
type Config struct {
	// Timeout bounds one invocation; zero uses the engine default.
	Timeout time.Duration
	// Thresholds are metric limits a tester checks (e.g. "recall": 0.8).
	Thresholds map[string]float64
	// Params are free-form tester options.
	Params map[string]string
}

// Tester is a runtime analysis plugin exercising a live system. Run may block
// on I/O but must return promptly once ctx is done.
type Tester interface {
	Name() string
	Category() types.Category
	Run(ctx context.Context, sys System, cfg Config) ([]types.TestResult, error)
}

// ReadOnly is implemented by testers that never mutate shared state in the
// live system. Only those are run concurrently.
type ReadOnly interface {
	ReadOnly() bool
}

// IsReadOnly reports whether t declares itself side-effect free.
func IsReadOnly(t Tester) bool {
	ro, ok := t.(ReadOnly)
	return ok && ro.ReadOnly()
}

// Func adapts a plain function into a Tester.
type Func struct {
	ID       string
	Cat      types.Category
	Readonly bool
	Fn       func(ctx context.Context, sys System, cfg Config) ([]types.TestResult, error)
}

func (f Func) Name() string             { return f.ID }
func (f Func) Category() types.Category { return f.Cat }
func (f Func) ReadOnly() bool           { return f.Readonly }

func (f Func) Run(ctx context.Context, sys System, cfg Config) ([]types.TestResult, error) {
	return f.Fn(ctx, sys, cfg)
}

// TimeoutResult is the failing result synthesized when a tester does not
// finish before its deadline or its context is canceled.
func TimeoutResult(name string, cat types.Category, timeout time.Duration, err error) types.TestResult {
	title := "Tester timed out"
	desc := fmt.Sprintf("%s did not complete within %s", name, timeout)
	if errors.Is(err, context.Canceled) {
		title = "Tester canceled"
		desc = fmt.Sprintf("%s was canceled before completing", name)
	}
	return types.TestResult{
		Issue: types.Issue{
			Severity:    types.SevMed,
			Category:    cat,
			Title:       title,
			Location:    name,
			Description: desc,
		},
		Passed: false,
	}
}

// Pass builds a passing result.
func Pass(cat types.Category, title, location string, metrics map[string]float64) types.TestResult {
	return types.TestResult{
		Issue:   types.Issue{Severity: types.SevLow, Category: cat, Title: title, Location: location},
		Passed:  true,
		Metrics: metrics,
	}
}

// Fail builds a failing result.
func Fail(sev types.Severity, cat types.Category, title, location, desc string, metrics map[string]float64) types.TestResult {
	return types.TestResult{
		Issue:   types.Issue{Severity: sev, Category: cat, Title: title, Location: location, Description: desc},
		Metrics: metrics,
	}
}
