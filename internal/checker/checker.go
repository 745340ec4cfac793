package checker

import (
	"context"
	"fmt"

	"github.com/varalys/auditkit/internal/types"
)

// Checker is a static analysis plugin. Implementations must only read from
// the target and must be safe to run concurrently with other checkers.
type Checker interface {
	// Name identifies the checker in reports and logs.
	Name() string

	// Category is the audit domain the checker reports under. Synthetic
	// findings for this checker use it.
	Category() types.Category

	// Run analyzes the target. Recoverable problems (an unreadable or
	// unparsable file) are reported as LOW issues via FileIssue; a returned
	// error means the checker could not run at all.
	Run(ctx context.Context, target *Target) ([]types.Issue, error)
}

// Func adapts a plain function into a Checker.
type Func struct {
	ID  string
	Cat types.Category
	Fn  func(ctx context.Context, target *Target) ([]types.Issue, error)
}

func (f Func) Name() string             { return f.ID }
func (f Func) Category() types.Category { return f.Cat }

func (f Func) Run(ctx context.Context, target *Target) ([]types.Issue, error) {
	return f.Fn(ctx, target)
}

// FileIssue converts a per-file analysis failure into a LOW issue so a single
// bad file never aborts the checker.
func FileIssue(cat types.Category, path string, err error) types.Issue {
	return types.Issue{
		Severity:    types.SevLow,
		Category:    cat,
		Title:       "File could not be analyzed",
		Location:    path,
		Description: fmt.Sprintf("%s: %v", path, err),
	}
}
