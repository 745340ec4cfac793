package core

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/types"
)

func TestRunRenderParse(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := checker.Func{ID: "stub", Cat: types.CatSchema, Fn: func(context.Context, *checker.Target) ([]Issue, error) {
		return []Issue{{Severity: types.SevHigh, Category: types.CatSchema, Title: "Missing field", Location: "foo.py:10", Description: "field X absent"}}, nil
	}}
	target := &Target{Root: "", FS: fstest.MapFS{}}
	rep := Run(context.Background(), Config{Now: func() time.Time { return now }}, []Checker{c}, nil, target, System{})
	require.Len(t, rep.Findings, 1)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rep))
	p, err := Parse(&buf)
	require.NoError(t, err)
	s := Summarize(p, SummaryOptions{})
	require.Len(t, s.Categories, 1)
	assert.Equal(t, types.CatSchema, s.Categories[0].Category)
	assert.Equal(t, "Missing field", s.Categories[0].Findings[0].Title)
}

func TestRunBuiltin_Smoke(t *testing.T) {
	target, err := NewTarget(t.TempDir())
	require.NoError(t, err)
	rep := RunBuiltin(context.Background(), Config{}, TesterConfig{}, target, System{})
	assert.Empty(t, rep.Findings)
	assert.Equal(t, 1, rep.Stats.Checkers)
	assert.Equal(t, 1, rep.Stats.Testers)
	assert.NotEmpty(t, PluginNames())
}

func TestMarshalReport_RoundTrip(t *testing.T) {
	rep := Report{Findings: []Finding{{Issue: Issue{Severity: types.SevLow, Category: types.CatConfig, Title: "t", Location: "l"}, Source: "x"}}}
	var buf bytes.Buffer
	require.NoError(t, MarshalReport(&buf, rep))
	got, err := UnmarshalReport(&buf)
	require.NoError(t, err)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, rep.Findings[0].Issue, got.Findings[0].Issue)
	assert.Equal(t, "x", got.Findings[0].Source)
}

func TestAnalyzeDir_NoReport(t *testing.T) {
	_, err := AnalyzeDir(t.TempDir(), SummaryOptions{})
	assert.ErrorIs(t, err, ErrNoReport)
}
