package analyzer

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varalys/auditkit/internal/types"
)

func TestSummarize_ExampleScenario(t *testing.T) {
	in := "### 🟠 [HIGH] Missing field\n**Category:** schema\n**Location:** `foo.py:10`\n**Description:** field X absent\n"
	p, err := ParseString(in)
	require.NoError(t, err)

	s := Summarize(p, SummaryOptions{})
	require.Len(t, s.Categories, 1)
	cs := s.Categories[0]
	assert.Equal(t, types.CatSchema, cs.Category)
	assert.Equal(t, 1, cs.Count)
	require.Len(t, cs.Findings, 1)
	assert.Equal(t, "Missing field", cs.Findings[0].Title)
	assert.Equal(t, "foo.py:10", cs.Findings[0].Location)
	assert.Equal(t, "field X absent", cs.Findings[0].Description)

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, s, true))
	out := buf.String()
	assert.Contains(t, out, "SCHEMA (1)")
	assert.Contains(t, out, "[HIGH] Missing field")
	assert.Contains(t, out, "Location: foo.py:10")
	assert.Contains(t, out, "field X absent")
}

func TestSummarize_LimitAndCountOnly(t *testing.T) {
	var p Parsed
	for i := 0; i < 8; i++ {
		p.Findings = append(p.Findings, ParsedFinding{Severity: types.SevLow, Category: "api", Title: fmt.Sprintf("api-%d", i)})
	}
	for i := 0; i < 40; i++ {
		p.Findings = append(p.Findings, ParsedFinding{Severity: types.SevLow, Category: "imports", Title: "unused"})
	}
	p.Findings = append(p.Findings, ParsedFinding{Severity: types.SevHigh, Category: "bogus", Title: "x"})

	s := Summarize(p, SummaryOptions{Limit: 3})
	assert.Equal(t, 48, s.Total)
	assert.Equal(t, 1, s.Dropped)
	require.Len(t, s.Categories, 2)

	imports, api := s.Categories[0], s.Categories[1]
	assert.Equal(t, types.CatImports, imports.Category)
	assert.True(t, imports.CountOnly)
	assert.Equal(t, 40, imports.Count)
	assert.Empty(t, imports.Findings)

	assert.Equal(t, types.CatAPI, api.Category)
	assert.Equal(t, 8, api.Count)
	require.Len(t, api.Findings, 3)
	assert.Equal(t, "api-0", api.Findings[0].Title)

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, s, true))
	out := buf.String()
	assert.Contains(t, out, "... and 5 more")
	assert.Contains(t, out, "Count only: imports: 40")
	assert.Contains(t, out, "Skipped 1 finding(s)")
	assert.NotContains(t, out, "unused")
}

func TestSummarize_CustomCountOnly(t *testing.T) {
	p := Parsed{Findings: []ParsedFinding{
		{Severity: types.SevMed, Category: "imports", Title: "cycle"},
		{Severity: types.SevMed, Category: "frontend", Title: "bundle"},
	}}
	s := Summarize(p, SummaryOptions{CountOnly: []types.Category{types.CatFrontend}})
	require.Len(t, s.Categories, 2)
	assert.False(t, s.Categories[0].CountOnly)
	assert.Len(t, s.Categories[0].Findings, 1)
	assert.True(t, s.Categories[1].CountOnly)
	assert.Equal(t, 2, s.BySeverity[types.SevMed])
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(Parsed{}, SummaryOptions{})
	assert.Zero(t, s.Total)
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, s, true))
	assert.True(t, strings.Contains(buf.String(), "No findings"))
}

func TestSummarize_FormatWarning(t *testing.T) {
	s := Summarize(Parsed{FormatVersion: "2.0.0"}, SummaryOptions{})
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "newer than supported")
}

func TestBucket_PreservesOrder(t *testing.T) {
	p := Parsed{Findings: []ParsedFinding{
		{Category: "schema", Title: "b"},
		{Category: "API", Title: "x"},
		{Category: "schema", Title: "a"},
	}}
	b := Bucket(p)
	require.Len(t, b[types.CatSchema], 2)
	assert.Equal(t, "b", b[types.CatSchema][0].Title)
	assert.Equal(t, "a", b[types.CatSchema][1].Title)
	assert.Len(t, b[types.CatAPI], 1)
}

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, CheckFormat(""))
	assert.NoError(t, CheckFormat("1.0.0"))
	assert.NoError(t, CheckFormat("1.4"))
	assert.Error(t, CheckFormat("3.0.0"))
	assert.Error(t, CheckFormat("not-a-version"))
}
