package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/varalys/auditkit/internal/types"
)

type sarif struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	LogicalLocations []sarifLogical `json:"logicalLocations"`
}

type sarifLogical struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevHigh:
		return "error"
	case types.SevMed:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes the report as SARIF 2.1.0. Rules are one per category,
// and each result carries the finding fingerprint. Locations are logical
// because checker locations are opaque strings, not always file paths.
func WriteSARIF(w io.Writer, r types.AuditReport, toolVersion string) error {
	cats := map[types.Category]bool{}
	for _, f := range r.Findings {
		cats[f.Category] = true
	}
	var ordered []types.Category
	for c := range cats {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index() < ordered[j].Index() })

	ruleIndex := map[types.Category]int{}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "auditkit", Version: toolVersion, Rules: []sarifRule{}}},
		Results: []sarifResult{},
		Properties: map[string]any{
			"generatedAt": r.GeneratedAt,
			"stats":       r.Stats,
		},
	}
	for i, c := range ordered {
		ruleIndex[c] = i
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
			ID:               string(c),
			Name:             string(c),
			ShortDescription: sarifMessage{Text: string(c) + " audit findings"},
		})
	}
	for _, f := range r.Findings {
		msg := f.Title
		if f.Description != "" {
			msg += ": " + f.Description
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    string(f.Category),
			RuleIndex: ruleIndex[f.Category],
			Level:     sevToLevel(f.Severity),
			Message:   sarifMessage{Text: msg},
			Locations: []sarifLoc{{
				LogicalLocations: []sarifLogical{{FullyQualifiedName: f.Location}},
			}},
			PartialFingerprints: map[string]string{"auditkit/v1": f.Fingerprint()},
		})
	}
	doc := sarif{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
