// Package analysis holds the planning layer that decides how to partition a
// codebase across LLM calls. The planner is advisory: it produces a Plan,
// and UI-level collaborators decide what to do with it.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredGenerator is the slice of the orchestrator the planner needs.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}) (interface{}, error)
}

// ProjectSummary describes a scanned codebase. Produced by external file
// scanning collaborators.
type ProjectSummary struct {
	TotalFiles     int            `json:"total_files"`
	TotalLines     int            `json:"total_lines"`
	Folders        []string       `json:"folders"`
	Languages      map[string]int `json:"languages"`
	HasPackageJSON bool           `json:"has_package_json"`
	HasTests       bool           `json:"has_tests"`
	EntryPoints    []string       `json:"entry_points"`
}

// Phase is one unit of a Plan.
type Phase struct {
	Name        string   `json:"name"`
	Purpose     string   `json:"purpose"`
	TargetFiles []string `json:"targetFiles"`
	Priority    int      `json:"priority"`
}

// Plan is the planner's advisory output.
type Plan struct {
	ProjectSize       string  `json:"projectSize"`
	Phases            []Phase `json:"phases"`
	EstimatedLLMCalls int     `json:"estimatedLLMCalls"`
}

// DefaultSmallProjectThreshold is the file count at or below which planning
// is short-circuited entirely.
const DefaultSmallProjectThreshold = 20

// Planner decides how many orchestrator calls an analysis should spend and
// how to partition the project across them.
type Planner struct {
	llm       StructuredGenerator
	threshold int
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithSmallProjectThreshold overrides the small-project cutoff.
func WithSmallProjectThreshold(n int) PlannerOption {
	return func(p *Planner) { p.threshold = n }
}

// NewPlanner creates a Planner on top of an orchestrator.
func NewPlanner(llm StructuredGenerator, opts ...PlannerOption) *Planner {
	p := &Planner{llm: llm, threshold: DefaultSmallProjectThreshold}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// planSchema enumerates the shape the model's plan must take.
var planSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"projectSize", "phases", "estimatedLLMCalls"},
	"properties": map[string]interface{}{
		"projectSize":       map[string]interface{}{"type": "string"},
		"estimatedLLMCalls": map[string]interface{}{"type": "number"},
		"phases": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"name", "purpose"},
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string"},
					"purpose":     map[string]interface{}{"type": "string"},
					"targetFiles": map[string]interface{}{"type": "array"},
					"priority":    map[string]interface{}{"type": "number"},
				},
			},
		},
	},
}

// CreatePlan produces a Plan for the summarized project. Projects at or
// below the small-project threshold get a fixed single-phase plan with zero
// LLM calls spent on planning itself; planning overhead must not dominate
// tiny projects. Larger projects spend exactly one orchestrator call and
// return the model's plan verbatim.
func (p *Planner) CreatePlan(ctx context.Context, summary ProjectSummary) (*Plan, error) {
	if summary.TotalFiles <= p.threshold {
		return &Plan{
			ProjectSize: "small",
			Phases: []Phase{{
				Name:        "full-analysis",
				Purpose:     "Analyze the entire project in a single pass",
				TargetFiles: summary.EntryPoints,
				Priority:    1,
			}},
			EstimatedLLMCalls: 1,
		}, nil
	}

	value, err := p.llm.GenerateStructured(ctx, planPrompt(summary), planSchema)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON to decode the schema-validated map into the
	// typed plan.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

func planPrompt(summary ProjectSummary) string {
	var sb strings.Builder
	sb.WriteString("Plan a phased analysis of this codebase.\n\n")
	fmt.Fprintf(&sb, "Files: %d\nLines: %d\n", summary.TotalFiles, summary.TotalLines)
	if len(summary.Languages) > 0 {
		sb.WriteString("Languages:")
		for lang, count := range summary.Languages {
			fmt.Fprintf(&sb, " %s(%d)", lang, count)
		}
		sb.WriteString("\n")
	}
	if len(summary.Folders) > 0 {
		fmt.Fprintf(&sb, "Folders: %s\n", strings.Join(summary.Folders, ", "))
	}
	if len(summary.EntryPoints) > 0 {
		fmt.Fprintf(&sb, "Entry points: %s\n", strings.Join(summary.EntryPoints, ", "))
	}
	fmt.Fprintf(&sb, "Has package.json: %v\nHas tests: %v\n", summary.HasPackageJSON, summary.HasTests)
	sb.WriteString("\nPartition the analysis into ordered phases with clear purposes and target files, and estimate the total LLM calls needed.")
	return sb.String()
}
