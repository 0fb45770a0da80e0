package analysis

import (
	"context"
	"errors"
	"testing"
)

// fakeGenerator is a test double for the orchestrator.
type fakeGenerator struct {
	calls  int
	result interface{}
	err    error
	schema map[string]interface{}
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}) (interface{}, error) {
	f.calls++
	f.schema = schema
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestCreatePlanSmallProjectShortCircuits(t *testing.T) {
	gen := &fakeGenerator{}
	planner := NewPlanner(gen)

	plan, err := planner.CreatePlan(context.Background(), ProjectSummary{
		TotalFiles:  5,
		EntryPoints: []string{"main.go"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Planning a tiny project must cost zero LLM calls.
	if gen.calls != 0 {
		t.Errorf("expected 0 orchestrator calls, got %d", gen.calls)
	}
	if plan.ProjectSize != "small" || len(plan.Phases) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if got := plan.Phases[0].TargetFiles; len(got) != 1 || got[0] != "main.go" {
		t.Errorf("target files = %v", got)
	}
}

func TestCreatePlanThresholdBoundary(t *testing.T) {
	gen := &fakeGenerator{result: map[string]interface{}{
		"projectSize":       "large",
		"phases":            []interface{}{},
		"estimatedLLMCalls": float64(4),
	}}
	planner := NewPlanner(gen, WithSmallProjectThreshold(10))

	// At the threshold: still small.
	if _, err := planner.CreatePlan(context.Background(), ProjectSummary{TotalFiles: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("at-threshold project should not consult the model")
	}

	// One above: exactly one orchestrator call.
	if _, err := planner.CreatePlan(context.Background(), ProjectSummary{TotalFiles: 11}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly 1 orchestrator call, got %d", gen.calls)
	}
}

func TestCreatePlanLargeProjectReturnsModelPlan(t *testing.T) {
	gen := &fakeGenerator{result: map[string]interface{}{
		"projectSize":       "large",
		"estimatedLLMCalls": float64(6),
		"phases": []interface{}{
			map[string]interface{}{
				"name":        "core",
				"purpose":     "analyze the core packages",
				"targetFiles": []interface{}{"a.go", "b.go"},
				"priority":    float64(1),
			},
			map[string]interface{}{
				"name":    "tests",
				"purpose": "assess coverage",
			},
		},
	}}
	planner := NewPlanner(gen)

	plan, err := planner.CreatePlan(context.Background(), ProjectSummary{TotalFiles: 120})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The model's plan comes back verbatim, just typed.
	if plan.ProjectSize != "large" || plan.EstimatedLLMCalls != 6 {
		t.Errorf("plan = %+v", plan)
	}
	if len(plan.Phases) != 2 || plan.Phases[0].Name != "core" || plan.Phases[0].Priority != 1 {
		t.Errorf("phases = %+v", plan.Phases)
	}

	// The schema handed to the orchestrator enumerates the plan shape.
	required, _ := gen.schema["required"].([]interface{})
	if len(required) != 3 {
		t.Errorf("schema required = %v", required)
	}
}

func TestCreatePlanPropagatesOrchestratorError(t *testing.T) {
	wantErr := errors.New("provider down")
	gen := &fakeGenerator{err: wantErr}
	planner := NewPlanner(gen)

	_, err := planner.CreatePlan(context.Background(), ProjectSummary{TotalFiles: 100})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected orchestrator error, got %v", err)
	}
}
