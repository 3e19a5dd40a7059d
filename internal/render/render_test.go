package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourceplane/liteflow/internal/graph"
	"github.com/sourceplane/liteflow/internal/model"
)

func testGraph() *graph.Graph {
	a := &graph.Node{Job: &model.Job{ID: "a", Rule: "a", Outputs: []string{"a.out"}, Command: "make-a", Threads: 1}}
	b := &graph.Node{Job: &model.Job{ID: "b", Rule: "b", Inputs: []string{"a.out"}, Outputs: []string{"b.out"}, Command: "make-b", Threads: 2}}
	a.Dependents = []*graph.Node{b}
	b.Deps = []*graph.Node{a}
	return &graph.Graph{
		Nodes:   map[string]*graph.Node{"a": a, "b": b},
		Sources: []string{"src.txt"},
		Targets: []string{"b.out"},
	}
}

func TestRenderPlan(t *testing.T) {
	r := NewRenderer()
	plan, err := r.RenderPlan(model.Metadata{Name: "demo"}, testGraph(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "Plan", plan.Kind)
	assert.Equal(t, "run-1", plan.RunID)
	assert.Equal(t, []string{"src.txt"}, plan.Sources)
	require.Len(t, plan.Jobs, 2)
	// execution order
	assert.Equal(t, "a", plan.Jobs[0].ID)
	assert.Equal(t, "b", plan.Jobs[1].ID)
	assert.Equal(t, []string{"a"}, plan.Jobs[1].DependsOn)
}

func TestWritePlanFormats(t *testing.T) {
	r := NewRenderer()
	plan, err := r.RenderPlan(model.Metadata{Name: "demo"}, testGraph(), "run-1")
	require.NoError(t, err)

	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "plan.json")
	require.NoError(t, r.WritePlan(plan, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind": "Plan"`)

	yamlPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, r.WritePlan(plan, yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: Plan")
}

func TestViewDAG(t *testing.T) {
	r := NewRenderer()
	plan, err := r.RenderPlan(model.Metadata{Name: "demo"}, testGraph(), "run-1")
	require.NoError(t, err)

	out := NewPlanViewer(plan).ViewDAG()
	assert.Contains(t, out, "├─ a (1 jobs)")
	assert.Contains(t, out, "└─ b (1 jobs)")
	assert.Contains(t, out, "b [2 threads] ← a")
}

func TestWriteReport(t *testing.T) {
	rep := &model.RunReport{
		RunID: "run-1",
		Results: []model.JobResult{
			{JobID: "a", Status: "Succeeded"},
			{JobID: "b", Status: "Skipped"},
			{JobID: "c", Status: "Failed", Error: "action failed"},
			{JobID: "d", Status: "BlockedByUpstream", Cause: "c"},
			{JobID: "e", Status: "BlockedByUpstream", Reason: "run canceled"},
		},
		Succeeded: 1, Skipped: 1, Failed: 1, Blocked: 2,
	}

	var buf bytes.Buffer
	WriteReport(&buf, rep)
	out := buf.String()

	assert.Contains(t, out, "✓ a")
	assert.Contains(t, out, "□ b (up to date)")
	assert.Contains(t, out, "✗ c: action failed")
	assert.Contains(t, out, "✗ d (blocked by c)")
	assert.Contains(t, out, "✗ e (run canceled)")
	assert.Contains(t, out, "1 succeeded, 1 up to date, 1 failed, 2 blocked")
}

func TestWriteReportDryRun(t *testing.T) {
	rep := &model.RunReport{
		RunID:     "run-2",
		DryRun:    true,
		Results:   []model.JobResult{{JobID: "a", Status: "Succeeded"}},
		Succeeded: 1,
	}

	var buf bytes.Buffer
	WriteReport(&buf, rep)

	assert.Contains(t, buf.String(), "✓ a (dry run)")
}
