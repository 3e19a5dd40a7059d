package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sourceplane/liteflow/internal/graph"
	"github.com/sourceplane/liteflow/internal/model"
)

// Renderer materializes a job graph into a Plan document
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderPlan creates a plan from a job graph, jobs in execution order
func (r *Renderer) RenderPlan(metadata model.Metadata, g *graph.Graph, runID string) (*model.Plan, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	plan := &model.Plan{
		APIVersion: "sourceplane.io/v1",
		Kind:       "Plan",
		Metadata:   metadata,
		RunID:      runID,
		Sources:    g.Sources,
		Jobs:       make([]model.PlanJob, 0, len(order)),
	}

	for _, id := range order {
		node := g.Nodes[id]
		job := node.Job

		dependsOn := make([]string, 0, len(node.Deps))
		for _, dep := range node.Deps {
			dependsOn = append(dependsOn, dep.Job.ID)
		}
		sort.Strings(dependsOn)

		planJob := model.PlanJob{
			ID:        job.ID,
			Rule:      job.Rule,
			Wildcards: job.Wildcards,
			Inputs:    job.Inputs,
			Outputs:   job.Outputs,
			Command:   job.Command,
			Threads:   job.Threads,
			MemoryMB:  job.MemoryMB,
			DependsOn: dependsOn,
		}
		if job.Timeout > 0 {
			planJob.Timeout = job.Timeout.String()
		}
		plan.Jobs = append(plan.Jobs, planJob)
	}

	return plan, nil
}

// RenderJSON renders plan as JSON
func (r *Renderer) RenderJSON(plan *model.Plan) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}

// RenderYAML renders plan as YAML
func (r *Renderer) RenderYAML(plan *model.Plan) ([]byte, error) {
	return yaml.Marshal(plan)
}

// WritePlan writes plan to file (JSON or YAML based on extension)
func (r *Renderer) WritePlan(plan *model.Plan, path string) error {
	var data []byte
	var err error

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(plan)
	default:
		data, err = r.RenderJSON(plan)
	}
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan to %s: %w", path, err)
	}
	return nil
}
