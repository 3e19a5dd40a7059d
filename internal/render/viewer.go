package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/liteflow/internal/model"
)

// PlanViewer provides human-readable visualization of a plan DAG
type PlanViewer struct {
	plan *model.Plan
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(plan *model.Plan) *PlanViewer {
	return &PlanViewer{plan: plan}
}

// ViewDAG returns a tree of the plan grouped by rule
func (pv *PlanViewer) ViewDAG() string {
	if len(pv.plan.Jobs) == 0 {
		return "No jobs in plan"
	}

	ruleMap := make(map[string][]*model.PlanJob)
	for i := range pv.plan.Jobs {
		job := &pv.plan.Jobs[i]
		ruleMap[job.Rule] = append(ruleMap[job.Rule], job)
	}

	rules := make([]string, 0, len(ruleMap))
	for rule := range ruleMap {
		rules = append(rules, rule)
	}
	sort.Strings(rules)

	var sb strings.Builder
	for i, rule := range rules {
		isLastRule := i == len(rules)-1

		rulePrefix := "├─ "
		childIndent := "│  "
		if isLastRule {
			rulePrefix = "└─ "
			childIndent = "   "
		}

		jobs := ruleMap[rule]
		sort.Slice(jobs, func(a, b int) bool { return jobs[a].ID < jobs[b].ID })
		sb.WriteString(fmt.Sprintf("%s%s (%d jobs)\n", rulePrefix, rule, len(jobs)))

		for j, job := range jobs {
			jobPrefix := childIndent + "├─ "
			if j == len(jobs)-1 {
				jobPrefix = childIndent + "└─ "
			}

			line := fmt.Sprintf("%s%s [%d threads", jobPrefix, job.ID, job.Threads)
			if job.MemoryMB > 0 {
				line += fmt.Sprintf(", %d MB", job.MemoryMB)
			}
			line += "]"
			if len(job.DependsOn) > 0 {
				line += fmt.Sprintf(" ← %s", strings.Join(job.DependsOn, ", "))
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

// ViewDependencies returns a flat producer/consumer listing
func (pv *PlanViewer) ViewDependencies() string {
	var sb strings.Builder
	sb.WriteString("Dependencies (consumer ← producers):\n")
	for _, job := range pv.plan.Jobs {
		if len(job.DependsOn) == 0 {
			sb.WriteString(fmt.Sprintf("  %s (root)\n", job.ID))
			continue
		}
		sb.WriteString(fmt.Sprintf("  %s ← %s\n", job.ID, strings.Join(job.DependsOn, ", ")))
	}
	return sb.String()
}
