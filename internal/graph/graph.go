package graph

import (
	"fmt"
	"sort"

	"github.com/sourceplane/liteflow/internal/model"
)

// Node is one job in the dependency graph with producer/consumer edges.
type Node struct {
	Job        *model.Job
	Deps       []*Node // producers of this node's inputs
	Dependents []*Node // consumers of this node's outputs
}

// Graph is the DAG of jobs produced for one target set. Edges point from
// producer to consumer; external sources are recorded apart since they
// have no producing job.
type Graph struct {
	Nodes   map[string]*Node // keyed by job ID
	Sources []string         // external source paths, sorted
	Targets []string         // the concrete requested targets

	producers map[string]*Node // output path -> producing node
}

func newGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		producers: make(map[string]*Node),
	}
}

// Producer returns the node producing the given path, if any.
func (g *Graph) Producer(path string) (*Node, bool) {
	n, ok := g.producers[path]
	return n, ok
}

func (g *Graph) addNode(job *model.Job) *Node {
	n := &Node{Job: job}
	g.Nodes[job.ID] = n
	for _, out := range job.Outputs {
		g.producers[out] = n
	}
	return n
}

func (g *Graph) addEdge(from, to *Node) {
	for _, d := range to.Deps {
		if d == from {
			return
		}
	}
	to.Deps = append(to.Deps, from)
	from.Dependents = append(from.Dependents, to)
}

// DetectCycles performs DFS cycle detection over the dependency edges.
// The builder's resolving-marker already rejects cycles reachable from the
// requested targets; this is the whole-graph construction check.
func (g *Graph) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var stack []string

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visited[n.Job.ID] = true
		recStack[n.Job.ID] = true
		stack = append(stack, n.Job.Outputs[0])

		for _, dep := range n.Deps {
			if !visited[dep.Job.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			} else if recStack[dep.Job.ID] {
				return &CycleError{Path: dep.Job.Outputs[0], Chain: append([]string(nil), stack...)}
			}
		}

		recStack[n.Job.ID] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for id, n := range g.Nodes {
		if !visited[id] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort returns job IDs in execution order using Kahn's
// algorithm, ties broken lexicographically for deterministic output.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		inDegree[id] = len(n.Deps)
	}

	queue := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		for _, dependent := range g.Nodes[current].Dependents {
			id := dependent.Job.ID
			inDegree[id]--
			if inDegree[id] == 0 {
				queue = append(queue, id)
			}
		}
		sort.Strings(queue)
	}

	if len(sorted) != len(g.Nodes) {
		return nil, fmt.Errorf("failed to topologically sort: possible cycle detected")
	}
	return sorted, nil
}
