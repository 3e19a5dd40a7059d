package graph

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sourceplane/liteflow/internal/fresh"
	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/pattern"
	"github.com/sourceplane/liteflow/internal/registry"
)

// NoMatchError reports a required path that no rule produces and that is
// not present in the external source set. Fatal at build time.
type NoMatchError struct {
	Target   string
	NeededBy string // job that required the path, empty for requested targets
}

func (e *NoMatchError) Error() string {
	if e.NeededBy == "" {
		return fmt.Sprintf("target %q: no rule produces it and it does not exist", e.Target)
	}
	return fmt.Sprintf("input %q of %s: no rule produces it and it does not exist", e.Target, e.NeededBy)
}

// CycleError reports a path that was revisited while still being resolved:
// a rule's inputs transitively include one of its own outputs.
type CycleError struct {
	Path  string
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s -> %s", strings.Join(e.Chain, " -> "), e.Path)
}

// Builder resolves requested targets into a dependency graph of jobs by
// memoized recursive wildcard resolution. Construction is fail-fast: the
// first NoMatch, ambiguity or cycle aborts with no partial graph.
type Builder struct {
	Registry *registry.Registry
	Sets     map[string][]string
	Sources  []pattern.Pattern // declared external source patterns
	FS       fresh.StatFS      // probes implicit sources (pre-existing files)
}

type buildState struct {
	graph     *Graph
	memo      map[string]*Node // resolved path -> producing node (nil = external source)
	resolving map[string]bool
	stack     []string
}

// Build expands the requested target references (fanning out forEach
// entries over their sets) and resolves each into the job graph.
func (b *Builder) Build(targets []model.PatternRef) (*Graph, error) {
	concrete, err := b.ExpandTargets(targets)
	if err != nil {
		return nil, err
	}
	if len(concrete) == 0 {
		return nil, fmt.Errorf("no targets requested")
	}

	st := &buildState{
		graph:     newGraph(),
		memo:      make(map[string]*Node),
		resolving: make(map[string]bool),
	}
	st.graph.Targets = concrete

	for _, target := range concrete {
		if _, err := b.resolve(st, target); err != nil {
			return nil, err
		}
	}

	sort.Strings(st.graph.Sources)
	if err := st.graph.DetectCycles(); err != nil {
		return nil, err
	}
	return st.graph, nil
}

// ExpandTargets turns target references into concrete paths. A pattern
// target must either name a forEach set binding all of its wildcards, or
// contain no wildcards at all.
func (b *Builder) ExpandTargets(targets []model.PatternRef) ([]string, error) {
	var concrete []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			concrete = append(concrete, path)
		}
	}

	for _, ref := range targets {
		p, err := pattern.Parse(ref.Pattern)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", ref.Pattern, err)
		}
		if ref.ForEach == "" {
			if p.HasWildcards() {
				return nil, fmt.Errorf("target %q has wildcards but no forEach set", ref.Pattern)
			}
			add(ref.Pattern)
			continue
		}
		elements, ok := b.Sets[ref.ForEach]
		if !ok {
			return nil, fmt.Errorf("target %q: unknown set %q", ref.Pattern, ref.ForEach)
		}
		for _, elem := range elements {
			path, err := p.Substitute(pattern.Binding{ref.ForEach: elem})
			if err != nil {
				return nil, fmt.Errorf("target %q: %w", ref.Pattern, err)
			}
			add(path)
		}
	}
	return concrete, nil
}

// resolve returns the node producing path, or nil when the path is an
// external source. Resolution is memoized on the resolved path so shared
// dependencies collapse to one node.
func (b *Builder) resolve(st *buildState, path string) (*Node, error) {
	if node, done := st.memo[path]; done {
		return node, nil
	}
	if st.resolving[path] {
		idx := 0
		for i, p := range st.stack {
			if p == path {
				idx = i
				break
			}
		}
		return nil, &CycleError{Path: path, Chain: append([]string(nil), st.stack[idx:]...)}
	}

	// Declared sources short-circuit rule lookup: a path in the external
	// source set never gets a producer, even if a rule output matches it.
	if b.isDeclaredSource(path) {
		st.graph.Sources = append(st.graph.Sources, path)
		st.memo[path] = nil
		return nil, nil
	}

	rule, binding, err := b.Registry.FindProducer(path)
	if errors.Is(err, registry.ErrNoProducer) {
		info, statErr := b.FS.Stat(path)
		if statErr != nil {
			return nil, fmt.Errorf("stat %s: %w", path, statErr)
		}
		if info.Exists {
			st.graph.Sources = append(st.graph.Sources, path)
			st.memo[path] = nil
			return nil, nil
		}
		return nil, &NoMatchError{Target: path, NeededBy: b.neededBy(st)}
	}
	if err != nil {
		return nil, err
	}

	job, err := b.materialize(rule, binding)
	if err != nil {
		return nil, err
	}

	// A fully resolved job memoizes all of its outputs, so reaching a
	// sibling output of a job already in the graph means that job is still
	// resolving its inputs: the rule transitively consumes its own output.
	if _, ok := st.graph.Nodes[job.ID]; ok {
		return nil, &CycleError{Path: path, Chain: append([]string(nil), st.stack...)}
	}

	node := st.graph.addNode(job)

	st.resolving[path] = true
	st.stack = append(st.stack, path)
	defer func() {
		delete(st.resolving, path)
		st.stack = st.stack[:len(st.stack)-1]
	}()

	for _, input := range job.Inputs {
		producer, err := b.resolve(st, input)
		if err != nil {
			return nil, err
		}
		if producer != nil {
			st.graph.addEdge(producer, node)
		}
	}

	// Outputs become resolvable only once the whole input subtree is done;
	// until then a cyclic input trips the resolving marker above.
	for _, out := range job.Outputs {
		st.memo[out] = node
	}
	return node, nil
}

// materialize binds a rule template into a concrete job: outputs and
// inputs substituted, fan-in inputs expanded over their sets, command
// template fully resolved.
func (b *Builder) materialize(rule *model.Rule, binding pattern.Binding) (*model.Job, error) {
	outputs := make([]string, 0, len(rule.Outputs))
	for _, out := range rule.Outputs {
		path, err := out.Substitute(binding)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		outputs = append(outputs, path)
	}

	var inputs []string
	fanIn := false
	for _, in := range rule.Inputs {
		if in.ForEach == "" {
			path, err := in.Pattern.Substitute(binding)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
			}
			inputs = append(inputs, path)
			continue
		}
		elements, ok := b.Sets[in.ForEach]
		if !ok {
			return nil, fmt.Errorf("rule %s: unknown set %q", rule.Name, in.ForEach)
		}
		fanIn = true
		for _, elem := range elements {
			merged := make(pattern.Binding, len(binding)+1)
			for k, v := range binding {
				merged[k] = v
			}
			merged[in.ForEach] = elem
			path, err := in.Pattern.Substitute(merged)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
			}
			inputs = append(inputs, path)
		}
	}

	command, err := expandCommand(rule, binding, inputs, outputs)
	if err != nil {
		return nil, err
	}

	return &model.Job{
		ID:        jobID(rule.Name, binding),
		Rule:      rule.Name,
		Wildcards: binding,
		Inputs:    inputs,
		Outputs:   outputs,
		Command:   command,
		Threads:   rule.Action.Threads,
		MemoryMB:  rule.Action.MemoryMB,
		Timeout:   rule.Action.Timeout,
		FanIn:     fanIn,
	}, nil
}

func expandCommand(rule *model.Rule, binding pattern.Binding, inputs, outputs []string) (string, error) {
	vars := make(pattern.Binding, len(binding)+3)
	for k, v := range binding {
		vars[k] = v
	}
	vars["input"] = strings.Join(inputs, " ")
	vars["output"] = strings.Join(outputs, " ")
	vars["threads"] = strconv.Itoa(rule.Action.Threads)

	command, err := pattern.Expand(rule.Action.Command, vars)
	if err != nil {
		return "", fmt.Errorf("rule %s: command: %w", rule.Name, err)
	}
	return command, nil
}

// jobID is stable per rule and binding, e.g. "count@sample=s1".
func jobID(rule string, binding pattern.Binding) string {
	if len(binding) == 0 {
		return rule
	}
	keys := make([]string, 0, len(binding))
	for k := range binding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+binding[k])
	}
	return rule + "@" + strings.Join(pairs, ",")
}

func (b *Builder) isDeclaredSource(path string) bool {
	for _, src := range b.Sources {
		if _, ok := src.Match(path); ok {
			return true
		}
	}
	return false
}

func (b *Builder) neededBy(st *buildState) string {
	if len(st.stack) == 0 {
		return ""
	}
	return st.stack[len(st.stack)-1]
}
