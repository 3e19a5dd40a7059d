package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level declarative document describing a workflow:
// rule templates, enumerated sets, external sources and requested targets.
type Pipeline struct {
	APIVersion string              `yaml:"apiVersion" json:"apiVersion"`
	Kind       string              `yaml:"kind" json:"kind"`
	Metadata   Metadata            `yaml:"metadata" json:"metadata"`
	Defaults   Defaults            `yaml:"defaults" json:"defaults"`
	Sets       map[string][]string `yaml:"sets" json:"sets"`
	Sources    []string            `yaml:"sources" json:"sources"`
	Rules      []RuleSpec          `yaml:"rules" json:"rules"`
	Targets    []PatternRef        `yaml:"targets" json:"targets"`
}

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Defaults supplies fallback resource declarations for rules that omit them
type Defaults struct {
	Threads  int    `yaml:"threads" json:"threads"`
	MemoryMB int    `yaml:"memoryMB" json:"memoryMB"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// RuleSpec is the declarative form of a rule template. Output is sugar for
// a single-element Outputs list; exactly one of the two must be present.
type RuleSpec struct {
	Name     string       `yaml:"name" json:"name"`
	Output   string       `yaml:"output,omitempty" json:"output,omitempty"`
	Outputs  []string     `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Input    []PatternRef `yaml:"input" json:"input"`
	Run      string       `yaml:"run" json:"run"`
	Threads  int          `yaml:"threads,omitempty" json:"threads,omitempty"`
	MemoryMB int          `yaml:"memoryMB,omitempty" json:"memoryMB,omitempty"`
	Timeout  string       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// OutputList returns the rule's output patterns regardless of which of the
// scalar/list forms the document used.
func (r RuleSpec) OutputList() []string {
	if r.Output != "" {
		return append([]string{r.Output}, r.Outputs...)
	}
	return r.Outputs
}

// PatternRef is a target or input reference: either a plain path/pattern
// string, or a {pattern, forEach} object that fans out over a named set.
type PatternRef struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	ForEach string `yaml:"forEach,omitempty" json:"forEach,omitempty"`
}

// UnmarshalYAML accepts both the scalar shorthand and the object form.
func (r *PatternRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&r.Pattern)
	case yaml.MappingNode:
		type plain PatternRef
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		*r = PatternRef(p)
		return nil
	default:
		return fmt.Errorf("line %d: pattern reference must be a string or a mapping", value.Line)
	}
}
