package loader

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/pattern"
)

//go:embed schema.yaml
var pipelineSchemaYAML []byte

var (
	schemaOnce     sync.Once
	pipelineSchema *jsonschema.Schema
	schemaErr      error
)

// compiledSchema compiles the embedded pipeline schema once. The schema is
// authored in YAML and converted to JSON for the compiler.
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var schemaData interface{}
		if err := yaml.Unmarshal(pipelineSchemaYAML, &schemaData); err != nil {
			schemaErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}
		jsonData, err := json.Marshal(schemaData)
		if err != nil {
			schemaErr = fmt.Errorf("failed to marshal embedded schema: %w", err)
			return
		}
		pipelineSchema, schemaErr = jsonschema.CompileString("pipeline.schema.json", string(jsonData))
	})
	return pipelineSchema, schemaErr
}

// Load reads, schema-validates and decodes a pipeline file.
func Load(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse validates a pipeline document against the embedded schema and
// decodes it. Semantic checks beyond the schema's reach (pattern syntax,
// set references, wildcard bindability) happen in Compile.
func Parse(data []byte) (*model.Pipeline, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("pipeline failed schema validation: %w", err)
	}

	var doc model.Pipeline
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline: %w", err)
	}
	return &doc, nil
}

// Compiled is the validated, executable form of a pipeline document.
type Compiled struct {
	Rules   []*model.Rule
	Sources []pattern.Pattern
	Sets    map[string][]string
	Targets []model.PatternRef
}

// Compile parses every pattern, resolves resource defaults and enforces
// the semantic invariants the JSON schema cannot express.
func Compile(doc *model.Pipeline) (*Compiled, error) {
	c := &Compiled{Sets: doc.Sets, Targets: doc.Targets}

	for _, src := range doc.Sources {
		p, err := pattern.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src, err)
		}
		c.Sources = append(c.Sources, p)
	}

	seen := make(map[string]bool, len(doc.Rules))
	for _, spec := range doc.Rules {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate rule name: %s", spec.Name)
		}
		seen[spec.Name] = true

		rule, err := compileRule(spec, doc)
		if err != nil {
			return nil, err
		}
		c.Rules = append(c.Rules, rule)
	}

	for _, ref := range doc.Targets {
		if _, err := pattern.Parse(ref.Pattern); err != nil {
			return nil, fmt.Errorf("target %q: %w", ref.Pattern, err)
		}
		if ref.ForEach != "" {
			if _, ok := doc.Sets[ref.ForEach]; !ok {
				return nil, fmt.Errorf("target %q: unknown set %q", ref.Pattern, ref.ForEach)
			}
		}
	}

	return c, nil
}

func compileRule(spec model.RuleSpec, doc *model.Pipeline) (*model.Rule, error) {
	rule := &model.Rule{Name: spec.Name}

	outputWildcards := make(map[string]bool)
	for i, out := range spec.OutputList() {
		p, err := pattern.Parse(out)
		if err != nil {
			return nil, fmt.Errorf("rule %s: output %q: %w", spec.Name, out, err)
		}
		// every output of a rule must carry the same wildcard set, or the
		// binding extracted from one output could not substitute another
		if i == 0 {
			for _, w := range p.Wildcards() {
				outputWildcards[w] = true
			}
		} else if !sameWildcards(outputWildcards, p.Wildcards()) {
			return nil, fmt.Errorf("rule %s: outputs must share one wildcard set, %q differs", spec.Name, out)
		}
		rule.Outputs = append(rule.Outputs, p)
	}

	for _, ref := range spec.Input {
		p, err := pattern.Parse(ref.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: input %q: %w", spec.Name, ref.Pattern, err)
		}
		if ref.ForEach != "" {
			if _, ok := doc.Sets[ref.ForEach]; !ok {
				return nil, fmt.Errorf("rule %s: input %q: unknown set %q", spec.Name, ref.Pattern, ref.ForEach)
			}
		}
		for _, w := range p.Wildcards() {
			if !outputWildcards[w] && w != ref.ForEach {
				return nil, fmt.Errorf("rule %s: input %q: wildcard {%s} is not bindable from the rule's outputs", spec.Name, ref.Pattern, w)
			}
		}
		rule.Inputs = append(rule.Inputs, model.InputPattern{Pattern: p, ForEach: ref.ForEach})
	}

	action, err := compileAction(spec, doc.Defaults)
	if err != nil {
		return nil, err
	}
	rule.Action = action
	return rule, nil
}

func compileAction(spec model.RuleSpec, defaults model.Defaults) (model.Action, error) {
	action := model.Action{
		Command:  spec.Run,
		Threads:  spec.Threads,
		MemoryMB: spec.MemoryMB,
	}
	if action.Threads == 0 {
		action.Threads = defaults.Threads
	}
	if action.Threads <= 0 {
		action.Threads = 1
	}
	if action.MemoryMB == 0 {
		action.MemoryMB = defaults.MemoryMB
	}

	timeout := spec.Timeout
	if timeout == "" {
		timeout = defaults.Timeout
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return model.Action{}, fmt.Errorf("rule %s: invalid timeout %q: %w", spec.Name, timeout, err)
		}
		action.Timeout = d
	}
	return action, nil
}

func sameWildcards(want map[string]bool, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for _, w := range got {
		if !want[w] {
			return false
		}
	}
	return true
}
