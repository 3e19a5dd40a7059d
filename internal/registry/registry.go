package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/pattern"
)

// ErrNoProducer is returned by FindProducer when no rule's output pattern
// matches the requested path. Whether that is fatal depends on the caller:
// the graph builder first consults the external source set.
var ErrNoProducer = errors.New("no rule produces this path")

// AmbiguousProducerError reports a path matched by the output patterns of
// more than one rule. This is a configuration error, never resolved by
// priority.
type AmbiguousProducerError struct {
	Path  string
	Rules []string
}

func (e *AmbiguousProducerError) Error() string {
	return fmt.Sprintf("ambiguous producer for %q: rules %s all match", e.Path, strings.Join(e.Rules, ", "))
}

// Registry holds all compiled rule templates and answers producer lookups.
type Registry struct {
	rules  []*model.Rule
	byName map[string]*model.Rule
}

// New builds a registry from compiled rules, rejecting duplicate names.
func New(rules []*model.Rule) (*Registry, error) {
	r := &Registry{
		rules:  rules,
		byName: make(map[string]*model.Rule, len(rules)),
	}
	for _, rule := range rules {
		if _, exists := r.byName[rule.Name]; exists {
			return nil, fmt.Errorf("duplicate rule name: %s", rule.Name)
		}
		r.byName[rule.Name] = rule
	}
	return r, nil
}

// Rules returns all rules in declaration order.
func (r *Registry) Rules() []*model.Rule { return r.rules }

// Rule looks up a rule by name.
func (r *Registry) Rule(name string) (*model.Rule, bool) {
	rule, ok := r.byName[name]
	return rule, ok
}

// FindProducer returns the unique rule whose output pattern matches the
// path, together with the wildcard binding extracted from the match.
// Zero matches is ErrNoProducer; more than one matching rule is an
// AmbiguousProducerError.
func (r *Registry) FindProducer(path string) (*model.Rule, pattern.Binding, error) {
	var (
		found   *model.Rule
		binding pattern.Binding
		matched []string
	)
	for _, rule := range r.rules {
		for _, out := range rule.Outputs {
			b, ok := out.Match(path)
			if !ok {
				continue
			}
			if found == nil || found == rule {
				found, binding = rule, b
			}
			if len(matched) == 0 || matched[len(matched)-1] != rule.Name {
				matched = append(matched, rule.Name)
			}
			break
		}
	}
	switch len(matched) {
	case 0:
		return nil, nil, ErrNoProducer
	case 1:
		return found, binding, nil
	default:
		sort.Strings(matched)
		return nil, nil, &AmbiguousProducerError{Path: path, Rules: matched}
	}
}
