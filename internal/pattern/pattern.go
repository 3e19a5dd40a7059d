package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a filename template with named wildcard slots, e.g.
// "clusters/cluster_{id}.fna". A wildcard matches a non-empty span within
// a single path segment; it never crosses a "/" boundary.
type Pattern struct {
	raw    string
	tokens []token
	re     *regexp.Regexp
	names  []string // wildcard name per capture group, in order of appearance
}

// token is either a literal run or a wildcard slot (name set, lit empty).
type token struct {
	lit  string
	name string
}

// Binding maps wildcard names to the concrete values captured by a match.
// A Binding is never mutated after Match returns it.
type Binding map[string]string

// UnboundWildcardError reports a substitution against a Binding that lacks
// a wildcard the pattern references.
type UnboundWildcardError struct {
	Pattern  string
	Wildcard string
}

func (e *UnboundWildcardError) Error() string {
	return fmt.Sprintf("pattern %q references unbound wildcard {%s}", e.Pattern, e.Wildcard)
}

// Parse compiles a pattern string. It fails on unbalanced braces, empty
// wildcard names, and names containing path separators or braces.
func Parse(s string) (Pattern, error) {
	if s == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}

	var tokens []token
	var names []string
	var re strings.Builder
	re.WriteString("^")

	rest := s
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.ContainsRune(rest, '}') {
				return Pattern{}, fmt.Errorf("pattern %q: unbalanced '}'", s)
			}
			tokens = append(tokens, token{lit: rest})
			re.WriteString(regexp.QuoteMeta(rest))
			break
		}

		if open > 0 {
			lit := rest[:open]
			if strings.ContainsRune(lit, '}') {
				return Pattern{}, fmt.Errorf("pattern %q: unbalanced '}'", s)
			}
			tokens = append(tokens, token{lit: lit})
			re.WriteString(regexp.QuoteMeta(lit))
		}

		rest = rest[open+1:]
		closing := strings.IndexByte(rest, '}')
		if closing < 0 {
			return Pattern{}, fmt.Errorf("pattern %q: unbalanced '{'", s)
		}
		name := rest[:closing]
		if name == "" {
			return Pattern{}, fmt.Errorf("pattern %q: empty wildcard name", s)
		}
		if strings.ContainsAny(name, "/{") {
			return Pattern{}, fmt.Errorf("pattern %q: invalid wildcard name %q", s, name)
		}
		tokens = append(tokens, token{name: name})
		names = append(names, name)
		re.WriteString("([^/]+)")
		rest = rest[closing+1:]
	}

	re.WriteString("$")
	compiled, err := regexp.Compile(re.String())
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", s, err)
	}

	return Pattern{raw: s, tokens: tokens, re: compiled, names: names}, nil
}

// MustParse is Parse for compile-time-constant patterns; it panics on error.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the original pattern text.
func (p Pattern) String() string { return p.raw }

// HasWildcards reports whether the pattern contains at least one slot.
func (p Pattern) HasWildcards() bool { return len(p.names) > 0 }

// Wildcards returns the distinct wildcard names in order of first appearance.
func (p Pattern) Wildcards() []string {
	seen := make(map[string]bool, len(p.names))
	var out []string
	for _, n := range p.names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Match aligns the pattern against a concrete path and extracts wildcard
// values. A wildcard repeated within one pattern must capture the same
// value at every occurrence, otherwise the path does not match.
func (p Pattern) Match(path string) (Binding, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	binding := make(Binding, len(p.names))
	for i, name := range p.names {
		val := m[i+1]
		if prev, ok := binding[name]; ok && prev != val {
			return nil, false
		}
		binding[name] = val
	}
	return binding, true
}

// Substitute fills the pattern's wildcard slots from a Binding to produce
// a concrete path. Every wildcard of the pattern must be bound.
func (p Pattern) Substitute(b Binding) (string, error) {
	var sb strings.Builder
	for _, t := range p.tokens {
		if t.name == "" {
			sb.WriteString(t.lit)
			continue
		}
		val, ok := b[t.name]
		if !ok {
			return "", &UnboundWildcardError{Pattern: p.raw, Wildcard: t.name}
		}
		sb.WriteString(val)
	}
	return sb.String(), nil
}

// Expand substitutes {name} placeholders in an arbitrary template string,
// such as a rule's command line. Unlike Substitute it tolerates literal
// braces escaped as {{ and }}, so shell constructs survive. An unescaped
// placeholder absent from the Binding is an UnboundWildcardError.
func Expand(template string, b Binding) (string, error) {
	var sb strings.Builder
	rest := template
	for len(rest) > 0 {
		switch {
		case strings.HasPrefix(rest, "{{"):
			sb.WriteByte('{')
			rest = rest[2:]
		case strings.HasPrefix(rest, "}}"):
			sb.WriteByte('}')
			rest = rest[2:]
		case rest[0] == '{':
			closing := strings.IndexByte(rest, '}')
			if closing < 0 {
				return "", fmt.Errorf("template %q: unbalanced '{'", template)
			}
			name := rest[1:closing]
			val, ok := b[name]
			if !ok {
				return "", &UnboundWildcardError{Pattern: template, Wildcard: name}
			}
			sb.WriteString(val)
			rest = rest[closing+1:]
		default:
			next := strings.IndexAny(rest, "{}")
			if next < 0 {
				sb.WriteString(rest)
				rest = ""
				break
			}
			sb.WriteString(rest[:next])
			rest = rest[next:]
			if rest[0] == '}' && !strings.HasPrefix(rest, "}}") {
				return "", fmt.Errorf("template %q: unbalanced '}'", template)
			}
		}
	}
	return sb.String(), nil
}
