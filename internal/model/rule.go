package model

import (
	"time"

	"github.com/sourceplane/liteflow/internal/pattern"
)

// Rule is the compiled, immutable form of a RuleSpec: patterns parsed,
// resource declarations resolved against the pipeline defaults.
type Rule struct {
	Name    string
	Outputs []pattern.Pattern
	Inputs  []InputPattern
	Action  Action
}

// InputPattern is one input declaration of a rule. When ForEach names an
// enumerated set, the pattern is expanded to one concrete input per set
// element (fan-in); otherwise it is substituted from the job's binding.
type InputPattern struct {
	Pattern pattern.Pattern
	ForEach string
}

// Action is the opaque command template plus its resource declaration.
// The engine never interprets the command; it only substitutes wildcards
// and hands the result to a runner.
type Action struct {
	Command  string
	Threads  int
	MemoryMB int
	Timeout  time.Duration
}
