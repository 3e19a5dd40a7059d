package model

import (
	"time"

	"github.com/sourceplane/liteflow/internal/pattern"
)

// Status is the lifecycle state of a Job during a run.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
	// StatusBlocked marks a job that was never dispatched because an
	// upstream dependency failed (or the run stopped early). It is a
	// derived terminal state, distinct from a job that itself failed.
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusSkipped:
		return "Skipped"
	case StatusBlocked:
		return "BlockedByUpstream"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusBlocked:
		return true
	}
	return false
}

// Job is one fully bound instance of a Rule: concrete input and output
// paths and a substituted command, ready to execute. Jobs are immutable
// after graph construction; their status lives in the scheduler's run
// state, not on the Job itself.
type Job struct {
	ID        string
	Rule      string
	Wildcards pattern.Binding
	Inputs    []string
	Outputs   []string
	Command   string
	Threads   int
	MemoryMB  int
	Timeout   time.Duration
	// FanIn marks a job whose inputs were expanded from an enumerated
	// set; its resolved input list participates in freshness.
	FanIn bool
}
