package model

import "time"

// JobResult is the terminal record of one job in a run.
type JobResult struct {
	JobID    string        `yaml:"job" json:"job"`
	Rule     string        `yaml:"rule" json:"rule"`
	Outputs  []string      `yaml:"outputs" json:"outputs"`
	Status string `yaml:"status" json:"status"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
	// Cause is the root failed job ID for jobs blocked by an upstream
	// failure; Reason explains jobs blocked because the run stopped early.
	Cause    string        `yaml:"cause,omitempty" json:"cause,omitempty"`
	Reason   string        `yaml:"reason,omitempty" json:"reason,omitempty"`
	Duration time.Duration `yaml:"-" json:"-"`
}

// RunReport enumerates every job's terminal status for one run.
type RunReport struct {
	RunID   string      `yaml:"runId" json:"runId"`
	DryRun  bool        `yaml:"dryRun,omitempty" json:"dryRun,omitempty"`
	Results []JobResult `yaml:"jobs" json:"jobs"`

	Succeeded int `yaml:"succeeded" json:"succeeded"`
	Skipped   int `yaml:"skipped" json:"skipped"`
	Failed    int `yaml:"failed" json:"failed"`
	Blocked   int `yaml:"blocked" json:"blocked"`
}

// OK reports whether the whole run succeeded: every job either succeeded
// or was skipped as already fresh. This is the CLI exit-code contract.
func (r *RunReport) OK() bool {
	return r.Failed == 0 && r.Blocked == 0
}
