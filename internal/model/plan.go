package model

// Plan is the execution-ready DAG written by `liteflow plan`: every job in
// dependency order with its resolved paths, command and reservations.
type Plan struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion"`
	Kind       string    `yaml:"kind" json:"kind"`
	Metadata   Metadata  `yaml:"metadata" json:"metadata"`
	RunID      string    `yaml:"runId" json:"runId"`
	Sources    []string  `yaml:"sources" json:"sources"`
	Jobs       []PlanJob `yaml:"jobs" json:"jobs"`
}

// PlanJob is one job entry in the plan document.
type PlanJob struct {
	ID        string            `yaml:"id" json:"id"`
	Rule      string            `yaml:"rule" json:"rule"`
	Wildcards map[string]string `yaml:"wildcards,omitempty" json:"wildcards,omitempty"`
	Inputs    []string          `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs   []string          `yaml:"outputs" json:"outputs"`
	Command   string            `yaml:"command" json:"command"`
	Threads   int               `yaml:"threads" json:"threads"`
	MemoryMB  int               `yaml:"memoryMB,omitempty" json:"memoryMB,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	DependsOn []string          `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
}
