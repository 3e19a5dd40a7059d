package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sourceplane/liteflow/internal/executor"
	"github.com/sourceplane/liteflow/internal/fresh"
	"github.com/sourceplane/liteflow/internal/graph"
	"github.com/sourceplane/liteflow/internal/loader"
	"github.com/sourceplane/liteflow/internal/model"
	"github.com/sourceplane/liteflow/internal/registry"
	"github.com/sourceplane/liteflow/internal/render"
	"github.com/sourceplane/liteflow/internal/scheduler"
)

var (
	runJobs     int
	runMemoryMB int
	runFailFast bool
	runDryRun   bool
	runWorkDir  string
)

var runCmd = &cobra.Command{
	Use:   "run [target...]",
	Short: "Build targets, executing only stale jobs",
	Long:  "Resolve the requested targets into a job DAG, skip jobs whose outputs are already up to date, and execute the rest under the resource budget. Targets given as arguments override the pipeline's declared targets.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(args)
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "Thread budget (0 = unlimited)")
	runCmd.Flags().IntVar(&runMemoryMB, "memory", 0, "Memory budget in MB (0 = unlimited)")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Cancel the whole run on the first failure")
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "n", false, "Print commands instead of executing them")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Base working directory for job paths")
}

func runPipeline(overrides []string) error {
	_, g, err := loadGraph(runWorkDir, overrides)
	if err != nil {
		return err
	}

	oracle := &fresh.Oracle{
		FS:       fresh.Dir(runWorkDir),
		StateDir: filepath.Join(runWorkDir, ".liteflow"),
	}
	runner := executor.NewShellRunner(runWorkDir, os.Stdout, os.Stderr, runDryRun)

	sched := scheduler.New(runner, oracle, scheduler.Options{
		Budget:   scheduler.Budget{Threads: runJobs, MemoryMB: runMemoryMB},
		FailFast: runFailFast,
		DryRun:   runDryRun,
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep := sched.Run(ctx, g)
	rep.RunID = xid.New().String()
	render.WriteReport(os.Stdout, rep)

	if !rep.OK() {
		return fmt.Errorf("%d of %d jobs did not complete", rep.Failed+rep.Blocked, len(rep.Results))
	}
	return nil
}

// loadGraph loads the pipeline file and resolves targets into a job graph.
// Override targets replace the pipeline's declared ones when present.
func loadGraph(workDir string, overrides []string) (*model.Pipeline, *graph.Graph, error) {
	doc, err := loader.Load(pipelineFile)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := loader.Compile(doc)
	if err != nil {
		return nil, nil, err
	}
	reg, err := registry.New(compiled.Rules)
	if err != nil {
		return nil, nil, err
	}

	targets := compiled.Targets
	if len(overrides) > 0 {
		targets = make([]model.PatternRef, 0, len(overrides))
		for _, t := range overrides {
			targets = append(targets, model.PatternRef{Pattern: t})
		}
	}

	b := &graph.Builder{
		Registry: reg,
		Sets:     compiled.Sets,
		Sources:  compiled.Sources,
		FS:       fresh.Dir(workDir),
	}
	g, err := b.Build(targets)
	if err != nil {
		return nil, nil, err
	}
	return doc, g, nil
}
