package scheduler

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sourceplane/liteflow/internal/executor"
	"github.com/sourceplane/liteflow/internal/fresh"
	"github.com/sourceplane/liteflow/internal/graph"
	"github.com/sourceplane/liteflow/internal/model"
)

// Budget is the global resource envelope for concurrently running jobs.
// A zero or negative field means that dimension is unconstrained.
type Budget struct {
	Threads  int
	MemoryMB int
}

// Options configure one run.
type Options struct {
	Budget   Budget
	FailFast bool
	// DryRun suppresses state-dir writes; the runner decides what
	// "executing" means.
	DryRun bool
}

// Scheduler walks a job graph in dependency order, dispatching ready jobs
// to the runner while the summed reservations of running jobs stay within
// the budget. All graph-state mutation happens under a single lock;
// completions arrive as events on a channel, never by polling.
type Scheduler struct {
	Runner executor.Runner
	Oracle *fresh.Oracle
	Opts   Options
	Out    io.Writer
}

func New(runner executor.Runner, oracle *fresh.Oracle, opts Options, out io.Writer) *Scheduler {
	if out == nil {
		out = io.Discard
	}
	return &Scheduler{Runner: runner, Oracle: oracle, Opts: opts, Out: out}
}

type jobState struct {
	node     *graph.Node
	status   model.Status
	pending  int // producers not yet Succeeded/Skipped
	err      error
	cause    string // root failed job ID for upstream-blocked jobs
	reason   string // stop reason for jobs never dispatched
	warned   bool   // freshness-check warning already printed
	duration time.Duration
}

type completion struct {
	id       string
	err      error
	duration time.Duration
}

type run struct {
	sched  *Scheduler
	cancel context.CancelFunc

	mu        sync.Mutex
	states    map[string]*jobState
	remaining int
	threads   int // summed reservations of running jobs
	memory    int
	running   int
	stopping  bool
	stopCause string

	done chan completion
}

// Run executes the graph and reports every job's terminal status.
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph) *model.RunReport {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		sched:     s,
		cancel:    cancel,
		states:    make(map[string]*jobState, len(g.Nodes)),
		remaining: len(g.Nodes),
		done:      make(chan completion, len(g.Nodes)),
	}
	for id, node := range g.Nodes {
		r.states[id] = &jobState{node: node, status: model.StatusPending, pending: len(node.Deps)}
	}

	r.mu.Lock()
	r.dispatch(runCtx)
	r.mu.Unlock()

	ctxDone := ctx.Done()
	for {
		r.mu.Lock()
		finished := r.remaining == 0
		r.mu.Unlock()
		if finished {
			break
		}

		select {
		case c := <-r.done:
			r.complete(runCtx, c)
		case <-ctxDone:
			ctxDone = nil
			r.mu.Lock()
			r.stop("run canceled")
			r.mu.Unlock()
		}
	}

	return r.report(g)
}

// dispatch promotes, skips and launches jobs. Callers hold r.mu.
func (r *run) dispatch(ctx context.Context) {
	// Promote and skip to a fixpoint first: a skipped job may make its
	// dependents ready, and those may be skippable in turn.
	for {
		progressed := false
		for _, id := range r.sortedIDs() {
			st := r.states[id]
			if st.status == model.StatusPending && st.pending == 0 {
				st.status = model.StatusReady
				progressed = true
			}
			if st.status == model.StatusReady && r.skippable(st) {
				r.markSkipped(id, st)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	if r.stopping {
		r.blockRemainingIfIdle()
		return
	}

	// Most thread-hungry admissible job first keeps utilization high.
	ready := make([]*jobState, 0)
	for _, id := range r.sortedIDs() {
		if st := r.states[id]; st.status == model.StatusReady {
			ready = append(ready, st)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].node.Job.Threads > ready[j].node.Job.Threads
	})

	for _, st := range ready {
		if !r.admissible(st.node.Job) {
			continue
		}
		st.status = model.StatusRunning
		r.running++
		r.threads += st.node.Job.Threads
		r.memory += st.node.Job.MemoryMB
		fmt.Fprintf(r.sched.Out, "→ %s\n", st.node.Job.ID)

		job := st.node.Job
		go func() {
			start := time.Now()
			err := r.sched.Runner.Run(ctx, job)
			r.done <- completion{id: job.ID, err: err, duration: time.Since(start)}
		}()
	}
}

// admissible applies the budget invariant: the reservations of all running
// jobs plus the candidate must stay within the budget. A job whose own
// reservation exceeds the whole budget is admitted only alone, so it can
// still run instead of deadlocking the run.
func (r *run) admissible(job *model.Job) bool {
	if r.running == 0 {
		return true
	}
	b := r.sched.Opts.Budget
	if b.Threads > 0 && r.threads+job.Threads > b.Threads {
		return false
	}
	if b.MemoryMB > 0 && r.memory+job.MemoryMB > b.MemoryMB {
		return false
	}
	return true
}

// skippable implements the recursive freshness contract: a job may only be
// skipped when none of its producers actually re-ran this run, and the
// oracle confirms its outputs are up to date.
func (r *run) skippable(st *jobState) bool {
	for _, dep := range st.node.Deps {
		if r.states[dep.Job.ID].status != model.StatusSkipped {
			return false
		}
	}
	ok, err := r.sched.Oracle.IsFresh(st.node.Job)
	if err != nil {
		// treat an unanswerable oracle as stale, but say so
		if !st.warned {
			st.warned = true
			fmt.Fprintf(r.sched.Out, "! %s: freshness check: %v\n", st.node.Job.ID, err)
		}
		return false
	}
	return ok
}

func (r *run) markSkipped(id string, st *jobState) {
	st.status = model.StatusSkipped
	r.remaining--
	fmt.Fprintf(r.sched.Out, "□ %s up to date\n", id)
	for _, dep := range st.node.Dependents {
		r.states[dep.Job.ID].pending--
	}
}

// complete handles one runner completion event.
func (r *run) complete(ctx context.Context, c completion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.states[c.id]
	st.duration = c.duration
	r.running--
	r.threads -= st.node.Job.Threads
	r.memory -= st.node.Job.MemoryMB

	if c.err != nil {
		st.status = model.StatusFailed
		st.err = c.err
		r.remaining--
		fmt.Fprintf(r.sched.Out, "✗ %s: %v\n", c.id, c.err)
		r.blockDependents(st.node, c.id)
		if r.sched.Opts.FailFast && !r.stopping {
			r.stop("stopped after first failure")
		}
	} else {
		st.status = model.StatusSucceeded
		r.remaining--
		fmt.Fprintf(r.sched.Out, "✓ %s\n", c.id)
		if err := r.recordInputs(st.node.Job); err != nil {
			fmt.Fprintf(r.sched.Out, "! %s: %v\n", c.id, err)
		}
		for _, dep := range st.node.Dependents {
			r.states[dep.Job.ID].pending--
		}
	}

	r.dispatch(ctx)
}

func (r *run) recordInputs(job *model.Job) error {
	if r.sched.Opts.DryRun {
		return nil
	}
	return r.sched.Oracle.RecordInputs(job)
}

// blockDependents marks every transitive dependent of a failed job as
// blocked, carrying the root-cause job ID. Never dispatched.
func (r *run) blockDependents(node *graph.Node, cause string) {
	for _, dep := range node.Dependents {
		st := r.states[dep.Job.ID]
		if st.status.Terminal() || st.status == model.StatusRunning {
			continue
		}
		st.status = model.StatusBlocked
		st.cause = cause
		r.remaining--
		r.blockDependents(dep, cause)
	}
}

// stop halts further dispatch and asks running jobs to terminate. Jobs
// already in flight keep their true terminal status. Callers hold r.mu.
func (r *run) stop(cause string) {
	r.stopping = true
	r.stopCause = cause
	r.cancel()
	r.blockRemainingIfIdle()
}

// blockRemainingIfIdle finishes off a stopping run once nothing is in
// flight, giving every undispatched job a terminal blocked status.
func (r *run) blockRemainingIfIdle() {
	if !r.stopping || r.running > 0 {
		return
	}
	for _, st := range r.states {
		if !st.status.Terminal() && st.status != model.StatusRunning {
			st.status = model.StatusBlocked
			st.reason = r.stopCause
			r.remaining--
		}
	}
}

func (r *run) sortedIDs() []string {
	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// report assembles the run report in topological order where possible,
// falling back to lexical order.
func (r *run) report(g *graph.Graph) *model.RunReport {
	order, err := g.TopologicalSort()
	if err != nil {
		order = r.sortedIDs()
	}

	rep := &model.RunReport{DryRun: r.sched.Opts.DryRun}
	for _, id := range order {
		st := r.states[id]
		res := model.JobResult{
			JobID:    id,
			Rule:     st.node.Job.Rule,
			Outputs:  st.node.Job.Outputs,
			Status:   st.status.String(),
			Cause:    st.cause,
			Reason:   st.reason,
			Duration: st.duration,
		}
		if st.err != nil {
			res.Error = st.err.Error()
		}
		switch st.status {
		case model.StatusSucceeded:
			rep.Succeeded++
		case model.StatusSkipped:
			rep.Skipped++
		case model.StatusFailed:
			rep.Failed++
		case model.StatusBlocked:
			rep.Blocked++
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}
