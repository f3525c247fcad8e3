// Package scheduler drains a build graph with a pool of worker goroutines.
// Workers only run processes and report results; all graph state is mutated
// by the coordinating goroutine that owns Execute.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/donaldfilimon/ovo/internal/dag"
	"github.com/donaldfilimon/ovo/internal/trace"
)

// Task is one unit of work handed to a worker.
type Task struct {
	NodeID int64
	Name   string
	Kind   string
	Argv   []string
	Dir    string   // working directory, empty = inherit
	Env    []string // nil = inherit
}

// Result is what a worker reports back. Captured output is truncated at
// captureLimit bytes per stream.
type Result struct {
	NodeID   int64
	Success  bool
	Err      string
	Stdout   []byte
	Stderr   []byte
	ExitCode int // -1 when the process did not run to completion
	Elapsed  time.Duration
}

// Progress is reported through the OnProgress callback after each task
// result is applied, and by the sequential and dry-run executors for each node
// they mark terminal. Dispatching a node (Pending → Running) is not reported.
type Progress struct {
	Total       int
	Completed   int
	Running     int
	Skipped     int
	Failed      int
	CurrentTask string
	Elapsed     time.Duration
}

// Stats summarizes one Execute call.
type Stats struct {
	Total         int
	Completed     int
	Failed        int
	Skipped       int
	ExecutionTime time.Duration // summed per-task wall time
}

// Scheduler executes build graphs. The zero value is usable; Workers
// defaults to the CPU count.
type Scheduler struct {
	Log           *log.Logger
	Workers       int
	StopOnFailure bool
	Verbose       bool
	OnProgress    func(Progress)

	statusMu   sync.Mutex
	status     []string
	lastStatus time.Time
	startedAt  time.Time
}

func (s *Scheduler) logger() *log.Logger {
	if s.Log == nil {
		s.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	return s.Log
}

func (s *Scheduler) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// Execute runs every non-terminal node of the graph, dispatching a node only
// once all its dependencies are Completed or Skipped. It returns when all
// nodes are terminal, when StopOnFailure stopped dispatch and the in-flight
// tasks drained, or when ctx is canceled.
func (s *Scheduler) Execute(ctx context.Context, g *dag.Graph) (Stats, error) {
	s.startedAt = time.Now()
	total := g.Len()
	workers := s.workers()
	s.status = make([]string, workers+1)

	work := make(chan Task, total)
	done := make(chan Result, total)

	eg, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i // copy
		eg.Go(func() error {
			for task := range work {
				if err := workerCtx.Err(); err != nil {
					return err
				}
				s.updateStatus(i+1, "running "+task.Name)
				ev := trace.Task(task.Name, task.Kind, i, task.Argv)
				res := runTask(workerCtx, task)
				ev.Done()
				done <- res // buffered for the whole graph, never blocks
				s.updateStatus(i+1, "idle")
			}
			return nil
		})
	}

	inflight := 0
	stopping := false
	enqueue := func() {
		if stopping {
			return
		}
		for _, id := range g.ReadyNodes() {
			n, err := g.Node(id)
			if err != nil {
				continue
			}
			n.State = dag.Running
			inflight++
			if s.Verbose {
				s.logger().Printf("run %s: %v", n.Name, n.Argv)
			}
			work <- Task{
				NodeID: id,
				Name:   n.Name,
				Kind:   n.Kind.String(),
				Argv:   n.Argv,
				Dir:    n.Dir,
			}
		}
	}

	enqueue()
	canceled := false
Drain:
	for {
		count := g.CountByState()
		if count.Done() || (stopping && inflight == 0) {
			break
		}
		if inflight == 0 && !stopping {
			// Pending nodes remain but nothing can become ready; the
			// engine's cycle check makes this unreachable.
			break
		}
		select {
		case res := <-done:
			inflight--
			s.apply(g, res)
			if !res.Success && s.StopOnFailure {
				stopping = true
			}
			enqueue()
		case <-ctx.Done():
			stopping = true
			canceled = true
			break Drain
		}
	}
	close(work)
	egErr := eg.Wait()

	// Consume results that were delivered while shutting down so their
	// durations and states are recorded.
	for {
		select {
		case res := <-done:
			inflight--
			s.apply(g, res)
		default:
			s.failRunning(g, "canceled")
			stats := s.stats(g)
			if canceled {
				return stats, ctx.Err()
			}
			if egErr != nil && !errors.Is(egErr, context.Canceled) {
				return stats, egErr
			}
			return stats, nil
		}
	}
}

// apply folds one worker result into the graph.
func (s *Scheduler) apply(g *dag.Graph, res Result) {
	n, err := g.Node(res.NodeID)
	if err != nil {
		return
	}
	n.Duration = res.Elapsed
	if res.Success {
		n.State = dag.Completed
	} else {
		n.State = dag.Failed
		n.Err = res.Err
		if len(res.Stderr) > 0 {
			s.logger().Printf("%s failed: %s\n%s", n.Name, res.Err, res.Stderr)
			s.refreshStatus()
		}
		s.markDependentsFailed(g, res.NodeID)
	}
	s.reportProgress(g, n.Name)
	s.updateSummary(g)
}

// markDependentsFailed marks every transitive dependent of a failed node as
// Failed, so the graph still reaches a terminal state under keep_going.
func (s *Scheduler) markDependentsFailed(g *dag.Graph, id int64) {
	for _, dep := range g.Dependents(id) {
		n, err := g.Node(dep)
		if err != nil || n.State != dag.Pending {
			continue
		}
		n.State = dag.Failed
		n.Err = "dependency failed"
		s.markDependentsFailed(g, dep)
	}
}

// failRunning marks nodes that never delivered a result (canceled mid-run).
func (s *Scheduler) failRunning(g *dag.Graph, reason string) {
	for _, id := range g.IDs() {
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		if n.State == dag.Running {
			n.State = dag.Failed
			n.Err = reason
		}
	}
}

func (s *Scheduler) reportProgress(g *dag.Graph, current string) {
	if s.OnProgress == nil {
		return
	}
	count := g.CountByState()
	s.OnProgress(Progress{
		Total:       g.Len(),
		Completed:   count.Completed,
		Running:     count.Running,
		Skipped:     count.Skipped,
		Failed:      count.Failed,
		CurrentTask: current,
		Elapsed:     time.Since(s.startedAt),
	})
}

func (s *Scheduler) updateSummary(g *dag.Graph) {
	count := g.CountByState()
	s.updateStatus(0, fmt.Sprintf("%d of %d tasks: %d done, %d skipped, %d failed",
		count.Completed+count.Skipped+count.Failed, g.Len(),
		count.Completed, count.Skipped, count.Failed))
}

func (s *Scheduler) stats(g *dag.Graph) Stats {
	count := g.CountByState()
	stats := Stats{
		Total:     g.Len(),
		Completed: count.Completed,
		Failed:    count.Failed,
		Skipped:   count.Skipped,
	}
	for _, id := range g.IDs() {
		if n, err := g.Node(id); err == nil {
			stats.ExecutionTime += n.Duration
		}
	}
	return stats
}
