package scheduler

import (
	"context"
	"time"

	"github.com/donaldfilimon/ovo/internal/dag"
	"github.com/donaldfilimon/ovo/internal/trace"
)

// ExecuteSequential runs the graph one task at a time on the caller's
// goroutine, in topological order. Semantics match Execute: Skipped nodes
// satisfy dependents, failures cascade to dependents, and StopOnFailure
// stops dispatch after the first failure.
func (s *Scheduler) ExecuteSequential(ctx context.Context, g *dag.Graph) (Stats, error) {
	s.startedAt = time.Now()
	s.status = make([]string, 2)

	order, err := g.TopologicalOrder()
	if err != nil {
		return s.stats(g), err
	}
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return s.stats(g), err
		}
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		if n.State.Terminal() {
			continue
		}
		blocked := false
		for _, dep := range g.Dependencies(id) {
			d, err := g.Node(dep)
			if err != nil {
				continue
			}
			if d.State == dag.Failed {
				blocked = true
				break
			}
		}
		if blocked {
			n.State = dag.Failed
			n.Err = "dependency failed"
			s.reportProgress(g, n.Name)
			continue
		}
		n.State = dag.Running
		if s.Verbose {
			s.logger().Printf("run %s: %v", n.Name, n.Argv)
		}
		s.updateStatus(1, "running "+n.Name)
		ev := trace.Task(n.Name, n.Kind.String(), 0, n.Argv)
		res := runTask(ctx, Task{NodeID: id, Name: n.Name, Argv: n.Argv, Dir: n.Dir})
		ev.Done()
		s.apply(g, res)
		if !res.Success && s.StopOnFailure {
			break
		}
	}
	return s.stats(g), nil
}

// ExecuteDryRun walks the topological order and marks every remaining node
// Completed without spawning anything. The result shape matches Execute so
// higher layers do not branch.
func (s *Scheduler) ExecuteDryRun(g *dag.Graph) (Stats, error) {
	s.startedAt = time.Now()
	s.status = make([]string, 1)

	order, err := g.TopologicalOrder()
	if err != nil {
		return s.stats(g), err
	}
	for _, id := range order {
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		if n.State.Terminal() {
			continue
		}
		if s.Verbose {
			s.logger().Printf("would run %s: %v", n.Name, n.Argv)
		}
		n.State = dag.Completed
		s.reportProgress(g, n.Name)
	}
	return s.stats(g), nil
}
