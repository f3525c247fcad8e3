// Package dag models the build as a directed acyclic graph of compile,
// module-compile, link, archive and install actions. Edges point from a
// dependent node to the node it depends on, so a link node has edges to its
// object nodes and a module consumer has an edge to the module provider.
package dag

import (
	"sort"
	"time"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// NodeKind enumerates the build actions a node can represent.
type NodeKind int

const (
	Compile NodeKind = iota
	CompileModule
	Link
	Archive
	PrecompileHeader
	Install
	Custom
	ModuleScan
)

var nodeKindNames = map[NodeKind]string{
	Compile:          "compile",
	CompileModule:    "compile-module",
	Link:             "link",
	Archive:          "archive",
	PrecompileHeader: "precompile-header",
	Install:          "install",
	Custom:           "custom",
	ModuleScan:       "module-scan",
}

func (k NodeKind) String() string { return nodeKindNames[k] }

// NodeState is the execution state machine. Running, Completed, Failed and
// Skipped are set by the scheduler/engine; Ready is observable only through
// ReadyNodes.
type NodeState int

const (
	Pending NodeState = iota
	Ready
	Running
	Completed
	Failed
	Skipped
)

var nodeStateNames = map[NodeState]string{
	Pending:   "pending",
	Ready:     "ready",
	Running:   "running",
	Completed: "completed",
	Failed:    "failed",
	Skipped:   "skipped",
}

func (s NodeState) String() string { return nodeStateNames[s] }

// Terminal reports whether the state ends the node's lifecycle.
func (s NodeState) Terminal() bool {
	return s == Completed || s == Failed || s == Skipped
}

// satisfied reports whether the state satisfies a dependent's readiness: a
// skipped node (cache hit) counts like a completed one.
func (s NodeState) satisfied() bool {
	return s == Completed || s == Skipped
}

// Node is one build action.
type Node struct {
	id   int64
	Name string
	Kind NodeKind

	State NodeState
	Err   string // error message once Failed

	Inputs  []string
	Outputs []string
	Argv    []string
	Dir     string // working directory, empty = inherit

	ModuleName string // set on CompileModule nodes
	ArtifactID int64  // back-reference into the artifact registry, 0 = none

	Duration time.Duration
}

// ID implements gonum's graph.Node.
func (n *Node) ID() int64 { return n.id }

// ErrNodeNotFound is returned when an edge or lookup references an unknown
// node id — a caller bug, propagated.
var ErrNodeNotFound = xerrors.New("graph: node not found")

// ErrCycleDetected is returned by TopologicalOrder when the graph cannot be
// linearized.
var ErrCycleDetected = xerrors.New("graph: cycle detected")

// Graph owns the nodes and the module-provider map. Only the engine and the
// scheduler's coordinator mutate it; workers never touch graph state.
type Graph struct {
	dg        *simple.DirectedGraph
	nodes     map[int64]*Node
	providers map[string]int64 // module name → provider node id
	nextID    int64
}

// NewGraph returns an empty build graph.
func NewGraph() *Graph {
	return &Graph{
		dg:        simple.NewDirectedGraph(),
		nodes:     make(map[int64]*Node),
		providers: make(map[string]int64),
		nextID:    1,
	}
}

// AddNode allocates a Pending node and returns its id. A new node is both a
// root and a leaf until edges are added.
func (g *Graph) AddNode(name string, kind NodeKind) int64 {
	n := &Node{id: g.nextID, Name: name, Kind: kind}
	g.nextID++
	g.nodes[n.id] = n
	g.dg.AddNode(n)
	return n.id
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, xerrors.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	return n, nil
}

// Len returns the total number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// AddEdge records that dependent requires dependency. Self edges are
// rejected; unknown ids report ErrNodeNotFound.
func (g *Graph) AddEdge(dependent, dependency int64) error {
	from, ok := g.nodes[dependent]
	if !ok {
		return xerrors.Errorf("edge %d→%d: %w", dependent, dependency, ErrNodeNotFound)
	}
	to, ok := g.nodes[dependency]
	if !ok {
		return xerrors.Errorf("edge %d→%d: %w", dependent, dependency, ErrNodeNotFound)
	}
	if dependent == dependency {
		return xerrors.Errorf("edge %d→%d: self edge", dependent, dependency)
	}
	g.dg.SetEdge(g.dg.NewEdge(from, to))
	return nil
}

// Dependencies returns the ids the node depends on, in ascending order.
func (g *Graph) Dependencies(id int64) []int64 {
	return g.neighborIDs(id, true)
}

// Dependents returns the ids depending on the node, in ascending order.
func (g *Graph) Dependents(id int64) []int64 {
	return g.neighborIDs(id, false)
}

func (g *Graph) neighborIDs(id int64, out bool) []int64 {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	it := g.dg.From(id)
	if !out {
		it = g.dg.To(id)
	}
	var ids []int64
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Roots returns the ids with no dependents, Leaves those with no
// dependencies.
func (g *Graph) Roots() []int64 { return g.boundaryIDs(false) }

// Leaves returns the ids with no dependencies.
func (g *Graph) Leaves() []int64 { return g.boundaryIDs(true) }

func (g *Graph) boundaryIDs(out bool) []int64 {
	var ids []int64
	for id := range g.nodes {
		degree := g.dg.To(id).Len()
		if out {
			degree = g.dg.From(id).Len()
		}
		if degree == 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RegisterModuleProvider records node id as the provider of the named
// module. The last registration wins; the builder warns when it overwrites.
func (g *Graph) RegisterModuleProvider(module string, id int64) error {
	n, ok := g.nodes[id]
	if !ok {
		return xerrors.Errorf("module %s: %w", module, ErrNodeNotFound)
	}
	n.ModuleName = module
	g.providers[module] = id
	return nil
}

// ModuleProvider returns the provider node id for a module name.
func (g *Graph) ModuleProvider(module string) (int64, bool) {
	id, ok := g.providers[module]
	return id, ok
}

// ResolveModuleDependencies wires an edge from the consumer node to the
// provider of each imported module. Imports of the node's own module and of
// modules without a registered provider are skipped.
func (g *Graph) ResolveModuleDependencies(id int64, imports []string) error {
	if _, ok := g.nodes[id]; !ok {
		return xerrors.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	for _, module := range imports {
		provider, ok := g.providers[module]
		if !ok || provider == id {
			continue
		}
		if err := g.AddEdge(id, provider); err != nil {
			return err
		}
	}
	return nil
}

// HasCycle reports whether the graph contains a dependency cycle.
func (g *Graph) HasCycle() bool {
	_, err := topo.Sort(g.dg)
	return err != nil
}

// TopologicalOrder returns all node ids with every dependency ordered before
// its dependents, or ErrCycleDetected. gonum sorts along the edge direction
// (dependents first, because our edges point at dependencies), so the result
// is reversed into execution order.
func (g *Graph) TopologicalOrder() ([]int64, error) {
	sorted, err := topo.Sort(g.dg)
	if err != nil {
		return nil, xerrors.Errorf("topological order: %w", ErrCycleDetected)
	}
	ids := make([]int64, len(sorted))
	for i, n := range sorted {
		ids[len(sorted)-1-i] = n.ID()
	}
	return ids, nil
}

// ReadyNodes returns the Pending nodes whose dependencies are all Completed
// or Skipped, in ascending id order. This is the scheduler's coordination
// point.
func (g *Graph) ReadyNodes() []int64 {
	var ready []int64
	for id, n := range g.nodes {
		if n.State != Pending {
			continue
		}
		ok := true
		for it := g.dg.From(id); it.Next(); {
			if !g.nodes[it.Node().ID()].State.satisfied() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
	return ready
}

// StateCount aggregates node states.
type StateCount struct {
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Skipped   int
}

// Done reports that no node can still make progress.
func (c StateCount) Done() bool {
	return c.Pending+c.Ready+c.Running == 0
}

// HasFailed reports whether any node failed.
func (c StateCount) HasFailed() bool { return c.Failed > 0 }

// CountByState tallies the nodes per state.
func (g *Graph) CountByState() StateCount {
	var c StateCount
	for _, n := range g.nodes {
		switch n.State {
		case Pending:
			c.Pending++
		case Ready:
			c.Ready++
		case Running:
			c.Running++
		case Completed:
			c.Completed++
		case Failed:
			c.Failed++
		case Skipped:
			c.Skipped++
		}
	}
	return c
}

// Reset returns every node to Pending and clears timings and error
// messages. Edges and module providers are preserved.
func (g *Graph) Reset() {
	for _, n := range g.nodes {
		n.State = Pending
		n.Err = ""
		n.Duration = 0
	}
}

// IDs returns all node ids in ascending order.
func (g *Graph) IDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
