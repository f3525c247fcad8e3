// Package engine composes the build core: it turns target specifications
// into a dependency graph, threads the cache through it, invokes the
// scheduler, and reconciles results back into the cache and the artifact
// registry.
package engine

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo"
	"github.com/donaldfilimon/ovo/internal/artifact"
	"github.com/donaldfilimon/ovo/internal/cache"
	"github.com/donaldfilimon/ovo/internal/dag"
	"github.com/donaldfilimon/ovo/internal/env"
	"github.com/donaldfilimon/ovo/internal/hasher"
	"github.com/donaldfilimon/ovo/internal/scheduler"
)

// Config carries everything the engine needs; the CLI collaborator fills it
// in.
type Config struct {
	Profile ovo.Profile
	Target  *ovo.TargetTriple // nil = host build

	MaxJobs   int // 0 = CPU count
	OutputDir string
	CacheDir  string

	Verbose      bool
	KeepGoing    bool // continue past failures
	DryRun       bool
	ForceRebuild bool

	CC       string
	CXX      string
	Linker   string
	Archiver string

	// TargetOS overrides the artifact extension table row; empty selects
	// the cross target's OS, or the host.
	TargetOS string

	Log        *log.Logger
	OnProgress func(scheduler.Progress)
}

// ErrUnknownTarget is reported when Build is asked for a target that was
// never added.
var ErrUnknownTarget = xerrors.New("engine: unknown target")

// Result is what a Build call hands back to the caller.
type Result struct {
	Success       bool
	TargetsBuilt  int // nodes executed successfully
	TargetsCached int // nodes satisfied from the cache
	TargetsFailed int
	TotalTime     time.Duration
	Artifacts     []int64 // valid artifact ids
	Errors        []string
}

// Engine owns the build lifecycle. Not safe for concurrent use; the public
// API is single-threaded by contract.
type Engine struct {
	cfg      Config
	log      *log.Logger
	cache    *cache.Cache
	graph    *dag.Graph
	registry *artifact.Registry

	targets     map[string]*Target
	targetOrder []string

	// linkNodes and artifactIDs remember, per built target, the node that
	// produces its artifact, for cross-target wiring.
	linkNodes   map[string]int64
	artifactIDs map[string]int64
}

// New constructs an engine: cache, empty graph, empty registry, empty
// target map.
func New(cfg Config) (*Engine, error) {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = env.DefaultOutputDir()
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = env.DefaultCacheDir()
	}
	if cfg.CC == "" {
		cfg.CC = "clang"
	}
	if cfg.CXX == "" {
		cfg.CXX = "clang++"
	}
	if cfg.Linker == "" {
		cfg.Linker = cfg.CXX
	}
	if cfg.Archiver == "" {
		cfg.Archiver = "ar"
	}
	if cfg.TargetOS == "" && cfg.Target != nil {
		cfg.TargetOS = cfg.Target.OS
	}
	if cfg.TargetOS == "" {
		cfg.TargetOS = runtime.GOOS
	}

	c, err := cache.Open(cfg.CacheDir, cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		log:      cfg.Log,
		cache:    c,
		graph:    dag.NewGraph(),
		registry: artifact.NewRegistry(cfg.profileDir(), cfg.TargetOS),
		targets:  make(map[string]*Target),
	}
	return e, nil
}

func (c *Config) profileDir() string {
	return filepath.Join(c.OutputDir, c.Profile.Subdir())
}

func (e *Engine) objDir() string {
	return filepath.Join(e.cfg.profileDir(), "obj")
}

// AddTarget stores a target spec keyed by name, replacing any previous spec
// with that name.
func (e *Engine) AddTarget(t Target) {
	if _, ok := e.targets[t.Name]; !ok {
		e.targetOrder = append(e.targetOrder, t.Name)
	}
	copied := t
	e.targets[t.Name] = &copied
}

// Graph exposes the current build graph (read-only by convention); the CLI
// uses it for graph listings.
func (e *Engine) Graph() *dag.Graph { return e.graph }

// Registry exposes the artifact registry.
func (e *Engine) Registry() *artifact.Registry { return e.registry }

// Build runs the selected targets (all targets when names is empty) and
// returns the aggregated result. Unknown target names fail the build before
// any graph construction.
func (e *Engine) Build(ctx context.Context, names []string) (*Result, error) {
	started := time.Now()
	result := &Result{}

	if len(names) == 0 {
		names = append([]string(nil), e.targetOrder...)
	}
	selected := make([]*Target, 0, len(names))
	for _, name := range names {
		t, ok := e.targets[name]
		if !ok {
			result.Errors = append(result.Errors,
				xerrors.Errorf("%q: %w", name, ErrUnknownTarget).Error())
			result.TotalTime = time.Since(started)
			return result, nil
		}
		selected = append(selected, t)
	}

	e.cache.BeginBuild()
	if err := e.registry.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.objDir(), 0755); err != nil {
		return nil, xerrors.Errorf("obj dir: %w", err)
	}

	e.graph = dag.NewGraph()
	e.linkNodes = make(map[string]int64)
	e.artifactIDs = make(map[string]int64)
	for _, t := range selected {
		if err := e.buildTargetGraph(t); err != nil {
			return nil, err
		}
	}
	e.wireTargetDependencies(selected)

	if e.graph.HasCycle() {
		result.Errors = append(result.Errors, "Circular dependency detected in build graph")
		result.TotalTime = time.Since(started)
		return result, nil
	}

	if !e.cfg.ForceRebuild {
		result.TargetsCached = e.applyCaching()
	}

	sched := scheduler.Scheduler{
		Log:           e.log,
		Workers:       e.cfg.MaxJobs,
		StopOnFailure: !e.cfg.KeepGoing,
		Verbose:       e.cfg.Verbose,
		OnProgress:    e.cfg.OnProgress,
	}
	var stats scheduler.Stats
	var err error
	switch {
	case e.cfg.DryRun:
		stats, err = sched.ExecuteDryRun(e.graph)
	case e.cfg.MaxJobs == 1:
		stats, err = sched.ExecuteSequential(ctx, e.graph)
	default:
		stats, err = sched.Execute(ctx, e.graph)
	}
	if err != nil && !e.cfg.DryRun {
		result.Errors = append(result.Errors, err.Error())
	}

	if !e.cfg.DryRun {
		e.updateCacheFromResults()
		if err := e.cache.SaveManifest(); err != nil {
			e.log.Printf("warning: %v", err)
		}
	}
	e.validateArtifacts()

	result.TargetsBuilt = stats.Completed
	result.TargetsFailed = stats.Failed
	for _, id := range e.graph.IDs() {
		n, err := e.graph.Node(id)
		if err != nil {
			continue
		}
		if n.State == dag.Failed && n.Err != "" && n.Err != "dependency failed" {
			result.Errors = append(result.Errors, n.Name+": "+n.Err)
		}
	}
	for _, name := range names {
		if id, ok := e.artifactIDs[name]; ok && e.registry.IsValid(id) {
			result.Artifacts = append(result.Artifacts, id)
		}
	}
	result.Success = stats.Failed == 0 && len(result.Errors) == 0
	result.TotalTime = time.Since(started)
	return result, nil
}

// validateArtifacts marks the artifacts of successfully linked targets
// valid, recording content hash, size and timestamp of the produced file.
// Dry runs validate nothing (no file exists to stat).
func (e *Engine) validateArtifacts() {
	if e.cfg.DryRun {
		return
	}
	for _, id := range e.graph.IDs() {
		n, err := e.graph.Node(id)
		if err != nil || n.ArtifactID == 0 {
			continue
		}
		if n.State != dag.Completed && n.State != dag.Skipped {
			continue
		}
		out := n.Outputs[0]
		fi, err := os.Stat(out)
		if err != nil {
			continue
		}
		h, err := hasher.HashFile(out)
		if err != nil {
			continue
		}
		e.registry.MarkValid(n.ArtifactID, h, fi.Size(), fi.ModTime().Unix())
	}
}

// Clean removes every registered output, clears the cache, and removes the
// output directory. A missing output directory is not an error.
func (e *Engine) Clean() error {
	e.registry.Clean()
	e.cache.Clear()
	if err := e.cache.SaveManifest(); err != nil {
		e.log.Printf("warning: %v", err)
	}
	if err := os.RemoveAll(e.cfg.OutputDir); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("clean: %w", err)
	}
	return nil
}

// Stats aggregates graph and cache counters.
type Stats struct {
	Nodes     dag.StateCount
	NodeCount int
	Cache     cache.Stats
	HitRate   float64
	Artifacts int
}

// Stats returns the current graph and cache counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Nodes:     e.graph.CountByState(),
		NodeCount: e.graph.Len(),
		Cache:     e.cache.Stats(),
		HitRate:   e.cache.HitRate(),
		Artifacts: e.registry.Len(),
	}
}
