package engine

import (
	"os"

	"github.com/donaldfilimon/ovo/internal/dag"
	"github.com/donaldfilimon/ovo/internal/hasher"
)

// cacheable reports whether a node participates in the build cache. Link,
// archive and install steps are cheap relative to compilation and always
// re-run.
func cacheable(n *dag.Node) bool {
	return (n.Kind == dag.Compile || n.Kind == dag.CompileModule) && len(n.Inputs) > 0
}

// applyCaching walks the graph in topological order and marks clean
// compile nodes Skipped, returning how many were satisfied from the cache.
//
// A node is only eligible once all its graph dependencies were themselves
// skipped: if a module provider is about to re-run, its BMI will change, so
// the consumer's dirty check against the current file contents would be
// stale the moment the provider rebuilds.
func (e *Engine) applyCaching() int {
	order, err := e.graph.TopologicalOrder()
	if err != nil {
		return 0 // cycle; Build reports it separately
	}
	skipped := 0
	for _, id := range order {
		n, err := e.graph.Node(id)
		if err != nil || !cacheable(n) {
			continue
		}
		eligible := true
		for _, depID := range e.graph.Dependencies(id) {
			dep, err := e.graph.Node(depID)
			if err != nil || dep.State != dag.Skipped {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}
		check := e.cache.CheckDirty(n.Inputs[0], n.Argv, e.dependencyInputs(id))
		if check.Clean {
			n.State = dag.Skipped
			skipped++
		} else if e.cfg.Verbose {
			e.log.Printf("%s is dirty: %v", n.Name, check.Reason)
		}
	}
	return skipped
}

// updateCacheFromResults stores fresh fingerprints for every compile node
// that executed successfully, so the next build can skip it.
func (e *Engine) updateCacheFromResults() {
	for _, id := range e.graph.IDs() {
		n, err := e.graph.Node(id)
		if err != nil || !cacheable(n) || len(n.Outputs) == 0 {
			continue
		}
		if n.State != dag.Completed {
			continue
		}
		sh, err := e.cache.HashFile(n.Inputs[0])
		if err != nil {
			continue
		}
		deps := e.dependencyInputs(id)
		depHashes := make([]uint64, 0, len(deps))
		ok := true
		// The memoized BMI hashes are current here: a consumer is only
		// dirty-checked when its provider was skipped, so a re-run
		// provider's BMI was never hashed with stale contents.
		for _, dep := range deps {
			dh, err := e.cache.HashFile(dep)
			if err != nil {
				ok = false
				break
			}
			depHashes = append(depHashes, dh)
		}
		if !ok {
			continue
		}
		key := hasher.ComputeKey(sh, hasher.HashStrings(n.Argv), hasher.Combine(depHashes...))
		fi, err := os.Stat(n.Outputs[0])
		if err != nil {
			continue
		}
		inputs := append([]string{n.Inputs[0]}, deps...)
		e.cache.Store(key, n.Outputs[0], fi.Size(), inputs)
	}
}
