package engine

import (
	"path/filepath"
	"strings"

	"github.com/donaldfilimon/ovo"
	"github.com/donaldfilimon/ovo/internal/artifact"
	"github.com/donaldfilimon/ovo/internal/dag"
)

// buildTargetGraph instantiates the nodes for one target: module interface
// units first (so providers exist before consumers resolve their imports),
// then the remaining compiles, then the link or archive step, then an
// optional install step.
func (e *Engine) buildTargetGraph(t *Target) error {
	type unit struct {
		src  SourceFile
		kind ovo.SourceKind
	}
	var interfaces, others []unit
	for _, src := range t.Sources {
		kind := src.Kind
		if kind == ovo.SourceUnknown {
			kind = ovo.ClassifySource(src.Path)
		}
		if kind == ovo.SourceHeader || !kind.Compiled() {
			continue
		}
		if kind == ovo.SourceModuleInterface {
			interfaces = append(interfaces, unit{src, kind})
		} else {
			others = append(others, unit{src, kind})
		}
	}

	var objects []string
	var objectNodes []int64

	for _, u := range interfaces {
		module := u.src.ModuleName
		if module == "" {
			module = moduleNameFromPath(u.src.Path)
		}
		if _, ok := e.graph.ModuleProvider(module); ok {
			e.log.Printf("warning: module %q has multiple interface units; the last one wins", module)
		}
		bmi := e.bmiPath(module)
		obj := e.objPath(u.src.Path)
		argv := e.moduleArgv(t, u.src, bmi, obj)
		id := e.graph.AddModule(module, u.src.Path, bmi, obj, argv)
		objects = append(objects, obj)
		objectNodes = append(objectNodes, id)
	}
	// Interface units may import other modules themselves; resolve after
	// all providers of this target are registered.
	for _, id := range objectNodes {
		n, err := e.graph.Node(id)
		if err != nil {
			continue
		}
		imports := importsForSource(t, n.Inputs[0])
		if err := e.graph.ResolveModuleDependencies(id, imports); err != nil {
			return err
		}
	}

	for _, u := range others {
		obj := e.objPath(u.src.Path)
		argv := e.compileArgv(t, u.src, u.kind, obj)
		id := e.graph.AddCompile(u.src.Path, obj, argv)
		if len(u.src.Imports) > 0 {
			if err := e.graph.ResolveModuleDependencies(id, u.src.Imports); err != nil {
				return err
			}
		}
		objects = append(objects, obj)
		objectNodes = append(objectNodes, id)
	}

	if t.Kind == ObjectOnly {
		return nil
	}

	artKind := artifactKind(t.Kind)
	artID := e.registry.Register(t.Name, artKind, e.tripleString())
	art, _ := e.registry.Get(artID)

	var linkID int64
	if t.Kind == StaticLibrary {
		linkID = e.graph.AddArchive(t.Name, objects, art.OutputPath,
			e.archiveArgv(objects, art.OutputPath))
	} else {
		linkID = e.graph.AddLink(t.Name, objects, art.OutputPath,
			e.linkArgv(t, objects, art.OutputPath))
	}
	linkNode, err := e.graph.Node(linkID)
	if err != nil {
		return err
	}
	linkNode.ArtifactID = artID
	for _, objNode := range objectNodes {
		if err := e.graph.AddEdge(linkID, objNode); err != nil {
			return err
		}
	}
	e.linkNodes[t.Name] = linkID
	e.artifactIDs[t.Name] = artID

	if t.InstallDir != "" {
		dest := filepath.Join(t.InstallDir, filepath.Base(art.OutputPath))
		installID := e.graph.AddInstall(t.Name, art.OutputPath, dest,
			[]string{"cp", art.OutputPath, dest})
		if err := e.graph.AddEdge(installID, linkID); err != nil {
			return err
		}
	}
	return nil
}

// wireTargetDependencies connects each target's link step to the artifacts
// of the targets it depends on: an edge for ordering, the artifact path on
// the link line, and a registry dependency for transitive invalidation.
func (e *Engine) wireTargetDependencies(selected []*Target) {
	for _, t := range selected {
		linkID, ok := e.linkNodes[t.Name]
		if !ok {
			continue
		}
		for _, depName := range t.Deps {
			depLink, ok := e.linkNodes[depName]
			if !ok {
				continue // dependency target not selected or object-only
			}
			if err := e.graph.AddEdge(linkID, depLink); err != nil {
				continue
			}
			depArt, ok := e.registry.Get(e.artifactIDs[depName])
			if ok {
				n, err := e.graph.Node(linkID)
				if err == nil {
					n.Argv = append(n.Argv, depArt.OutputPath)
					n.Inputs = append(n.Inputs, depArt.OutputPath)
				}
				e.registry.AddDependency(e.artifactIDs[t.Name], depArt.ID)
			}
		}
	}
}

// importsForSource looks a source path back up in the target spec.
func importsForSource(t *Target, path string) []string {
	for _, src := range t.Sources {
		if src.Path == path {
			return src.Imports
		}
	}
	return nil
}

// moduleNameFromPath falls back to the file stem when the parser did not
// name the module, e.g. util.cppm provides "util".
func moduleNameFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		return base[:idx]
	}
	return base
}

func artifactKind(k TargetKind) artifact.Kind {
	switch k {
	case StaticLibrary:
		return artifact.StaticLibrary
	case SharedLibrary:
		return artifact.SharedLibrary
	default:
		return artifact.Executable
	}
}

func (e *Engine) tripleString() string {
	if e.cfg.Target == nil || e.cfg.Target.IsZero() {
		return ""
	}
	return e.cfg.Target.String()
}

// objPath derives {obj dir}/{basename}.o (platform object extension).
func (e *Engine) objPath(source string) string {
	base := filepath.Base(source)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	ext := artifact.Extension(artifact.Object, e.osTag())
	return filepath.Join(e.objDir(), base+ext)
}

// bmiPath derives {obj dir}/{module}.pcm.
func (e *Engine) bmiPath(module string) string {
	return filepath.Join(e.objDir(), module+artifact.Extension(artifact.ModuleInterface, e.osTag()))
}

func (e *Engine) osTag() string { return e.cfg.TargetOS }

// dependencyInputs returns the BMI paths of the modules a compile node
// imports, i.e. the first output of each CompileModule dependency. These
// feed the deps fingerprint of the cache key, so a rebuilt module interface
// invalidates its consumers.
func (e *Engine) dependencyInputs(id int64) []string {
	var deps []string
	for _, depID := range e.graph.Dependencies(id) {
		n, err := e.graph.Node(depID)
		if err != nil {
			continue
		}
		if n.Kind == dag.CompileModule && len(n.Outputs) > 0 {
			deps = append(deps, n.Outputs[0])
		}
	}
	return deps
}
