// Package artifact tracks named, typed build outputs (executables,
// libraries, objects, module interfaces) with per-platform filename
// derivation and transitive invalidation.
package artifact

import (
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/xerrors"
)

// Kind enumerates the artifact types the registry knows how to name.
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
	Object
	ModuleInterface
	PrecompiledHeader
)

var kindNames = map[Kind]string{
	Executable:        "executable",
	StaticLibrary:     "static-library",
	SharedLibrary:     "shared-library",
	Object:            "object",
	ModuleInterface:   "module-interface",
	PrecompiledHeader: "precompiled-header",
}

func (k Kind) String() string { return kindNames[k] }

// Extension returns the platform filename extension for an artifact kind.
// The .pcm extension for module interfaces follows the Clang BMI convention
// on every platform.
func Extension(kind Kind, osTag string) string {
	windows := osTag == "windows"
	switch kind {
	case Executable:
		if windows {
			return ".exe"
		}
		return ""
	case StaticLibrary:
		if windows {
			return ".lib"
		}
		return ".a"
	case SharedLibrary:
		switch osTag {
		case "windows":
			return ".dll"
		case "darwin":
			return ".dylib"
		default:
			return ".so"
		}
	case Object:
		if windows {
			return ".obj"
		}
		return ".o"
	case ModuleInterface:
		return ".pcm"
	case PrecompiledHeader:
		return ".pch"
	}
	return ""
}

// subdir places artifacts under bin/, lib/ or obj/ in the output directory.
func subdir(kind Kind) string {
	switch kind {
	case Executable:
		return "bin"
	case StaticLibrary, SharedLibrary:
		return "lib"
	default:
		return "obj"
	}
}

// Artifact is one registered build output.
type Artifact struct {
	ID         int64
	Name       string // without extension
	Kind       Kind
	OutputPath string
	Hash       uint64 // content hash of the produced file, 0 until validated
	Size       int64
	Timestamp  int64 // epoch seconds recorded by the last validation (the engine passes the output's modification time)
	Deps       []int64
	Valid      bool
	Triple     string // cross target, empty for host builds
}

// Registry assigns stable identifiers and output paths to artifacts and
// tracks their validity. It is not safe for concurrent use; the engine owns
// it between scheduler invocations.
type Registry struct {
	outputDir string
	osTag     string // GOOS-style tag selecting the extension table row
	byID      map[int64]*Artifact
	byName    map[string]int64
	nextID    int64
}

// NewRegistry creates a registry rooted at outputDir. An empty osTag selects
// the host platform.
func NewRegistry(outputDir, osTag string) *Registry {
	if osTag == "" {
		osTag = runtime.GOOS
	}
	return &Registry{
		outputDir: outputDir,
		osTag:     osTag,
		byID:      make(map[int64]*Artifact),
		byName:    make(map[string]int64),
		nextID:    1,
	}
}

// Register allocates an artifact in the invalid state and derives its output
// path as {outputDir}/{bin|lib|obj}/{name}{ext}. Registering a name twice
// returns the existing id.
func (r *Registry) Register(name string, kind Kind, triple string) int64 {
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	a := &Artifact{
		ID:         id,
		Name:       name,
		Kind:       kind,
		OutputPath: filepath.Join(r.outputDir, subdir(kind), name+Extension(kind, r.osTag)),
		Triple:     triple,
	}
	r.byID[id] = a
	r.byName[name] = id
	return id
}

// Get returns the artifact with the given id.
func (r *Registry) Get(id int64) (*Artifact, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// GetByName returns the artifact registered under name.
func (r *Registry) GetByName(name string) (*Artifact, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// IsValid reports whether the artifact exists and its validity bit is set.
func (r *Registry) IsValid(id int64) bool {
	a, ok := r.byID[id]
	return ok && a.Valid
}

// MarkValid records a successful production of the artifact.
func (r *Registry) MarkValid(id int64, hash uint64, size, timestamp int64) {
	a, ok := r.byID[id]
	if !ok {
		return
	}
	a.Valid = true
	a.Hash = hash
	a.Size = size
	a.Timestamp = timestamp
}

// AddDependency records that artifact id is built from artifact dep, so that
// invalidating dep also invalidates id.
func (r *Registry) AddDependency(id, dep int64) error {
	a, ok := r.byID[id]
	if !ok {
		return xerrors.Errorf("artifact %d: not registered", id)
	}
	if _, ok := r.byID[dep]; !ok {
		return xerrors.Errorf("artifact %d: not registered", dep)
	}
	for _, d := range a.Deps {
		if d == dep {
			return nil
		}
	}
	a.Deps = append(a.Deps, dep)
	return nil
}

// InvalidateWithDependents clears the validity bit of the artifact and of
// every artifact that transitively depends on it. The validity bit doubles
// as the visited flag, so each artifact is processed at most once and the
// walk terminates on arbitrary (even cyclic) dependency records.
func (r *Registry) InvalidateWithDependents(id int64) {
	a, ok := r.byID[id]
	if !ok {
		return
	}
	a.Valid = false
	for _, other := range r.byID {
		if !other.Valid {
			continue
		}
		for _, dep := range other.Deps {
			if dep == id {
				r.InvalidateWithDependents(other.ID)
				break
			}
		}
	}
}

// EnsureDirectories creates bin/, lib/ and obj/ under the output directory.
// Already-existing directories are fine.
func (r *Registry) EnsureDirectories() error {
	for _, d := range []string{"bin", "lib", "obj"} {
		if err := os.MkdirAll(filepath.Join(r.outputDir, d), 0755); err != nil {
			return xerrors.Errorf("ensure %s: %w", d, err)
		}
	}
	return nil
}

// Clean unlinks every registered output (best effort) and invalidates all
// artifacts.
func (r *Registry) Clean() {
	for _, a := range r.byID {
		if err := os.Remove(a.OutputPath); err != nil && !os.IsNotExist(err) {
			continue // best effort
		}
	}
	for _, a := range r.byID {
		a.Valid = false
	}
}

// OutputDir returns the directory the registry derives paths under.
func (r *Registry) OutputDir() string { return r.outputDir }

// Len returns the number of registered artifacts.
func (r *Registry) Len() int { return len(r.byID) }
