package engine

import "github.com/donaldfilimon/ovo"

// TargetKind selects what a target links into.
type TargetKind int

const (
	Executable TargetKind = iota
	StaticLibrary
	SharedLibrary
	ObjectOnly // compile only, no link step
)

var targetKindNames = map[TargetKind]string{
	Executable:    "executable",
	StaticLibrary: "static-library",
	SharedLibrary: "shared-library",
	ObjectOnly:    "object",
}

func (k TargetKind) String() string { return targetKindNames[k] }

// SourceFile is one translation unit of a target, as handed over by the
// project parser. Kind may be left as SourceUnknown, in which case the
// engine classifies by extension. ModuleName and Imports carry the C++20
// module wiring discovered by the parser's module scan.
type SourceFile struct {
	Path       string
	Kind       ovo.SourceKind
	ModuleName string   // set for module interface units
	Imports    []string // module names this unit imports
}

// Target is one named build target: sources plus compile/link options.
type Target struct {
	Name    string
	Kind    TargetKind
	Sources []SourceFile

	IncludePaths  []string
	LibraryPaths  []string
	Libraries     []string
	Defines       []string
	CompilerFlags []string
	LinkerFlags   []string

	// Deps names other targets whose artifacts this target links against.
	Deps []string

	// InstallDir, when set, adds an install step copying the linked
	// artifact there.
	InstallDir string
}
