package engine

import "github.com/donaldfilimon/ovo"

// Argv synthesis. The shape is fixed: tool, -c/-o and the translation unit
// first, then profile flags, module flags, includes, defines, user flags,
// and the cross target last. Flag order is part of the cache key, so it must
// be deterministic for a given target spec.

func (e *Engine) toolFor(kind ovo.SourceKind) string {
	if kind.NeedsCXX() {
		return e.cfg.CXX
	}
	return e.cfg.CC
}

func (e *Engine) compileArgv(t *Target, src SourceFile, kind ovo.SourceKind, obj string) []string {
	argv := []string{e.toolFor(kind), "-c", "-o", obj, src.Path}
	argv = append(argv, e.cfg.Profile.OptFlags()...)
	if len(src.Imports) > 0 || kind == ovo.SourceModuleImpl {
		argv = append(argv, "-fmodules", "-fprebuilt-module-path="+e.objDir())
	}
	argv = e.appendCommonFlags(argv, t)
	return argv
}

func (e *Engine) moduleArgv(t *Target, src SourceFile, bmi, obj string) []string {
	argv := []string{e.cfg.CXX, "-c", "-o", obj, src.Path}
	argv = append(argv, e.cfg.Profile.OptFlags()...)
	argv = append(argv, "-fmodules", "-fmodule-output="+bmi)
	if len(src.Imports) > 0 {
		argv = append(argv, "-fprebuilt-module-path="+e.objDir())
	}
	argv = e.appendCommonFlags(argv, t)
	return argv
}

func (e *Engine) appendCommonFlags(argv []string, t *Target) []string {
	for _, inc := range t.IncludePaths {
		argv = append(argv, "-I"+inc)
	}
	for _, def := range t.Defines {
		argv = append(argv, "-D"+def)
	}
	argv = append(argv, t.CompilerFlags...)
	if triple := e.tripleString(); triple != "" {
		argv = append(argv, "--target="+triple)
		if e.cfg.Target.CPUFeatures != "" {
			argv = append(argv, "-mcpu="+e.cfg.Target.CPUFeatures)
		}
	}
	return argv
}

func (e *Engine) linkArgv(t *Target, objects []string, output string) []string {
	argv := []string{e.cfg.Linker, "-o", output}
	argv = append(argv, objects...)
	if t.Kind == SharedLibrary {
		argv = append(argv, "-shared")
	}
	for _, dir := range t.LibraryPaths {
		argv = append(argv, "-L"+dir)
	}
	for _, lib := range t.Libraries {
		argv = append(argv, "-l"+lib)
	}
	argv = append(argv, t.LinkerFlags...)
	if triple := e.tripleString(); triple != "" {
		argv = append(argv, "--target="+triple)
	}
	return argv
}

func (e *Engine) archiveArgv(objects []string, output string) []string {
	argv := []string{e.cfg.Archiver, "rcs", output}
	return append(argv, objects...)
}
