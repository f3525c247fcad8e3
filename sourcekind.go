package ovo

import (
	"path/filepath"
	"strings"
)

// SourceKind classifies a translation unit by what the compiler driver needs
// to do with it.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceC
	SourceCXX
	SourceModuleInterface // C++20 module interface unit (.cppm/.ixx)
	SourceModuleImpl      // module implementation unit
	SourceObjC
	SourceObjCXX
	SourceAsmATT
	SourceAsmIntel
	SourceHeader
)

var sourceKindNames = map[SourceKind]string{
	SourceUnknown:         "unknown",
	SourceC:               "c",
	SourceCXX:             "c++",
	SourceModuleInterface: "c++-module-interface",
	SourceModuleImpl:      "c++-module-impl",
	SourceObjC:            "objective-c",
	SourceObjCXX:          "objective-c++",
	SourceAsmATT:          "asm",
	SourceAsmIntel:        "asm-intel",
	SourceHeader:          "header",
}

func (k SourceKind) String() string { return sourceKindNames[k] }

// extensionKinds is the closed extension set understood by the classifier.
var extensionKinds = map[string]SourceKind{
	".c":    SourceC,
	".cc":   SourceCXX,
	".cpp":  SourceCXX,
	".cxx":  SourceCXX,
	".c++":  SourceCXX,
	".cppm": SourceModuleInterface,
	".ixx":  SourceModuleInterface,
	".mpp":  SourceModuleInterface,
	".m":    SourceObjC,
	".mm":   SourceObjCXX,
	".s":    SourceAsmATT,
	".S":    SourceAsmATT,
	".asm":  SourceAsmIntel,
	".h":    SourceHeader,
	".hh":   SourceHeader,
	".hpp":  SourceHeader,
	".hxx":  SourceHeader,
	".inl":  SourceHeader,
}

// ClassifySource determines the kind of a source file from its extension.
// Both .s and .S (assembly that goes through the preprocessor) classify as
// AT&T assembly. The extension is matched as written first, then lower-cased.
func ClassifySource(path string) SourceKind {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(base, '.')
	if idx < 0 {
		return SourceUnknown
	}
	ext := base[idx:]
	if k, ok := extensionKinds[ext]; ok {
		return k
	}
	if k, ok := extensionKinds[strings.ToLower(ext)]; ok {
		return k
	}
	return SourceUnknown
}

// Compiled reports whether the kind produces an object file (headers and
// unknown files are skipped by the engine).
func (k SourceKind) Compiled() bool {
	switch k {
	case SourceC, SourceCXX, SourceModuleInterface, SourceModuleImpl,
		SourceObjC, SourceObjCXX, SourceAsmATT, SourceAsmIntel:
		return true
	}
	return false
}

// NeedsCXX reports whether the kind is driven through the C++ compiler
// rather than the C compiler.
func (k SourceKind) NeedsCXX() bool {
	switch k {
	case SourceCXX, SourceModuleInterface, SourceModuleImpl, SourceObjCXX:
		return true
	}
	return false
}
