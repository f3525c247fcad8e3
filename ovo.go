// Package ovo holds the shared vocabulary of the ovo build orchestrator:
// build profiles, target triples and source-file classification. The build
// machinery itself lives in internal/.
package ovo

import "strings"

// TargetTriple describes a cross-compilation target. The zero value means
// "build for the host".
type TargetTriple struct {
	Arch string // e.g. x86_64, aarch64
	OS   string // e.g. linux, darwin, windows
	ABI  string // e.g. gnu, musl, msvc

	// CPUFeatures is passed through to the compiler verbatim
	// (e.g. "+avx2,-sse4.2"), or empty.
	CPUFeatures string
}

// String formats the triple the way clang's --target flag expects it,
// e.g. x86_64-linux-gnu.
func (t TargetTriple) String() string {
	parts := []string{t.Arch, t.OS}
	if t.ABI != "" {
		parts = append(parts, t.ABI)
	}
	return strings.Join(parts, "-")
}

// IsZero reports whether the triple is unset (host build).
func (t TargetTriple) IsZero() bool {
	return t.Arch == "" && t.OS == "" && t.ABI == ""
}
