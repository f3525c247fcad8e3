package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtensionTable(t *testing.T) {
	for _, tt := range []struct {
		kind Kind
		os   string
		want string
	}{
		{Executable, "linux", ""},
		{Executable, "windows", ".exe"},
		{StaticLibrary, "linux", ".a"},
		{StaticLibrary, "windows", ".lib"},
		{SharedLibrary, "linux", ".so"},
		{SharedLibrary, "darwin", ".dylib"},
		{SharedLibrary, "windows", ".dll"},
		{Object, "linux", ".o"},
		{Object, "windows", ".obj"},
		{ModuleInterface, "linux", ".pcm"},
		{ModuleInterface, "windows", ".pcm"},
		{PrecompiledHeader, "darwin", ".pch"},
	} {
		if got := Extension(tt.kind, tt.os); got != tt.want {
			t.Errorf("Extension(%v, %s) = %q, want %q", tt.kind, tt.os, got, tt.want)
		}
	}
}

func TestRegisterDerivesPaths(t *testing.T) {
	r := NewRegistry("/out", "linux")
	exe := r.Register("app", Executable, "")
	lib := r.Register("base", StaticLibrary, "")
	obj := r.Register("util", Object, "")

	for _, tt := range []struct {
		id   int64
		want string
	}{
		{exe, "/out/bin/app"},
		{lib, "/out/lib/base.a"},
		{obj, "/out/obj/util.o"},
	} {
		a, ok := r.Get(tt.id)
		if !ok {
			t.Fatalf("artifact %d not found", tt.id)
		}
		if a.OutputPath != tt.want {
			t.Errorf("artifact %d path = %q, want %q", tt.id, a.OutputPath, tt.want)
		}
		if a.Valid {
			t.Errorf("artifact %d registered valid, want invalid", tt.id)
		}
	}

	if again := r.Register("app", Executable, ""); again != exe {
		t.Errorf("re-registering app returned %d, want %d", again, exe)
	}
	if a, ok := r.GetByName("base"); !ok || a.ID != lib {
		t.Errorf("GetByName(base) = %v, %v", a, ok)
	}
}

func TestInvalidateWithDependents(t *testing.T) {
	r := NewRegistry("/out", "linux")
	base := r.Register("libbase", StaticLibrary, "")
	app := r.Register("app", Executable, "")
	if err := r.AddDependency(app, base); err != nil {
		t.Fatal(err)
	}
	r.MarkValid(base, 1, 10, 100)
	r.MarkValid(app, 2, 20, 100)

	r.InvalidateWithDependents(base)

	if r.IsValid(base) {
		t.Error("libbase still valid after invalidation")
	}
	if r.IsValid(app) {
		t.Error("app still valid after its dependency was invalidated")
	}
}

func TestInvalidateTransitiveChain(t *testing.T) {
	r := NewRegistry("/out", "linux")
	a := r.Register("a", StaticLibrary, "")
	b := r.Register("b", SharedLibrary, "")
	c := r.Register("c", Executable, "")
	d := r.Register("d", Executable, "")
	r.AddDependency(b, a)
	r.AddDependency(c, b)
	for _, id := range []int64{a, b, c, d} {
		r.MarkValid(id, 0, 0, 0)
	}

	r.InvalidateWithDependents(a)

	got := map[string]bool{
		"a": r.IsValid(a), "b": r.IsValid(b),
		"c": r.IsValid(c), "d": r.IsValid(d),
	}
	want := map[string]bool{"a": false, "b": false, "c": false, "d": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("validity after invalidation: diff (-want +got):\n%s", diff)
	}
}

func TestEnsureDirectoriesAndClean(t *testing.T) {
	out := t.TempDir()
	r := NewRegistry(out, "linux")
	if err := r.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	// Idempotent: existing directories are not an error.
	if err := r.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	id := r.Register("app", Executable, "")
	a, _ := r.Get(id)
	if err := os.WriteFile(a.OutputPath, []byte("elf"), 0755); err != nil {
		t.Fatal(err)
	}
	r.MarkValid(id, 1, 3, 1)

	r.Clean()

	if _, err := os.Stat(filepath.Join(out, "bin", "app")); !os.IsNotExist(err) {
		t.Errorf("output still present after Clean: %v", err)
	}
	if r.IsValid(id) {
		t.Error("artifact still valid after Clean")
	}
}
