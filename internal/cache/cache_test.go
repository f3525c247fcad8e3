package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/donaldfilimon/ovo/internal/hasher"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	if err := os.WriteFile(fn, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestStoreAndCachedOutput(t *testing.T) {
	c := newCache(t)
	k := hasher.ComputeKey(1, 2, 3)
	c.Store(k, "/tmp/test.o", 42, []string{"test.c"})

	got, ok := c.CachedOutput(k)
	if !ok || got != "/tmp/test.o" {
		t.Fatalf("CachedOutput = %q, %v; want /tmp/test.o, true", got, ok)
	}

	// A key with a matching combined hash but differing components must
	// miss.
	forged := k
	forged.Deps++
	if _, ok := c.CachedOutput(forged); ok {
		t.Error("CachedOutput matched a key with a mismatched component")
	}
}

func TestCheckDirtyReasons(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	flags := []string{"-O2", "-Wall"}
	src := writeFile(t, dir, "test.c", "int main() { return 0; }\n")
	out := writeFile(t, dir, "test.o", "obj")

	// Never stored: NotCached.
	check := c.CheckDirty(src, flags, nil)
	if check.Clean || check.Reason != NotCached {
		t.Fatalf("fresh CheckDirty = %+v, want Dirty(NotCached)", check)
	}

	// Store under the computed key, then the same check is clean.
	c.Store(check.Key, out, 3, []string{src})
	check = c.CheckDirty(src, flags, nil)
	if !check.Clean {
		t.Fatalf("CheckDirty after Store = %+v, want Clean", check)
	}

	// Removing the output: OutputMissing.
	if err := os.Remove(out); err != nil {
		t.Fatal(err)
	}
	check = c.CheckDirty(src, flags, nil)
	if check.Clean || check.Reason != OutputMissing {
		t.Fatalf("CheckDirty without output = %+v, want Dirty(OutputMissing)", check)
	}

	// Removing the source: SourceModified. The hash memo must not mask the
	// deletion across builds, so clear it the way a new session would.
	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	c.InvalidateFile(src)
	check = c.CheckDirty(src, flags, nil)
	if check.Clean || check.Reason != SourceModified {
		t.Fatalf("CheckDirty without source = %+v, want Dirty(SourceModified)", check)
	}
}

func TestCheckDirtyDependencyMissing(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	src := writeFile(t, dir, "main.cpp", "import util;\n")

	check := c.CheckDirty(src, nil, []string{filepath.Join(dir, "util.pcm")})
	if check.Clean || check.Reason != DependencyModified {
		t.Fatalf("CheckDirty with missing dep = %+v, want Dirty(DependencyModified)", check)
	}
}

func TestCheckDirtyCorruptedEntry(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	src := writeFile(t, dir, "a.c", "int a;\n")
	out := writeFile(t, dir, "a.o", "obj")

	check := c.CheckDirty(src, nil, nil)
	// Plant an entry at the right combined hash with a wrong component.
	bad := check.Key
	bad.Flags++
	c.entries[check.Key.Combined] = &Entry{Key: bad, OutputPath: out}

	check = c.CheckDirty(src, nil, nil)
	if check.Clean || check.Reason != CacheCorrupted {
		t.Fatalf("CheckDirty with forged entry = %+v, want Dirty(CacheCorrupted)", check)
	}
}

func TestDifferentFlagsMiss(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	src := writeFile(t, dir, "x.c", "int x;\n")
	out := writeFile(t, dir, "x.o", "obj")

	check := c.CheckDirty(src, []string{"-O0"}, nil)
	c.Store(check.Key, out, 3, []string{src})

	if got := c.CheckDirty(src, []string{"-O0"}, nil); !got.Clean {
		t.Fatalf("same flags = %+v, want Clean", got)
	}
	if got := c.CheckDirty(src, []string{"-O2"}, nil); got.Clean || got.Reason != NotCached {
		t.Fatalf("changed flags = %+v, want Dirty(NotCached)", got)
	}
}

func TestInvalidateFile(t *testing.T) {
	c := newCache(t)
	k := hasher.ComputeKey(1, 2, 3)
	c.Store(k, "/tmp/a.o", 1, []string{"/src/a.c", "/src/util.pcm"})
	other := hasher.ComputeKey(4, 5, 6)
	c.Store(other, "/tmp/b.o", 1, []string{"/src/b.c"})

	c.InvalidateFile("/src/util.pcm")

	if _, ok := c.CachedOutput(k); ok {
		t.Error("entry listing the invalidated file survived")
	}
	if _, ok := c.CachedOutput(other); !ok {
		t.Error("unrelated entry was evicted")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("evictions = %d, want 1", got)
	}
}

func TestHitRateAndClear(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	if got := c.HitRate(); got != 0 {
		t.Errorf("HitRate on fresh cache = %v, want 0", got)
	}
	src := writeFile(t, dir, "m.c", "int m;\n")
	out := writeFile(t, dir, "m.o", "obj")

	check := c.CheckDirty(src, nil, nil) // miss
	c.Store(check.Key, out, 3, []string{src})
	c.CheckDirty(src, nil, nil) // hit

	if got := c.HitRate(); got != 50 {
		t.Errorf("HitRate = %v, want 50", got)
	}

	c.Clear()
	if c.Len() != 0 || c.Stats() != (Stats{}) {
		t.Errorf("Clear left entries=%d stats=%+v", c.Len(), c.Stats())
	}
	if c.Dir() == "" {
		t.Error("Clear dropped the cache directory path")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	k1 := hasher.ComputeKey(1, 2, 3)
	k2 := hasher.ComputeKey(7, 8, 9)
	c.Store(k1, "/tmp/test.o", 42, []string{"test.c", "util.pcm"})
	c.Store(k2, "/tmp/other.o", 7, nil)
	if err := c.SaveManifest(); err != nil {
		t.Fatal(err)
	}

	// A new cache over the same directory sees the same mapping.
	c2, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := c2.CachedOutput(k1); !ok || got != "/tmp/test.o" {
		t.Errorf("CachedOutput(k1) after reload = %q, %v", got, ok)
	}
	e1 := c.entries[k1.Combined]
	e2 := c2.entries[k1.Combined]
	if diff := cmp.Diff(e1.Inputs, e2.Inputs); diff != "" {
		t.Errorf("inputs round trip: diff (-saved +loaded):\n%s", diff)
	}
	if e2.OutputSize != 42 || e2.Timestamp != e1.Timestamp {
		t.Errorf("entry round trip = %+v, want %+v", e2, e1)
	}
	if c2.Len() != 2 {
		t.Errorf("reloaded cache has %d entries, want 2", c2.Len())
	}
}

func TestManifestRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, manifestName, "BOGUS_MAGICxxxxxxxxxxxx")

	// Open survives (fresh start), but the explicit load classifies.
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("corrupt manifest produced %d entries", c.Len())
	}
	if err := c.loadManifest(); err == nil {
		t.Fatal("loadManifest accepted a bad magic")
	}
}

func TestManifestRejectsFutureVersion(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SaveManifest(); err != nil {
		t.Fatal(err)
	}
	fn := manifestPath(dir)
	b, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	b[len(manifestMagic)] = 99 // bump the version field
	if err := os.WriteFile(fn, b, 0644); err != nil {
		t.Fatal(err)
	}
	if err := c.loadManifest(); err == nil {
		t.Fatal("loadManifest accepted a future version")
	}
}

func TestHashFileMemo(t *testing.T) {
	dir := t.TempDir()
	c := newCache(t)
	src := writeFile(t, dir, "memo.c", "one")
	h1, err := c.HashFile(src)
	if err != nil {
		t.Fatal(err)
	}
	// Rewrite the file; the memoized hash must be returned until the path
	// is invalidated.
	if err := os.WriteFile(src, []byte("two"), 0644); err != nil {
		t.Fatal(err)
	}
	h2, err := c.HashFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("memo returned fresh hash %x, want memoized %x", h2, h1)
	}
	c.InvalidateFile(src)
	h3, err := c.HashFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 {
		t.Error("hash unchanged after invalidation and rewrite")
	}
}
