package cache

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo/internal/hasher"
)

// Manifest format, little-endian:
//
//	magic "OVO_CACHE" | version u32 | entry_count u64 | entries…
//
// Each entry: the four key hashes (u64 each), output path (u32 length +
// bytes), output size (u64), timestamp (i64), then the input paths (u32
// count, each u32 length + bytes). The file is rewritten whole on every
// save; there are no incremental updates.

const (
	manifestMagic   = "OVO_CACHE"
	manifestVersion = uint32(1)
	manifestName    = "manifest.bin"
)

// ErrInvalidFormat is returned when the manifest magic or structure is
// damaged.
var ErrInvalidFormat = xerrors.New("cache manifest: invalid format")

// ErrUnsupportedVersion is returned for manifests written by a newer ovo.
var ErrUnsupportedVersion = xerrors.New("cache manifest: unsupported version")

func manifestPath(dir string) string {
	return filepath.Join(dir, manifestName)
}

// SaveManifest atomically rewrites the on-disk manifest with all current
// entries.
func (c *Cache) SaveManifest() error {
	var buf bytes.Buffer
	buf.WriteString(manifestMagic)
	le := binary.LittleEndian
	var scratch [8]byte

	putU32 := func(v uint32) {
		le.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	}
	putU64 := func(v uint64) {
		le.PutUint64(scratch[:], v)
		buf.Write(scratch[:])
	}
	putString := func(s string) {
		putU32(uint32(len(s)))
		buf.WriteString(s)
	}

	putU32(manifestVersion)
	putU64(uint64(len(c.entries)))
	for _, e := range c.entries {
		putU64(e.Key.Source)
		putU64(e.Key.Flags)
		putU64(e.Key.Deps)
		putU64(e.Key.Combined)
		putString(e.OutputPath)
		putU64(uint64(e.OutputSize))
		putU64(uint64(e.Timestamp))
		putU32(uint32(len(e.Inputs)))
		for _, in := range e.Inputs {
			putString(in)
		}
	}

	if err := renameio.WriteFile(c.manifestPath, buf.Bytes(), 0644); err != nil {
		return xerrors.Errorf("save manifest: %w", err)
	}
	return nil
}

// loadManifest replaces the entry map with the on-disk manifest contents. A
// missing file surfaces as os.ErrNotExist; damaged contents as
// ErrInvalidFormat or ErrUnsupportedVersion.
func (c *Cache) loadManifest() error {
	b, err := os.ReadFile(c.manifestPath)
	if err != nil {
		return err
	}
	r := &manifestReader{b: b}

	if string(r.bytes(len(manifestMagic))) != manifestMagic {
		return ErrInvalidFormat
	}
	if v := r.u32(); r.ok() && v != manifestVersion {
		return xerrors.Errorf("version %d: %w", v, ErrUnsupportedVersion)
	}
	count := r.u64()

	entries := make(map[uint64]*Entry, count)
	for i := uint64(0); i < count && r.ok(); i++ {
		key := hasher.CacheKey{
			Source:   r.u64(),
			Flags:    r.u64(),
			Deps:     r.u64(),
			Combined: r.u64(),
		}
		e := &Entry{
			Key:        key,
			OutputPath: r.str(),
			OutputSize: int64(r.u64()),
			Timestamp:  int64(r.u64()),
		}
		n := r.u32()
		for j := uint32(0); j < n && r.ok(); j++ {
			e.Inputs = append(e.Inputs, r.str())
		}
		entries[key.Combined] = e
	}
	if !r.ok() {
		return ErrInvalidFormat
	}
	c.entries = entries
	return nil
}

// manifestReader cursors over the manifest bytes, latching the first
// truncation instead of erroring at every read.
type manifestReader struct {
	b   []byte
	off int
	bad bool
}

func (r *manifestReader) ok() bool { return !r.bad }

func (r *manifestReader) bytes(n int) []byte {
	if r.bad || r.off+n > len(r.b) || n < 0 {
		r.bad = true
		return nil
	}
	b := r.b[r.off : r.off+n]
	r.off += n
	return b
}

func (r *manifestReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *manifestReader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *manifestReader) str() string {
	n := r.u32()
	return string(r.bytes(int(n)))
}
