// Package hasher produces the 64-bit content and command-line fingerprints
// which the build cache keys on. xxhash is deterministic across processes
// and platforms, which the persisted manifest depends on.
package hasher

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/xerrors"
)

// chunkSize is the read granularity for HashFile.
const chunkSize = 8192

// HashFile hashes the contents of the file at path. The file is streamed in
// 8 KiB chunks so that large translation units do not get slurped into
// memory. The returned error wraps the underlying os error; callers classify
// with errors.Is(err, os.ErrNotExist) / errors.Is(err, os.ErrPermission).
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, xerrors.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	d := xxhash.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, xerrors.Errorf("hash %s: %w", path, err)
		}
	}
	return d.Sum64(), nil
}

// HashBytes hashes a byte slice in one shot.
func HashBytes(b []byte) uint64 { return xxhash.Sum64(b) }

// HashString hashes a string in one shot.
func HashString(s string) uint64 { return xxhash.Sum64String(s) }

// HashStrings hashes a sequence of strings, e.g. a compiler command line. A
// NUL byte separates entries so that boundary shifts change the digest:
// ["-O", "2"] and ["-O2"] must not collide.
func HashStrings(ss []string) uint64 {
	d := xxhash.New()
	for i, s := range ss {
		if i > 0 {
			d.Write([]byte{0})
		}
		d.WriteString(s)
	}
	return d.Sum64()
}

// Combine folds a sequence of 64-bit hashes into one, feeding each value to
// the digest in little-endian order. Used for the combined cache key and for
// dependency-set hashes.
func Combine(hashes ...uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], h)
		d.Write(buf[:])
	}
	return d.Sum64()
}
