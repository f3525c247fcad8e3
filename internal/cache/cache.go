// Package cache implements the incremental build cache: content-hash
// fingerprints of source+flags+dependencies, a persistent manifest, and the
// dirty check which lets the engine skip up-to-date compilations.
package cache

import (
	"errors"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/donaldfilimon/ovo/internal/hasher"
)

// Reason classifies why a dirty check did not produce a cache hit.
type Reason int

const (
	NotCached Reason = iota
	SourceModified
	DependencyModified
	FlagsChanged // never returned by CheckDirty: a flag change keys to a different entry and reports NotCached
	OutputMissing
	CacheCorrupted
)

var reasonNames = map[Reason]string{
	NotCached:          "not cached",
	SourceModified:     "source modified",
	DependencyModified: "dependency modified",
	FlagsChanged:       "flags changed",
	OutputMissing:      "output missing",
	CacheCorrupted:     "cache corrupted",
}

func (r Reason) String() string { return reasonNames[r] }

// DirtyCheck is the result of Cache.CheckDirty: either Clean with the
// computed key, or Dirty with a reason.
type DirtyCheck struct {
	Clean  bool
	Key    hasher.CacheKey
	Reason Reason
}

// Entry records one cached compilation.
type Entry struct {
	Key        hasher.CacheKey
	OutputPath string
	OutputSize int64
	Timestamp  int64 // epoch seconds of the store
	Inputs     []string

	// verified is session-local: true once this process has either stored
	// the entry or seen its output on disk. Not persisted.
	verified bool
}

// Stats are the session counters. Hits and misses accumulate across dirty
// checks; evictions count entries dropped by InvalidateFile.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache maps combined fingerprints to entries and memoizes file hashes
// within a build. It is accessed only from the engine's goroutine between
// scheduler invocations.
type Cache struct {
	dir          string
	manifestPath string
	log          *log.Logger

	entries    map[uint64]*Entry // keyed by CacheKey.Combined
	fileHashes map[string]uint64 // path → last content hash this session
	stats      Stats
}

// Open creates the cache directory if missing and loads the manifest.
// A missing or corrupt manifest is not an error: the cache starts fresh.
func Open(dir string, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, xerrors.Errorf("cache dir: %w", err)
	}
	c := &Cache{
		dir:          dir,
		manifestPath: manifestPath(dir),
		log:          logger,
		entries:      make(map[uint64]*Entry),
		fileHashes:   make(map[string]uint64),
	}
	if err := c.loadManifest(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("cache: discarding manifest: %v", err)
		c.entries = make(map[uint64]*Entry)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// HashFile hashes the file contents, memoizing the result so that repeated
// hashes of the same path within one build read the file once.
func (c *Cache) HashFile(path string) (uint64, error) {
	if h, ok := c.fileHashes[path]; ok {
		return h, nil
	}
	h, err := hasher.HashFile(path)
	if err != nil {
		return 0, err
	}
	c.fileHashes[path] = h
	return h, nil
}

// CheckDirty decides whether the compilation of source with the given flag
// sequence and dependency files can be satisfied from the cache.
func (c *Cache) CheckDirty(source string, flags []string, deps []string) DirtyCheck {
	sh, err := c.HashFile(source)
	if err != nil {
		return DirtyCheck{Reason: SourceModified}
	}
	depHashes := make([]uint64, 0, len(deps))
	for _, dep := range deps {
		dh, err := c.HashFile(dep)
		if err != nil {
			return DirtyCheck{Reason: DependencyModified}
		}
		depHashes = append(depHashes, dh)
	}
	key := hasher.ComputeKey(sh, hasher.HashStrings(flags), hasher.Combine(depHashes...))

	entry, ok := c.entries[key.Combined]
	if !ok {
		c.stats.Misses++
		return DirtyCheck{Key: key, Reason: NotCached}
	}
	if !entry.Key.Equal(key) {
		// Combined hash collided with a different full key.
		c.stats.Misses++
		return DirtyCheck{Key: key, Reason: CacheCorrupted}
	}
	if _, err := os.Stat(entry.OutputPath); err != nil {
		c.stats.Misses++
		return DirtyCheck{Key: key, Reason: OutputMissing}
	}
	entry.verified = true
	c.stats.Hits++
	return DirtyCheck{Clean: true, Key: key}
}

// Store records a successful compilation, replacing any prior entry for the
// same key.
func (c *Cache) Store(key hasher.CacheKey, outputPath string, outputSize int64, inputs []string) {
	c.entries[key.Combined] = &Entry{
		Key:        key,
		OutputPath: outputPath,
		OutputSize: outputSize,
		Timestamp:  time.Now().Unix(),
		Inputs:     append([]string(nil), inputs...),
		verified:   true,
	}
}

// CachedOutput returns the output path stored for key, requiring the full
// key (all four components) to match.
func (c *Cache) CachedOutput(key hasher.CacheKey) (string, bool) {
	entry, ok := c.entries[key.Combined]
	if !ok || !entry.Key.Equal(key) {
		return "", false
	}
	return entry.OutputPath, true
}

// InvalidateFile evicts every entry that lists path among its inputs and
// drops the path from the hash memo.
func (c *Cache) InvalidateFile(path string) {
	for combined, entry := range c.entries {
		for _, in := range entry.Inputs {
			if in == path {
				delete(c.entries, combined)
				c.stats.Evictions++
				break
			}
		}
	}
	delete(c.fileHashes, path)
}

// BeginBuild drops the per-build file hash memo so a new build observes
// current file contents. Entries and statistics are preserved.
func (c *Cache) BeginBuild() {
	c.fileHashes = make(map[string]uint64)
}

// Clear drops all entries and the hash memo and resets the statistics. The
// cache directory is preserved.
func (c *Cache) Clear() {
	c.entries = make(map[uint64]*Entry)
	c.fileHashes = make(map[string]uint64)
	c.stats = Stats{}
}

// Stats returns a snapshot of the session counters.
func (c *Cache) Stats() Stats { return c.stats }

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// HitRate returns hits/(hits+misses) as a percentage, 0 when no dirty check
// ran yet.
func (c *Cache) HitRate() float64 {
	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total) * 100
}
