package hasher

// CacheKey identifies one cacheable compilation: the source contents, the
// exact flag sequence, and the contents of the dependencies (module
// interfaces) it consumes.
type CacheKey struct {
	Source   uint64
	Flags    uint64
	Deps     uint64
	Combined uint64
}

// ComputeKey derives the combined hash from the three component hashes.
func ComputeKey(source, flags, deps uint64) CacheKey {
	return CacheKey{
		Source:   source,
		Flags:    flags,
		Deps:     deps,
		Combined: Combine(source, flags, deps),
	}
}

// Equal requires all four components to match. The combined hash is
// redundant for keys built through ComputeKey, but comparing it too guards
// against collisions on the combined value alone (manifest entries are
// looked up by Combined).
func (k CacheKey) Equal(o CacheKey) bool {
	return k.Source == o.Source &&
		k.Flags == o.Flags &&
		k.Deps == o.Deps &&
		k.Combined == o.Combined
}
