package pipeline

import (
	"fmt"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/class-shadow/internal/artifact"
)

// ArtifactCache memoizes parsed artifacts by source fingerprint. Artifacts are
// immutable, so cached slices are shared between passes.
// A nil *ArtifactCache is valid and caches nothing.
type ArtifactCache struct {
	cache otter.Cache[string, []*artifact.Artifact]
}

// NewArtifactCache creates a cache holding up to maxEntries sources.
// maxEntries <= 0 returns a nil cache.
func NewArtifactCache(maxEntries int) (*ArtifactCache, error) {
	if maxEntries <= 0 {
		return nil, nil
	}
	cache, err := otter.MustBuilder[string, []*artifact.Artifact](maxEntries).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact cache: %w", err)
	}
	return &ArtifactCache{cache: cache}, nil
}

func (c *ArtifactCache) Get(fingerprint string) ([]*artifact.Artifact, bool) {
	if c == nil || fingerprint == "" {
		return nil, false
	}
	return c.cache.Get(fingerprint)
}

func (c *ArtifactCache) Set(fingerprint string, artifacts []*artifact.Artifact) {
	if c == nil || fingerprint == "" {
		return
	}
	c.cache.Set(fingerprint, artifacts)
}

// Len returns the number of cached sources.
func (c *ArtifactCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Size()
}

// Hits returns the number of cache hits so far.
func (c *ArtifactCache) Hits() int64 {
	if c == nil {
		return 0
	}
	return c.cache.Stats().Hits()
}

// Close stops the cache's background goroutines.
func (c *ArtifactCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
