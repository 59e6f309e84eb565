package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/klauspost/compress/zip"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery enumerates the artifacts of a library from directories, archives
// and single files, applying include and ignore globs.
type Discovery struct {
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
	excluded        []string // absolute paths skipped below input directories
}

// Option configures a Discovery.
type Option func(*Discovery)

// WithExclude skips the given files and directory trees when walking input
// directories, typically the tool's own output locations. Empty paths are
// ignored.
func WithExclude(paths ...string) Option {
	return func(d *Discovery) {
		for _, p := range paths {
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				d.excluded = append(d.excluded, abs)
			}
		}
	}
}

// New creates a discovery instance. Patterns use '/' as separator and match
// paths relative to each input directory, or entry names inside archives.
func New(includePatterns, ignorePatterns []string, opts ...Option) (*Discovery, error) {
	d := &Discovery{}
	for _, opt := range opts {
		opt(d)
	}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		d.includePatterns = append(d.includePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
		d.ignorePatterns = append(d.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return d, nil
}

// Discover resolves every input path into sources. Explicitly named files
// bypass the include patterns but must still have a supported extension.
// The returned Library holds open archives until Close.
func (d *Discovery) Discover(ctx context.Context, paths []string) (*Library, error) {
	lib := &Library{}
	seen := make(map[string]bool)

	add := func(src Source) {
		if seen[src.Origin()] {
			return
		}
		seen[src.Origin()] = true
		lib.Sources = append(lib.Sources, src)
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			lib.Close()
			return nil, err
		}

		info, err := os.Stat(p)
		if err != nil {
			lib.Close()
			return nil, fmt.Errorf("failed to stat input %s: %w", p, err)
		}

		if info.IsDir() {
			err = d.walkDir(ctx, lib, p, add)
		} else {
			err = d.addFile(lib, p, info, add)
		}
		if err != nil {
			lib.Close()
			return nil, err
		}
	}

	sort.Slice(lib.Sources, func(i, j int) bool {
		return lib.Sources[i].Origin() < lib.Sources[j].Origin()
	})
	return lib, nil
}

func (d *Discovery) walkDir(ctx context.Context, lib *Library, root string, add func(Source)) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Get relative path for pattern matching
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		// Normalize path separators for glob matching
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if relPath != "." && (d.shouldIgnore(relPath) || d.isExcluded(path)) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.shouldIgnore(relPath) || d.isExcluded(path) || !d.matchesAnyPattern(relPath, d.includePatterns) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		return d.addFile(lib, path, info, add)
	})
}

func (d *Discovery) addFile(lib *Library, path string, info fs.FileInfo, add func(Source)) error {
	switch {
	case isArchive(path):
		return d.addArchive(lib, path, add)
	case kindOf(path) != KindUnknown:
		add(fileSource(path, info))
		return nil
	default:
		return nil
	}
}

func (d *Discovery) addArchive(lib *Library, path string, add func(Source)) error {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	lib.archives = append(lib.archives, rc)

	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, "/")
		if kindOf(name) == KindUnknown {
			continue
		}
		if d.shouldIgnore(name) || !d.matchesAnyPattern(name, d.includePatterns) {
			continue
		}
		add(entrySource(path, f))
	}
	return nil
}

// shouldIgnore checks if a path matches any ignore pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	// Always ignore the tool's own state directory
	if strings.HasPrefix(relPath, ".shadow/") || relPath == ".shadow" {
		return true
	}

	if d.matchesAnyPattern(relPath, d.ignorePatterns) {
		return true
	}

	// Also check if this is a directory that would match with /** suffix
	// For example, "build" should match pattern "build/**"
	pathWithSuffix := relPath + "/**"
	return d.matchesAnyPattern(pathWithSuffix, d.ignorePatterns)
}

// isExcluded reports whether path is, or lies below, an excluded location.
func (d *Discovery) isExcluded(path string) bool {
	if len(d.excluded) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, ex := range d.excluded {
		if abs == ex || strings.HasPrefix(abs, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (d *Discovery) matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Special handling: if path is in root (no slash), also try matching against
	// patterns with **/ prefix removed. This makes "**/*.class" match both
	// "Main.class" and "com/acme/Main.class".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}
