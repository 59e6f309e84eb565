package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Kind says which reader understands a source.
type Kind int

const (
	KindUnknown Kind = iota
	KindClass        // compiled .class file
	KindJava         // .java source file
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindJava:
		return "java"
	default:
		return "unknown"
	}
}

func kindOf(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".class":
		return KindClass
	case ".java":
		return KindJava
	default:
		return KindUnknown
	}
}

// Source is one readable artifact, either a loose file or an archive entry.
type Source struct {
	Path  string // file on disk; the archive path for entries
	Entry string // entry name inside the archive, empty for loose files
	Kind  Kind

	// Fingerprint changes whenever the content may have changed:
	// path, size and mtime for files; archive, entry, CRC and size for entries.
	Fingerprint string

	open func() (io.ReadCloser, error)
}

// Origin is the human-readable location used in diagnostics.
func (s Source) Origin() string {
	if s.Entry == "" {
		return s.Path
	}
	return s.Path + "!" + s.Entry
}

// Open returns a reader for the source content.
func (s Source) Open() (io.ReadCloser, error) {
	if s.open == nil {
		return nil, fmt.Errorf("source %s: %w", s.Origin(), fs.ErrInvalid)
	}
	return s.open()
}

// ReadAll returns the full source content.
func (s Source) ReadAll() ([]byte, error) {
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// NewSource builds a source around an arbitrary opener.
func NewSource(origin string, kind Kind, fingerprint string, open func() (io.ReadCloser, error)) Source {
	return Source{
		Path:        origin,
		Kind:        kind,
		Fingerprint: fingerprint,
		open:        open,
	}
}

// NewMemorySource wraps in-memory content as a source.
func NewMemorySource(origin string, kind Kind, data []byte) Source {
	return NewSource(origin, kind, fmt.Sprintf("mem:%s:%08x:%d", origin, crc32.ChecksumIEEE(data), len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func fileSource(path string, info fs.FileInfo) Source {
	return Source{
		Path:        path,
		Kind:        kindOf(path),
		Fingerprint: fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano()),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

func entrySource(archive string, f *zip.File) Source {
	name := strings.TrimPrefix(f.Name, "/")
	return Source{
		Path:        archive,
		Entry:       name,
		Kind:        kindOf(name),
		Fingerprint: fmt.Sprintf("%s!%s:%08x:%d", archive, name, f.CRC32, f.UncompressedSize64),
		open:        f.Open,
	}
}

// Library is the set of sources making up one extraction pass.
type Library struct {
	Sources []Source

	archives []*zip.ReadCloser
}

// Close releases open archives. Sources must not be read afterwards.
func (l *Library) Close() error {
	var errs []error
	for _, a := range l.archives {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.archives = nil
	return errors.Join(errs...)
}
