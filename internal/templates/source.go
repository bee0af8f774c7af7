package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Source kinds accepted in source specifications.
const (
	KindFilesystem = "filesystem"
	KindBundled    = "bundled"
)

//go:embed all:bundled
var bundledFS embed.FS

// Source is one location templates, descriptors and translation bundles are
// read from. Paths inside a source are slash-separated and relative to its root.
type Source struct {
	Kind     string
	Location string
	fsys     fs.FS
}

// NewSource wraps an arbitrary filesystem as a source.
func NewSource(kind, location string, fsys fs.FS) *Source {
	return &Source{Kind: kind, Location: location, fsys: fsys}
}

// ParseSource parses a source specification of the form "filesystem:<dir>"
// or "bundled:<subdir>".
func ParseSource(spec string) (*Source, error) {
	kind, location, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q (expected <kind>:<location>)", ErrInvalidSource, spec)
	}

	switch kind {
	case KindFilesystem:
		if location == "" {
			return nil, fmt.Errorf("%w: %q has an empty directory", ErrInvalidSource, spec)
		}
		info, err := os.Stat(location)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSource, spec, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %q is not a directory", ErrInvalidSource, spec)
		}
		return NewSource(kind, location, os.DirFS(location)), nil

	case KindBundled:
		root := path.Join("bundled", strings.Trim(location, "/"))
		if !fs.ValidPath(root) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSource, spec)
		}
		sub, err := fs.Sub(bundledFS, root)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSource, spec, err)
		}
		return NewSource(kind, location, sub), nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %q in %q", ErrInvalidSource, kind, spec)
	}
}

// ParseSources parses an ordered list of source specifications.
func ParseSources(specs []string) ([]*Source, error) {
	sources := make([]*Source, 0, len(specs))
	for _, spec := range specs {
		src, err := ParseSource(spec)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// DefaultSources returns only the bundled templates.
func DefaultSources() []*Source {
	sub, _ := fs.Sub(bundledFS, "bundled")
	return []*Source{NewSource(KindBundled, "", sub)}
}

// String returns the source specification
func (s *Source) String() string {
	return s.Kind + ":" + s.Location
}

// FS returns the filesystem backing the source
func (s *Source) FS() fs.FS {
	return s.fsys
}

// ReadFile reads a file from this source. Returns ErrFileNotFound when absent.
func (s *Source) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q in %s", ErrFileNotFound, name, s)
		}
		return nil, fmt.Errorf("reading %q from %s: %w", name, s, err)
	}
	return data, nil
}

// ReadFirst reads name from the first source (in priority order) that has it.
// Only "not found" falls through to the next source; any other read error is
// returned immediately so a broken override never silently falls back.
func ReadFirst(sources []*Source, name string) ([]byte, *Source, error) {
	if !fs.ValidPath(name) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	for _, src := range sources {
		data, err := src.ReadFile(name)
		if err == nil {
			return data, src, nil
		}
		if !errors.Is(err, ErrFileNotFound) {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrFileNotFound, name)
}
