package content

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"

	"github.com/hupe1980/wikipack/model"
)

// Source enumerates the items of a build.
type Source interface {
	// Names returns all item names.
	Names(ctx context.Context) ([]string, error)
	// Read returns the bytes of one item.
	Read(ctx context.Context, name string) ([]byte, error)
}

// MemorySource serves items from memory. Later duplicates replace earlier ones.
type MemorySource struct {
	names []string
	data  map[string][]byte
}

// NewMemorySource returns a Source over articles.
func NewMemorySource(articles ...model.Article) *MemorySource {
	s := &MemorySource{data: make(map[string][]byte, len(articles))}
	for _, a := range articles {
		if _, ok := s.data[a.Name]; !ok {
			s.names = append(s.names, a.Name)
		}
		s.data[a.Name] = a.Data
	}
	return s
}

func (s *MemorySource) Names(context.Context) ([]string, error) {
	return slices.Clone(s.names), nil
}

func (s *MemorySource) Read(_ context.Context, name string) ([]byte, error) {
	data, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("content: source item %q: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

// DirSource serves the regular files below a directory.
type DirSource struct {
	fsys fs.FS
	// baseNames names items by file name instead of slash path.
	baseNames bool
	paths     map[string]string
}

// NewDirSource returns a Source over the files below root, named by their
// slash-separated path relative to root (images).
func NewDirSource(root string) *DirSource {
	return &DirSource{fsys: os.DirFS(root)}
}

// NewFlatDirSource is like NewDirSource but names items by their file name
// only, as for articles stored in sharded directories.
func NewFlatDirSource(root string) *DirSource {
	return &DirSource{fsys: os.DirFS(root), baseNames: true}
}

func (s *DirSource) Names(ctx context.Context) ([]string, error) {
	s.paths = make(map[string]string)
	var names []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := p
		if s.baseNames {
			name = path.Base(p)
		}
		if prev, dup := s.paths[name]; dup {
			return fmt.Errorf("content: %q and %q share the item name %q", prev, p, name)
		}
		s.paths[name] = p
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	p := name
	if s.paths != nil {
		if mapped, ok := s.paths[name]; ok {
			p = mapped
		}
	}
	return fs.ReadFile(s.fsys, p)
}
