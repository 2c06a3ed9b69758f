// Package extract picks a random extract from a media root.
//
// A media root holds stand-alone images and folders. Each immediate entry of the
// root is one candidate, so a folder of five images is drawn exactly as often as
// a single image. A folder's files are returned sorted by name.
package extract

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/model"
)

type Option func(*Selector)

// WithExtensions keeps only files whose extension matches one of exts
// (case-insensitive, with or without the leading dot). Directories are unaffected.
func WithExtensions(exts ...string) Option {
	return func(s *Selector) {
		for _, e := range exts {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if s.exts == nil {
				s.exts = map[string]bool{}
			}
			s.exts[e] = true
		}
	}
}

// WithSkipHidden ignores dot-files and dot-directories.
func WithSkipHidden() Option {
	return func(s *Selector) { s.skipHidden = true }
}

type Selector struct {
	rnd        *rand.Rand
	exts       map[string]bool
	skipHidden bool
}

// NewSelector returns a Selector drawing from src. A nil src uses a randomly
// seeded PCG source.
func NewSelector(src rand.Source, opts ...Option) *Selector {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	s := &Selector{rnd: rand.New(src)}
	for _, o := range opts {
		o(s)
	}
	return s
}

type candidate struct {
	path  string
	isDir bool
}

// Select draws one extract from root.
//
// It fails with fault.ErrFilesystem if root cannot be listed and with
// fault.ErrNotFound if root has no candidate entries. A chosen folder without
// files yields an empty extract and no error.
func (s *Selector) Select(root string) (model.Extract, error) {
	cands, err := s.candidates(root)
	if err != nil {
		return model.Extract{}, err
	}
	if len(cands) == 0 {
		return model.Extract{}, fault.Newf(fault.ErrNotFound, "select extract", "media root %s has no entries", root)
	}

	c := cands[s.rnd.IntN(len(cands))]
	if !c.isDir {
		return model.NewExtract(c.path), nil
	}

	files, err := s.folderFiles(c.path)
	if err != nil {
		return model.Extract{}, err
	}
	return model.NewExtract(files...), nil
}

// All returns every extract root offers, in directory listing order. Select
// draws uniformly from this list.
func (s *Selector) All(root string) ([]model.Extract, error) {
	cands, err := s.candidates(root)
	if err != nil {
		return nil, err
	}
	out := make([]model.Extract, 0, len(cands))
	for _, c := range cands {
		if !c.isDir {
			out = append(out, model.NewExtract(c.path))
			continue
		}
		files, err := s.folderFiles(c.path)
		if err != nil {
			return nil, err
		}
		out = append(out, model.NewExtract(files...))
	}
	return out, nil
}

func (s *Selector) candidates(root string) ([]candidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fault.New(fault.ErrFilesystem, "list media root "+root, err)
	}
	var out []candidate
	for _, e := range entries {
		if s.hidden(e.Name()) {
			continue
		}
		p := filepath.Join(root, e.Name())
		isDir, isFile := kind(p, e)
		switch {
		case isDir:
			out = append(out, candidate{path: p, isDir: true})
		case isFile && s.accept(e.Name()):
			out = append(out, candidate{path: p})
		}
	}
	return out, nil
}

func (s *Selector) folderFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fault.New(fault.ErrFilesystem, "list folder "+dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if s.hidden(e.Name()) {
			continue
		}
		if _, isFile := kind(filepath.Join(dir, e.Name()), e); isFile && s.accept(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// byte order, independent of what the filesystem hands back
	slices.Sort(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// kind resolves symlinks; anything that is neither a directory nor a regular
// file is reported as neither.
func kind(path string, e os.DirEntry) (isDir, isFile bool) {
	t := e.Type()
	if t&os.ModeSymlink != 0 {
		fi, err := os.Stat(path)
		if err != nil {
			return false, false
		}
		return fi.IsDir(), fi.Mode().IsRegular()
	}
	return t.IsDir(), t.IsRegular()
}

func (s *Selector) hidden(name string) bool {
	return s.skipHidden && strings.HasPrefix(name, ".")
}

func (s *Selector) accept(name string) bool {
	if len(s.exts) == 0 {
		return true
	}
	return s.exts[strings.ToLower(filepath.Ext(name))]
}
