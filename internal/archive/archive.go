// Package archive holds in-memory pack file trees and turns them into zip
// archives, including the combined archive that re-expands several inner
// archives under their own folders.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/exp/slices"
)

var (
	ErrExists  = errors.New("file already exists in tree")
	ErrBadPath = errors.New("invalid archive path")
)

// Tree is an ordered set of files keyed by slash separated path.
// Files are written in insertion order.
type Tree struct {
	files map[string][]byte
	order []string
}

func NewTree() *Tree {
	return &Tree{files: map[string][]byte{}}
}

// CleanPath validates p as a relative slash path that stays inside the
// tree and returns its cleaned form.
func CleanPath(p string) (string, error) {
	if p == "" || strings.Contains(p, "\\") || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	return c, nil
}

// Add stores data at p. Adding a path twice is an error.
func (t *Tree) Add(p string, data []byte) error {
	c, err := CleanPath(p)
	if err != nil {
		return err
	}
	if _, ok := t.files[c]; ok {
		return fmt.Errorf("%w: %s", ErrExists, c)
	}
	t.files[c] = data
	t.order = append(t.order, c)
	return nil
}

// AddJSON stores v encoded as two-space indented JSON.
func (t *Tree) AddJSON(p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return t.Add(p, data)
}

func (t *Tree) Has(p string) bool {
	_, ok := t.files[p]
	return ok
}

// File returns the contents stored at p.
func (t *Tree) File(p string) ([]byte, bool) {
	data, ok := t.files[p]
	return data, ok
}

func (t *Tree) Len() int {
	return len(t.order)
}

// Paths lists every path in insertion order.
func (t *Tree) Paths() []string {
	return slices.Clone(t.order)
}

// Sorted lists every path in lexical order.
func (t *Tree) Sorted() []string {
	out := slices.Clone(t.order)
	slices.Sort(out)
	return out
}

// Zip serializes the tree. modTime is stamped on every entry so that two
// trees with the same content produce the same archive.
func (t *Tree) Zip(modTime time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, p := range t.order {
		if err := writeEntry(zw, p, t.files[p], modTime); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, p string, data []byte, modTime time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     p,
		Method:   zip.Deflate,
		Modified: modTime,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", p, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", p, err)
	}
	return nil
}

// Read expands an archive back into a tree. Directory entries are skipped.
func Read(data []byte) (*Tree, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	t := NewTree()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		if err := t.Add(f.Name, body); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Part is one inner archive of a combined archive.
type Part struct {
	Folder  string
	Archive []byte
}

// Nest builds an archive whose entries are the re-expanded files of each
// part placed under "<Folder>/".
func Nest(modTime time.Time, parts ...Part) ([]byte, error) {
	outer := NewTree()
	for _, part := range parts {
		folder, err := CleanPath(part.Folder)
		if err != nil {
			return nil, err
		}
		inner, err := Read(part.Archive)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", folder, err)
		}
		for _, p := range inner.Paths() {
			data, _ := inner.File(p)
			if err := outer.Add(path.Join(folder, p), data); err != nil {
				return nil, err
			}
		}
	}
	return outer.Zip(modTime)
}

// List returns the sorted file paths in an archive.
func List(data []byte) ([]string, error) {
	t, err := Read(data)
	if err != nil {
		return nil, err
	}
	return t.Sorted(), nil
}
