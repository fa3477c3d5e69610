package iswaddon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/insushim/iswaddon/internal/archive"
	"github.com/insushim/iswaddon/internal/schemas"
)

type packFile struct {
	path string
	data []byte
}

// pack is one accumulating file tree. Files keep their insertion order.
type pack struct {
	name     string
	manifest *Manifest
	files    []packFile
	index    map[string]int
}

func newPack(name string, m *Manifest) *pack {
	return &pack{name: name, manifest: m, index: map[string]int{}}
}

func (p *pack) file(path string) ([]byte, bool) {
	i, ok := p.index[path]
	if !ok {
		return nil, false
	}
	return p.files[i].data, true
}

type atlasEntry struct {
	Textures string `json:"textures"`
}

type blockEntry struct {
	Sound    string `json:"sound"`
	Textures string `json:"textures"`
}

// stage collects the output of one add call. Nothing reaches the builder
// until commit, so a failed add leaves the packs untouched.
type stage struct {
	files   map[*pack][]packFile
	terrain map[string]string
	items   map[string]string
	blocks  map[string]blockEntry
}

func newStage() *stage {
	return &stage{
		files:   map[*pack][]packFile{},
		terrain: map[string]string{},
		items:   map[string]string{},
		blocks:  map[string]blockEntry{},
	}
}

// put stages data at path. A path already owned by the pack or the stage is
// a duplicate unless shared is set and the content is identical, in which
// case the file is skipped.
func (s *stage) put(p *pack, path string, data []byte, shared bool) error {
	clean, err := archive.CleanPath(path)
	if err != nil {
		return err
	}
	existing, ok := p.file(clean)
	if !ok {
		for _, f := range s.files[p] {
			if f.path == clean {
				existing, ok = f.data, true
				break
			}
		}
	}
	if ok {
		if shared && bytes.Equal(existing, data) {
			return nil
		}
		return fmt.Errorf("%w: %s pack already has %s", ErrDuplicateArtifact, p.name, clean)
	}
	s.files[p] = append(s.files[p], packFile{path: clean, data: data})
	return nil
}

// putJSON encodes v, checks it against kind's schema when kind is set and
// stages it.
func (s *stage) putJSON(p *pack, path string, kind schemas.Kind, v any, shared bool) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
	}
	if kind != "" {
		if err := schemas.Validate(kind, data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
		}
	}
	return s.put(p, path, data, shared)
}

func (s *stage) commit(b *Builder) {
	for p, files := range s.files {
		for _, f := range files {
			p.index[f.path] = len(p.files)
			p.files = append(p.files, f)
		}
	}
	for k, v := range s.terrain {
		if _, ok := b.terrain[k]; !ok {
			b.terrain[k] = v
		}
	}
	for k, v := range s.items {
		b.itemAtlas[k] = v
	}
	for k, v := range s.blocks {
		b.blocks[k] = v
	}
}

// encode writes v as two-space indented JSON. Raw JSON input is re-indented
// so passthrough records match generated ones.
func encode(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON")
		}
		buf := &bytes.Buffer{}
		if err := json.Indent(buf, raw, "", "  "); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(v, "", "  ")
}

// firstKey returns the first member name of the object at path in document
// order.
func firstKey(raw []byte, path string) string {
	var key string
	gjson.GetBytes(raw, path).ForEach(func(k, _ gjson.Result) bool {
		key = k.String()
		return false
	})
	return key
}

// fileStem turns a resource identifier into a file name stem.
func fileStem(id string, prefixes ...string) string {
	for _, p := range prefixes {
		id = strings.TrimPrefix(id, p)
	}
	id = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(strings.TrimSpace(id))
	return strings.ToLower(id)
}

func isObject(raw []byte) bool {
	return gjson.ParseBytes(raw).IsObject()
}
