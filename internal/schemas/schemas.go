// Package schemas validates emitted pack records against embedded JSON
// Schemas.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed json/*.schema.json
var files embed.FS

type Kind string

const (
	Manifest     Kind = "manifest"
	Entity       Kind = "entity"
	ClientEntity Kind = "client_entity"
	Item         Kind = "item"
	Block        Kind = "block"
	Recipe       Kind = "recipe"
	SpawnRules   Kind = "spawn_rules"
	LootTable    Kind = "loot_table"
	Animation    Kind = "animation"
	TextureAtlas Kind = "texture_atlas"
)

var Kinds = []Kind{Manifest, Entity, ClientEntity, Item, Block, Recipe, SpawnRules, LootTable, Animation, TextureAtlas}

var (
	once     sync.Once
	compiled map[Kind]*jsonschema.Schema
	loadErr  error
)

func load() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	compiled = make(map[Kind]*jsonschema.Schema, len(Kinds))
	for _, k := range Kinds {
		name := "json/" + string(k) + ".schema.json"
		data, err := files.ReadFile(name)
		if err != nil {
			loadErr = err
			return
		}
		if err := c.AddResource(url(k), bytes.NewReader(data)); err != nil {
			loadErr = fmt.Errorf("add schema %s: %w", k, err)
			return
		}
	}
	for _, k := range Kinds {
		s, err := c.Compile(url(k))
		if err != nil {
			loadErr = fmt.Errorf("compile schema %s: %w", k, err)
			return
		}
		compiled[k] = s
	}
}

func url(k Kind) string {
	return "https://iswaddon.dev/schemas/" + string(k) + ".schema.json"
}

// Raw returns the schema document for k.
func Raw(k Kind) ([]byte, error) {
	return files.ReadFile("json/" + string(k) + ".schema.json")
}

// Validate checks doc, which may be any JSON encodable value, against the
// schema for k.
func Validate(k Kind, doc any) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	s, ok := compiled[k]
	if !ok {
		return fmt.Errorf("no schema for %q", k)
	}
	var v any
	switch d := doc.(type) {
	case []byte:
		if err := json.Unmarshal(d, &v); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	case json.RawMessage:
		if err := json.Unmarshal(d, &v); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	default:
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s schema: %w", k, err)
	}
	return nil
}
