package concept

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

type call struct {
	prompt string
	system string
}

type fakeGenerator struct {
	answers []string
	errs    []error
	calls   []call
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt, system string) (json.RawMessage, error) {
	i := len(f.calls)
	f.calls = append(f.calls, call{prompt, system})
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.answers) {
		return nil, errors.New("no answer queued")
	}
	return json.RawMessage(f.answers[i]), nil
}

func (f *fakeGenerator) Model() string { return "fake" }

func newTestExpander(gen Generator) *Expander {
	return NewExpander(gen, log.New(io.Discard))
}

func TestAnalyzeAutoDetectsType(t *testing.T) {
	gen := &fakeGenerator{answers: []string{
		`{"conceptType":"entity","name":"fire_golem"}`,
		`{"identifier":"namespace:fire_golem"}`,
	}}
	res, err := newTestExpander(gen).Analyze(context.Background(), Request{Concept: "a golem made of fire"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeEntity {
		t.Errorf("type = %q", res.Type)
	}
	if string(res.Detailed) != `{"identifier":"namespace:fire_golem"}` {
		t.Errorf("detailed = %s", res.Detailed)
	}
	if len(gen.calls) != 2 {
		t.Fatalf("calls = %d", len(gen.calls))
	}
	if !strings.Contains(gen.calls[0].prompt, "Automatically detect") {
		t.Error("analysis prompt does not ask for detection")
	}
	if !strings.Contains(gen.calls[0].prompt, "Response Language: Korean") {
		t.Error("default language is not Korean")
	}
	if !strings.Contains(gen.calls[1].prompt, `"aiGoals"`) {
		t.Error("entity contract schema missing from detail prompt")
	}
	if gen.calls[0].system != analystSystem {
		t.Error("system instruction not sent")
	}
}

func TestAnalyzeToleratesDetailFailure(t *testing.T) {
	gen := &fakeGenerator{
		answers: []string{`{"conceptType":"item"}`},
		errs:    []error{nil, errors.New("boom")},
	}
	res, err := newTestExpander(gen).Analyze(context.Background(), Request{Concept: "a sword of ice", Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeItem || res.Detailed != nil {
		t.Errorf("res = %+v", res)
	}
}

func TestAnalyzeAddonSkipsDetail(t *testing.T) {
	gen := &fakeGenerator{answers: []string{`{"conceptType":"something else"}`}}
	res, err := newTestExpander(gen).Analyze(context.Background(), Request{Concept: "a whole dungeon pack"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeAddon || len(gen.calls) != 1 {
		t.Errorf("type = %q, calls = %d", res.Type, len(gen.calls))
	}
}

func TestAnalyzeExplicitTypeNotDetailed(t *testing.T) {
	no := false
	gen := &fakeGenerator{answers: []string{`{"conceptType":"entity"}`}}
	res, err := newTestExpander(gen).Analyze(context.Background(), Request{Concept: "glowing ore block", ConceptType: TypeBlock, Detailed: &no})
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeBlock {
		t.Errorf("type = %q", res.Type)
	}
	if !strings.Contains(gen.calls[0].prompt, "Concept Type: block") {
		t.Error("explicit type missing from prompt")
	}
	if len(gen.calls) != 1 {
		t.Errorf("calls = %d", len(gen.calls))
	}
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"too short", Request{Concept: "abc"}},
		{"blank", Request{Concept: "     "}},
		{"too long", Request{Concept: strings.Repeat("x", 5001)}},
		{"bad type", Request{Concept: "a fire golem", ConceptType: "vehicle"}},
		{"bad language", Request{Concept: "a fire golem", Language: "fr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			_, err := newTestExpander(gen).Analyze(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v", err)
			}
			if len(gen.calls) != 0 {
				t.Error("generator called for an invalid request")
			}
		})
	}
}

func TestAnalyzeCountsRunes(t *testing.T) {
	gen := &fakeGenerator{answers: []string{`{"conceptType":"addon"}`}}
	if _, err := newTestExpander(gen).Analyze(context.Background(), Request{Concept: "불의 골렘"}); err != nil {
		t.Fatalf("five rune concept rejected: %v", err)
	}
}

func TestExpand(t *testing.T) {
	gen := &fakeGenerator{answers: []string{`{
		"conceptType": "entity",
		"qualityScore": 8,
		"entity": {
			"identifier": "namespace:storm_wolf",
			"stats": {"health": {"base": 40, "max": 40}, "damage": {"base": 6}, "movementSpeed": 0.35},
			"physics": {"width": 0.8, "height": 0.9, "canFly": false},
			"behaviors": [{"name": "float", "priority": 0}]
		}
	}`}}
	exp, err := newTestExpander(gen).Expand(context.Background(), "a wolf made of storms", "en")
	if err != nil {
		t.Fatal(err)
	}
	if exp.Type != TypeEntity || exp.Quality != 8 {
		t.Errorf("exp = %+v", exp)
	}
	if len(exp.Bundle.Entities) != 1 {
		t.Fatalf("entities = %d", len(exp.Bundle.Entities))
	}
	e := exp.Bundle.Entities[0]
	if e.Identifier != "storm_wolf" || e.Health.Value != 40 || e.Attack.Damage != 6 {
		t.Errorf("entity = %+v", e)
	}
	if gen.calls[0].system != expertSystem {
		t.Error("expert system instruction not used")
	}
}

func TestSchema(t *testing.T) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(Schema(EntityConcept{})), &doc); err != nil {
		t.Fatal(err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", doc)
	}
	for _, k := range []string{"identifier", "aiGoals", "loot", "spawnRules"} {
		if _, ok := props[k]; !ok {
			t.Errorf("schema lacks %s", k)
		}
	}
	if Schema(EntityConcept{}) != Schema(EntityConcept{}) {
		t.Error("schema not stable")
	}
}
