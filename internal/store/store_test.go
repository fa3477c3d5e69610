package store

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/insushim/iswaddon"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "builds.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(name string) *iswaddon.BuildResult {
	return &iswaddon.BuildResult{
		Addon:        bytes.Repeat([]byte("addon "+name), 100),
		BehaviorPack: []byte("bp " + name),
		ResourcePack: []byte{},
		Metadata: iswaddon.BuildMetadata{
			Name:        name,
			Namespace:   "test",
			Version:     "1.0.0",
			EntityCount: 2,
		},
	}
}

func TestSaveGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := result("Golems")
	if _, err := s.Save(ctx, "b1", res); err != nil {
		t.Fatal(err)
	}

	for part, want := range map[Part][]byte{
		PartAddon:    res.Addon,
		PartBehavior: res.BehaviorPack,
		PartResource: res.ResourcePack,
	} {
		data, rec, err := s.Get(ctx, "b1", part)
		if err != nil {
			t.Fatalf("%s: %v", part, err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("%s: got %d bytes, want %d", part, len(data), len(want))
		}
		if rec.Metadata.Name != "Golems" || rec.Metadata.EntityCount != 2 {
			t.Errorf("%s: metadata = %+v", part, rec.Metadata)
		}
		if rec.Sizes[PartAddon] != len(res.Addon) {
			t.Errorf("%s: sizes = %v", part, rec.Sizes)
		}
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.Get(context.Background(), "nope", PartAddon); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, _, err := s.Get(context.Background(), "nope", Part("zip")); err == nil {
		t.Fatal("unknown part accepted")
	}
}

func TestDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Save(ctx, "b1", result("A")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "b1", result("B")); err == nil {
		t.Fatal("duplicate id accepted")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 100000000, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * 20 * time.Millisecond)
		s.now = func() time.Time { return at }
		if _, err := s.Save(ctx, name, result(name)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "third" || recs[1].ID != "second" {
		t.Fatalf("list = %+v", recs)
	}
	if !recs[0].CreatedAt.Equal(base.Add(40 * time.Millisecond)) {
		t.Errorf("created at = %s", recs[0].CreatedAt)
	}
}

func TestParsePart(t *testing.T) {
	for _, s := range []string{"mcaddon", "bp", "rp"} {
		if _, ok := ParsePart(s); !ok {
			t.Errorf("ParsePart(%q) failed", s)
		}
	}
	if _, ok := ParsePart("zip"); ok {
		t.Error("zip accepted")
	}
	if got := PartBehavior.Filename("My Addon"); got != "My Addon_BP.mcpack" {
		t.Errorf("filename = %q", got)
	}
	if got := PartAddon.Filename("My Addon"); got != "My Addon.mcaddon" {
		t.Errorf("filename = %q", got)
	}
}
