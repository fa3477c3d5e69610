// Package store keeps a history of built add-ons in SQLite. Archives are
// stored zstd compressed next to their build metadata.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/insushim/iswaddon"
)

var ErrNotFound = errors.New("build not found")

// timeLayout sorts lexically in time order for UTC values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Part selects one archive of a stored build.
type Part string

const (
	PartAddon    Part = "mcaddon"
	PartBehavior Part = "bp"
	PartResource Part = "rp"
)

func ParsePart(s string) (Part, bool) {
	switch p := Part(s); p {
	case PartAddon, PartBehavior, PartResource:
		return p, true
	}
	return "", false
}

// Filename is the download name of part for an add-on called name.
func (p Part) Filename(name string) string {
	base := iswaddon.FolderName(name)
	switch p {
	case PartBehavior:
		return base + "_BP.mcpack"
	case PartResource:
		return base + "_RP.mcpack"
	}
	return base + ".mcaddon"
}

type Record struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  iswaddon.BuildMetadata `json:"metadata"`
	Sizes     map[Part]int           `json:"sizes"`
}

type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, enc: enc, dec: dec, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			name TEXT NOT NULL,
			namespace TEXT NOT NULL,
			metadata TEXT NOT NULL,
			addon BLOB NOT NULL,
			addon_size INTEGER NOT NULL,
			bp BLOB NOT NULL,
			bp_size INTEGER NOT NULL,
			rp BLOB NOT NULL,
			rp_size INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS builds_created_at ON builds(created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.dec.Close()
	encErr := s.enc.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return encErr
}

// Save records res under id.
func (s *Store) Save(ctx context.Context, id string, res *iswaddon.BuildResult) (*Record, error) {
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	rec := &Record{
		ID:        id,
		CreatedAt: s.now().UTC(),
		Metadata:  res.Metadata,
		Sizes: map[Part]int{
			PartAddon:    len(res.Addon),
			PartBehavior: len(res.BehaviorPack),
			PartResource: len(res.ResourcePack),
		},
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO builds (id, created_at, name, namespace, metadata, addon, addon_size, bp, bp_size, rp, rp_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.CreatedAt.Format(timeLayout), res.Metadata.Name, res.Metadata.Namespace, string(meta),
		s.enc.EncodeAll(res.Addon, nil), len(res.Addon),
		s.enc.EncodeAll(res.BehaviorPack, nil), len(res.BehaviorPack),
		s.enc.EncodeAll(res.ResourcePack, nil), len(res.ResourcePack),
	)
	if err != nil {
		return nil, fmt.Errorf("save build %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit builds, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, metadata, addon_size, bp_size, rp_size
		 FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Get returns the decompressed archive part of build id.
func (s *Store) Get(ctx context.Context, id string, part Part) ([]byte, *Record, error) {
	col, ok := map[Part]string{PartAddon: "addon", PartBehavior: "bp", PartResource: "rp"}[part]
	if !ok {
		return nil, nil, fmt.Errorf("unknown part %q", part)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, metadata, addon_size, bp_size, rp_size, `+col+` FROM builds WHERE id = ?`, id)
	var blob []byte
	rec, err := scanRecord(row, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	data, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress %s of %s: %w", part, id, err)
	}
	return data, rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, extra ...any) (*Record, error) {
	var (
		rec           Record
		created, meta string
		addon, bp, rp int
	)
	dest := append([]any{&rec.ID, &created, &meta, &addon, &bp, &rp}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("build %s: bad timestamp: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("build %s: bad metadata: %w", rec.ID, err)
	}
	rec.Sizes = map[Part]int{PartAddon: addon, PartBehavior: bp, PartResource: rp}
	return &rec, nil
}
