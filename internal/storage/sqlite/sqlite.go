// Package sqlite keeps room documents in a SQLite database through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dkeye/Jukebox/internal/domain"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const MemoryPath = ":memory:"

// Backend wraps a SQLite database holding one row per room.
type Backend struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens or creates the database at path. MemoryPath gives a private
// in-memory database.
func Open(path string) (*Backend, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: writes are serialised and :memory: stays a single db
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id          TEXT PRIMARY KEY,
			creator_id  TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 1,
			doc         TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rooms table: %w", err)
	}

	log.Info().Str("module", "storage.sqlite").Str("path", path).Msg("database ready")
	return &Backend{db: db, path: path}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Get(ctx context.Context, id string) (*domain.Room, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return getRoom(ctx, b.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRoom(ctx context.Context, q querier, id string) (*domain.Room, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM rooms WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select room %s: %w", id, err)
	}
	return decode(doc)
}

func (b *Backend) Insert(ctx context.Context, r *domain.Room) error {
	doc, err := encode(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO rooms (id, creator_id, is_public, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.CreatorID, r.IsPublic, doc, stamp(r.CreatedAt), stamp(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert room %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicateRoomID
	}
	return nil
}

func (b *Backend) Mutate(ctx context.Context, id string, fn func(*domain.Room) error) (*domain.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	r, err := getRoom(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	doc, err := encode(r)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE rooms SET creator_id = ?, is_public = ?, doc = ?, updated_at = ?
		WHERE id = ?`,
		r.CreatorID, r.IsPublic, doc, stamp(r.UpdatedAt), id); err != nil {
		return nil, fmt.Errorf("update room %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r, nil
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, err := b.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (b *Backend) List(ctx context.Context) ([]*domain.Room, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rows, err := b.db.QueryContext(ctx, `SELECT doc FROM rooms ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r, err := decode(doc)
		if err != nil {
			log.Warn().Err(err).Str("module", "storage.sqlite").Msg("skipping unreadable room")
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func encode(r *domain.Room) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode room %s: %w", r.ID, err)
	}
	return string(b), nil
}

func decode(doc string) (*domain.Room, error) {
	var r domain.Room
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	r.Normalize()
	return &r, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
