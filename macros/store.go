// Package macros persists named key sequences and replays them through
// the input injector.
package macros

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/glidedeck/glidedeck/input"
)

var ErrNotFound = errors.New("macro not found")

// keyDelay spaces the synthesized key transitions so slow foreground
// applications do not drop part of a chord.
const keyDelay = 10 * time.Millisecond

// Macro is one named key sequence. Execution holds every key down in
// order, then releases in reverse, so both chords (Ctrl+C) and longer
// sequences behave.
type Macro struct {
	ID   string
	Name string
	Keys []input.Key
}

type Store struct {
	db *sql.DB
}

// Open creates or opens the macro database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create macros dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS macros (
	macro_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	keys TEXT NOT NULL,
	created_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create macros table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add stores a macro and returns its generated id.
func (s *Store) Add(ctx context.Context, name string, keys []input.Key) (string, error) {
	id := uuid.NewString()

	encoded, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("encode macro keys: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO macros(macro_id, name, keys, created_at) VALUES (?, ?, ?, ?)`,
		id, name, string(encoded), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert macro: %w", err)
	}

	return id, nil
}

// Remove deletes a macro by id.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM macros WHERE macro_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete macro: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one macro by id.
func (s *Store) Get(ctx context.Context, id string) (Macro, error) {
	var m Macro
	var encoded string

	err := s.db.QueryRowContext(ctx,
		`SELECT macro_id, name, keys FROM macros WHERE macro_id = ?`, id).
		Scan(&m.ID, &m.Name, &encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return Macro{}, ErrNotFound
	}
	if err != nil {
		return Macro{}, fmt.Errorf("query macro: %w", err)
	}

	if err := json.Unmarshal([]byte(encoded), &m.Keys); err != nil {
		return Macro{}, fmt.Errorf("decode macro keys: %w", err)
	}
	return m, nil
}

// List returns all macros ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Macro, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT macro_id, name, keys FROM macros ORDER BY created_at, macro_id`)
	if err != nil {
		return nil, fmt.Errorf("list macros: %w", err)
	}
	defer rows.Close()

	var out []Macro
	for rows.Next() {
		var m Macro
		var encoded string
		if err := rows.Scan(&m.ID, &m.Name, &encoded); err != nil {
			return nil, fmt.Errorf("scan macro: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &m.Keys); err != nil {
			return nil, fmt.Errorf("decode macro keys: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Execute replays a macro through the injector: keys down in order,
// released in reverse.
func (s *Store) Execute(ctx context.Context, id string, injector input.Injector) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(m.Keys) == 0 {
		return nil
	}

	for _, k := range m.Keys {
		injector.KeyDown(k)
		sleep(ctx, keyDelay)
	}
	for i := len(m.Keys) - 1; i >= 0; i-- {
		injector.KeyUp(m.Keys[i])
		sleep(ctx, keyDelay)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
