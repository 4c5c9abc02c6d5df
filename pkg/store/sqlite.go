package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"zapmenu/pkg/menu"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the bot database.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers from blocking the enrollment writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		first_seen_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS menus (
		menu_id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS menu_options (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		menu_id TEXT NOT NULL,
		ord INTEGER NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		target TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_menu_options_menu ON menu_options(menu_id, ord);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindUser returns the enrollment record, or nil when the user has never
// been seen.
func (s *SQLiteStore) FindUser(ctx context.Context, userID string) (*Enrollment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, first_seen_at FROM users WHERE user_id = ?`, userID)

	var e Enrollment
	var firstSeen int64
	err := row.Scan(&e.UserID, &firstSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	e.FirstSeenAt = time.Unix(firstSeen, 0)
	return &e, nil
}

// CreateUser inserts the first-contact record. The engine only calls this
// after FindUser returned nil; per-user turns are serialized, so there is no
// insert race for a single user.
func (s *SQLiteStore) CreateUser(ctx context.Context, userID string) (*Enrollment, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, first_seen_at) VALUES (?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &Enrollment{UserID: userID, FirstSeenAt: time.Unix(now.Unix(), 0)}, nil
}

// GetMenu loads one menu with its options in stable order, or nil when the
// menu id is unknown.
func (s *SQLiteStore) GetMenu(ctx context.Context, menuID string) (*menu.Menu, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT prompt FROM menus WHERE menu_id = ?`, menuID)

	var prompt string
	err := row.Scan(&prompt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan menu row: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, text, COALESCE(target, '')
		 FROM menu_options WHERE menu_id = ?
		 ORDER BY ord ASC, id ASC`, menuID)
	if err != nil {
		return nil, fmt.Errorf("query menu options: %w", err)
	}
	defer rows.Close()

	m := &menu.Menu{ID: menuID, Prompt: prompt}
	for rows.Next() {
		var opt menu.Option
		var kind string
		if err := rows.Scan(&kind, &opt.Text, &opt.Target); err != nil {
			return nil, fmt.Errorf("scan option row: %w", err)
		}
		opt.Kind = menu.OptionKind(kind)
		m.Options = append(m.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu options: %w", err)
	}

	return m, nil
}

// UpsertMenu replaces a menu definition and its options. Used by the seed
// command only.
func (s *SQLiteStore) UpsertMenu(ctx context.Context, m *menu.Menu) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO menus (menu_id, prompt) VALUES (?, ?)
		 ON CONFLICT(menu_id) DO UPDATE SET prompt = excluded.prompt`,
		m.ID, m.Prompt); err != nil {
		return fmt.Errorf("upsert menu: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM menu_options WHERE menu_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear menu options: %w", err)
	}

	for i, opt := range m.Options {
		var target interface{}
		if opt.Target != "" {
			target = opt.Target
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO menu_options (menu_id, ord, kind, text, target)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ID, i, string(opt.Kind), opt.Text, target); err != nil {
			return fmt.Errorf("insert menu option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
