package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playok/adminsync/internal/model"
	_ "modernc.org/sqlite"
)

// SQLite keeps options in a local SQLite file.
type SQLite struct {
	db     *sql.DB
	dbPath string
}

// NewSQLite opens (or creates) the SQLite database and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLite{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *SQLite) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns an option value.
func (s *SQLite) Get(ctx context.Context, name string) (string, bool, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", name).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Create inserts an option unless one already exists.
func (s *SQLite) Create(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (name, value, updated) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		name, value, time.Now().Unix())
	return err
}

// Update upserts an option.
func (s *SQLite) Update(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (name, value, updated) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated = excluded.updated`,
		name, value, time.Now().Unix())
	return err
}

// List returns all options.
func (s *SQLite) List(ctx context.Context) ([]model.Setting, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value, updated FROM options ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []model.Setting
	for rows.Next() {
		var (
			st      model.Setting
			updated int64
		)
		if err := rows.Scan(&st.Name, &st.Value, &updated); err != nil {
			return nil, err
		}
		st.Updated = time.Unix(updated, 0).UTC()
		result = append(result, st)
	}
	return result, rows.Err()
}
