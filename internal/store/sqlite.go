// internal/store/sqlite.go
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore persists entries in a local SQLite database.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens, and if needed creates, the database file.
func NewSQLiteStore(config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	table := tableName(config)
	s := &SQLiteStore{sqlStore{
		db:    db,
		table: table,
		upsert: fmt.Sprintf(`
			INSERT INTO %s (url, country_code, region, cost_per_request, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				country_code = excluded.country_code,
				region = excluded.region,
				cost_per_request = excluded.cost_per_request,
				source = excluded.source,
				updated_at = excluded.updated_at`, table),
	}}
	if err := s.createTable("TIMESTAMP"); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
