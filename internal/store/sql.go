// internal/store/sql.go - shared SQL backend plumbing
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// sqlStore implements the Store operations that are identical across
// the SQL backends. Each backend supplies its dialect's upsert
// statement and placeholder style.
type sqlStore struct {
	db     *sql.DB
	table  string
	upsert string
	// numbered selects $1-style placeholders instead of question marks.
	numbered bool
}

func (s *sqlStore) createTable(timestampType string) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			url VARCHAR(255) PRIMARY KEY,
			country_code VARCHAR(8) NOT NULL DEFAULT '',
			region VARCHAR(8) NOT NULL DEFAULT '',
			cost_per_request DOUBLE PRECISION NOT NULL DEFAULT 0,
			source VARCHAR(32) NOT NULL DEFAULT '',
			updated_at %s NOT NULL
		)`, s.table, timestampType))
	if err != nil {
		return fmt.Errorf("creating table %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the entries inside one transaction.
func (s *sqlStore) Save(ctx context.Context, entries []proxy.ProxyEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.upsert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, entry := range entries {
		key, kerr := normalizeKey(entry.URL)
		if kerr != nil {
			tx.Rollback()
			return kerr
		}
		if _, err := stmt.ExecContext(ctx, key, entry.CountryCode, entry.Region,
			entry.CostPerRequest, entry.Source, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load returns every stored entry, oldest first.
func (s *sqlStore) Load(ctx context.Context) ([]proxy.ProxyEntry, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT url, country_code, region, cost_per_request, source FROM %s ORDER BY updated_at, url`, s.table))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var entries []proxy.ProxyEntry
	for rows.Next() {
		var entry proxy.ProxyEntry
		if err := rows.Scan(&entry.URL, &entry.CountryCode, &entry.Region,
			&entry.CostPerRequest, &entry.Source); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Remove deletes one entry by URL.
func (s *sqlStore) Remove(ctx context.Context, rawURL string) error {
	key, err := normalizeKey(rawURL)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE url = %s`, s.table, s.placeholder(1)), key)
	return err
}

// Clear deletes all entries.
func (s *sqlStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	return err
}

// Close closes the database handle.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// placeholder formats the n-th statement parameter. Postgres numbers
// its placeholders; sqlite and mysql use question marks.
func (s *sqlStore) placeholder(n int) string {
	if s.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func tableName(config Config) string {
	if config.Table != "" {
		return config.Table
	}
	return "proxies"
}
