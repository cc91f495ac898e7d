// internal/store/store.go - persistent proxy candidate storage
package store

import (
	"context"
	"fmt"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// Store persists proxy candidates between runs. The rotation engine
// never touches a store itself; the CLI loads candidates from one at
// startup and saves fetch results into one on demand. Entries are keyed
// by their normalized proxy URL.
type Store interface {
	// Save upserts the given entries.
	Save(ctx context.Context, entries []proxy.ProxyEntry) error
	// Load returns every stored entry.
	Load(ctx context.Context) ([]proxy.ProxyEntry, error)
	// Remove deletes the entry with the given normalized URL.
	Remove(ctx context.Context, url string) error
	// Clear deletes all entries.
	Clear(ctx context.Context) error
	// Close releases the backend connection.
	Close() error
}

// BackendType selects a store backend.
type BackendType string

const (
	BackendMemory   BackendType = "memory"
	BackendFile     BackendType = "file"
	BackendSQLite   BackendType = "sqlite"
	BackendPostgres BackendType = "postgres"
	BackendMySQL    BackendType = "mysql"
	BackendMongoDB  BackendType = "mongodb"
)

// Config selects and configures a store backend.
type Config struct {
	Backend BackendType `yaml:"backend" json:"backend"`
	// Path is the file or database path for file and sqlite backends.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// DSN is the connection string for postgres, mysql, and mongodb.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	// Database and Collection apply to the mongodb backend.
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	// Table applies to the SQL backends. Defaults to "proxies".
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
}

// New creates the configured store backend.
func New(ctx context.Context, config Config) (Store, error) {
	switch config.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(config.Path)
	case BackendSQLite:
		return NewSQLiteStore(config)
	case BackendPostgres:
		return NewPostgresStore(config)
	case BackendMySQL:
		return NewMySQLStore(config)
	case BackendMongoDB:
		return NewMongoStore(ctx, config)
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Backend)
	}
}

// normalizeKey maps a raw proxy URL onto its storage key.
func normalizeKey(rawURL string) (string, error) {
	u, err := proxy.NormalizeProxyURL(rawURL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
