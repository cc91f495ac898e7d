// internal/store/mysql.go
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/valpere/ProxyRotexter/internal/utils"
)

var mysqlLogger = utils.NewComponentLogger("mysql-store")

// MySQLStore persists entries in a MySQL database.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects using a go-sql-driver DSN, for example
// "user:pass@tcp(localhost:3306)/proxies?parseTime=true".
func NewMySQLStore(config Config) (*MySQLStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("mysql store DSN is required")
	}

	db, err := sql.Open("mysql", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	table := tableName(config)
	s := &MySQLStore{sqlStore{
		db:    db,
		table: table,
		upsert: fmt.Sprintf(`
			INSERT INTO %s (url, country_code, region, cost_per_request, source, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				country_code = VALUES(country_code),
				region = VALUES(region),
				cost_per_request = VALUES(cost_per_request),
				source = VALUES(source),
				updated_at = VALUES(updated_at)`, table),
	}}
	if err := s.createTable("DATETIME"); err != nil {
		db.Close()
		return nil, err
	}

	mysqlLogger.Debugf("mysql store ready, table %s", table)
	return s, nil
}
