package persistence

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"          // postgres driver
	_ "modernc.org/sqlite"         // embedded sqlite driver
)

// defaultTimeout bounds every row operation.
const defaultTimeout = 30 * time.Second

// Store wraps one database handle. The default deployment is an embedded
// SQLite file; a postgres:// DSN selects the Postgres driver. Both go
// through sqlx with identical ON CONFLICT upserts.
type Store struct {
	DB      *sqlx.DB
	driver  string
	timeout time.Duration
}

// Open connects and pings the row store.
func Open(dsn string) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer at a time; serialized date order makes pooling moot.
		db.SetMaxOpenConns(1)
	}
	return &Store{DB: db, driver: driver, timeout: defaultTimeout}, nil
}

// Close releases the handle.
func (s *Store) Close() error { return s.DB.Close() }

// Driver returns "sqlite" or "postgres".
func (s *Store) Driver() string { return s.driver }

// rebind converts ?-placeholders for the active driver.
func (s *Store) rebind(query string) string {
	if s.driver == "postgres" {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}
