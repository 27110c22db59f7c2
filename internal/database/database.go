package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Connect opens a database for driver ("sqlite" or "postgres") using dsn.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == "sqlite" {
		// A single connection keeps an in-memory database alive and
		// serializes writers the way SQLite expects.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Dialect returns the goqu dialect name matching db's driver.
func Dialect(db interface{ DriverName() string }) string {
	if db.DriverName() == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}
