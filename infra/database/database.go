/*
Package database owns the node's MySQL pool. The handle is created
lazily and verified with a ping when the process starts, so a DSN typo
fails the boot instead of the first query.
*/
package database

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Open parses the DSN and builds the pool without touching the network.
func Open(uri string) (*sqlx.DB, error) {
	if uri == "" {
		return nil, fmt.Errorf("database: uri is empty")
	}

	db, err := sqlx.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return db, nil
}
