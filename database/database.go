package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mbolis/quick-poll/config"
)

// Connection options:
//   - foreign_keys must be on for every pooled connection, a plain PRAGMA
//     would only reach one of them
//   - immediate transactions take the write lock at BEGIN, so two
//     concurrent vote casts queue up on the busy timeout instead of
//     deadlocking on a deferred lock upgrade
const dsnOptions = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

func Open(cfg config.Config) (db *sql.DB, err error) {
	dsn := cfg.DBUrl
	if strings.Contains(dsn, "?") {
		dsn += "&" + dsnOptions
	} else {
		dsn += "?" + dsnOptions
	}

	db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}
