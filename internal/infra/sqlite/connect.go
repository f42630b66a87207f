package sqlite

import (
	"fmt"
	"log"

	"github.com/pocketbase/dbx"
	"github.com/vogiaan1904/ticketbottle-admission/config"

	_ "modernc.org/sqlite"
)

// Connect opens the durable store. WAL mode plus a busy timeout lets
// the batch processors and the seat path write concurrently without
// immediate SQLITE_BUSY failures.
func Connect(cfg config.SQLiteConfig) (*dbx.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		cfg.Path, cfg.BusyTimeout.Milliseconds(),
	)

	db, err := dbx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.DB().Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	log.Printf("Connected to SQLite at %s.\n", cfg.Path)

	return db, nil
}

func Disconnect(db *dbx.DB) {
	if db == nil {
		return
	}

	db.Close()

	log.Println("Connection to SQLite closed.")
}
