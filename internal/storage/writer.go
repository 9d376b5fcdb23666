// Package storage serializes writes to the embedded SQLite database.
package storage

import (
	"log/slog"
	"sync"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Writer is the single writer gate for the database. Every write goes through
// Write, so a read-then-write sequence inside one call is atomic. Reads use
// DB() directly and may run alongside a write.
type Writer struct {
	mu     sync.Mutex
	db     *gorm.DB
	logger *slog.Logger
}

// NewWriter wraps a connection. There must be exactly one Writer per database.
func NewWriter(db *gorm.DB, logger *slog.Logger) *Writer {
	return &Writer{db: db, logger: logger}
}

// DB returns the connection for read queries.
func (w *Writer) DB() *gorm.DB {
	return w.db
}

// Write runs fn in a write transaction while holding the writer lock.
func (w *Writer) Write(fn func(tx *gorm.DB) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return sqlite.PerformWrite(w.logger, w.db, fn)
}
