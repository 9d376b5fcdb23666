package database

import (
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"portfolio/internal/admin"
	"portfolio/internal/config"
	"portfolio/internal/events"
	"portfolio/internal/pageviews"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
)

// DBManager wraps cartridge's sqlite.Manager with the migrations and the
// single writer gate of the analytics database.
type DBManager struct {
	*sqlite.Manager
	writer *storage.Writer
	logger *slog.Logger
}

// NewDBManager creates a new database manager using cartridge's sqlite.Manager.
func NewDBManager(cfg *config.Config, logger *slog.Logger) *DBManager {
	sqliteCfg := sqlite.Config{
		Path:         cfg.GetDatabasePath(),
		MaxOpenConns: cfg.GetMaxOpenConns(),
		MaxIdleConns: cfg.GetMaxIdleConns(),
		Logger:       logger,
		EnableWAL:    true,
		TxImmediate:  true,
		BusyTimeout:  5000,
	}

	return &DBManager{
		Manager: sqlite.NewManager(sqliteCfg),
		logger:  logger,
	}
}

// Init opens the connection and sets up the writer gate.
func (dm *DBManager) Init() error {
	db, err := dm.Manager.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	dm.writer = storage.NewWriter(db, dm.logger)
	return nil
}

// Writer returns the only writer of this database. Init must have run.
func (dm *DBManager) Writer() *storage.Writer {
	return dm.writer
}

// Models lists every table of the analytics database.
func Models() []any {
	return []any{
		&pageviews.Pageview{},
		&events.Event{},
		&sessions.Session{},
		&admin.AdminSession{},
		&admin.LoginAttempt{},
	}
}

// Migrate creates missing tables, columns and indexes.
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Models()...)
	})
}

// MigrateDatabase runs the migrations and checkpoints the WAL.
func (dm *DBManager) MigrateDatabase() error {
	db := dm.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	if err := Migrate(db); err != nil {
		dm.logger.Error("Failed to auto-migrate database", slog.Any("error", err))
		return err
	}

	if err := dm.CheckpointWAL("FULL"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL after migration", slog.Any("error", err))
	}

	dm.logger.Info("Database migration completed successfully")
	return nil
}

// Close checkpoints the WAL and closes the connection pool.
func (dm *DBManager) Close() error {
	db := dm.GetConnection()
	if db == nil {
		return nil
	}
	if err := dm.CheckpointWAL("TRUNCATE"); err != nil {
		dm.logger.Warn("Failed to checkpoint WAL on close", slog.Any("error", err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
