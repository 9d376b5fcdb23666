package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"portfolio/internal/storage"
)

const (
	pruneBatchSize  = 1000
	pruneBatchPause = 100 * time.Millisecond
)

// PruneResult reports how many rows a prune removed.
type PruneResult struct {
	Pageviews int64
	Events    int64
	Sessions  int64
}

// Prune deletes pageviews and events recorded before cutoff, and sessions
// whose last activity is before it. Rows go in batches so live traffic can
// write in between.
func Prune(writer *storage.Writer, cutoff time.Time, logger *slog.Logger) (PruneResult, error) {
	var result PruneResult
	cutoff = cutoff.UTC()

	var err error
	if result.Pageviews, err = pruneTable(writer, "pageviews", "timestamp", cutoff); err != nil {
		return result, err
	}
	if result.Events, err = pruneTable(writer, "events", "timestamp", cutoff); err != nil {
		return result, err
	}
	if result.Sessions, err = pruneTable(writer, "sessions", "last_seen_at", cutoff); err != nil {
		return result, err
	}

	logger.Info("Pruned analytics data",
		slog.Time("cutoff", cutoff),
		slog.Int64("pageviews", result.Pageviews),
		slog.Int64("events", result.Events),
		slog.Int64("sessions", result.Sessions))
	return result, nil
}

func pruneTable(writer *storage.Writer, table, column string, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id IN (SELECT id FROM %[1]s WHERE %[2]s < ? LIMIT ?)",
		table, column)

	var total int64
	for {
		var affected int64
		err := writer.Write(func(tx *gorm.DB) error {
			res := tx.Exec(query, cutoff, pruneBatchSize)
			affected = res.RowsAffected
			return res.Error
		})
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}

		total += affected
		if affected < pruneBatchSize {
			return total, nil
		}
		time.Sleep(pruneBatchPause)
	}
}

// TableCounts returns the number of rows in every table.
func TableCounts(db *gorm.DB) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, model := range Models() {
		table := model.(interface{ TableName() string }).TableName()

		var count int64
		if err := db.Table(table).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = count
	}
	return counts, nil
}
