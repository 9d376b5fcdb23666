package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	DBStatus    string    `json:"db_status"`
}

// HealthAction handles the liveness probe. It answers 200 even when the
// database is unreachable so the process is not restarted for it.
func (h *Handlers) HealthAction(c *fiber.Ctx) error {
	dbStatus := "ok"

	if h.db == nil {
		dbStatus = "error"
		h.logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := h.db.DB()
		if err != nil {
			dbStatus = "error"
			h.logger.Error("Database connection error", slog.Any("error", err))
		} else if err := sqlDB.PingContext(c.UserContext()); err != nil {
			dbStatus = "error"
			h.logger.Error("Database ping failed", slog.Any("error", err))
		}
	}

	health := HealthStatus{
		Status:      "ok",
		Environment: h.cfg.Environment,
		Timestamp:   time.Now().UTC(),
		DBStatus:    dbStatus,
	}
	if dbStatus != "ok" {
		health.Status = "degraded"
	}

	return c.JSON(health)
}
