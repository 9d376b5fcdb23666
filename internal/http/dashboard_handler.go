package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"portfolio/internal/analytics"
	"portfolio/internal/timeframe"
	"portfolio/internal/visitors"
)

const recentFeedSize = 30

// recentRow is a feed entry with the visitor's display alias.
type recentRow struct {
	analytics.RecentPageview
	Alias string
}

// DashboardAction renders the analytics dashboard. Sections whose queries
// failed render empty.
func (h *Handlers) DashboardAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	stats := h.stats.Stats(c.UserContext(), days)

	recent, err := h.stats.Recent(recentFeedSize)
	if err != nil {
		h.logger.Error("Failed to load recent pageviews", slog.Any("error", err))
	}
	rows := make([]recentRow, len(recent))
	for i, pv := range recent {
		rows[i] = recentRow{RecentPageview: pv, Alias: visitors.VisitorAlias(pv.VisitorID)}
	}

	bots, err := h.stats.BotTraffic(days)
	if err != nil {
		h.logger.Error("Failed to load bot traffic", slog.Any("error", err))
	}

	clicks, err := h.stats.Clicks(days)
	if err != nil {
		h.logger.Error("Failed to load click breakdowns", slog.Any("error", err))
	}

	return c.Render("dashboard", fiber.Map{
		"Title":      "Analytics",
		"Days":       days,
		"DayOptions": []int{1, 7, 30, 90, 365},
		"Stats":      stats,
		"Recent":     rows,
		"Bots":       bots,
		"Clicks":     clicks,
	}, "layout")
}

// StatsAPIAction returns the dashboard summary as JSON.
func (h *Handlers) StatsAPIAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	return c.JSON(h.stats.Stats(c.UserContext(), days))
}

// RecentAPIAction returns the latest human pageviews.
func (h *Handlers) RecentAPIAction(c *fiber.Ctx) error {
	recent, err := h.stats.Recent(c.QueryInt("limit", 50))
	if err != nil {
		return h.queryFailed(err, "recent pageviews")
	}
	return c.JSON(recent)
}

// VisitorsAPIAction lists visitors of the selected period.
func (h *Handlers) VisitorsAPIAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	list, err := h.stats.Visitors(days, c.QueryInt("limit", 50))
	if err != nil {
		return h.queryFailed(err, "visitors")
	}
	return c.JSON(list)
}

// VisitorDetailsAPIAction returns one visitor's sessions, pageviews and events.
func (h *Handlers) VisitorDetailsAPIAction(c *fiber.Ctx) error {
	details, err := h.stats.VisitorDetails(c.Params("id"))
	if errors.Is(err, analytics.ErrVisitorNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "visitor not found")
	}
	if err != nil {
		return h.queryFailed(err, "visitor details")
	}

	return c.JSON(fiber.Map{
		"alias":   visitors.VisitorAlias(details.Summary.VisitorID),
		"details": details,
	})
}

// EventDetailsAPIAction describes one event name.
func (h *Handlers) EventDetailsAPIAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	details, err := h.stats.EventDetails(c.Params("name"), days)
	if err != nil {
		return h.queryFailed(err, "event details")
	}
	return c.JSON(details)
}

// BotsAPIAction returns the bot traffic view.
func (h *Handlers) BotsAPIAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	bots, err := h.stats.BotTraffic(days)
	if err != nil {
		return h.queryFailed(err, "bot traffic")
	}
	return c.JSON(bots)
}

// ClicksAPIAction returns tile and outbound click breakdowns.
func (h *Handlers) ClicksAPIAction(c *fiber.Ctx) error {
	days := timeframe.ParseDays(c.Query("days"))
	clicks, err := h.stats.Clicks(days)
	if err != nil {
		return h.queryFailed(err, "clicks")
	}
	return c.JSON(clicks)
}

func (h *Handlers) queryFailed(err error, what string) error {
	h.logger.Error("Dashboard query failed", slog.String("query", what), slog.Any("error", err))
	return fiber.NewError(fiber.StatusInternalServerError, "query failed")
}
