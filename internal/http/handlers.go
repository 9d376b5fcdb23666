// Package http holds the page, dashboard and chat handlers.
package http

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"portfolio/internal/admin"
	"portfolio/internal/analytics"
	"portfolio/internal/ava"
	"portfolio/internal/config"
	"portfolio/internal/github"
)

// Options carries the collaborators shared by all handlers.
type Options struct {
	Config      *config.Config
	DB          *gorm.DB
	Auth        *admin.Authenticator
	Stats       *analytics.Service
	Agent       *ava.Agent
	ChatLimiter *ava.RateLimiter
	GitHub      *github.Client
	Logger      *slog.Logger
}

// Handlers implements the HTTP actions. Methods are named <Thing>Action.
type Handlers struct {
	cfg         *config.Config
	db          *gorm.DB
	auth        *admin.Authenticator
	stats       *analytics.Service
	agent       *ava.Agent
	chatLimiter *ava.RateLimiter
	github      *github.Client
	logger      *slog.Logger
}

func NewHandlers(opts Options) *Handlers {
	return &Handlers{
		cfg:         opts.Config,
		db:          opts.DB,
		auth:        opts.Auth,
		stats:       opts.Stats,
		agent:       opts.Agent,
		chatLimiter: opts.ChatLimiter,
		github:      opts.GitHub,
		logger:      opts.Logger,
	}
}

// ErrorHandler maps handler errors to a response without internal detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		} else {
			logger.Error("Unhandled request error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err))
		}

		if strings.Contains(c.Path(), "/api/") || c.Get(fiber.HeaderAccept) == fiber.MIMEApplicationJSON {
			return c.Status(code).JSON(fiber.Map{"error": message})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(code).SendString(message)
	}
}
