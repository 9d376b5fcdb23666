package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"portfolio/internal/admin"
)

const (
	LoginPath = "/admin/analytics/login"

	adminSessionKey = "admin_session"
)

// RequireAdmin rejects requests without a valid dashboard session cookie.
// API calls get a JSON 401, pages are redirected to the login form.
func RequireAdmin(auth *admin.Authenticator, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(admin.CookieName)
		session, err := auth.Validate(token)
		if err == nil {
			c.Locals(adminSessionKey, session)
			return c.Next()
		}

		if !errors.Is(err, admin.ErrSessionExpired) {
			logger.Error("Failed to validate admin session", slog.Any("error", err))
		}

		if wantsJSON(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		if token == "" {
			return c.Redirect(LoginPath, fiber.StatusFound)
		}
		logger.Debug("Admin session expired, redirecting to login",
			slog.String("path", c.Path()))
		return c.Redirect(LoginPath+"?error=expired", fiber.StatusFound)
	}
}

// AdminSession returns the session stored by RequireAdmin, if any.
func AdminSession(c *fiber.Ctx) (*admin.AdminSession, bool) {
	session, ok := c.Locals(adminSessionKey).(*admin.AdminSession)
	return session, ok
}

func wantsJSON(c *fiber.Ctx) bool {
	if strings.Contains(c.Path(), "/api/") {
		return true
	}
	return c.Get(fiber.HeaderAccept) == fiber.MIMEApplicationJSON ||
		c.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON
}
