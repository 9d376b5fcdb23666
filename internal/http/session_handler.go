package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"portfolio/internal/admin"
	"portfolio/internal/http/middleware"
	"portfolio/internal/pkg/clientip"
	"portfolio/internal/visitors"
)

const (
	dashboardPath = "/admin/analytics"
	cookiePath    = "/admin/analytics"
)

var loginErrors = map[string]string{
	"invalid":      "Invalid password",
	"expired":      "Session expired. Please log in again.",
	"locked":       "Too many failed attempts. Try again later.",
	"unconfigured": "Set ANALYTICS_PASSWORD env var",
}

// LoginFormAction renders the dashboard login form.
func (h *Handlers) LoginFormAction(c *fiber.Ctx) error {
	if _, err := h.auth.Validate(c.Cookies(admin.CookieName)); err == nil {
		return c.Redirect(dashboardPath, fiber.StatusFound)
	}

	return c.Render("login", fiber.Map{
		"Title": "Analytics Login",
		"Error": loginErrors[c.Query("error")],
	}, "layout")
}

// LoginAction checks the password and sets the session cookie.
func (h *Handlers) LoginAction(c *fiber.Ctx) error {
	if !h.cfg.HasAdminPassword() {
		return c.Redirect(middleware.LoginPath+"?error=unconfigured", fiber.StatusFound)
	}

	clientID := visitors.ClientID(clientip.FromRequest(c))
	token, expiresAt, err := h.auth.Login(clientID, utils.CopyString(c.FormValue("password")))
	switch {
	case errors.Is(err, admin.ErrLockedOut):
		return c.Redirect(middleware.LoginPath+"?error=locked", fiber.StatusFound)
	case errors.Is(err, admin.ErrInvalidCredentials):
		return c.Redirect(middleware.LoginPath+"?error=invalid", fiber.StatusFound)
	case err != nil:
		h.logger.Error("Admin login failed", slog.String("client", clientID), slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "Login failed")
	}

	c.Cookie(&fiber.Cookie{
		Name:     admin.CookieName,
		Value:    token,
		Path:     cookiePath,
		Expires:  expiresAt,
		MaxAge:   int(h.auth.TTL().Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.Redirect(dashboardPath, fiber.StatusFound)
}

// LogoutAction destroys the session and clears the cookie.
func (h *Handlers) LogoutAction(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Cookies(admin.CookieName)); err != nil {
		h.logger.Error("Failed to delete admin session", slog.Any("error", err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     admin.CookieName,
		Value:    "",
		Path:     cookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.Redirect(middleware.LoginPath, fiber.StatusFound)
}
