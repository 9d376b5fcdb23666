package http

import (
	"regexp"

	"github.com/gofiber/fiber/v2"
)

var repoSegment = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

// RepoCardAction renders the card partial for one GitHub repository.
func (h *Handlers) RepoCardAction(c *fiber.Ctx) error {
	owner, name := c.Params("owner"), c.Params("repo")
	if !validSegment(owner) || !validSegment(name) {
		return fiber.NewError(fiber.StatusNotFound, "repository not found")
	}

	return c.Render("partials/repo_card", fiber.Map{
		"Repo": h.github.Repo(c.UserContext(), owner, name),
	})
}

func validSegment(s string) bool {
	return repoSegment.MatchString(s) && s != "." && s != ".."
}
