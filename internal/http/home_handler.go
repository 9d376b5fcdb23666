package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const pageTitle = "NEVERDECEL // DevOps & AI"

type repoRef struct {
	Owner string
	Name  string
}

// HomeIndexAction renders the landing page. Repository cards are loaded by
// the page itself from RepoCardAction.
func (h *Handlers) HomeIndexAction(c *fiber.Ctx) error {
	var repos []repoRef
	for _, full := range h.cfg.Repositories() {
		owner, name, ok := strings.Cut(full, "/")
		if !ok || owner == "" || name == "" {
			continue
		}
		repos = append(repos, repoRef{Owner: owner, Name: name})
	}

	return c.Render("index", fiber.Map{
		"Title":    pageTitle,
		"Greeting": h.agent.Greeting(),
		"Repos":    repos,
	}, "layout")
}
