package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"portfolio/internal/ava"
	"portfolio/internal/metrics"
	"portfolio/internal/pkg/clientip"
	"portfolio/internal/pkg/markdown"
	"portfolio/internal/visitors"
)

// ChatAction answers one Ava message with the chat message partial. The
// conversation is keyed by the hashed client address.
func (h *Handlers) ChatAction(c *fiber.Ctx) error {
	// The message outlives the request in the conversation history.
	message := utils.CopyString(c.FormValue("message"))
	clientID := visitors.ClientID(clientip.FromRequest(c))

	var reply ava.Reply
	if allowed, retry := h.chatLimiter.Allow(clientID); allowed {
		reply = h.agent.Chat(c.UserContext(), clientID, message)
	} else {
		metrics.ChatRequestsTotal.WithLabelValues("rate_limited").Inc()
		reply = ava.Reply{Text: retry, HTML: markdown.Escape(retry), IsError: true}
	}

	return c.Render("partials/chat_message", fiber.Map{
		"UserMessage": message,
		"Reply":       reply.HTML,
		"IsError":     reply.IsError,
	})
}
