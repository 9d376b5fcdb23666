// Package ava is the chat assistant embedded in the landing page: built-in
// commands, input hardening, and a hosted model behind a Provider.
package ava

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"time"

	"portfolio/internal/metrics"
	"portfolio/internal/pkg/markdown"
)

const (
	DefaultReplyTimeout = 30 * time.Second
	serverBusyText      = "Server busy. Try again in a few minutes."
)

// Reply is what the chat partial renders.
type Reply struct {
	Text    string
	HTML    template.HTML
	IsError bool
}

type Options struct {
	Persona      *Persona
	Sessions     *SessionStore
	ReplyTimeout time.Duration
}

// Agent answers chat messages.
type Agent struct {
	persona  *Persona
	provider Provider
	sessions *SessionStore
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAgent builds an agent. provider may be nil.
func NewAgent(provider Provider, opts Options, logger *slog.Logger) (*Agent, error) {
	if opts.Persona == nil {
		persona, err := LoadPersona()
		if err != nil {
			return nil, err
		}
		opts.Persona = persona
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessionStore(SessionOptions{})
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = DefaultReplyTimeout
	}

	return &Agent{
		persona:  opts.Persona,
		provider: provider,
		sessions: opts.Sessions,
		timeout:  opts.ReplyTimeout,
		logger:   logger,
	}, nil
}

func (a *Agent) Greeting() string {
	return a.persona.Greeting
}

// Chat answers message for the conversation sessionID. It never fails; every
// problem turns into a reply.
func (a *Agent) Chat(ctx context.Context, sessionID, message string) Reply {
	message = Sanitize(message)
	if err := Validate(message); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("invalid").Inc()
		return plainReply(validationText[err], true)
	}

	if text, ok := a.persona.Command(message); ok {
		metrics.ChatRequestsTotal.WithLabelValues("command").Inc()
		return plainReply(text, false)
	}

	if pattern, ok := DetectInjection(message); ok {
		metrics.ChatRequestsTotal.WithLabelValues("blocked").Inc()
		a.logger.Warn("Prompt injection attempt detected",
			slog.String("session", sessionID),
			slog.String("pattern", pattern))
		return plainReply(a.persona.InjectionWarning, false)
	}

	if a.provider == nil {
		metrics.ChatRequestsTotal.WithLabelValues("fallback").Inc()
		return plainReply(a.persona.Fallback, false)
	}

	history, err := a.sessions.Begin(sessionID)
	if errors.Is(err, ErrServerBusy) {
		metrics.ChatRequestsTotal.WithLabelValues("busy").Inc()
		a.logger.Warn("Max chat sessions reached, rejecting new session")
		return plainReply(serverBusyText, true)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, err := a.provider.Reply(ctx, a.persona.SystemPrompt, history, message)
	metrics.ObserveProvider(a.provider.Name(), start)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("fallback").Inc()
		a.logger.Error("AI provider error",
			slog.String("provider", a.provider.Name()),
			slog.Any("error", err))
		return plainReply(a.persona.Fallback, false)
	}

	a.sessions.Record(sessionID, message, text)
	metrics.ChatRequestsTotal.WithLabelValues("model").Inc()

	html, err := markdown.ToHTML(text)
	if err != nil {
		a.logger.Warn("Failed to render reply markdown", slog.Any("error", err))
		html = markdown.Escape(text)
	}
	return Reply{Text: text, HTML: html}
}

// Reset forgets the conversation of sessionID.
func (a *Agent) Reset(sessionID string) {
	a.sessions.Reset(sessionID)
}

func plainReply(text string, isError bool) Reply {
	return Reply{Text: text, HTML: markdown.Escape(text), IsError: isError}
}
