package ava

import (
	"errors"
	"sync"
	"time"
)

const (
	DefaultMaxSessions     = 1000
	DefaultSessionTTL      = 30 * time.Minute
	DefaultMaxMessages     = 50
	sessionCleanupInterval = time.Minute
)

// ErrServerBusy is returned when a new conversation would exceed MaxSessions.
var ErrServerBusy = errors.New("too many chat sessions")

// Role of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message of a conversation.
type Turn struct {
	Role Role
	Text string
}

type conversation struct {
	turns      []Turn
	messages   int
	lastActive time.Time
}

type SessionOptions struct {
	MaxSessions int
	TTL         time.Duration
	MaxMessages int
	Now         func() time.Time
}

// SessionStore keeps conversation history in memory, bounded in count, age
// and length.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*conversation
	opts        SessionOptions
	lastCleanup time.Time
}

func NewSessionStore(opts SessionOptions) *SessionStore {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]*conversation),
		opts:     opts,
	}
}

// Begin returns the history of id, starting a new conversation when there is
// none or the previous one used up its messages.
func (s *SessionStore) Begin(id string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	s.cleanup(now)

	if conv, ok := s.sessions[id]; ok {
		if conv.messages < s.opts.MaxMessages && now.Sub(conv.lastActive) <= s.opts.TTL {
			history := make([]Turn, len(conv.turns))
			copy(history, conv.turns)
			return history, nil
		}
		delete(s.sessions, id)
	}

	if len(s.sessions) >= s.opts.MaxSessions {
		return nil, ErrServerBusy
	}
	s.sessions[id] = &conversation{lastActive: now}
	return nil, nil
}

// Record appends one exchange to the conversation of id.
func (s *SessionStore) Record(id, message, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[id]
	if !ok {
		return
	}
	conv.turns = append(conv.turns, Turn{Role: RoleUser, Text: message}, Turn{Role: RoleModel, Text: reply})
	conv.messages++
	conv.lastActive = s.opts.Now()
}

// Reset forgets the conversation of id.
func (s *SessionStore) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) cleanup(now time.Time) {
	if now.Sub(s.lastCleanup) < sessionCleanupInterval && len(s.sessions) < s.opts.MaxSessions {
		return
	}
	s.lastCleanup = now
	for id, conv := range s.sessions {
		if now.Sub(conv.lastActive) > s.opts.TTL {
			delete(s.sessions, id)
		}
	}
}
