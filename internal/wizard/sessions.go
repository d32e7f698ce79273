package wizard

import (
	"log/slog"
	"sync"

	"github.com/pintegram/toolbot/internal/domain"
)

// SessionStore keeps one wizard session per chat. It replaces the ambient
// per-conversation session middleware of typical bot frameworks with an
// explicit, mutex-guarded map whose lifecycle the controller drives.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*domain.WizardSession
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*domain.WizardSession),
	}
}

// Get returns the session for a chat, creating an empty one on first
// contact.
func (s *SessionStore) Get(chatID int64) *domain.WizardSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	sess := &domain.WizardSession{}
	s.sessions[chatID] = sess
	return sess
}

// Reset disarms any pending auto-approve timer and replaces the chat's
// session with an empty one. Used on cancel, expiry and completion.
func (s *SessionStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		sess.DisarmSummaryTimer()
	}
	s.sessions[chatID] = &domain.WizardSession{}
	slog.Debug("Wizard session reset", "chat_id", chatID)
}
