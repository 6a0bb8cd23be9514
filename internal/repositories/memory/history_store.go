package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.HistoryStore = (*HistoryStore)(nil)

type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	messages map[string][]models.Message
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		sessions: make(map[string]*models.Session),
		messages: make(map[string][]models.Message),
	}
}

func (s *HistoryStore) TouchSession(_ context.Context, sessionID string, at, expiresAt time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &models.Session{ID: sessionID, CreatedAt: at.UTC()}
		s.sessions[sessionID] = sess
	}
	sess.LastActivity = at.UTC()
	sess.ExpiresAt = expiresAt.UTC()

	out := *sess
	return &out, nil
}

func (s *HistoryStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	out := *sess
	return &out, nil
}

func (s *HistoryStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[msg.SessionID]; !ok {
		return utils.ErrNotFound
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], *msg)
	return nil
}

func (s *HistoryStore) ListMessages(_ context.Context, sessionID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *HistoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *HistoryStore) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}
