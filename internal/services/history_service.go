package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/mohammadjaf013/findlanqbot/internal/cache"
	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const maxSessionIDLen = 128

type HistoryService interface {
	// Touch opens the session or records activity on it. An expired session
	// is dropped and started over.
	Touch(ctx context.Context, sessionID string) (*models.Session, error)
	Append(ctx context.Context, sessionID, role, content string, metadata any) (*models.Message, error)
	// AppendTurn stores a question stamped askedAt and its answer stamped now.
	// The answer always sorts after the question.
	AppendTurn(ctx context.Context, sessionID string, askedAt time.Time, question, answer string, metadata any) error
	// Recent returns the last HistoryLimit messages, oldest first.
	Recent(ctx context.Context, sessionID string) ([]models.Message, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	List(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	Delete(ctx context.Context, sessionID string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type HistoryOptions struct {
	TTL      time.Duration
	Limit    int
	CacheTTL time.Duration
	Now      func() time.Time
}

type historyService struct {
	store repositories.HistoryStore
	cache cache.Cache
	opts  HistoryOptions
	log   *logrus.Logger
}

func NewHistoryService(store repositories.HistoryStore, c cache.Cache, opts HistoryOptions, log *logrus.Logger) HistoryService {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &historyService{store: store, cache: c, opts: opts, log: log}
}

func (s *historyService) now() time.Time { return s.opts.Now().UTC() }

func (s *historyService) expired(sess *models.Session, now time.Time) bool {
	return now.Sub(sess.LastActivity) >= s.opts.TTL
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	return strings.TrimSpace(id) == id
}

func (s *historyService) Touch(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "HistoryService.Touch"

	if !validSessionID(sessionID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}

	now := s.now()
	existing, err := s.store.GetSession(ctx, sessionID)
	switch {
	case err == nil && s.expired(existing, now):
		s.log.WithField("session_id", sessionID).Info("session expired, starting over")
		if err := s.store.DeleteSession(ctx, sessionID); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to reset session", err)
		}
		s.dropCache(ctx, sessionID)
	case errors.Is(err, utils.ErrNotFound):
		// the id may belong to a purged session whose history is still cached
		s.dropCache(ctx, sessionID)
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	sess, err := s.store.TouchSession(ctx, sessionID, now, now.Add(s.opts.TTL))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update session", err)
	}
	return sess, nil
}

func (s *historyService) newMessage(op, sessionID, role, content string, at time.Time, metadata any) (*models.Message, error) {
	if !validSessionID(sessionID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}
	if role != models.RoleUser && role != models.RoleAssistant {
		return nil, utils.E(utils.CodeInvalidArgument, op, "role must be user or assistant", nil)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: at.UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to encode metadata", err)
		}
		msg.Metadata = datatypes.JSON(raw)
	}
	return msg, nil
}

func (s *historyService) appendOne(ctx context.Context, op string, msg *models.Message) error {
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to append message", err)
	}
	return nil
}

func (s *historyService) Append(ctx context.Context, sessionID, role, content string, metadata any) (*models.Message, error) {
	const op = "HistoryService.Append"

	msg, err := s.newMessage(op, sessionID, role, content, s.now(), metadata)
	if err != nil {
		return nil, err
	}
	if err := s.appendOne(ctx, op, msg); err != nil {
		return nil, err
	}
	s.dropCache(ctx, sessionID)
	return msg, nil
}

func (s *historyService) AppendTurn(ctx context.Context, sessionID string, askedAt time.Time, question, answer string, metadata any) error {
	const op = "HistoryService.AppendTurn"

	// stores keep millisecond precision at worst
	answeredAt := s.now()
	if floor := askedAt.Add(time.Millisecond); answeredAt.Before(floor) {
		answeredAt = floor
	}

	user, err := s.newMessage(op, sessionID, models.RoleUser, question, askedAt, nil)
	if err != nil {
		return err
	}
	reply, err := s.newMessage(op, sessionID, models.RoleAssistant, answer, answeredAt, metadata)
	if err != nil {
		return err
	}

	defer s.dropCache(ctx, sessionID)
	if err := s.appendOne(ctx, op, user); err != nil {
		return err
	}
	return s.appendOne(ctx, op, reply)
}

func (s *historyService) Recent(ctx context.Context, sessionID string) ([]models.Message, error) {
	const op = "HistoryService.Recent"

	if !validSessionID(sessionID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}

	key := cache.HistoryKey(sessionID)
	var cached []models.Message
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("history cache read failed")
	}
	if hit {
		return cached, nil
	}

	msgs, err := s.store.ListMessages(ctx, sessionID, s.opts.Limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load history", err)
	}
	if err := s.cache.SetJSON(ctx, key, msgs, s.opts.CacheTTL); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("history cache write failed")
	}
	return msgs, nil
}

func (s *historyService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "HistoryService.Get"

	if !validSessionID(sessionID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if s.expired(sess, s.now()) {
		return nil, utils.E(utils.CodeNotFound, op, "session expired", nil)
	}
	return sess, nil
}

func (s *historyService) List(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	const op = "HistoryService.List"

	if !validSessionID(sessionID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}
	msgs, err := s.store.ListMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	return msgs, nil
}

func (s *historyService) Delete(ctx context.Context, sessionID string) error {
	const op = "HistoryService.Delete"

	if !validSessionID(sessionID) {
		return utils.E(utils.CodeInvalidArgument, op, "invalid session_id", nil)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete session", err)
	}
	s.dropCache(ctx, sessionID)
	return nil
}

// PurgeExpired removes sessions idle for longer than the TTL. Cached history
// of a purged id is dropped when Touch opens it again.
func (s *historyService) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "HistoryService.PurgeExpired"

	n, err := s.store.PurgeExpired(ctx, s.now().Add(-s.opts.TTL))
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to purge sessions", err)
	}
	return n, nil
}

func (s *historyService) dropCache(ctx context.Context, sessionID string) {
	if err := s.cache.Del(ctx, cache.HistoryKey(sessionID)); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("history cache invalidation failed")
	}
}
