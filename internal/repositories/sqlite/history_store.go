package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.HistoryStore = (*HistoryStore)(nil)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) TouchSession(ctx context.Context, sessionID string, at, expiresAt time.Time) (*models.Session, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, created_at, last_activity, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_activity = excluded.last_activity,
			expires_at = excluded.expires_at
	`, sessionID, toUnix(at), toUnix(at), toUnix(expiresAt))
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, sessionID)
}

func (s *HistoryStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var created, last, expires int64
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at, last_activity, expires_at FROM chat_sessions WHERE id = ?", sessionID,
	).Scan(&created, &last, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.Session{
		ID:           sessionID,
		CreatedAt:    fromUnix(created),
		LastActivity: fromUnix(last),
		ExpiresAt:    fromUnix(expires),
	}, nil
}

func (s *HistoryStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	var metadata any
	if len(msg.Metadata) > 0 {
		metadata = string(msg.Metadata)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, timestamp, metadata)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM chat_sessions WHERE id = ?)
	`, msg.ID, msg.SessionID, msg.Role, msg.Content, toUnix(msg.Timestamp), metadata, msg.SessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (s *HistoryStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, timestamp, metadata
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m        models.Message
			ts       int64
			metadata sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ts, &metadata); err != nil {
			return nil, err
		}
		m.SessionID = sessionID
		m.Timestamp = fromUnix(ts)
		if metadata.Valid {
			m.Metadata = []byte(metadata.String)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest-first from the query, callers want chronological
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *HistoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = ?", sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *HistoryStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	c := toUnix(cutoff)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE session_id IN (SELECT id FROM chat_sessions WHERE last_activity < ?)
	`, c); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM chat_sessions WHERE last_activity < ?", c)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
