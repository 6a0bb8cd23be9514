package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) repositories.HistoryStore {
	return &historyRepo{db: db}
}

func (r *historyRepo) TouchSession(ctx context.Context, sessionID string, at, expiresAt time.Time) (*models.Session, error) {
	s := &models.Session{
		ID:           sessionID,
		CreatedAt:    at.UTC(),
		LastActivity: at.UTC(),
		ExpiresAt:    expiresAt.UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_activity", "expires_at"}),
	}).Create(s).Error
	if err != nil {
		return nil, err
	}
	return r.GetSession(ctx, sessionID)
}

func (r *historyRepo) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *historyRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a concurrent purge cannot delete the session before the insert lands
		var sess models.Session
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ?", msg.SessionID).
			Take(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound
		}
		if err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
}

func (r *historyRepo) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *historyRepo) DeleteSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", sessionID).Delete(&models.Session{}).Error
	})
}

func (r *historyRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.Session{}).Select("id").Where("last_activity < ?", cutoff)
		if err := tx.Where("session_id IN (?)", stale).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("last_activity < ?", cutoff).Delete(&models.Session{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}
