package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type consultationRepo struct {
	db *gorm.DB
}

func NewConsultationRepo(db *gorm.DB) repositories.ConsultationStore {
	return &consultationRepo{db: db}
}

func (r *consultationRepo) Insert(ctx context.Context, c *models.ConsultationRequest) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *consultationRepo) GetByID(ctx context.Context, id string) (*models.ConsultationRequest, error) {
	var row models.ConsultationRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *consultationRepo) List(ctx context.Context, limit int) ([]models.ConsultationRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.ConsultationRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
