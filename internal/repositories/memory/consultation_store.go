package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.ConsultationStore = (*ConsultationStore)(nil)

type ConsultationStore struct {
	mu   sync.RWMutex
	rows []models.ConsultationRequest
}

func NewConsultationStore() *ConsultationStore {
	return &ConsultationStore{}
}

func (s *ConsultationStore) Insert(_ context.Context, r *models.ConsultationRequest) error {
	row := *r
	row.Positions = append([]string(nil), r.Positions...)

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	return nil
}

func (s *ConsultationStore) GetByID(_ context.Context, id string) (*models.ConsultationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.rows {
		if s.rows[i].ID == id {
			row := s.rows[i]
			return &row, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (s *ConsultationStore) List(_ context.Context, limit int) ([]models.ConsultationRequest, error) {
	s.mu.RLock()
	out := make([]models.ConsultationRequest, len(s.rows))
	copy(out, s.rows)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
