package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	defaultConsultationPage = 50
	maxConsultationPage     = 200
)

type ConsultationInput struct {
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Country   string   `json:"country"`
	Positions []string `json:"positions"`
	Message   string   `json:"message"`
}

type ConsultationService interface {
	Create(ctx context.Context, in ConsultationInput) (*models.ConsultationRequest, error)
	Get(ctx context.Context, id string) (*models.ConsultationRequest, error)
	List(ctx context.Context, limit int) ([]models.ConsultationRequest, error)
}

type consultationService struct {
	store repositories.ConsultationStore
	now   func() time.Time
}

func NewConsultationService(store repositories.ConsultationStore) ConsultationService {
	return &consultationService{store: store, now: time.Now}
}

func (s *consultationService) Create(ctx context.Context, in ConsultationInput) (*models.ConsultationRequest, error) {
	const op = "ConsultationService.Create"

	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "full_name is required", nil)
	}
	email := strings.TrimSpace(in.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, utils.E(utils.CodeInvalidArgument, op, "a valid email is required", err)
	}
	positions := normalizePositions(in.Positions)
	if len(positions) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one position is required", nil)
	}

	req := &models.ConsultationRequest{
		ID:        uuid.NewString(),
		FullName:  name,
		Email:     strings.ToLower(email),
		Phone:     strings.TrimSpace(in.Phone),
		Country:   strings.TrimSpace(in.Country),
		Positions: pq.StringArray(positions),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, req); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save consultation request", err)
	}
	return req, nil
}

func (s *consultationService) Get(ctx context.Context, id string) (*models.ConsultationRequest, error) {
	const op = "ConsultationService.Get"

	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid id", err)
	}
	out, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "consultation request not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get consultation request", err)
	}
	return out, nil
}

func (s *consultationService) List(ctx context.Context, limit int) ([]models.ConsultationRequest, error) {
	const op = "ConsultationService.List"

	if limit <= 0 {
		limit = defaultConsultationPage
	}
	if limit > maxConsultationPage {
		limit = maxConsultationPage
	}
	out, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list consultation requests", err)
	}
	return out, nil
}

// normalizePositions trims, drops blanks and removes case-insensitive duplicates, keeping first spelling.
func normalizePositions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
