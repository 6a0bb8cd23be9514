package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.ConsultationStore = (*ConsultationStore)(nil)

type ConsultationStore struct {
	db *sql.DB
}

func NewConsultationStore(db *sql.DB) *ConsultationStore {
	return &ConsultationStore{db: db}
}

const consultationColumns = "id, full_name, email, phone, country, positions, message, created_at"

func (s *ConsultationStore) Insert(ctx context.Context, r *models.ConsultationRequest) error {
	positions, err := json.Marshal([]string(r.Positions))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO consultation_requests ("+consultationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.FullName, r.Email, r.Phone, r.Country, string(positions), r.Message, toUnix(r.CreatedAt),
	)
	return err
}

func (s *ConsultationStore) GetByID(ctx context.Context, id string) (*models.ConsultationRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+consultationColumns+" FROM consultation_requests WHERE id = ?", id)
	r, err := scanConsultation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	return r, err
}

func (s *ConsultationStore) List(ctx context.Context, limit int) ([]models.ConsultationRequest, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+consultationColumns+" FROM consultation_requests ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConsultationRequest
	for rows.Next() {
		r, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConsultation(sc scanner) (*models.ConsultationRequest, error) {
	var (
		r                       models.ConsultationRequest
		phone, country, message sql.NullString
		positions               string
		created                 int64
	)
	if err := sc.Scan(&r.ID, &r.FullName, &r.Email, &phone, &country, &positions, &message, &created); err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(positions), &list); err != nil {
		return nil, err
	}
	r.Positions = list
	r.Phone = phone.String
	r.Country = country.String
	r.Message = message.String
	r.CreatedAt = fromUnix(created)
	return &r, nil
}
