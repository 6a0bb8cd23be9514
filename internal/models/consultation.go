package models

import (
	"time"

	"github.com/lib/pq"
)

// ConsultationRequest is the record produced by the consultation intake form.
type ConsultationRequest struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FullName  string         `gorm:"column:full_name;type:text" json:"full_name"`
	Email     string         `gorm:"column:email;type:text;index" json:"email"`
	Phone     string         `gorm:"column:phone;type:text" json:"phone,omitempty"`
	Country   string         `gorm:"column:country;type:text" json:"country,omitempty"`
	Positions pq.StringArray `gorm:"column:positions;type:text[]" json:"positions"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ConsultationRequest) TableName() string { return "consultation_requests" }
