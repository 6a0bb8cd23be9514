package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID           string    `gorm:"column:id;type:text;primaryKey" bson:"_id" json:"id"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz" bson:"created_at" json:"created_at"`
	LastActivity time.Time `gorm:"column:last_activity;type:timestamptz;index" bson:"last_activity" json:"last_activity"`
	ExpiresAt    time.Time `gorm:"column:expires_at;type:timestamptz" bson:"expires_at" json:"expires_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message is append-only; it is never updated after insert.
type Message struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey" bson:"_id" json:"id"`
	SessionID string         `gorm:"column:session_id;type:text;index:idx_messages_session_ts,priority:1" bson:"session_id" json:"session_id"`
	Role      string         `gorm:"column:role;type:text" bson:"role" json:"role"`
	Content   string         `gorm:"column:content;type:text" bson:"content" json:"content"`
	Timestamp time.Time      `gorm:"column:timestamp;type:timestamptz;index:idx_messages_session_ts,priority:2" bson:"timestamp" json:"timestamp"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" bson:"metadata,omitempty" json:"metadata,omitempty"`
}

func (Message) TableName() string { return "chat_messages" }
