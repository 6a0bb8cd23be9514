// Package postgres implements the repositories with gorm on PostgreSQL; chunk
// embeddings live in a pgvector column.
package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
)

// Migrate enables pgvector and creates or updates every table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.FileRecord{},
		&chunkRow{},
		&models.Session{},
		&models.Message{},
		&models.ConsultationRequest{},
	)
}
