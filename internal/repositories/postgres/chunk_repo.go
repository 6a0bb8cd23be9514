package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

type chunkRow struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey"`
	FileName   string          `gorm:"column:file_name;type:text;not null;uniqueIndex:uniq_file_chunk,priority:1"`
	ChunkIndex int             `gorm:"column:chunk_index;type:integer;not null;uniqueIndex:uniq_file_chunk,priority:2"`
	FileHash   string          `gorm:"column:file_hash;type:text"`
	Text       string          `gorm:"column:text;type:text"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt  time.Time       `gorm:"column:created_at;type:timestamptz"`
}

func (chunkRow) TableName() string { return "document_chunks" }

type chunkRepo struct {
	db  *gorm.DB
	dim int
}

func NewChunkRepo(db *gorm.DB, dim int) repositories.ChunkStore {
	return &chunkRepo{db: db, dim: dim}
}

func (r *chunkRepo) UpsertFile(ctx context.Context, fileName, fileHash string, chunks []models.ChunkInput) (*models.FileRecord, error) {
	if err := repositories.CheckDimensions(r.dim, chunks); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &models.FileRecord{
		FileName:    fileName,
		FileHash:    fileHash,
		ChunksCount: len(chunks),
		UploadedAt:  now,
		Degraded:    models.AnyFallback(chunks),
	}
	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkRow{
			ID:         uuid.NewString(),
			FileName:   fileName,
			ChunkIndex: i,
			FileHash:   fileHash,
			Text:       c.Text,
			Embedding:  pgvector.NewVector(c.Embedding),
			CreatedAt:  now,
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_name = ?", fileName).Delete(&chunkRow{}).Error; err != nil {
			return err
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"file_hash", "chunks_count", "uploaded_at", "degraded"}),
		}).Create(rec).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 100).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *chunkRepo) DeleteFile(ctx context.Context, fileName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_name = ?", fileName).Delete(&chunkRow{}).Error; err != nil {
			return err
		}
		return tx.Where("file_name = ?", fileName).Delete(&models.FileRecord{}).Error
	})
}

func (r *chunkRepo) GetFile(ctx context.Context, fileName string) (*models.FileRecord, error) {
	var row models.FileRecord
	err := r.db.WithContext(ctx).Where("file_name = ?", fileName).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *chunkRepo) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	var rows []models.FileRecord
	err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Order("file_name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *chunkRepo) ScanAll(ctx context.Context) ([]models.StoredChunk, error) {
	var rows []chunkRow
	err := r.db.WithContext(ctx).
		Order("file_name ASC").
		Order("chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]models.StoredChunk, len(rows))
	for i, row := range rows {
		out[i] = models.StoredChunk{
			Text:      row.Text,
			Index:     row.ChunkIndex,
			FileName:  row.FileName,
			FileHash:  row.FileHash,
			Embedding: row.Embedding.Slice(),
		}
	}
	return out, nil
}
