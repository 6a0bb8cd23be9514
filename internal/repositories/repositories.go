// Package repositories declares the storage contracts; the memory, sqlite,
// postgres and mongo sub-packages implement them.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ChunkStore persists document chunks with their embeddings.
type ChunkStore interface {
	// UpsertFile replaces every chunk of fileName in one step: readers see the
	// old set or the new set, never a mix.
	UpsertFile(ctx context.Context, fileName, fileHash string, chunks []models.ChunkInput) (*models.FileRecord, error)
	// DeleteFile is a no-op when fileName is unknown.
	DeleteFile(ctx context.Context, fileName string) error
	GetFile(ctx context.Context, fileName string) (*models.FileRecord, error)
	// ListFiles is ordered newest first.
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	// ScanAll materialises the corpus ordered by file name then chunk index.
	ScanAll(ctx context.Context) ([]models.StoredChunk, error)
}

// HistoryStore keeps chat sessions and their messages.
type HistoryStore interface {
	// TouchSession creates the session when missing and records activity.
	TouchSession(ctx context.Context, sessionID string, at, expiresAt time.Time) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns the newest limit messages in chronological order.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// PurgeExpired drops sessions idle since before cutoff, with their messages.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type ConsultationStore interface {
	Insert(ctx context.Context, r *models.ConsultationRequest) error
	GetByID(ctx context.Context, id string) (*models.ConsultationRequest, error)
	// List is ordered newest first.
	List(ctx context.Context, limit int) ([]models.ConsultationRequest, error)
}

// CheckDimensions verifies every chunk embedding has dim entries (dim <= 0 skips the check).
func CheckDimensions(dim int, chunks []models.ChunkInput) error {
	if dim <= 0 {
		return nil
	}
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}
