package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.ChunkStore = (*ChunkStore)(nil)

type ChunkStore struct {
	db  *sql.DB
	dim int
	now func() time.Time
}

func NewChunkStore(db *sql.DB, dim int) *ChunkStore {
	return &ChunkStore{db: db, dim: dim, now: time.Now}
}

func (s *ChunkStore) UpsertFile(ctx context.Context, fileName, fileHash string, chunks []models.ChunkInput) (*models.FileRecord, error) {
	if err := repositories.CheckDimensions(s.dim, chunks); err != nil {
		return nil, err
	}

	encoded := make([]string, len(chunks))
	for i, c := range chunks {
		b, err := json.Marshal(c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("encoding embedding %d: %w", i, err)
		}
		encoded[i] = string(b)
	}

	rec := &models.FileRecord{
		FileName:    fileName,
		FileHash:    fileHash,
		ChunksCount: len(chunks),
		UploadedAt:  s.now().UTC(),
		Degraded:    models.AnyFallback(chunks),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE file_name = ?", fileName); err != nil {
		return nil, fmt.Errorf("deleting old chunks: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO file_records (file_name, file_hash, chunks_count, uploaded_at, degraded)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			file_hash = excluded.file_hash,
			chunks_count = excluded.chunks_count,
			uploaded_at = excluded.uploaded_at,
			degraded = excluded.degraded
	`, rec.FileName, rec.FileHash, rec.ChunksCount, toUnix(rec.UploadedAt), rec.Degraded)
	if err != nil {
		return nil, fmt.Errorf("upserting file record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (file_name, chunk_index, file_hash, text, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, fileName, i, fileHash, c.Text, encoded[i]); err != nil {
			return nil, fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ChunkStore) DeleteFile(ctx context.Context, fileName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE file_name = ?", fileName); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM file_records WHERE file_name = ?", fileName); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ChunkStore) GetFile(ctx context.Context, fileName string) (*models.FileRecord, error) {
	var (
		rec models.FileRecord
		ts  int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT file_name, file_hash, chunks_count, uploaded_at, degraded FROM file_records WHERE file_name = ?",
		fileName,
	).Scan(&rec.FileName, &rec.FileHash, &rec.ChunksCount, &ts, &rec.Degraded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.UploadedAt = fromUnix(ts)
	return &rec, nil
}

func (s *ChunkStore) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, file_hash, chunks_count, uploaded_at, degraded
		FROM file_records
		ORDER BY uploaded_at DESC, file_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		var (
			rec models.FileRecord
			ts  int64
		)
		if err := rows.Scan(&rec.FileName, &rec.FileHash, &rec.ChunksCount, &ts, &rec.Degraded); err != nil {
			return nil, err
		}
		rec.UploadedAt = fromUnix(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ChunkStore) ScanAll(ctx context.Context) ([]models.StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, chunk_index, file_hash, text, embedding
		FROM document_chunks
		ORDER BY file_name ASC, chunk_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StoredChunk
	for rows.Next() {
		var (
			c   models.StoredChunk
			raw string
		)
		if err := rows.Scan(&c.FileName, &c.Index, &c.FileHash, &c.Text, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &c.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s#%d: %w", c.FileName, c.Index, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
