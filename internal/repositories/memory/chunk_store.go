// Package memory keeps everything in process memory. Contents are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var _ repositories.ChunkStore = (*ChunkStore)(nil)

type fileEntry struct {
	record models.FileRecord
	chunks []models.StoredChunk
}

type ChunkStore struct {
	mu    sync.RWMutex
	dim   int
	files map[string]*fileEntry
	now   func() time.Time
}

func NewChunkStore(dim int) *ChunkStore {
	return &ChunkStore{
		dim:   dim,
		files: make(map[string]*fileEntry),
		now:   time.Now,
	}
}

func (s *ChunkStore) UpsertFile(_ context.Context, fileName, fileHash string, chunks []models.ChunkInput) (*models.FileRecord, error) {
	if err := repositories.CheckDimensions(s.dim, chunks); err != nil {
		return nil, err
	}

	// build the replacement first, swap under the lock
	entry := &fileEntry{
		record: models.FileRecord{
			FileName:    fileName,
			FileHash:    fileHash,
			ChunksCount: len(chunks),
			UploadedAt:  s.now().UTC(),
			Degraded:    models.AnyFallback(chunks),
		},
		chunks: make([]models.StoredChunk, len(chunks)),
	}
	for i, c := range chunks {
		emb := make([]float32, len(c.Embedding))
		copy(emb, c.Embedding)
		entry.chunks[i] = models.StoredChunk{
			Text:      c.Text,
			Index:     i,
			FileName:  fileName,
			FileHash:  fileHash,
			Embedding: emb,
		}
	}

	s.mu.Lock()
	s.files[fileName] = entry
	s.mu.Unlock()

	rec := entry.record
	return &rec, nil
}

func (s *ChunkStore) DeleteFile(_ context.Context, fileName string) error {
	s.mu.Lock()
	delete(s.files, fileName)
	s.mu.Unlock()
	return nil
}

func (s *ChunkStore) GetFile(_ context.Context, fileName string) (*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[fileName]
	if !ok {
		return nil, utils.ErrNotFound
	}
	rec := e.record
	return &rec, nil
}

func (s *ChunkStore) ListFiles(_ context.Context) ([]models.FileRecord, error) {
	s.mu.RLock()
	out := make([]models.FileRecord, 0, len(s.files))
	for _, e := range s.files {
		out = append(out, e.record)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].FileName < out[j].FileName
	})
	return out, nil
}

func (s *ChunkStore) ScanAll(_ context.Context) ([]models.StoredChunk, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.files))
	total := 0
	for name, e := range s.files {
		names = append(names, name)
		total += len(e.chunks)
	}
	sort.Strings(names)

	out := make([]models.StoredChunk, 0, total)
	for _, name := range names {
		// entries are replaced, never mutated, so sharing the slices is safe
		out = append(out, s.files[name].chunks...)
	}
	s.mu.RUnlock()
	return out, nil
}
