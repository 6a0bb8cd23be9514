package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/extract"
	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/rag"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/storage"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	IngestStatusIngested = "ingested"
	IngestStatusSkipped  = "skipped"
	IngestStatusQueued   = "queued"
)

type IngestResult struct {
	FileName   string `json:"file_name"`
	FileHash   string `json:"file_hash,omitempty"`
	Chunks     int    `json:"chunks"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	ArchiveURI string `json:"archive_uri,omitempty"`
	JobID      string `json:"job_id,omitempty"`
}

// IngestJob is the unit of deferred ingestion.
type IngestJob struct {
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

type IngestQueue interface {
	Enqueue(ctx context.Context, job IngestJob) (id string, err error)
}

type IngestService interface {
	IngestText(ctx context.Context, fileName, text string) (*IngestResult, error)
	// IngestDocument extracts text from raw bytes, archives the original when
	// an archiver is configured and ingests the text.
	IngestDocument(ctx context.Context, fileName string, data []byte) (*IngestResult, error)
	// EnqueueDocument extracts text now and leaves chunking and embedding to a worker.
	EnqueueDocument(ctx context.Context, fileName string, data []byte) (*IngestResult, error)
	EnqueueText(ctx context.Context, fileName, text string) (*IngestResult, error)
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
	DeleteFile(ctx context.Context, fileName string) error
}

type IngestOptions struct {
	MaxBytes int64
	Archiver storage.Archiver
	Queue    IngestQueue
}

type ingestService struct {
	store    repositories.ChunkStore
	chunker  *rag.Chunker
	embedder *embedding.Embedder
	opts     IngestOptions
	log      *logrus.Logger
}

func NewIngestService(store repositories.ChunkStore, chunker *rag.Chunker, embedder *embedding.Embedder, opts IngestOptions, log *logrus.Logger) IngestService {
	if log == nil {
		log = logrus.New()
	}
	return &ingestService{store: store, chunker: chunker, embedder: embedder, opts: opts, log: log}
}

func (s *ingestService) IngestText(ctx context.Context, fileName, text string) (*IngestResult, error) {
	const op = "IngestService.IngestText"

	name := utils.CleanFileName(fileName)
	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file_name is required", nil)
	}

	text = strings.TrimSpace(utils.SanitizeText(text))
	if text == "" {
		return &IngestResult{FileName: name, Status: IngestStatusSkipped, Reason: "nothing to ingest"}, nil
	}
	hash := utils.SHA256Hex([]byte(text))

	// fallback vectors are replaced once a real provider answers again
	prev, err := s.store.GetFile(ctx, name)
	switch {
	case err == nil && prev.FileHash == hash && (!prev.Degraded || s.embedder.Degraded()):
		return &IngestResult{
			FileName: name, FileHash: hash, Chunks: prev.ChunksCount,
			Status: IngestStatusSkipped, Reason: "unchanged",
		}, nil
	case err != nil && !errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeInternal, op, "failed to read file record", err)
	}

	pieces := s.chunker.Chunk(text)
	embs, err := s.embedder.EmbedMany(ctx, pieces)
	if err != nil {
		return nil, utils.E(utils.CodeTimeout, op, "embedding was interrupted", err)
	}

	chunks := make([]models.ChunkInput, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.ChunkInput{Text: p, Embedding: embs[i].Values, Fallback: embs[i].Fallback}
	}
	degraded := models.AnyFallback(chunks)

	rec, err := s.store.UpsertFile(ctx, name, hash, chunks)
	if err != nil {
		if errors.Is(err, repositories.ErrDimensionMismatch) {
			return nil, utils.E(utils.CodeInternal, op, "embedding dimension does not match the store", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to store chunks", err)
	}

	s.log.WithFields(logrus.Fields{
		"file_name": name,
		"chunks":    rec.ChunksCount,
		"degraded":  degraded,
	}).Info("document ingested")

	return &IngestResult{
		FileName: name, FileHash: hash, Chunks: rec.ChunksCount,
		Status: IngestStatusIngested, Degraded: degraded,
	}, nil
}

func (s *ingestService) extract(op, fileName string, data []byte) (string, string, error) {
	name := utils.CleanFileName(fileName)
	if name == "" {
		return "", "", utils.E(utils.CodeInvalidArgument, op, "file_name is required", nil)
	}
	if s.opts.MaxBytes > 0 && int64(len(data)) > s.opts.MaxBytes {
		return "", "", utils.E(utils.CodeTooLarge, op, "file is too large", nil)
	}
	text, err := extract.Text(name, data)
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		return "", "", utils.E(utils.CodeInvalidArgument, op, "unsupported file type, use one of "+strings.Join(extract.Supported, ", "), err)
	case err != nil:
		return "", "", utils.E(utils.CodeInvalidArgument, op, "could not read the document", err)
	}
	return name, text, nil
}

func (s *ingestService) IngestDocument(ctx context.Context, fileName string, data []byte) (*IngestResult, error) {
	const op = "IngestService.IngestDocument"

	name, text, err := s.extract(op, fileName, data)
	if err != nil {
		return nil, err
	}

	var uri string
	if s.opts.Archiver != nil {
		uri, err = s.opts.Archiver.Put(ctx, storage.DocumentObject(name), contentTypeOf(name), bytes.NewReader(data))
		if err != nil {
			s.log.WithError(err).WithField("file_name", name).Warn("archiving original document failed")
		}
	}

	res, err := s.IngestText(ctx, name, text)
	if err != nil {
		return nil, err
	}
	res.ArchiveURI = uri
	return res, nil
}

func (s *ingestService) EnqueueDocument(ctx context.Context, fileName string, data []byte) (*IngestResult, error) {
	const op = "IngestService.EnqueueDocument"

	if s.opts.Queue == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "background ingestion is not configured", nil)
	}
	name, text, err := s.extract(op, fileName, data)
	if err != nil {
		return nil, err
	}
	return s.EnqueueText(ctx, name, text)
}

func (s *ingestService) EnqueueText(ctx context.Context, fileName, text string) (*IngestResult, error) {
	const op = "IngestService.EnqueueText"

	if s.opts.Queue == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "background ingestion is not configured", nil)
	}
	name := utils.CleanFileName(fileName)
	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "file_name is required", nil)
	}
	text = strings.TrimSpace(utils.SanitizeText(text))
	if text == "" {
		return &IngestResult{FileName: name, Status: IngestStatusSkipped, Reason: "nothing to ingest"}, nil
	}

	id, err := s.opts.Queue.Enqueue(ctx, IngestJob{FileName: name, Text: text})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to queue document", err)
	}
	return &IngestResult{FileName: name, Status: IngestStatusQueued, JobID: id}, nil
}

func (s *ingestService) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	const op = "IngestService.ListFiles"

	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list files", err)
	}
	return files, nil
}

func (s *ingestService) DeleteFile(ctx context.Context, fileName string) error {
	const op = "IngestService.DeleteFile"

	name := utils.CleanFileName(fileName)
	if name == "" {
		return utils.E(utils.CodeInvalidArgument, op, "file_name is required", nil)
	}
	if err := s.store.DeleteFile(ctx, name); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete file", err)
	}
	if s.opts.Archiver != nil {
		if err := s.opts.Archiver.Remove(ctx, storage.DocumentObject(name)); err != nil {
			s.log.WithError(err).WithField("file_name", name).Warn("removing archived document failed")
		}
	}
	return nil
}

func contentTypeOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
