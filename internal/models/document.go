package models

import "time"

// FileRecord describes one ingested source document.
type FileRecord struct {
	FileName    string    `gorm:"column:file_name;type:text;primaryKey" json:"file_name"`
	FileHash    string    `gorm:"column:file_hash;type:text" json:"file_hash"`
	ChunksCount int       `gorm:"column:chunks_count;type:integer" json:"chunks_count"`
	UploadedAt  time.Time `gorm:"column:uploaded_at;type:timestamptz;index" json:"uploaded_at"`
	// Degraded marks files embedded, at least in part, with fallback vectors.
	Degraded    bool      `gorm:"column:degraded;not null;default:false" json:"degraded"`
}

func (FileRecord) TableName() string { return "file_records" }

// ChunkInput is one chunk handed to a ChunkStore during ingestion.
type ChunkInput struct {
	Text      string
	Embedding []float32
	// Fallback is set when Embedding came from the hash embedder.
	Fallback  bool
}

// AnyFallback reports whether any chunk carries a fallback embedding.
func AnyFallback(chunks []ChunkInput) bool {
	for _, c := range chunks {
		if c.Fallback {
			return true
		}
	}
	return false
}

// StoredChunk is a chunk as returned by a full corpus scan.
type StoredChunk struct {
	Text      string    `json:"text"`
	Index     int       `json:"index"`
	FileName  string    `json:"file_name"`
	FileHash  string    `json:"file_hash"`
	Embedding []float32 `json:"-"`
}
