package embedding

import "context"

// Provider is an external embedding backend.
type Provider interface {
	EmbedContent(ctx context.Context, text string) ([]float32, error)
	Dim() int
	Close() error
}

// Embedding is a vector plus whether it came from the hash fallback.
type Embedding struct {
	Values   []float32
	Fallback bool
}
