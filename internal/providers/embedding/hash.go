package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// HashEmbedder derives a unit vector from SHA-256 of the text. It carries no
// semantic signal; it only keeps ingestion idempotent when no provider answers.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dim() int     { return h.dim }
func (h *HashEmbedder) Close() error { return nil }

func (h *HashEmbedder) EmbedContent(_ context.Context, text string) ([]float32, error) {
	return h.Vector(text), nil
}

// Vector is deterministic: equal text gives a bit-identical result.
func (h *HashEmbedder) Vector(text string) []float32 {
	vec := make([]float32, h.dim)
	buf := make([]byte, len(text)+4)
	copy(buf, text)

	var block uint32
	for i := 0; i < h.dim; block++ {
		binary.BigEndian.PutUint32(buf[len(text):], block)
		sum := sha256.Sum256(buf)
		for off := 0; off+4 <= len(sum) && i < h.dim; off += 4 {
			u := binary.BigEndian.Uint32(sum[off : off+4])
			vec[i] = float32(float64(u)/float64(1<<31) - 1.0)
			i++
		}
	}
	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
