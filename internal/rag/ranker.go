package rag

import (
	"math"
	"sort"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
)

type Result struct {
	Text     string  `json:"text"`
	FileName string  `json:"file_name"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
}

// CosineSimilarity is 0 when either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / math.Sqrt(na*nb)
	switch {
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// Rank scores every chunk of corpus against query and returns the best k,
// highest first. Equal scores keep corpus order. A non-empty fileName limits
// the corpus to that file.
func Rank(query []float32, corpus []models.StoredChunk, k int, fileName string) []Result {
	if k <= 0 || len(corpus) == 0 {
		return nil
	}

	scored := make([]Result, 0, len(corpus))
	for _, c := range corpus {
		if fileName != "" && c.FileName != fileName {
			continue
		}
		scored = append(scored, Result{
			Text:     c.Text,
			FileName: c.FileName,
			Index:    c.Index,
			Score:    CosineSimilarity(query, c.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
