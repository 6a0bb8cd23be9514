package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func corpus() []models.StoredChunk {
	return []models.StoredChunk{
		{Text: "a", FileName: "one.txt", Index: 0, Embedding: []float32{1, 0}},
		{Text: "b", FileName: "one.txt", Index: 1, Embedding: []float32{0, 1}},
		{Text: "c", FileName: "two.txt", Index: 0, Embedding: []float32{1, 1}},
		{Text: "d", FileName: "two.txt", Index: 1, Embedding: []float32{1, 0}},
	}
}

func TestRank_OrdersByScore(t *testing.T) {
	got := Rank([]float32{1, 0}, corpus(), 10, "")

	require.Len(t, got, 4)
	assert.Equal(t, []string{"a", "d", "c", "b"}, texts(got))
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRank_TopKBound(t *testing.T) {
	assert.Len(t, Rank([]float32{1, 0}, corpus(), 2, ""), 2)
	assert.Nil(t, Rank([]float32{1, 0}, corpus(), 0, ""))
	assert.Nil(t, Rank([]float32{1, 0}, nil, 3, ""))
}

func TestRank_TiesKeepCorpusOrder(t *testing.T) {
	got := Rank([]float32{1, 0}, corpus(), 2, "")

	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "d", got[1].Text)
	assert.Equal(t, got[0].Score, got[1].Score)
}

func TestRank_FileFilter(t *testing.T) {
	got := Rank([]float32{0, 1}, corpus(), 5, "two.txt")

	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "two.txt", r.FileName)
	}
	assert.Empty(t, Rank([]float32{0, 1}, corpus(), 5, "missing.txt"))
}

func texts(rs []Result) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Text)
	}
	return out
}
