package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"Identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"Orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"ScaleInvariant", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"Angled", []float32{1, 0, 0}, []float32{0.8, 0.6, 0}, 0.8},
		{"DimensionMismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"ZeroVector", []float32{0, 0}, []float32{1, 0}, 0.0},
		{"Empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}
