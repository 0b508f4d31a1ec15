package embedgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{"simple vector", []float32{3, 4}, []float32{0.6, 0.8}},
		{"already normalized", []float32{1, 0}, []float32{1, 0}},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty vector", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func TestNormalizeVector_UnitLength(t *testing.T) {
	got := NormalizeVector([]float32{1.5, -2.3, 0.7, 4.1})

	var magnitude float64
	for _, v := range got {
		magnitude += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	input := []float32{3, 4}
	NormalizeVector(input)
	assert.Equal(t, []float32{3, 4}, input)
}
