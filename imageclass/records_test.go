package imageclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgMax(t *testing.T) {
	assert.Equal(t, 0, argMax([]float32{1}))
	assert.Equal(t, 2, argMax([]float32{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, argMax([]float32{0.5, 0.5})) // Ties resolve to the lowest index.
	assert.Equal(t, 1, argMax([]float32{-3, -1, -2}))
}

func TestImagePredictionBest(t *testing.T) {
	p := &ImagePrediction{
		ImageData:      ImageData{ImagePath: "toaster3.jpg", Label: "toaster"},
		Scores:         []float32{0.05, 0.9, 0.05},
		PredictedLabel: "toaster",
	}
	label, score := p.Best()
	assert.Equal(t, "toaster", label)
	assert.Equal(t, float32(0.9), score)
}
