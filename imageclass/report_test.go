package imageclass

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintPredictions(t *testing.T) {
	predictions := []*ImagePrediction{
		{
			ImageData:      ImageData{ImagePath: filepath.Join("assets", "images", "toaster3.jpg")},
			Scores:         []float32{0.05, 0.95},
			PredictedLabel: "toaster",
		},
		{
			ImageData:      ImageData{ImagePath: filepath.Join("assets", "images", "broccoli4.jpg")},
			Scores:         []float32{0.8, 0.2},
			PredictedLabel: "broccoli",
		},
	}
	var buf bytes.Buffer
	PrintPredictions(&buf, predictions)
	assert.Equal(t,
		"Image: toaster3.jpg predicted as: toaster with score: 0.950000\n"+
			"Image: broccoli4.jpg predicted as: broccoli with score: 0.800000\n",
		buf.String())
}

func TestPrintMetrics(t *testing.T) {
	metrics := &EvalMetrics{
		LogLoss:         0.0625,
		PerClassLogLoss: []float64{0.05, 0.075},
		Accuracy:        1,
	}
	var buf bytes.Buffer
	PrintMetrics(&buf, metrics, []string{"broccoli", "toaster"}, 1234)
	assert.Equal(t,
		"Evaluated 1,234 images\n"+
			"Accuracy is: 1.000\n"+
			"LogLoss is: 0.0625\n"+
			"PerClassLogLoss is: broccoli=0.05, toaster=0.075\n",
		buf.String())
}
