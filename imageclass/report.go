package imageclass

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrintPredictions writes one line per prediction to w, naming the image by
// its base file name and reporting the top-scoring label with its
// probability.
func PrintPredictions(w io.Writer, predictions []*ImagePrediction) {
	for _, prediction := range predictions {
		label, score := prediction.Best()
		fmt.Fprintf(w, "Image: %s predicted as: %s with score: %f\n",
			filepath.Base(prediction.ImagePath), label, score)
	}
}

// PrintMetrics writes a short summary of the evaluation metrics to w. The
// labels slice gives the class names in key order, as returned by
// Vocabulary.Labels.
func PrintMetrics(w io.Writer, metrics *EvalMetrics, labels []string, numImages int) {
	fmt.Fprintf(w, "Evaluated %s images\n", humanize.Comma(int64(numImages)))
	fmt.Fprintf(w, "Accuracy is: %.3f\n", metrics.Accuracy)
	fmt.Fprintf(w, "LogLoss is: %.7g\n", metrics.LogLoss)
	parts := make([]string, len(labels))
	for key, label := range labels {
		parts[key] = fmt.Sprintf("%s=%.7g", label, metrics.PerClassLogLoss[key])
	}
	fmt.Fprintf(w, "PerClassLogLoss is: %s\n", strings.Join(parts, ", "))
}
