package imageclass

import (
	"math"

	"github.com/pkg/errors"
)

// EvalMetrics aggregates the quality metrics over one evaluation set.
type EvalMetrics struct {
	// LogLoss is the mean negative log-probability assigned to the true
	// label, over all evaluated images. Lower is better, 0 is a perfect
	// score.
	LogLoss float64

	// PerClassLogLoss holds the mean log-loss restricted to the images of
	// each class, indexed by the class key (see Vocabulary). Classes with
	// no image in the evaluation set report 0.
	PerClassLogLoss []float64

	// Accuracy is the fraction of images whose top-scoring label matches
	// the true label.
	Accuracy float64
}

// logLossEpsilon clamps predicted probabilities away from 0 before taking
// the log, so a confidently wrong model yields a large but finite loss.
const logLossEpsilon = 1e-15

// Evaluate scores every record of the evaluation set with the model and
// returns the individual predictions along with the aggregated metrics.
//
// Every record must carry a label known to the model's vocabulary: an unseen
// label is reported as an error before any image is scored.
func Evaluate(model *Model, records []ImageData) ([]*ImagePrediction, *EvalMetrics, error) {
	vocab := model.Vocabulary()
	keys := make([]int32, len(records))
	for ii, record := range records {
		key, err := vocab.Encode(record.Label)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "record #%d (%s)", ii, record.ImagePath)
		}
		keys[ii] = key
	}

	predictor := model.NewPredictor()
	predictions := make([]*ImagePrediction, len(records))
	scores := make([][]float32, len(records))
	var numCorrect int
	for ii, record := range records {
		prediction, err := predictor.Predict(record)
		if err != nil {
			return nil, nil, err
		}
		predictions[ii] = prediction
		scores[ii] = prediction.Scores
		if prediction.PredictedLabel == record.Label {
			numCorrect++
		}
	}

	metrics := &EvalMetrics{}
	metrics.LogLoss, metrics.PerClassLogLoss = logLossFromScores(scores, keys, vocab.Size())
	if len(records) > 0 {
		metrics.Accuracy = float64(numCorrect) / float64(len(records))
	}
	return predictions, metrics, nil
}

// logLossFromScores computes the mean log-loss and its per-class breakdown
// from the predicted probabilities (one row per example) and the true class
// keys. Rows and keys must have the same length.
func logLossFromScores(scores [][]float32, keys []int32, numClasses int) (mean float64, perClass []float64) {
	perClass = make([]float64, numClasses)
	perClassCount := make([]int, numClasses)
	for ii, row := range scores {
		key := keys[ii]
		p := math.Max(float64(row[key]), logLossEpsilon)
		loss := -math.Log(p)
		mean += loss
		perClass[key] += loss
		perClassCount[key]++
	}
	if len(scores) > 0 {
		mean /= float64(len(scores))
	}
	for key := range perClass {
		if perClassCount[key] > 0 {
			perClass[key] /= float64(perClassCount[key])
		}
	}
	return
}
