// Package imageclass implements transfer-learning image classification:
// a frozen, pre-trained InceptionV3 network provides image embeddings, and a
// small feed-forward softmax head trained on top of those embeddings
// classifies images from a user-provided labeled set.
//
// The workflow is sequential: ReadTaggedImages loads a labeled set from a
// tab-separated tags file, Train fits a Model (the immutable trained
// artifact), and then Model.NewPredictor serves one-off predictions while
// Evaluate computes log-loss metrics over a held-out set.
package imageclass

// ImageData is one labeled image on disk: the full path to the image file
// and its class label.
type ImageData struct {
	ImagePath string
	Label     string
}

// ImagePrediction is the result of applying a trained Model to one ImageData.
// It is never mutated after creation.
type ImagePrediction struct {
	ImageData

	// Scores holds one probability per known class, ordered like
	// Vocabulary.Labels. They add up to ~1.
	Scores []float32

	// PredictedLabel is the class with the highest score, decoded back to
	// its original string form.
	PredictedLabel string
}

// Best returns the predicted label and its score.
func (p *ImagePrediction) Best() (label string, score float32) {
	return p.PredictedLabel, p.Scores[argMax(p.Scores)]
}

// argMax returns the index of the largest element. Ties resolve to the
// lowest index.
func argMax(values []float32) int {
	best := 0
	for ii, value := range values {
		if value > values[best] {
			best = ii
		}
	}
	return best
}
