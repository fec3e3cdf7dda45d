package imageclass

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	timage "github.com/gomlx/gomlx/types/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Predictor applies a trained Model to one image at a time, without ever
// re-fitting it. It is a lightweight view over the shared read-only Model:
// the Predictor owns the compiled executor, which is not safe for concurrent
// use -- create one Predictor per goroutine, or serialize the calls.
type Predictor struct {
	model *Model

	// exec runs the model graph with the trained context.
	exec *context.Exec
}

// NewPredictor creates a new prediction view over the model. The model
// itself is shared and remains read-only.
func (m *Model) NewPredictor() *Predictor {
	modelFn := m.modelFn()
	exec := context.NewExec(m.backend, m.ctx.Reuse(),
		func(ctx *context.Context, image *graph.Node) *graph.Node {
			image = graph.InsertAxes(image, 0) // Batch dimension of size 1.
			logits := modelFn(ctx, nil, []*graph.Node{image})[0]
			probabilities := graph.Softmax(logits)
			return graph.ConvertDType(probabilities, dtypes.Float32)
		})
	return &Predictor{model: m, exec: exec}
}

// Predict loads the image referenced by example, applies the model and
// returns the output record, with one probability per known class and the
// top-scoring label decoded back to its string form. The example's label is
// not consulted and may be empty.
func (p *Predictor) Predict(example ImageData) (*ImagePrediction, error) {
	img, err := LoadImage(example.ImagePath)
	if err != nil {
		return nil, err
	}
	size := p.model.config.ImageSize
	img = ResizeWithPadding(img, size, size)
	input := timage.ToTensor(p.model.config.DType).Single(img)

	var outputs []*tensors.Tensor
	err = exceptions.TryCatch[error](func() { outputs = p.exec.Call(input) })
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to score image %q", example.ImagePath)
	}
	scores := outputs[0].Value().([][]float32)[0] // First element of the batch of 1.
	return &ImagePrediction{
		ImageData:      example,
		Scores:         scores,
		PredictedLabel: p.model.vocab.Decode(int32(argMax(scores))),
	}, nil
}
