package imageclass

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/models/inceptionv3"
	timage "github.com/gomlx/gomlx/types/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
)

// ParamLabels is the context parameter under which the vocabulary labels are
// stored (comma-separated, in encoding order), so a Model restored from a
// checkpoint can decode predictions without the original tags file.
const ParamLabels = "labels"

// Config holds the fixed data-handling settings: where weights are cached,
// the input image geometry and the pixel representation. Hyperparameters that
// affect training (steps, learning rate, optimizer, classifier head shape)
// live in the context instead -- see CreateDefaultContext.
type Config struct {
	// DataDir is where the InceptionV3 pre-trained weights are downloaded
	// and unpacked.
	DataDir string

	// ImageSize is used for both height and width of the images fed to the
	// model. Pixel values are scaled from 0 to 1, channels-last; the
	// InceptionV3 preprocessing then rescales them to the -1 to 1 range the
	// pre-trained weights expect.
	ImageSize int

	// BatchSize for training batches.
	BatchSize int

	// DType of the model.
	DType dtypes.DType

	// UseParallelism wraps the training dataset so image loading happens in
	// parallel with training.
	UseParallelism bool

	// BufferSize of pre-loaded batches, per dataset, when UseParallelism.
	BufferSize int
}

// DefaultConfig is a sensible starting point: InceptionV3's native
// classification image size and float32 math.
var DefaultConfig = &Config{
	ImageSize:      inceptionv3.ClassificationImageSize,
	BatchSize:      16,
	DType:          dtypes.Float32,
	UseParallelism: true,
	BufferSize:     16,
}

// CreateDefaultContext sets the context with the default hyperparameters
// used by Train. Any of them can be overridden before training, e.g. with
// commandline.ParseContextSettings.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"train_steps":     600,
		"num_checkpoints": 3,

		optimizers.ParamOptimizer:    "adamw",
		optimizers.ParamLearningRate: 1e-3,

		// The classifier head: defaults to a plain linear (softmax) readout
		// over the InceptionV3 embedding, the usual transfer-learning setup.
		fnn.ParamNumHiddenLayers: 0,
		fnn.ParamNumHiddenNodes:  64,
	})
	return ctx
}

// classifierGraph returns the model graph function: the images batch goes
// through InceptionV3 preprocessing, then through the frozen pre-trained
// network up to its last embedding layer (the classification top is
// excluded), and finally through the trainable readout head that produces
// one logit per known class.
func classifierGraph(numClasses int, weightsDir string) train.ModelFn {
	return func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		ctx = ctx.In("model")
		images := inputs[0] // Pixel values scaled from 0 to 1.
		images = inceptionv3.PreprocessImage(images, 1.0, timage.ChannelsLast)
		embeddings := inceptionv3.BuildGraph(ctx, images).
			PreTrained(weightsDir).
			SetPooling(inceptionv3.MaxPooling).
			Trainable(false).
			Done()
		logits := fnn.New(ctx.In("readout"), embeddings, numClasses).Done()
		return []*Node{logits}
	}
}

// Model is the trained artifact: the frozen InceptionV3 weights plus the
// fitted classifier head, the label vocabulary and the settings used to
// build it. It is immutable once returned by Train (or Load) and can be
// shared read-only; create one Predictor per goroutine to use it
// concurrently (see NewPredictor).
type Model struct {
	backend backends.Backend
	ctx     *context.Context
	vocab   *Vocabulary
	config  *Config
}

// Labels returns the class labels the model can predict, in score order.
func (m *Model) Labels() []string { return m.vocab.Labels() }

// Vocabulary returns the label encoding established during training.
func (m *Model) Vocabulary() *Vocabulary { return m.vocab }

// modelFn rebuilds the graph function for this model's class count.
func (m *Model) modelFn() train.ModelFn {
	return classifierGraph(m.vocab.Size(), m.config.DataDir)
}
