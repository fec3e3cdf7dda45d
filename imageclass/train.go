package imageclass

import (
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/models/inceptionv3"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// Train fits a classifier head on top of the frozen pre-trained InceptionV3
// network and returns the trained Model. It downloads the InceptionV3
// weights into config.DataDir if they are not cached there yet.
//
// The hyperparameters (number of steps, optimizer, learning rate, head
// shape) are read from ctx -- see CreateDefaultContext. If checkpointPath is
// not empty, the model is checkpointed under it (relative paths are taken
// relative to config.DataDir) periodically and at the end of training; a
// previous checkpoint, if present, is loaded and training resumes from it.
//
// It fails if the training set is empty, if any training image is missing or
// unreadable, or if the pre-trained weights cannot be fetched or parsed.
func Train(ctx *context.Context, config *Config, training []ImageData, checkpointPath string) (*Model, error) {
	vocab, err := NewVocabulary(training)
	if err != nil {
		return nil, err
	}
	ctx.SetParam(ParamLabels, strings.Join(vocab.Labels(), ","))

	dataDir := data.ReplaceTildeInDir(config.DataDir)
	if !data.FileExists(dataDir) {
		if err = os.MkdirAll(dataDir, 0777); err != nil {
			return nil, errors.Wrapf(err, "failed to create data directory %q", dataDir)
		}
	}
	if err = inceptionv3.DownloadAndUnpackWeights(dataDir); err != nil {
		return nil, errors.WithMessage(err, "failed to fetch the pre-trained InceptionV3 weights")
	}

	// Backend handles creation of ML computation graphs, accelerator
	// resources, etc.
	var backend backends.Backend
	err = exceptions.TryCatch[error](func() { backend = backends.New() })
	if err != nil {
		return nil, err
	}

	// Checkpoint: it loads if one already exists, and saves as we train.
	var checkpoint *checkpoints.Handler
	if checkpointPath != "" {
		numCheckpoints := context.GetParamOr(ctx, "num_checkpoints", 3)
		checkpoint, err = checkpoints.Build(ctx).
			DirFromBase(checkpointPath, dataDir).
			Keep(numCheckpoints).Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to set up checkpointing to %q", checkpointPath)
		}
	}
	globalStep := int(optimizers.GetGlobalStep(ctx))
	if globalStep != 0 {
		ctx = ctx.Reuse()
	}

	shuffle := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))
	var trainDS train.Dataset = NewDataset("train", training, vocab,
		config.ImageSize, config.BatchSize, true, shuffle, config.DType)
	if config.UseParallelism {
		trainDS = data.CustomParallel(trainDS).Buffer(config.BufferSize).Start()
	}

	// Metrics we are interested in.
	meanAccuracyMetric := metrics.NewSparseCategoricalAccuracy("Mean Accuracy", "#acc")
	movingAccuracyMetric := metrics.NewMovingAverageSparseCategoricalAccuracy("Moving Average Accuracy", "~acc", 0.01)

	// Create a train.Trainer: this object will orchestrate running the
	// model, feeding results to the optimizer and evaluating the metrics.
	trainer := train.NewTrainer(backend, ctx, classifierGraph(vocab.Size(), dataDir),
		losses.SparseCategoricalCrossEntropyLogits,
		optimizers.FromContext(ctx),
		[]metrics.Interface{movingAccuracyMetric}, // trainMetrics
		[]metrics.Interface{meanAccuracyMetric})   // evalMetrics

	// Use the standard training loop.
	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	// Checkpoint saving: every 1 minute of training.
	if checkpoint != nil {
		period := time.Minute * 1
		train.PeriodicCallback(loop, period, true, "saving checkpoint", 100,
			func(loop *train.Loop, metrics []*tensors.Tensor) error {
				return checkpoint.Save()
			})
	}

	numTrainSteps := context.GetParamOr(ctx, "train_steps", 0)
	if globalStep < numTrainSteps {
		err = exceptions.TryCatch[error](func() {
			_ = must.M1(loop.RunSteps(trainDS, numTrainSteps-globalStep))
		})
		if err != nil {
			return nil, errors.WithMessage(err, "training failed")
		}
	}
	if checkpoint != nil {
		if err = checkpoint.Save(); err != nil {
			return nil, errors.WithMessage(err, "failed to save final checkpoint")
		}
	}

	cfg := *config
	cfg.DataDir = dataDir
	return &Model{
		backend: backend,
		ctx:     ctx,
		vocab:   vocab,
		config:  &cfg,
	}, nil
}

// Load restores a Model previously trained with Train and checkpointed under
// checkpointDir. The config must carry the same DataDir (for the InceptionV3
// weights) and image settings used during training.
func Load(config *Config, checkpointDir string) (*Model, error) {
	ctx := context.New()
	_, err := checkpoints.Load(ctx).Dir(checkpointDir).Done()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load model checkpoint from %q", checkpointDir)
	}
	joined := context.GetParamOr(ctx, ParamLabels, "")
	if joined == "" {
		return nil, errors.Errorf("checkpoint %q carries no %q parameter -- was it created by Train?",
			checkpointDir, ParamLabels)
	}
	vocab, err := NewVocabularyFromLabels(strings.Split(joined, ","))
	if err != nil {
		return nil, err
	}

	var backend backends.Backend
	err = exceptions.TryCatch[error](func() { backend = backends.New() })
	if err != nil {
		return nil, err
	}

	cfg := *config
	cfg.DataDir = data.ReplaceTildeInDir(config.DataDir)
	return &Model{
		backend: backend,
		ctx:     ctx.Reuse(),
		vocab:   vocab,
		config:  &cfg,
	}, nil
}
