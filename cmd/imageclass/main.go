// Transfer-learning image classifier trainer and evaluator.
//
// It reads training images from a TSV file of image-name/label pairs, fits a
// classifier head on top of the frozen pre-trained InceptionV3 network,
// evaluates it on a second TSV of labeled images and reports the per-image
// predictions and aggregate metrics. Optionally it then classifies a single
// extra image given with --predict.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"github.com/quocthang0507/go-image-classification/imageclass"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/xla"
)

var (
	flagAssetsDir = flag.String("assets", "assets", "Base directory with the images and tags files. "+
		"The --images, --tags and --test_tags defaults are taken relative to it.")
	flagImagesDir = flag.String("images", "", "Directory with the image files. Defaults to <assets>/images.")
	flagTags      = flag.String("tags", "", "TSV file with one <image name>\\t<label> line per training image. "+
		"Defaults to <assets>/images/tags.tsv.")
	flagTestTags = flag.String("test_tags", "", "TSV file with the evaluation images, same format as --tags. "+
		"Defaults to <assets>/images/test-tags.tsv.")
	flagPredict = flag.String("predict", "", "Extra image file to classify after training. "+
		"If empty, the first evaluation image is used.")

	flagDataDir = flag.String("data", "~/.cache/go-image-classification",
		"Directory to cache the downloaded InceptionV3 weights, and base for relative --checkpoint paths.")
	flagCheckpoint = flag.String("checkpoint", "", "Directory to save and load model checkpoints from. "+
		"If left empty, the model is not saved.")
	flagEval      = flag.Bool("eval", true, "Whether to evaluate the model on the --test_tags images.")
	flagVerbosity = flag.Int("verbosity", 1, "Level of verbosity, the higher the more verbose.")
)

func main() {
	ctx := imageclass.CreateDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	must.M(commandline.ParseContextSettings(ctx, *settings))

	imagesDir := *flagImagesDir
	if imagesDir == "" {
		imagesDir = filepath.Join(*flagAssetsDir, "images")
	}
	tagsPath := *flagTags
	if tagsPath == "" {
		tagsPath = filepath.Join(imagesDir, "tags.tsv")
	}
	testTagsPath := *flagTestTags
	if testTagsPath == "" {
		testTagsPath = filepath.Join(imagesDir, "test-tags.tsv")
	}

	config := &imageclass.Config{}
	*config = *imageclass.DefaultConfig
	config.DataDir = *flagDataDir

	// Training.
	training, err := imageclass.ReadTaggedImages(tagsPath, imagesDir)
	if err != nil {
		klog.Fatalf("Failed to read training tags: %+v", err)
	}
	if err = imageclass.CheckImages(training, *flagVerbosity >= 1); err != nil {
		klog.Fatalf("Bad training images: %+v", err)
	}
	model, err := imageclass.Train(ctx, config, training, *flagCheckpoint)
	if err != nil {
		klog.Fatalf("Training failed: %+v", err)
	}
	if *flagVerbosity >= 1 {
		fmt.Printf("Trained on %d images, labels: %q\n", len(training), model.Labels())
	}

	// Evaluation.
	test, err := imageclass.ReadTaggedImages(testTagsPath, imagesDir)
	if err != nil {
		klog.Fatalf("Failed to read evaluation tags: %+v", err)
	}
	if *flagEval && len(test) > 0 {
		predictions, metrics, err := imageclass.Evaluate(model, test)
		if err != nil {
			klog.Fatalf("Evaluation failed: %+v", err)
		}
		fmt.Println()
		imageclass.PrintPredictions(os.Stdout, predictions)
		fmt.Println()
		imageclass.PrintMetrics(os.Stdout, metrics, model.Labels(), len(test))
	}

	// Single image classification.
	single := imageclass.ImageData{ImagePath: *flagPredict}
	if single.ImagePath == "" {
		if len(test) == 0 {
			return
		}
		single = test[0]
	}
	prediction, err := model.NewPredictor().Predict(single)
	if err != nil {
		klog.Fatalf("Failed to classify %q: %+v", single.ImagePath, err)
	}
	fmt.Println()
	imageclass.PrintPredictions(os.Stdout, []*imageclass.ImagePrediction{prediction})
}
