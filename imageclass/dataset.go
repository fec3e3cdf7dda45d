package imageclass

import (
	"bufio"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	timage "github.com/gomlx/gomlx/types/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// ReadTaggedImages reads a headerless tab-separated tags file, one
// `<image file name>\t<label>` record per line, and joins each file name with
// imagesDir to form the image path. Empty lines are skipped. A line without a
// tab separator is an error. An empty file yields an empty slice, not an
// error. Whether the referenced image files exist is not checked here -- that
// failure surfaces when the images are loaded.
func ReadTaggedImages(tagsPath, imagesDir string) ([]ImageData, error) {
	f, err := os.Open(tagsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open tags file %q", tagsPath)
	}
	defer func() { _ = f.Close() }()

	var examples []ImageData
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, label, found := strings.Cut(line, "\t")
		if !found {
			return nil, errors.Errorf("%s:%d: malformed line %q, want <image file name>\\t<label>",
				tagsPath, lineNum, line)
		}
		examples = append(examples, ImageData{
			ImagePath: filepath.Join(imagesDir, name),
			Label:     strings.TrimSpace(label),
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading tags file %q", tagsPath)
	}
	return examples, nil
}

// LoadImage reads and decodes the image stored in imagePath.
func LoadImage(imagePath string) (image.Image, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open image %q", imagePath)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", imagePath)
	}
	return img, nil
}

// ResizeWithPadding resizes img to width x height without distorting its
// scale: the image is scaled to fit and pasted centered on a black
// background.
func ResizeWithPadding(img image.Image, width, height int) image.Image {
	imgSize := img.Bounds().Size()
	wRatio := float64(width) / float64(imgSize.X)
	hRatio := float64(height) / float64(imgSize.Y)

	adjustedWidth, adjustedHeight := width, height
	if wRatio < hRatio {
		adjustedHeight = int(wRatio * float64(imgSize.Y))
	} else if hRatio < wRatio {
		adjustedWidth = int(hRatio * float64(imgSize.X))
	}
	img = imaging.Resize(img, adjustedWidth, adjustedHeight, imaging.Lanczos)
	if adjustedWidth != width || adjustedHeight != height {
		bgImg := image.NewRGBA(image.Rect(0, 0, width, height))
		img = imaging.PasteCenter(bgImg, img)
	}
	return img
}

// CheckImages verifies that every referenced image file exists and decodes.
// If verbose, it displays a progress bar. It returns the first failure found.
func CheckImages(examples []ImageData, verbose bool) error {
	var pBar *progressbar.ProgressBar
	if verbose {
		pBar = progressbar.NewOptions(len(examples),
			progressbar.OptionSetDescription("Checking images"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}
	for _, example := range examples {
		if _, err := LoadImage(example.ImagePath); err != nil {
			return err
		}
		if pBar != nil {
			_ = pBar.Add(1)
		}
	}
	if pBar != nil {
		_ = pBar.Close()
	}
	return nil
}

// Dataset implements train.Dataset over a slice of labeled images, so it can
// feed a train.Loop. Each Yield loads a batch of images from disk, resizes
// them with padding to the configured size, converts the pixels to a tensor
// with values scaled from 0 to 1 (channels-last) and encodes the labels
// through the vocabulary.
type Dataset struct {
	name      string
	examples  []ImageData
	vocab     *Vocabulary
	imageSize int
	batchSize int

	// infinite keeps looping (and reshuffling) forever, for use with
	// train.Loop.RunSteps. Otherwise Yield returns io.EOF at the end of the
	// epoch, dropping a trailing partial batch.
	infinite bool
	shuffle  *rand.Rand

	toTensor *timage.ToTensorConfig

	// mu protects position and order.
	mu       sync.Mutex
	position int
	order    []int
}

var (
	// AssertDatasetIsTrainDataset is a compile-time check only.
	AssertDatasetIsTrainDataset *Dataset
	_                           train.Dataset = AssertDatasetIsTrainDataset
)

// NewDataset creates a Dataset that yields batchSize images at a time.
// Pass a non-nil shuffle to randomize the order. All labels in examples must
// be encodable by vocab.
func NewDataset(name string, examples []ImageData, vocab *Vocabulary,
	imageSize, batchSize int, infinite bool, shuffle *rand.Rand, dtype dtypes.DType) *Dataset {
	ds := &Dataset{
		name:      name,
		examples:  examples,
		vocab:     vocab,
		imageSize: imageSize,
		batchSize: batchSize,
		infinite:  infinite,
		shuffle:   shuffle,
		toTensor:  timage.ToTensor(dtype),
	}
	ds.Reset()
	return ds
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// Reset implements train.Dataset: it restarts the Dataset from the
// beginning, reshuffling if configured to.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.resetLocked()
}

func (ds *Dataset) resetLocked() {
	ds.position = 0
	if ds.shuffle != nil {
		ds.order = ds.shuffle.Perm(len(ds.examples))
		return
	}
	ds.order = make([]int, len(ds.examples))
	for ii := range ds.order {
		ds.order[ii] = ii
	}
}

// Yield implements train.Dataset. It returns:
//
//   - spec: the Dataset pointer itself, not otherwise used.
//   - inputs: one tensor with the images batch, shaped
//     `[batch_size, height, width, depth=3]`.
//   - labels: one tensor with the encoded class keys, shaped `[batch_size, 1]`.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	indices := make([]int, 0, ds.batchSize)
	for len(indices) < ds.batchSize {
		if ds.position >= len(ds.order) {
			if !ds.infinite {
				break
			}
			ds.resetLocked()
		}
		indices = append(indices, ds.order[ds.position])
		ds.position++
	}
	ds.mu.Unlock()
	if len(indices) < ds.batchSize {
		return nil, nil, nil, io.EOF
	}

	imgs := make([]image.Image, 0, len(indices))
	keys := make([]int32, 0, len(indices))
	for _, idx := range indices {
		example := ds.examples[idx]
		var img image.Image
		img, err = LoadImage(example.ImagePath)
		if err != nil {
			return
		}
		imgs = append(imgs, ResizeWithPadding(img, ds.imageSize, ds.imageSize))
		var key int32
		key, err = ds.vocab.Encode(example.Label)
		if err != nil {
			return
		}
		keys = append(keys, key)
	}
	spec = ds
	inputs = []*tensors.Tensor{ds.toTensor.Batch(imgs)}
	labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(keys, len(keys), 1)}
	return
}
