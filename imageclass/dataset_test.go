package imageclass

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestImage creates a width x height PNG filled with the given color.
func writeTestImage(t *testing.T, path string, width, height int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestReadTaggedImages(t *testing.T) {
	dir := t.TempDir()
	tagsPath := filepath.Join(dir, "tags.tsv")

	// Blank lines are skipped, labels are trimmed.
	content := "broccoli1.jpg\tbroccoli\n\ntoaster1.jpg\ttoaster \n"
	require.NoError(t, os.WriteFile(tagsPath, []byte(content), 0644))
	examples, err := ReadTaggedImages(tagsPath, "images")
	require.NoError(t, err)
	assert.Equal(t, []ImageData{
		{ImagePath: filepath.Join("images", "broccoli1.jpg"), Label: "broccoli"},
		{ImagePath: filepath.Join("images", "toaster1.jpg"), Label: "toaster"},
	}, examples)

	// An empty file is not an error.
	require.NoError(t, os.WriteFile(tagsPath, nil, 0644))
	examples, err = ReadTaggedImages(tagsPath, "images")
	require.NoError(t, err)
	assert.Empty(t, examples)

	// A line without a tab separator is.
	require.NoError(t, os.WriteFile(tagsPath, []byte("broccoli1.jpg broccoli\n"), 0644))
	_, err = ReadTaggedImages(tagsPath, "images")
	require.ErrorContains(t, err, "malformed line")
	require.ErrorContains(t, err, tagsPath+":1")

	// As is a missing file.
	_, err = ReadTaggedImages(filepath.Join(dir, "no-such-file.tsv"), "images")
	require.Error(t, err)
}

func TestResizeWithPadding(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 20))
	resized := ResizeWithPadding(src, 8, 8)
	assert.Equal(t, 8, resized.Bounds().Dx())
	assert.Equal(t, 8, resized.Bounds().Dy())

	// Same aspect ratio requires no padding.
	src = image.NewNRGBA(image.Rect(0, 0, 16, 16))
	resized = ResizeWithPadding(src, 8, 8)
	assert.Equal(t, 8, resized.Bounds().Dx())
	assert.Equal(t, 8, resized.Bounds().Dy())
}

func TestCheckImages(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writeTestImage(t, good, 4, 4, color.NRGBA{R: 255, A: 255})
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	require.NoError(t, CheckImages([]ImageData{{ImagePath: good, Label: "red"}}, false))
	err := CheckImages([]ImageData{
		{ImagePath: good, Label: "red"},
		{ImagePath: bad, Label: "red"},
	}, false)
	require.ErrorContains(t, err, "bad.png")
}

func TestDatasetYield(t *testing.T) {
	dir := t.TempDir()
	var examples []ImageData
	for ii := 0; ii < 5; ii++ {
		path := filepath.Join(dir, fmt.Sprintf("img%d.png", ii))
		label := "red"
		c := color.NRGBA{R: 255, A: 255}
		if ii%2 == 1 {
			label = "blue"
			c = color.NRGBA{B: 255, A: 255}
		}
		writeTestImage(t, path, 6, 6, c)
		examples = append(examples, ImageData{ImagePath: path, Label: label})
	}
	vocab, err := NewVocabulary(examples)
	require.NoError(t, err)

	const imageSize, batchSize = 4, 2
	ds := NewDataset("test", examples, vocab, imageSize, batchSize, false, nil, dtypes.Float32)
	assert.Equal(t, "test", ds.Name())

	for batch := 0; batch < 2; batch++ {
		spec, inputs, labels, err := ds.Yield()
		require.NoError(t, err)
		assert.Same(t, ds, spec)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		assert.Equal(t, []int{batchSize, imageSize, imageSize, 3}, inputs[0].Shape().Dimensions)
		assert.Equal(t, dtypes.Float32, inputs[0].DType())
		assert.Equal(t, []int{batchSize, 1}, labels[0].Shape().Dimensions)

		keys := labels[0].Value().([][]int32)
		for row := range keys {
			want, err := vocab.Encode(examples[batch*batchSize+row].Label)
			require.NoError(t, err)
			assert.Equal(t, want, keys[row][0])
		}
	}

	// The trailing partial batch is dropped.
	_, _, _, err = ds.Yield()
	require.ErrorIs(t, err, io.EOF)

	// Reset restarts a new epoch.
	ds.Reset()
	_, _, _, err = ds.Yield()
	require.NoError(t, err)
}

func TestDatasetInfinite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	writeTestImage(t, path, 4, 4, color.NRGBA{G: 255, A: 255})
	examples := []ImageData{
		{ImagePath: path, Label: "green"},
		{ImagePath: path, Label: "green"},
		{ImagePath: path, Label: "green"},
	}
	vocab, err := NewVocabulary(examples)
	require.NoError(t, err)

	// 3 examples with batches of 2 would end after 1 batch in an epoch, but
	// an infinite dataset keeps wrapping around.
	ds := NewDataset("train", examples, vocab, 4, 2, true, nil, dtypes.Float32)
	for ii := 0; ii < 5; ii++ {
		_, inputs, _, err := ds.Yield()
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 4, 3}, inputs[0].Shape().Dimensions)
	}
}
