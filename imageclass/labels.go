package imageclass

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Vocabulary maps the class labels seen during training to dense int32 keys,
// as required by the classifier loss, and back. Keys are assigned in
// lexicographic order of the labels, so the same training data always yields
// the same encoding, independent of the order of the examples.
type Vocabulary struct {
	labels []string
	keys   map[string]int32
}

// NewVocabulary builds a Vocabulary from the distinct labels found in
// examples. It fails on an empty set or on an example with an empty label.
func NewVocabulary(examples []ImageData) (*Vocabulary, error) {
	set := make(map[string]bool)
	for _, example := range examples {
		if example.Label == "" {
			return nil, errors.Errorf("image %q has an empty label", example.ImagePath)
		}
		set[example.Label] = true
	}
	if len(set) == 0 {
		return nil, errors.New("cannot build a vocabulary from an empty training set")
	}
	labels := maps.Keys(set)
	slices.Sort(labels)
	return NewVocabularyFromLabels(labels)
}

// NewVocabularyFromLabels builds a Vocabulary from an explicit list of
// labels, e.g. when restoring a Model from a checkpoint. The order of labels
// defines the encoding.
func NewVocabularyFromLabels(labels []string) (*Vocabulary, error) {
	if len(labels) == 0 {
		return nil, errors.New("cannot build a vocabulary with no labels")
	}
	v := &Vocabulary{
		labels: slices.Clone(labels),
		keys:   make(map[string]int32, len(labels)),
	}
	for ii, label := range v.labels {
		if _, found := v.keys[label]; found {
			return nil, errors.Errorf("duplicate label %q in vocabulary", label)
		}
		v.keys[label] = int32(ii)
	}
	return v, nil
}

// Size returns the number of known classes.
func (v *Vocabulary) Size() int { return len(v.labels) }

// Labels returns the known class labels, in encoding order.
func (v *Vocabulary) Labels() []string { return slices.Clone(v.labels) }

// Encode returns the dense class key for label. It fails if the label was
// not part of the training data.
func (v *Vocabulary) Encode(label string) (int32, error) {
	key, found := v.keys[label]
	if !found {
		return 0, errors.Errorf("label %q was not seen during training -- known labels are %q",
			label, v.labels)
	}
	return key, nil
}

// Decode returns the label string for a class key previously produced by
// Encode (or by the classifier, which can only output known keys).
func (v *Vocabulary) Decode(key int32) string {
	if key < 0 || int(key) >= len(v.labels) {
		exceptions.Panicf("class key %d out of range for vocabulary with %d labels", key, len(v.labels))
	}
	return v.labels[key]
}
