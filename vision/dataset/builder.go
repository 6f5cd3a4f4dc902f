package dataset

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"

	"github.com/avassilev/finetuner/vision/preprocessing"
)

// Dataset is a shuffled, stacked training set. Images and Labels are
// row-aligned: they were permuted by the same permutation.
type Dataset struct {
	// Images has shape [N, H, W, 3], float32 in [0, 1].
	Images *tensor.Dense
	// Labels has shape [N, numClasses], one-hot float32.
	Labels *tensor.Dense
	// LabelNames maps a column of Labels back to its label name.
	LabelNames []string
}

// PairedShuffle permutes samples and labels in place with a single
// Fisher-Yates pass, swapping both slices at the same indices so the pairing
// between a sample and its label survives. Every one of the N! orderings is
// equally likely. Both slices must have the same length; a mismatch is a
// defect in the caller, not a data error.
func PairedShuffle(samples []*preprocessing.Sample, labels []int, rng *rand.Rand) error {
	if len(samples) != len(labels) {
		return fmt.Errorf("internal: samples/labels length mismatch: %d != %d", len(samples), len(labels))
	}
	for i := len(samples) - 1; i >= 1; i-- {
		j := rng.Intn(i + 1)
		samples[i], samples[j] = samples[j], samples[i]
		labels[i], labels[j] = labels[j], labels[i]
	}
	return nil
}

// Build shuffles the sample/label pairs and stacks them into tensors. Samples
// are expected to be normalized to [0, 1] already; Build does not rescale.
// The per-sample buffers are released once their rows are copied into the
// stacked tensor. If rng is nil a time-seeded source is used.
func Build(samples []*preprocessing.Sample, labels []int, labelNames []string, rng *rand.Rand) (*Dataset, error) {
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("internal: samples/labels length mismatch: %d != %d", len(samples), len(labels))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot build a dataset from zero samples")
	}

	numClasses := len(labelNames)
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, fmt.Errorf("label index %d at sample %d out of range [0, %d)", label, i, numClasses)
		}
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if err := PairedShuffle(samples, labels, rng); err != nil {
		return nil, err
	}

	n := len(samples)
	height := samples[0].Height
	width := samples[0].Width
	channels := samples[0].Channels
	rowSize := height * width * channels

	imageData := make([]float32, n*rowSize)
	for i, sample := range samples {
		if len(sample.Data) != rowSize {
			return nil, fmt.Errorf("sample %d has %d values, expected %d", i, len(sample.Data), rowSize)
		}
		copy(imageData[i*rowSize:(i+1)*rowSize], sample.Data)
		samples[i] = nil // release per-sample buffer
	}

	images := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, height, width, channels),
		tensor.WithBacking(imageData),
	)

	names := make([]string, numClasses)
	copy(names, labelNames)

	return &Dataset{
		Images:     images,
		Labels:     OneHot(labels, numClasses),
		LabelNames: names,
	}, nil
}

// OneHot encodes label indices as a [len(labels), numClasses] float32 tensor
// with a single 1 per row.
func OneHot(labels []int, numClasses int) *tensor.Dense {
	backing := make([]float32, len(labels)*numClasses)
	for i, label := range labels {
		backing[i*numClasses+label] = 1.0
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(labels), numClasses),
		tensor.WithBacking(backing),
	)
}

// Len returns the number of rows in the dataset.
func (d *Dataset) Len() int {
	if d.Labels == nil {
		return 0
	}
	return d.Labels.Shape()[0]
}

// NumClasses returns the width of the one-hot label rows.
func (d *Dataset) NumClasses() int {
	if d.Labels == nil {
		return 0
	}
	return d.Labels.Shape()[1]
}

// ReleaseImages drops the stacked image tensor. Once features have been
// extracted only the label tensor is needed; the image tensor is by far the
// largest allocation of a run.
func (d *Dataset) ReleaseImages() {
	d.Images = nil
}
