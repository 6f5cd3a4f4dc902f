package preprocessing

import (
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
)

// DecodeError reports an image file whose bytes could not be decoded as a
// supported format. A single DecodeError aborts the whole dataset load:
// silently skipping a labeled sample is worse than failing the run.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Sample is one decoded, resized image ready for the dataset builder.
// Data is laid out HWC (row-major height, width, channel), float32 in [0, 1].
type Sample struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// Processor decodes images and resizes them to a fixed target size.
type Processor struct {
	width  int
	height int
}

// NewProcessor creates a processor producing width×height RGB samples.
func NewProcessor(width, height int) (*Processor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %dx%d", width, height)
	}
	return &Processor{width: width, height: height}, nil
}

// DecodeAndResize decodes PNG, JPEG or BMP bytes, resizes to the exact target
// size with bilinear interpolation (no aspect-ratio preservation, no crop) and
// normalizes pixel values to [0, 1]. Normalization happens here and only here;
// downstream stages must not rescale again.
func (p *Processor) DecodeAndResize(r io.Reader) (*Sample, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := resize.Resize(uint(p.width), uint(p.height), img, resize.Bilinear)

	channels := 3
	data := make([]float32, p.height*p.width*channels)
	bounds := resized.Bounds()

	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			r16, g16, b16, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			// RGBA returns 16-bit channel values regardless of source depth.
			idx := (y*p.width + x) * channels
			data[idx] = float32(r16) / 65535.0
			data[idx+1] = float32(g16) / 65535.0
			data[idx+2] = float32(b16) / 65535.0
		}
	}

	return &Sample{
		Data:     data,
		Width:    p.width,
		Height:   p.height,
		Channels: channels,
	}, nil
}

// ProcessFile decodes and resizes a single image file. A failure is reported
// as a DecodeError carrying the file path.
func (p *Processor) ProcessFile(path string) (*Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer file.Close()

	sample, err := p.DecodeAndResize(file)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return sample, nil
}

// ProcessFiles decodes multiple image files concurrently. The result slice is
// index-aligned with paths, so the enumeration order fixed by the caller
// survives parallel decoding. Any failure aborts the batch: the error for the
// lowest failing index is returned and no partial result is produced.
func ProcessFiles(paths []string, width, height, maxWorkers int) ([]*Sample, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	processor, err := NewProcessor(width, height)
	if err != nil {
		return nil, err
	}

	results := make([]*Sample, len(paths))
	errs := make([]error, len(paths))

	type job struct {
		index int
		path  string
	}

	jobs := make(chan job, len(paths))
	var wg sync.WaitGroup

	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				sample, err := processor.ProcessFile(j.path)
				if err != nil {
					errs[j.index] = err
					continue
				}
				results[j.index] = sample
			}
		}()
	}

	for i, path := range paths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
