// Package backbone provides the frozen pretrained feature extractor used for
// transfer learning. The backbone is consumed through the Embedder interface
// so the training pipeline can be exercised with a stub in tests instead of
// loading a real model.
package backbone

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Embedder maps a batch of normalized images to fixed-length embedding
// vectors. The backbone is frozen: Embed is a pure forward pass and never
// updates weights.
type Embedder interface {
	// Embed maps a [N, H, W, 3] float32 image tensor to a [N, Dim()] float32
	// feature tensor.
	Embed(images *tensor.Dense) (*tensor.Dense, error)
	// Dim returns the embedding dimensionality.
	Dim() int
}

// LoadError reports a backbone that could not be loaded. It is fatal for the
// run: there is no fallback extractor.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load backbone %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
