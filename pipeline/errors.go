package pipeline

import (
	"errors"

	"github.com/avassilev/finetuner/backbone"
	"github.com/avassilev/finetuner/vision/dataset"
	"github.com/avassilev/finetuner/vision/preprocessing"
)

// IsDecodeError reports whether err was caused by an undecodable image file.
func IsDecodeError(err error) bool {
	var e *preprocessing.DecodeError
	return errors.As(err, &e)
}

// IsEnumerationError reports whether err was caused by a failure to list the
// dataset tree (including an empty tree).
func IsEnumerationError(err error) bool {
	var e *dataset.EnumerationError
	return errors.As(err, &e)
}

// IsModelLoadError reports whether err was caused by a backbone that could
// not be loaded.
func IsModelLoadError(err error) bool {
	var e *backbone.LoadError
	return errors.As(err, &e)
}
