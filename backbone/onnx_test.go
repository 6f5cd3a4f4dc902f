package backbone

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validMetadataJSON() string {
	return `{
		"embedding_dim": 1792,
		"image_size": 224,
		"input_name": "images",
		"output_name": "embeddings",
		"layout": "NHWC"
	}`
}

func TestMetadataValidate(t *testing.T) {
	valid := Metadata{
		EmbeddingDim: 1792,
		ImageSize:    224,
		InputName:    "images",
		OutputName:   "embeddings",
		Layout:       "NHWC",
	}
	if err := valid.validate(); err != nil {
		t.Errorf("Unexpected error for valid metadata: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Metadata)
	}{
		{"ZeroEmbeddingDim", func(m *Metadata) { m.EmbeddingDim = 0 }},
		{"NegativeImageSize", func(m *Metadata) { m.ImageSize = -1 }},
		{"MissingInputName", func(m *Metadata) { m.InputName = "" }},
		{"MissingOutputName", func(m *Metadata) { m.OutputName = "" }},
		{"BadLayout", func(m *Metadata) { m.Layout = "HWCN" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid
			tc.mutate(&m)
			if err := m.validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestNewONNXEmbedderLoadErrors(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "backbone.onnx")
	metadataPath := filepath.Join(dir, "backbone.json")

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := NewONNXEmbedder(modelPath, metadataPath)
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("Expected LoadError, got %v", err)
		}
		if loadErr.Path != metadataPath {
			t.Errorf("Expected path %s in error, got %s", metadataPath, loadErr.Path)
		}
	})

	t.Run("MalformedMetadata", func(t *testing.T) {
		if err := os.WriteFile(metadataPath, []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write metadata: %v", err)
		}
		var loadErr *LoadError
		if _, err := NewONNXEmbedder(modelPath, metadataPath); !errors.As(err, &loadErr) {
			t.Fatalf("Expected LoadError, got %v", err)
		}
	})

	t.Run("InvalidMetadata", func(t *testing.T) {
		if err := os.WriteFile(metadataPath, []byte(`{"embedding_dim": 0}`), 0644); err != nil {
			t.Fatalf("Failed to write metadata: %v", err)
		}
		var loadErr *LoadError
		if _, err := NewONNXEmbedder(modelPath, metadataPath); !errors.As(err, &loadErr) {
			t.Fatalf("Expected LoadError, got %v", err)
		}
	})

	t.Run("MissingModelFile", func(t *testing.T) {
		if err := os.WriteFile(metadataPath, []byte(validMetadataJSON()), 0644); err != nil {
			t.Fatalf("Failed to write metadata: %v", err)
		}

		_, err := NewONNXEmbedder(modelPath, metadataPath)
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			t.Fatalf("Expected LoadError, got %v", err)
		}
		if loadErr.Path != modelPath {
			t.Errorf("Expected path %s in error, got %s", modelPath, loadErr.Path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Expected os.ErrNotExist in chain, got %v", err)
		}
	})
}

func TestLoadErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &LoadError{Path: "model.onnx", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Expected Unwrap to expose the inner error")
	}
	if err.Error() == "" {
		t.Error("Expected a non-empty error message")
	}
}

func TestNHWCToNCHW(t *testing.T) {
	// One 2x2 image; pixel (h, w) has value 10h+w per channel with a channel
	// offset, so every element is distinguishable.
	n, h, w := 1, 2, 2
	in := make([]float32, h*w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				in[(y*w+x)*3+c] = float32(10*y + x + 100*c)
			}
		}
	}

	out := nhwcToNCHW(in, n, h, w)

	for c := 0; c < 3; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				want := float32(10*y + x + 100*c)
				got := out[c*h*w+y*w+x]
				if got != want {
					t.Fatalf("Channel %d pixel (%d, %d): expected %f, got %f", c, y, x, want, got)
				}
			}
		}
	}
}
