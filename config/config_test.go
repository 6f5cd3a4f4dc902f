package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backbone:
  model_path: models/efficientnet.onnx
  metadata_path: models/efficientnet.json
pipeline:
  image_width: 128
  image_height: 128
  training:
    epochs: 10
    learning_rate: 0.01
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Backbone.ModelPath != "models/efficientnet.onnx" {
		t.Errorf("Unexpected model path: %s", config.Backbone.ModelPath)
	}
	if config.Pipeline.ImageWidth != 128 || config.Pipeline.ImageHeight != 128 {
		t.Errorf("Expected 128x128, got %dx%d", config.Pipeline.ImageWidth, config.Pipeline.ImageHeight)
	}
	if config.Pipeline.Training.Epochs != 10 {
		t.Errorf("Expected 10 epochs, got %d", config.Pipeline.Training.Epochs)
	}
	if config.Pipeline.Training.LearningRate != 0.01 {
		t.Errorf("Expected learning rate 0.01, got %f", config.Pipeline.Training.LearningRate)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
backbone:
  model_path: models/backbone.onnx
  metadata_path: models/backbone.json
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Pipeline.ImageWidth != 224 || config.Pipeline.ImageHeight != 224 {
		t.Errorf("Expected 224x224 defaults, got %dx%d", config.Pipeline.ImageWidth, config.Pipeline.ImageHeight)
	}
	if config.Pipeline.Training.Epochs != 100 {
		t.Errorf("Expected 100 default epochs, got %d", config.Pipeline.Training.Epochs)
	}
	if config.Pipeline.DecodeWorkers <= 0 {
		t.Errorf("Expected positive default decode workers, got %d", config.Pipeline.DecodeWorkers)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		path := writeConfig(t, "backbone: [not: a: mapping")
		if _, err := Load(path); err == nil {
			t.Error("Expected error for malformed YAML")
		}
	})

	t.Run("MissingModelPath", func(t *testing.T) {
		path := writeConfig(t, `
backbone:
  metadata_path: models/backbone.json
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "model_path") {
			t.Errorf("Expected model_path error, got %v", err)
		}
	})

	t.Run("MissingMetadataPath", func(t *testing.T) {
		path := writeConfig(t, `
backbone:
  model_path: models/backbone.onnx
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "metadata_path") {
			t.Errorf("Expected metadata_path error, got %v", err)
		}
	})
}
