// Package config loads the application's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avassilev/finetuner/pipeline"
)

// Config holds everything the trainer binary needs: where the frozen backbone
// lives and the pipeline knobs.
type Config struct {
	Backbone struct {
		ModelPath    string `yaml:"model_path"`
		MetadataPath string `yaml:"metadata_path"`
	} `yaml:"backbone"`

	Pipeline pipeline.Config `yaml:"pipeline"`
}

// Load reads configuration from the specified YAML file and fills unset
// pipeline fields with defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := &Config{}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.Pipeline = config.Pipeline.WithDefaults()

	if config.Backbone.ModelPath == "" {
		return nil, fmt.Errorf("backbone.model_path must be set")
	}
	if config.Backbone.MetadataPath == "" {
		return nil, fmt.Errorf("backbone.metadata_path must be set")
	}

	return config, nil
}
