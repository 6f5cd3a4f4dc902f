// Package pipeline wires the full dataset-to-training flow: scan a labeled
// image-folder tree, decode and normalize every image, extract features
// through a frozen backbone, and fit a classifier head, reporting progress to
// an observer throughout.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/avassilev/finetuner/backbone"
	"github.com/avassilev/finetuner/training"
	"github.com/avassilev/finetuner/vision/dataset"
	"github.com/avassilev/finetuner/vision/preprocessing"
)

// ErrRunInProgress is returned when Run is invoked while another run is
// active. The pipeline supports exactly one run at a time.
var ErrRunInProgress = errors.New("a training run is already in progress")

// Stage identifies where in its lifecycle a run currently is.
type Stage int32

const (
	StageIdle Stage = iota
	StageLoading
	StageFeatureExtracting
	StageTraining
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageFeatureExtracting:
		return "feature-extracting"
	case StageTraining:
		return "training"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Config holds the pipeline-level knobs. Image size and epoch count are fixed
// per deployment, not per request.
type Config struct {
	ImageWidth    int `yaml:"image_width"`
	ImageHeight   int `yaml:"image_height"`
	DecodeWorkers int `yaml:"decode_workers"`

	Training training.Config `yaml:"training"`
}

// DefaultConfig returns the standard pipeline configuration: 224×224 inputs
// and the default training hyperparameters.
func DefaultConfig() Config {
	return Config{
		ImageWidth:  224,
		ImageHeight: 224,
		Training:    training.Default(),
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ImageWidth == 0 {
		c.ImageWidth = d.ImageWidth
	}
	if c.ImageHeight == 0 {
		c.ImageHeight = d.ImageHeight
	}
	if c.DecodeWorkers == 0 {
		c.DecodeWorkers = runtime.NumCPU()
	}
	c.Training = c.Training.WithDefaults()
	return c
}

// Pipeline runs training over a labeled folder tree using a frozen backbone.
// A Pipeline is safe for concurrent use, but only one run may be active; a
// second caller gets ErrRunInProgress instead of undefined behavior.
type Pipeline struct {
	embedder backbone.Embedder
	config   Config

	runMu sync.Mutex
	busy  atomic.Bool
	stage atomic.Int32
}

// New creates a pipeline around an embedding backbone.
func New(embedder backbone.Embedder, config Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder must not be nil")
	}
	config = config.WithDefaults()
	if config.ImageWidth <= 0 || config.ImageHeight <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %dx%d", config.ImageWidth, config.ImageHeight)
	}
	if err := config.Training.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{embedder: embedder, config: config}, nil
}

// Stage reports the current lifecycle stage of the pipeline.
func (p *Pipeline) Stage() Stage {
	return Stage(p.stage.Load())
}

// Run executes one full training run over the labeled tree rooted at root.
// The observer (nil for none) receives the lifecycle events of the run; event
// delivery never affects the run's outcome. All failures — enumeration,
// decode, backbone load, training — surface as the returned error; the host
// process is never terminated from here.
func (p *Pipeline) Run(ctx context.Context, root string, observer training.Observer) (*training.Run, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.busy.Store(false)

	p.runMu.Lock()
	defer p.runMu.Unlock()

	obs := training.Multi(observer)

	run, err := p.run(ctx, root, obs)
	if err != nil {
		p.stage.Store(int32(StageFailed))
		return nil, err
	}

	p.stage.Store(int32(StageCompleted))
	obs.Log("learned")
	obs.Completed()
	return run, nil
}

func (p *Pipeline) run(ctx context.Context, root string, obs training.Observer) (*training.Run, error) {
	p.stage.Store(int32(StageLoading))

	obs.Log("loading images")
	obs.Log(fmt.Sprintf("scanning %s", root))

	folder, err := dataset.ScanImageFolder(root)
	if err != nil {
		return nil, err
	}
	obs.Log(fmt.Sprintf("found %d images in %d classes", folder.Len(), folder.NumClasses()))

	obs.Log("converting")
	samples, err := preprocessing.ProcessFiles(folder.ImagePaths(), p.config.ImageWidth, p.config.ImageHeight, p.config.DecodeWorkers)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.Build(samples, folder.Labels(), folder.LabelNames(), nil)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.stage.Store(int32(StageFeatureExtracting))
	obs.Log("loading model")
	obs.Log("creating features")

	features, err := p.embedder.Embed(ds.Images)
	if err != nil {
		return nil, err
	}
	// Only the derived feature vectors are needed from here on.
	ds.ReleaseImages()

	obs.Log(fmt.Sprintf("feature shape: %v", features.Shape()))

	p.stage.Store(int32(StageTraining))

	trainer, err := training.NewTrainer(p.config.Training, obs)
	if err != nil {
		return nil, err
	}
	return trainer.Train(ctx, features, ds.Labels)
}
