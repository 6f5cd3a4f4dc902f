package training

import (
	"context"
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Config holds the hyperparameters of the classifier head. The zero value is
// not usable; call WithDefaults or start from Default().
type Config struct {
	Epochs       int     `yaml:"epochs"`
	HiddenUnits  int     `yaml:"hidden_units"`
	LearningRate float32 `yaml:"learning_rate"`
	Beta1        float32 `yaml:"beta1"`
	Beta2        float32 `yaml:"beta2"`
	Epsilon      float32 `yaml:"epsilon"`
	// Seed fixes head initialization when non-zero; zero draws a fresh seed.
	Seed int64 `yaml:"seed"`
}

// Default returns the standard configuration: 100 full-batch epochs over a
// 64-unit hidden layer with Adam defaults.
func Default() Config {
	return Config{
		Epochs:       100,
		HiddenUnits:  64,
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// WithDefaults fills unset fields from Default().
func (c Config) WithDefaults() Config {
	d := Default()
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	if c.HiddenUnits == 0 {
		c.HiddenUnits = d.HiddenUnits
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.Beta1 == 0 {
		c.Beta1 = d.Beta1
	}
	if c.Beta2 == 0 {
		c.Beta2 = d.Beta2
	}
	if c.Epsilon == 0 {
		c.Epsilon = d.Epsilon
	}
	return c
}

// Validate rejects configurations the trainer cannot run.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.HiddenUnits <= 0 {
		return fmt.Errorf("hidden units must be positive, got %d", c.HiddenUnits)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	return nil
}

// EpochMetrics is one row of a run's history.
type EpochMetrics struct {
	Epoch    int
	Accuracy float64
	Loss     float64
}

// Run is the record of one completed training run. It is returned to the
// caller and never persisted by the trainer.
type Run struct {
	Epochs        int
	History       []EpochMetrics
	FinalAccuracy float64
	FinalLoss     float64
}

// Trainer fits a fresh classifier head to a feature batch. One Trainer value
// serves one call to Train at a time.
type Trainer struct {
	config   Config
	observer Observer
}

// NewTrainer creates a trainer. A nil observer is replaced with NopObserver.
func NewTrainer(config Config, observer Observer) (*Trainer, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Trainer{config: config, observer: observer}, nil
}

// Train runs exactly config.Epochs full-batch epochs of Adam over the
// (features, labels) set. features must be [N, E] float32 and labels a
// row-aligned [N, numClasses] one-hot float32 tensor. The observer receives
// one Progress event per epoch, in increasing epoch order starting at 0.
// Cancellation is honored at epoch boundaries; a cancelled run returns the
// context error and no Run record.
func (t *Trainer) Train(ctx context.Context, features, labels *tensor.Dense) (*Run, error) {
	fShape := features.Shape()
	lShape := labels.Shape()
	if len(fShape) != 2 {
		return nil, fmt.Errorf("features must be 2-dimensional, got shape %v", fShape)
	}
	if len(lShape) != 2 {
		return nil, fmt.Errorf("labels must be 2-dimensional, got shape %v", lShape)
	}
	if fShape[0] != lShape[0] {
		return nil, fmt.Errorf("internal: features/labels row mismatch: %d != %d", fShape[0], lShape[0])
	}

	n := fShape[0]
	inputDim := fShape[1]
	numClasses := lShape[1]
	if n == 0 {
		return nil, fmt.Errorf("cannot train on an empty feature batch")
	}

	x, ok := features.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 features, got %T", features.Data())
	}
	y, ok := labels.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 labels, got %T", labels.Data())
	}

	seed := t.config.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	head, err := NewClassifierHead(inputDim, t.config.HiddenUnits, numClasses, rng)
	if err != nil {
		return nil, err
	}

	adam, err := NewAdam(head.parameters(), t.config.LearningRate, t.config.Beta1, t.config.Beta2, t.config.Epsilon)
	if err != nil {
		return nil, err
	}

	run := &Run{
		Epochs:  t.config.Epochs,
		History: make([]EpochMetrics, 0, t.config.Epochs),
	}

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training cancelled at epoch %d: %w", epoch, err)
		}

		state, err := head.Forward(x, n)
		if err != nil {
			return nil, err
		}

		loss := head.Loss(state, y, n)
		accuracy := head.Accuracy(state, y, n)

		grads := head.Backward(x, y, n, state)
		if err := adam.Step(grads.flat()); err != nil {
			return nil, err
		}

		run.History = append(run.History, EpochMetrics{Epoch: epoch, Accuracy: accuracy, Loss: loss})
		run.FinalAccuracy = accuracy
		run.FinalLoss = loss

		t.observer.Progress(epoch, accuracy, loss)
	}

	return run, nil
}
