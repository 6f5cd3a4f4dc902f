package backbone

import (
	"encoding/json"
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Metadata describes a frozen ONNX backbone. It lives in a JSON sidecar next
// to the model file so the same binary can serve different backbones.
type Metadata struct {
	// EmbeddingDim is the width of the output feature vector (e.g. 1792).
	EmbeddingDim int `json:"embedding_dim"`
	// ImageSize is the square input resolution the model expects.
	ImageSize int `json:"image_size"`
	// InputName and OutputName are the graph tensor names.
	InputName  string `json:"input_name"`
	OutputName string `json:"output_name"`
	// Layout is "NHWC" or "NCHW"; dataset tensors are NHWC and are transposed
	// on the way in when the model wants NCHW.
	Layout string `json:"layout"`
}

func (m Metadata) validate() error {
	if m.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", m.EmbeddingDim)
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", m.ImageSize)
	}
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("input_name and output_name must be set")
	}
	if m.Layout != "NHWC" && m.Layout != "NCHW" {
		return fmt.Errorf("layout must be NHWC or NCHW, got %q", m.Layout)
	}
	return nil
}

// ONNXEmbedder runs a frozen ONNX image-embedding model through ONNX Runtime.
type ONNXEmbedder struct {
	modelPath string
	metadata  Metadata
}

// NewONNXEmbedder loads backbone metadata and initializes the ONNX Runtime
// environment. Any failure here is a LoadError and aborts the training run.
func NewONNXEmbedder(modelPath, metadataPath string) (*ONNXEmbedder, error) {
	raw, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, &LoadError{Path: metadataPath, Err: err}
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, &LoadError{Path: metadataPath, Err: fmt.Errorf("failed to parse metadata: %w", err)}
	}
	if err := metadata.validate(); err != nil {
		return nil, &LoadError{Path: metadataPath, Err: err}
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, &LoadError{Path: modelPath, Err: err}
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, &LoadError{Path: modelPath, Err: fmt.Errorf("failed to initialize ONNX environment: %w", err)}
		}
	}

	return &ONNXEmbedder{
		modelPath: modelPath,
		metadata:  metadata,
	}, nil
}

// Dim returns the embedding dimensionality of the backbone.
func (e *ONNXEmbedder) Dim() int {
	return e.metadata.EmbeddingDim
}

// Embed runs one forward pass over the whole batch. Sessions are created per
// call because the batch dimension is only known at run time.
func (e *ONNXEmbedder) Embed(images *tensor.Dense) (*tensor.Dense, error) {
	shape := images.Shape()
	if len(shape) != 4 || shape[3] != 3 {
		return nil, fmt.Errorf("expected [N, H, W, 3] images, got %v", shape)
	}
	n, height, width := shape[0], shape[1], shape[2]
	if height != e.metadata.ImageSize || width != e.metadata.ImageSize {
		return nil, fmt.Errorf("backbone expects %dx%d input, got %dx%d",
			e.metadata.ImageSize, e.metadata.ImageSize, height, width)
	}

	data, ok := images.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 image tensor, got %T", images.Data())
	}

	inputData := data
	var inputShape ort.Shape
	if e.metadata.Layout == "NCHW" {
		inputData = nhwcToNCHW(data, n, height, width)
		inputShape = ort.NewShape(int64(n), 3, int64(height), int64(width))
	} else {
		inputShape = ort.NewShape(int64(n), int64(height), int64(width), 3)
	}

	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := ort.NewShape(int64(n), int64(e.metadata.EmbeddingDim))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := ort.NewAdvancedSession(e.modelPath,
		[]string{e.metadata.InputName}, []string{e.metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		return nil, &LoadError{Path: e.modelPath, Err: fmt.Errorf("failed to create ONNX session: %w", err)}
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("backbone inference failed: %w", err)
	}

	features := make([]float32, n*e.metadata.EmbeddingDim)
	copy(features, outputTensor.GetData())

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, e.metadata.EmbeddingDim),
		tensor.WithBacking(features),
	), nil
}

// Close tears down the ONNX Runtime environment.
func (e *ONNXEmbedder) Close() {
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// nhwcToNCHW transposes a batch of HWC images into channel-first layout.
func nhwcToNCHW(data []float32, n, height, width int) []float32 {
	channels := 3
	out := make([]float32, len(data))
	imageSize := height * width * channels
	planeSize := height * width

	for i := 0; i < n; i++ {
		src := data[i*imageSize : (i+1)*imageSize]
		dst := out[i*imageSize : (i+1)*imageSize]
		for p := 0; p < planeSize; p++ {
			for c := 0; c < channels; c++ {
				dst[c*planeSize+p] = src[p*channels+c]
			}
		}
	}
	return out
}
