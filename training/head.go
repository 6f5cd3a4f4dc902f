// Package training implements the trainable classifier head that sits on top
// of frozen backbone embeddings, the optimizer that fits it, and the observers
// that watch a run.
package training

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
)

// ClassifierHead is a two-layer feed-forward network: input → hidden (ReLU) →
// output (softmax). A fresh head is created for every training run; heads are
// never persisted.
type ClassifierHead struct {
	inputDim   int
	hiddenDim  int
	numClasses int

	// Row-major weight matrices and bias vectors.
	w1 []float32 // [inputDim, hiddenDim]
	b1 []float32 // [hiddenDim]
	w2 []float32 // [hiddenDim, numClasses]
	b2 []float32 // [numClasses]
}

// NewClassifierHead creates a head with Xavier-initialized weights and zero
// biases. rng must not be nil; the caller owns seeding.
func NewClassifierHead(inputDim, hiddenDim, numClasses int, rng *rand.Rand) (*ClassifierHead, error) {
	if inputDim <= 0 || hiddenDim <= 0 || numClasses <= 0 {
		return nil, fmt.Errorf("head dimensions must be positive, got %d/%d/%d", inputDim, hiddenDim, numClasses)
	}
	if rng == nil {
		return nil, fmt.Errorf("rng must not be nil")
	}

	head := &ClassifierHead{
		inputDim:   inputDim,
		hiddenDim:  hiddenDim,
		numClasses: numClasses,
		w1:         make([]float32, inputDim*hiddenDim),
		b1:         make([]float32, hiddenDim),
		w2:         make([]float32, hiddenDim*numClasses),
		b2:         make([]float32, numClasses),
	}

	xavierFill(head.w1, inputDim, hiddenDim, rng)
	xavierFill(head.w2, hiddenDim, numClasses, rng)

	return head, nil
}

// xavierFill draws uniform values in [-limit, limit], limit = sqrt(6/(in+out)).
func xavierFill(weights []float32, fanIn, fanOut int, rng *rand.Rand) {
	limit := math32.Sqrt(6.0 / float32(fanIn+fanOut))
	for i := range weights {
		weights[i] = 2*rng.Float32()*limit - limit
	}
}

// forwardState holds the intermediate activations of one forward pass, kept
// for the backward pass.
type forwardState struct {
	hidden []float32 // [n, hiddenDim], post-ReLU
	probs  []float32 // [n, numClasses], softmax rows
}

// Forward computes hidden activations and class probabilities for a batch of
// n input rows. x must hold n*inputDim values.
func (h *ClassifierHead) Forward(x []float32, n int) (*forwardState, error) {
	if len(x) != n*h.inputDim {
		return nil, fmt.Errorf("input has %d values, expected %d", len(x), n*h.inputDim)
	}

	hidden := make([]float32, n*h.hiddenDim)
	matMulAddBias(x, h.w1, h.b1, hidden, n, h.inputDim, h.hiddenDim)
	for i, v := range hidden {
		if v < 0 {
			hidden[i] = 0
		}
	}

	logits := make([]float32, n*h.numClasses)
	matMulAddBias(hidden, h.w2, h.b2, logits, n, h.hiddenDim, h.numClasses)

	for row := 0; row < n; row++ {
		softmaxRow(logits[row*h.numClasses : (row+1)*h.numClasses])
	}

	return &forwardState{hidden: hidden, probs: logits}, nil
}

// gradients holds parameter gradients in the same layout as the head.
type gradients struct {
	w1, b1, w2, b2 []float32
}

// Backward computes gradients of the mean categorical cross-entropy over the
// batch. targets is the one-hot label matrix, row-aligned with the inputs of
// the forward pass that produced state.
func (h *ClassifierHead) Backward(x, targets []float32, n int, state *forwardState) *gradients {
	grads := &gradients{
		w1: make([]float32, len(h.w1)),
		b1: make([]float32, len(h.b1)),
		w2: make([]float32, len(h.w2)),
		b2: make([]float32, len(h.b2)),
	}

	// Softmax with cross-entropy: dLogits = (probs - targets) / n.
	dLogits := make([]float32, n*h.numClasses)
	invN := 1.0 / float32(n)
	for i := range dLogits {
		dLogits[i] = (state.probs[i] - targets[i]) * invN
	}

	// dW2 = hiddenᵀ · dLogits, db2 = column sums of dLogits.
	matMulAT(state.hidden, dLogits, grads.w2, n, h.hiddenDim, h.numClasses)
	colSums(dLogits, grads.b2, n, h.numClasses)

	// dHidden = dLogits · W2ᵀ, gated by the ReLU mask.
	dHidden := make([]float32, n*h.hiddenDim)
	matMulBT(dLogits, h.w2, dHidden, n, h.numClasses, h.hiddenDim)
	for i, v := range state.hidden {
		if v <= 0 {
			dHidden[i] = 0
		}
	}

	matMulAT(x, dHidden, grads.w1, n, h.inputDim, h.hiddenDim)
	colSums(dHidden, grads.b1, n, h.hiddenDim)

	return grads
}

// Loss computes the mean categorical cross-entropy of the forward pass
// against one-hot targets.
func (h *ClassifierHead) Loss(state *forwardState, targets []float32, n int) float64 {
	const eps = 1e-7
	var loss float64
	for row := 0; row < n; row++ {
		base := row * h.numClasses
		for c := 0; c < h.numClasses; c++ {
			if targets[base+c] == 1.0 {
				loss -= float64(math32.Log(state.probs[base+c] + eps))
			}
		}
	}
	return loss / float64(n)
}

// Accuracy computes the fraction of rows whose argmax prediction matches the
// one-hot target.
func (h *ClassifierHead) Accuracy(state *forwardState, targets []float32, n int) float64 {
	if n == 0 {
		return 0
	}
	correct := 0
	for row := 0; row < n; row++ {
		base := row * h.numClasses
		if argmax(state.probs[base:base+h.numClasses]) == argmax(targets[base:base+h.numClasses]) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// parameters returns the trainable tensors in a fixed order matching
// (*gradients).flat.
func (h *ClassifierHead) parameters() [][]float32 {
	return [][]float32{h.w1, h.b1, h.w2, h.b2}
}

func (g *gradients) flat() [][]float32 {
	return [][]float32{g.w1, g.b1, g.w2, g.b2}
}

// softmaxRow rewrites logits into a probability distribution, subtracting the
// row max for numerical stability.
func softmaxRow(logits []float32) {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	var sum float32
	for i, v := range logits {
		e := math32.Exp(v - max)
		logits[i] = e
		sum += e
	}
	for i := range logits {
		logits[i] /= sum
	}
}

func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// matMulAddBias computes out = a·b + bias for a [n,k] times b [k,m], with the
// bias vector broadcast over rows.
func matMulAddBias(a, b, bias, out []float32, n, k, m int) {
	for row := 0; row < n; row++ {
		outRow := out[row*m : (row+1)*m]
		copy(outRow, bias)
		aRow := a[row*k : (row+1)*k]
		for i, av := range aRow {
			if av == 0 {
				continue
			}
			bRow := b[i*m : (i+1)*m]
			for j, bv := range bRow {
				outRow[j] += av * bv
			}
		}
	}
}

// matMulAT computes out = aᵀ·b for a [n,k] and b [n,m], producing [k,m].
func matMulAT(a, b, out []float32, n, k, m int) {
	for row := 0; row < n; row++ {
		aRow := a[row*k : (row+1)*k]
		bRow := b[row*m : (row+1)*m]
		for i, av := range aRow {
			if av == 0 {
				continue
			}
			outRow := out[i*m : (i+1)*m]
			for j, bv := range bRow {
				outRow[j] += av * bv
			}
		}
	}
}

// matMulBT computes out = a·bᵀ for a [n,k] and b [m,k], producing [n,m].
func matMulBT(a, b, out []float32, n, k, m int) {
	for row := 0; row < n; row++ {
		aRow := a[row*k : (row+1)*k]
		outRow := out[row*m : (row+1)*m]
		for j := 0; j < m; j++ {
			bRow := b[j*k : (j+1)*k]
			var sum float32
			for i, av := range aRow {
				sum += av * bRow[i]
			}
			outRow[j] = sum
		}
	}
}

// colSums accumulates the column sums of a [n,m] matrix into out [m].
func colSums(a, out []float32, n, m int) {
	for row := 0; row < n; row++ {
		aRow := a[row*m : (row+1)*m]
		for j, v := range aRow {
			out[j] += v
		}
	}
}
