package training

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Adam implements adaptive moment estimation over a fixed set of parameter
// slices. Gradients are supplied per step; first and second moment estimates
// are kept per parameter element with bias correction.
type Adam struct {
	params [][]float32
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32

	m    [][]float32
	v    [][]float32
	step int
}

// NewAdam creates an optimizer over the given parameter slices. The slices
// are updated in place by Step.
func NewAdam(params [][]float32, lr, beta1, beta2, eps float32) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters to optimize")
	}
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", lr)
	}
	if beta1 <= 0 || beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in (0, 1), got %f", beta1)
	}
	if beta2 <= 0 || beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in (0, 1), got %f", beta2)
	}
	if eps <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %f", eps)
	}

	m := make([][]float32, len(params))
	v := make([][]float32, len(params))
	for i, p := range params {
		m[i] = make([]float32, len(p))
		v[i] = make([]float32, len(p))
	}

	return &Adam{
		params: params,
		lr:     lr,
		beta1:  beta1,
		beta2:  beta2,
		eps:    eps,
		m:      m,
		v:      v,
	}, nil
}

// Step applies one Adam update. grads must be shaped exactly like the
// parameter slices passed to NewAdam.
func (a *Adam) Step(grads [][]float32) error {
	if len(grads) != len(a.params) {
		return fmt.Errorf("got %d gradient slices, expected %d", len(grads), len(a.params))
	}

	a.step++
	bias1 := 1.0 - math32.Pow(a.beta1, float32(a.step))
	bias2 := 1.0 - math32.Pow(a.beta2, float32(a.step))

	for i, param := range a.params {
		grad := grads[i]
		if len(grad) != len(param) {
			return fmt.Errorf("gradient %d has %d values, expected %d", i, len(grad), len(param))
		}

		m := a.m[i]
		v := a.v[i]
		for j, g := range grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g

			mHat := m[j] / bias1
			vHat := v[j] / bias2
			param[j] -= a.lr * mHat / (math32.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// LR returns the current learning rate.
func (a *Adam) LR() float32 { return a.lr }

// SetLR changes the learning rate for subsequent steps.
func (a *Adam) SetLR(lr float32) { a.lr = lr }
