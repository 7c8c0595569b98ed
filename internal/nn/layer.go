package nn

import (
	"fmt"

	"github.com/hyperjump/mailsift/pkg/utils"
)

// Activation is the nonlinearity applied after a dense layer's affine transform.
type Activation int

const (
	Linear Activation = iota
	ReLU
	Sigmoid
)

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case Sigmoid:
		return "sigmoid"
	default:
		return "linear"
	}
}

func (a Activation) apply(x float32) float32 {
	switch a {
	case ReLU:
		if x < 0 {
			return 0
		}
		return x
	case Sigmoid:
		return float32(utils.Sigmoid(float64(x)))
	default:
		return x
	}
}

// Layer is one step of a Sequential model.
type Layer interface {
	// OutputWidth returns the width this layer produces for an input of width in.
	OutputWidth(in int) (int, error)
	// Forward returns a new tensor, or x itself for pass-through layers. x is not released.
	Forward(x *Tensor) (*Tensor, error)
	// Release drops the layer's parameters.
	Release()
	String() string
}

// Dense computes act(x·W + b). W is stored row-major with shape [In][Out].
type Dense struct {
	In, Out int
	W       []float32
	B       []float32
	Act     Activation
}

// NewDense builds a dense layer from a [in][out] weight matrix and an [out] bias.
func NewDense(w [][]float32, b []float32, act Activation) (*Dense, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("%w: dense weight matrix is empty", ErrShape)
	}
	in, out := len(w), len(w[0])
	if out == 0 {
		return nil, fmt.Errorf("%w: dense weight matrix has zero columns", ErrShape)
	}
	if len(b) != out {
		return nil, fmt.Errorf("%w: bias length %d, want %d", ErrShape, len(b), out)
	}
	flat := make([]float32, 0, in*out)
	for i, row := range w {
		if len(row) != out {
			return nil, fmt.Errorf("%w: weight row %d has %d columns, want %d", ErrShape, i, len(row), out)
		}
		flat = append(flat, row...)
	}
	bias := make([]float32, out)
	copy(bias, b)
	return &Dense{In: in, Out: out, W: flat, B: bias, Act: act}, nil
}

// OutputWidth implements Layer.
func (d *Dense) OutputWidth(in int) (int, error) {
	if in != d.In {
		return 0, fmt.Errorf("%w: %s expects input width %d, got %d", ErrShape, d, d.In, in)
	}
	return d.Out, nil
}

// Forward implements Layer.
func (d *Dense) Forward(x *Tensor) (*Tensor, error) {
	if d.W == nil {
		return nil, ErrDisposed
	}
	if x.Len() != d.In {
		return nil, fmt.Errorf("%w: %s got input width %d", ErrShape, d, x.Len())
	}
	out := NewTensor(d.Out)
	y := out.Data()
	copy(y, d.B)
	for i, xi := range x.Data() {
		if xi == 0 {
			continue
		}
		row := d.W[i*d.Out : (i+1)*d.Out]
		for j, w := range row {
			y[j] += xi * w
		}
	}
	for j := range y {
		y[j] = d.Act.apply(y[j])
	}
	return out, nil
}

// Release implements Layer.
func (d *Dense) Release() {
	d.W = nil
	d.B = nil
}

func (d *Dense) String() string {
	return fmt.Sprintf("dense(%d→%d,%s)", d.In, d.Out, d.Act)
}

// Dropout is the identity at inference; Rate is kept for model description only.
type Dropout struct {
	Rate float64
}

// OutputWidth implements Layer.
func (d Dropout) OutputWidth(in int) (int, error) {
	return in, nil
}

// Forward implements Layer.
func (d Dropout) Forward(x *Tensor) (*Tensor, error) {
	return x, nil
}

// Release implements Layer.
func (d Dropout) Release() {}

func (d Dropout) String() string {
	return fmt.Sprintf("dropout(%g)", d.Rate)
}
