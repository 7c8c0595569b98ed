package nn

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

var (
	// ErrShape reports layer widths that do not chain.
	ErrShape = errors.New("shape mismatch")
	// ErrNonFinite reports a NaN or infinite value in the network output.
	ErrNonFinite = errors.New("non-finite activation")
	// ErrDisposed reports use of a model after Dispose.
	ErrDisposed = errors.New("model disposed")
)

// Sequential applies its layers in order. It is safe for concurrent Predict calls;
// parameters are never written after construction except by Dispose.
type Sequential struct {
	inputWidth  int
	outputWidth int
	layers      []Layer

	mu       sync.RWMutex
	disposed bool
}

// NewSequential validates that each layer's output width feeds the next layer's input.
func NewSequential(inputWidth int, layers ...Layer) (*Sequential, error) {
	if inputWidth <= 0 {
		return nil, fmt.Errorf("%w: input width %d", ErrShape, inputWidth)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: model has no layers", ErrShape)
	}
	width := inputWidth
	for i, l := range layers {
		next, err := l.OutputWidth(width)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		width = next
	}
	return &Sequential{inputWidth: inputWidth, outputWidth: width, layers: layers}, nil
}

// InputWidth returns the width the model accepts.
func (m *Sequential) InputWidth() int { return m.inputWidth }

// OutputWidth returns the width the model produces.
func (m *Sequential) OutputWidth() int { return m.outputWidth }

// Forward runs x through every layer and returns the output tensor, which the caller must release.
// x itself is left to the caller. Intermediates are released before Forward returns.
func (m *Sequential) Forward(x *Tensor) (*Tensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disposed {
		return nil, ErrDisposed
	}
	if x.Len() != m.inputWidth {
		return nil, fmt.Errorf("%w: model expects input width %d, got %d", ErrShape, m.inputWidth, x.Len())
	}
	cur := x
	for i, l := range m.layers {
		next, err := l.Forward(cur)
		if err != nil {
			if cur != x {
				cur.Release()
			}
			return nil, fmt.Errorf("layer %d %s: %w", i, l, err)
		}
		if cur != x && next != cur {
			cur.Release()
		}
		cur = next
	}
	if cur == x {
		// Only pass-through layers; hand back a tensor the caller may release.
		cur = FromSlice(x.Data())
	}
	return cur, nil
}

// Predict returns the single output value for input vector v.
// The model must have an output width of 1.
func (m *Sequential) Predict(v []float32) (float64, error) {
	if m.outputWidth != 1 {
		return 0, fmt.Errorf("%w: Predict needs output width 1, model has %d", ErrShape, m.outputWidth)
	}
	in := FromSlice(v)
	defer in.Release()

	out, err := m.Forward(in)
	if err != nil {
		return 0, err
	}
	defer out.Release()

	p := float64(out.Data()[0])
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, ErrNonFinite
	}
	return p, nil
}

// Dispose releases all layer parameters. Further calls are no-ops.
func (m *Sequential) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	for _, l := range m.layers {
		l.Release()
	}
	m.disposed = true
}

// ParamCount returns the number of weights and biases.
func (m *Sequential) ParamCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, l := range m.layers {
		if d, ok := l.(*Dense); ok {
			n += len(d.W) + len(d.B)
		}
	}
	return n
}

// String describes the layer stack, e.g. "dense(512→64,relu) → dropout(0.2) → ...".
func (m *Sequential) String() string {
	parts := make([]string, len(m.layers))
	for i, l := range m.layers {
		parts[i] = l.String()
	}
	return strings.Join(parts, " → ")
}
