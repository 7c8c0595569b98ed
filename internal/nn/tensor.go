// Package nn implements the small feed-forward network that scores embeddings.
//
// Activations are carried in pooled Tensors. Whoever creates a Tensor releases it;
// Sequential.Predict releases every intermediate before returning, on success and on error.
package nn

import (
	"sync"
	"sync/atomic"
)

var (
	bufPool = sync.Pool{New: func() any { return new([]float32) }}
	live    atomic.Int64
)

// Tensor is a dense float32 vector backed by a pooled buffer.
type Tensor struct {
	buf  *[]float32
	data []float32
}

// NewTensor returns a zeroed tensor of length n.
func NewTensor(n int) *Tensor {
	buf := bufPool.Get().(*[]float32)
	if cap(*buf) < n {
		*buf = make([]float32, n)
	}
	data := (*buf)[:n]
	clear(data)
	live.Add(1)
	return &Tensor{buf: buf, data: data}
}

// FromSlice copies v into a new tensor.
func FromSlice(v []float32) *Tensor {
	t := NewTensor(len(v))
	copy(t.data, v)
	return t
}

// Data returns the tensor's backing slice. It is invalid after Release.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Len returns the number of elements, or zero after Release.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Release returns the buffer to the pool. Calling it more than once is a no-op.
func (t *Tensor) Release() {
	if t == nil || t.buf == nil {
		return
	}
	bufPool.Put(t.buf)
	t.buf = nil
	t.data = nil
	live.Add(-1)
}

// LiveTensors reports how many tensors are currently unreleased in the process.
func LiveTensors() int64 {
	return live.Load()
}
