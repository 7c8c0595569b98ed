package nn

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
)

// Spam network dimensions.
const (
	InputDim    = 512
	Hidden1     = 64
	Hidden2     = 32
	DropoutRate = 0.2
)

// LayerWeights holds one dense layer's parameters: W is [in][out], B is [out].
type LayerWeights struct {
	W [][]float32 `json:"w"`
	B []float32   `json:"b"`
}

// Weights holds the parameters of the three dense layers of the spam network, in order.
type Weights struct {
	Layers []LayerWeights `json:"layers"`
}

var spamShapes = [][2]int{{InputDim, Hidden1}, {Hidden1, Hidden2}, {Hidden2, 1}}

// ZeroWeights returns all-zero weights shaped for the spam network.
func ZeroWeights() *Weights {
	w := &Weights{Layers: make([]LayerWeights, len(spamShapes))}
	for i, s := range spamShapes {
		w.Layers[i] = LayerWeights{W: matrix(s[0], s[1]), B: make([]float32, s[1])}
	}
	return w
}

// DemoWeights returns standard-normal weight matrices and zero biases drawn from a PRNG seeded
// with seed. They are placeholders with the right shapes, not trained values; the same seed
// always produces the same weights.
func DemoWeights(seed uint64) *Weights {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	w := ZeroWeights()
	for _, l := range w.Layers {
		for _, row := range l.W {
			for j := range row {
				row[j] = float32(rng.NormFloat64())
			}
		}
	}
	return w
}

// LoadWeights reads weights from a JSON file written by SaveWeights.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	return &w, nil
}

// SaveWeights writes w to path as JSON.
func SaveWeights(path string, w *Weights) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	return nil
}

// NewSpamNet builds Dense(512→64,ReLU) → Dropout(0.2) → Dense(64→32,ReLU) → Dropout(0.2) →
// Dense(32→1,Sigmoid) from w. Parameters are copied, so w may be reused or discarded.
func NewSpamNet(w *Weights) (*Sequential, error) {
	if w == nil || len(w.Layers) != len(spamShapes) {
		n := 0
		if w != nil {
			n = len(w.Layers)
		}
		return nil, fmt.Errorf("%w: spam network needs %d dense layers, got %d", ErrShape, len(spamShapes), n)
	}
	acts := []Activation{ReLU, ReLU, Sigmoid}
	dense := make([]*Dense, len(spamShapes))
	for i, lw := range w.Layers {
		d, err := NewDense(lw.W, lw.B, acts[i])
		if err != nil {
			return nil, fmt.Errorf("dense layer %d: %w", i, err)
		}
		dense[i] = d
	}
	m, err := NewSequential(InputDim,
		dense[0],
		Dropout{Rate: DropoutRate},
		dense[1],
		Dropout{Rate: DropoutRate},
		dense[2],
	)
	if err != nil {
		return nil, err
	}
	if m.OutputWidth() != 1 {
		return nil, fmt.Errorf("%w: spam network output width %d, want 1", ErrShape, m.OutputWidth())
	}
	return m, nil
}

func matrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}
