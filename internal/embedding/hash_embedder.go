package embedding

import (
	"context"
	"hash/fnv"

	"github.com/hyperjump/mailsift/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder using the hashing trick.
// Each term adds a signed unit to one bucket; the result is L2-normalized.
// The same text always yields the same vector.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder that produces vectors of the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed term vector for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		idx, sign := Bucket(term, e.dimensions)
		emb[idx] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// Bucket returns the vector index and sign a term contributes to.
func Bucket(term string, dimensions int) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(dimensions)), sign
}
