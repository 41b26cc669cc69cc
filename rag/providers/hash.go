package providers

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

func init() {
	RegisterEmbedder("hash", NewHashEmbedder)
}

// HashEmbedder is an offline embedder using the hashing trick: every lower
// cased word increments one bucket of a fixed size vector, which is then L2
// normalised. Texts sharing words land close to each other, which is enough
// for local runs and tests without a model server.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder. Option "dimension" defaults to 256.
func NewHashEmbedder(config map[string]interface{}) (Embedder, error) {
	dim := intOption(config, "dimension", 256)
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dimension: dim}, nil
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *HashEmbedder) GetDimension() (int, error) {
	return e.dimension, nil
}
