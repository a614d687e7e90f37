package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"
)

const hashingFeaturesPerToken = 3

// HashingModel is a self-contained feature extractor: a word tokenizer plus a
// hashed, non-negative token feature table. Each token maps to a few weighted
// buckets derived from sha256(token), so identical tokens always produce
// identical rows and unrelated tokens rarely overlap.
type HashingModel struct {
	dims int
}

func NewHashingModel(dims int) *HashingModel {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingModel{dims: dims}
}

// HashingLoader returns a Loader for the local hashing model.
func HashingLoader(dims int) Loader {
	return func(context.Context) (Model, error) {
		return NewHashingModel(dims), nil
	}
}

func (m *HashingModel) FeatureExtract(ctx context.Context, texts []string) ([][][]float32, error) {
	out := make([][][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tokens := Tokenize(text)
		rows := make([][]float32, 0, len(tokens))
		for _, tok := range tokens {
			rows = append(rows, m.tokenRow(tok))
		}
		out[i] = rows
	}
	return out, nil
}

func (m *HashingModel) tokenRow(token string) []float32 {
	row := make([]float32, m.dims)
	sum := sha256.Sum256([]byte(token))
	for k := 0; k < hashingFeaturesPerToken; k++ {
		off := k * 4
		pos := int(binary.BigEndian.Uint16(sum[off:off+2])) % m.dims
		weight := 0.5 + 0.5*float32(sum[off+2])/255
		row[pos] += weight
	}
	return row
}

// Tokenize lower-cases text and splits it into letter/digit runs. Text without
// any such run becomes a single token so that it still has features.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(tokens) == 0 {
		if trimmed := strings.TrimSpace(lower); trimmed != "" {
			return []string{trimmed}
		}
	}
	return tokens
}
