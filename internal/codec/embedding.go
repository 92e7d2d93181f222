// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// Scale is the fixed quantisation factor: q_i = round(v_i * Scale) mod p.
// Kept constant rather than derived from p or d_emb, unlike the scale
// constants in the source this was distilled from, which drift with
// dimension and rotation count — see SPEC_FULL.md §9.
const Scale = 100

// EmbeddingDim is the expected dimensionality of a sentence embedding
// (spec.md §4.5: d_emb = 384).
const EmbeddingDim = 384

// QuantizeEmbedding maps a real embedding vector into Z_p: each coordinate
// is scaled, rounded to the nearest integer, and reduced mod p with
// two's-complement semantics for negative values (spec.md §4.5). The
// vector is defensively L2-normalised first if it isn't already unit norm,
// mirroring internal/plugin/encrypt.go's "don't trust the caller's preconditions"
// posture around vector inputs.
func QuantizeEmbedding(v []float64, p uint64) ([]uint64, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("codec: empty embedding vector")
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("codec: embedding contains NaN/Inf")
		}
	}

	norm := floats.Norm(v, 2)
	normalised := v
	if norm > 1e-9 && math.Abs(norm-1) > 1e-6 {
		normalised = make([]float64, len(v))
		copy(normalised, v)
		floats.Scale(1/norm, normalised)
	}

	out := make([]uint64, len(normalised))
	for i, x := range normalised {
		scaled := math.Round(x * Scale)
		out[i] = reduceSigned(int64(scaled), p)
	}
	return out, nil
}

// reduceSigned reduces a signed integer into [0, p) using two's-complement
// wraparound for negative values, the convention spec.md §4.5 specifies.
func reduceSigned(x int64, p uint64) uint64 {
	m := int64(p)
	r := x % m
	if r < 0 {
		r += m
	}
	return uint64(r)
}

// ScoreToSigned reinterprets a recovered mod-p residue as a signed integer
// centered on zero, the form round-1 scores need to be in before an
// argmax comparison (a raw residue near p-1 represents a small negative
// dot product, not a huge positive one).
func ScoreToSigned(x uint64, p uint64) int64 {
	if x > p/2 {
		return int64(x) - int64(p)
	}
	return int64(x)
}

// EmbeddingMatrix packs an ordered list of embeddings into a square matrix,
// one record per column, embedding coordinate per row — the layout
// internal/simplepir's A matrix convention (plaintext probe query against
// D_emb^T) expects (spec.md §4.5, §4.6).
type EmbeddingMatrix struct {
	N uint64
	D *numeric.Matrix
}

// EncodeEmbeddingMatrix quantises and places embeddings column-major: row =
// coordinate, column = record index, height = max(d_emb, R), padded to a
// square side N.
func EncodeEmbeddingMatrix(embeddings [][]float64, p uint64) (*EmbeddingMatrix, error) {
	r := uint64(len(embeddings))
	h := uint64(EmbeddingDim)
	for _, e := range embeddings {
		if uint64(len(e)) > h {
			h = uint64(len(e))
		}
	}
	n := r
	if h > n {
		n = h
	}
	if n == 0 {
		n = 1
	}

	m := numeric.NewMatrix(n, n)
	for col, e := range embeddings {
		q, err := QuantizeEmbedding(e, p)
		if err != nil {
			return nil, fmt.Errorf("codec: quantise record %d: %w", col, err)
		}
		for row, val := range q {
			m.Set(uint64(row), uint64(col), val)
		}
	}
	return &EmbeddingMatrix{N: n, D: m}, nil
}

// CoerceEmbeddingInput accepts the same family of loosely-typed inputs the
// teacher's parseVector does — a plain []float64, a []interface{} of
// numbers (the shape encoding/json produces for an untyped slice), a JSON
// array string, or a []string of numeric literals — and returns a strict
// []float64 or an error. Grounded on internal/plugin/encrypt.go's
// parseVector, generalised from a single concrete caller type to Tiptoe's
// JSON-over-HTTP query body.
func CoerceEmbeddingInput(raw interface{}) ([]float64, error) {
	switch v := raw.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, item := range v {
			f, ok := item.(float64)
			if !ok {
				return nil, fmt.Errorf("codec: element %d is not numeric (got %T)", i, item)
			}
			out[i] = f
		}
		return out, nil
	case string:
		var out []float64
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("codec: embedding string is not a JSON number array: %w", err)
		}
		return out, nil
	case []string:
		out := make([]float64, len(v))
		for i, s := range v {
			var f float64
			if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
				return nil, fmt.Errorf("codec: element %d (%q) is not numeric: %w", i, s, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unsupported embedding input type %T", raw)
	}
}
