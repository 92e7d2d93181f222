// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package lwe implements the Learning-With-Errors primitives SimplePIR is
// built on: secret/error sampling and the Regev-style encryption used to
// build a query ciphertext. The public matrix A is supplied by the caller
// (internal/numeric's PRG materialises it).
//
// Grounded on henrycg-simplepir/pir/lhe.go (QueryLHE's
// secret/error/A·s+e+Δ·x sequence) and on
// GenerateSecureNoise/NewSecureRNG (ChaCha8-seeded continuous Gaussian
// sampling, reused here with integer rounding for the discrete error term).
package lwe

import (
	"crypto/rand"
	"fmt"
	"math"
	mathrand "math/rand/v2"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// DefaultSigma is the discrete Gaussian error standard deviation (spec.md
// §4.2: "σ ≈ 6.4").
const DefaultSigma = 6.4

// newSecureRNG seeds a ChaCha8 generator from crypto/rand, exactly as the
// teacher's NewSecureRNG does for its SAP noise ball.
func newSecureRNG() (*mathrand.Rand, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("lwe: seed secure rng: %w", err)
	}
	return mathrand.New(mathrand.NewChaCha8(seed)), nil
}

// GenSecret samples a fresh uniform secret s in Z_q^n for one query. Per
// spec.md §3 ("Client state"), LWE secrets are ephemeral: created on send,
// discarded after recovery.
func GenSecret(n uint64) ([]uint64, error) {
	rng, err := newSecureRNG()
	if err != nil {
		return nil, err
	}
	s := make([]uint64, n)
	for i := range s {
		s[i] = rng.Uint64()
	}
	return s, nil
}

// SampleError draws a length-N discrete Gaussian error vector with standard
// deviation sigma, by rounding a continuous Normal(0, sigma) draw to the
// nearest integer and reducing mod q. This mirrors
// GenerateNormalizedVector, which samples rng.NormFloat64() from the same
// ChaCha8 substrate for its (continuous) SAP noise.
func SampleError(n uint64, sigma float64) ([]uint64, error) {
	rng, err := newSecureRNG()
	if err != nil {
		return nil, err
	}
	e := make([]uint64, n)
	for i := range e {
		draw := rng.NormFloat64() * sigma
		rounded := int64(math.Round(draw))
		if rounded < 0 {
			e[i] = numeric.Modulus - uint64(-rounded)%numeric.Modulus
		} else {
			e[i] = uint64(rounded) % numeric.Modulus
		}
	}
	return e, nil
}

// Encrypt builds a one-hot-plaintext LWE ciphertext u = A·s + e + Δ·x mod q,
// where x is the one-hot indicator of index `target` among N coordinates
// (or, for a plaintext-probe query such as Tiptoe's embedding round, the
// caller-supplied `plaintext` vector directly — see EncryptVector).
// Mirrors henrycg-simplepir/pir/lhe.go QueryLHE: query := Mul(A, s);
// query.Add(err); arr.MulConst(Delta); query.Add(arr).
func Encrypt(a *numeric.Matrix, s []uint64, delta uint64, target uint64, nCols uint64, sigma float64) ([]uint64, error) {
	if target >= nCols {
		return nil, fmt.Errorf("lwe: target index %d out of range [0,%d)", target, nCols)
	}
	oneHot := make([]uint64, nCols)
	oneHot[target] = 1
	return EncryptVector(a, s, delta, oneHot, sigma)
}

// EncryptVector builds u = A·s + e + Δ·plaintext mod q for an arbitrary
// plaintext vector (used by Tiptoe's round 1, which encrypts a quantised
// embedding rather than a one-hot index — spec.md §4.6 "treat the embedding
// query as a plaintext probe, not an index").
func EncryptVector(a *numeric.Matrix, s []uint64, delta uint64, plaintext []uint64, sigma float64) ([]uint64, error) {
	if a.Rows() != uint64(len(plaintext)) {
		return nil, fmt.Errorf("lwe: A has %d rows but plaintext has length %d", a.Rows(), len(plaintext))
	}
	if a.Cols() != uint64(len(s)) {
		return nil, fmt.Errorf("lwe: A has %d cols but secret has length %d", a.Cols(), len(s))
	}

	e, err := SampleError(a.Rows(), sigma)
	if err != nil {
		return nil, err
	}

	query := a.MulVec(s)
	query = numeric.AddVec(query, e)
	scaled := numeric.ScaleVec(plaintext, delta)
	query = numeric.AddVec(query, scaled)
	return query, nil
}
