// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package simplepir

import (
	"crypto/rand"
	"fmt"

	"github.com/lpassig/tiptoe-pir/internal/lwe"
	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// Params fixes the shape of a SimplePIR instance: database side length,
// LWE secret dimension, plaintext modulus (as a power of two) and the
// error distribution's standard deviation.
type Params struct {
	// N is the side length of the square database matrix D (the codecs in
	// internal/codec size it as max(R, W): record count vs. column height).
	N uint64
	// SecretDim is the LWE secret dimension n.
	SecretDim uint64
	// ModPower is m_p, where the plaintext modulus p = 2^ModPower. Valid
	// range per spec.md §3 is m_p in [17, 20].
	ModPower uint64
	// Sigma is the discrete Gaussian error standard deviation.
	Sigma float64
	// Compressed gates the AnswerCompressed code path (spec.md §4.3
	// precondition: only usable when P() < 2^21).
	Compressed bool
}

// P returns the plaintext modulus p = 2^ModPower.
func (p Params) P() uint64 { return uint64(1) << p.ModPower }

// Delta returns Δ = q/p, the LWE scaling factor. Valid only when p divides
// q exactly, which holds for every p = 2^k with k <= 32.
func (p Params) Delta() uint64 { return numeric.Modulus / p.P() }

// Validate checks Params against the preconditions spec.md §3 places on
// m_p and, when compression is requested, the p < 2^21 compression
// precondition.
func (p Params) Validate() error {
	if p.N == 0 || p.SecretDim == 0 {
		return newError(ErrKindParameter, "Params.Validate", fmt.Errorf("N and SecretDim must be positive"))
	}
	if p.ModPower < 17 || p.ModPower > 20 {
		return newError(ErrKindParameter, "Params.Validate", fmt.Errorf("m_p=%d outside valid range [17,20]", p.ModPower))
	}
	if p.Compressed && p.P() >= 1<<21 {
		return newError(ErrKindParameter, "Params.Validate", fmt.Errorf("compression requires p < 2^21, got p=%d", p.P()))
	}
	return nil
}

// ServerHint is the public material a server publishes so clients can
// regenerate the LWE matrix A without downloading it: a single 32-byte PRG
// seed (spec.md §3: "serverHint ... regenerates the same public matrix A").
type ServerHint struct {
	Seed [numeric.SeedLen]byte
}

// ClientState holds the per-query secret material a client must retain
// between sending a query and recovering its answer. It is ephemeral:
// generated fresh by Query, consumed once by RecoverCell/RecoverRow, and
// discarded (spec.md §3 "Client state").
type ClientState struct {
	Secret []uint64
	P      uint64
	Target uint64
}

// regenerateA rebuilds the public matrix A (N rows, SecretDim cols) from a
// server hint's seed, identically on every call — this is what lets the
// server avoid ever transmitting A itself.
func regenerateA(hint ServerHint, params Params) (*numeric.Matrix, error) {
	prg, err := numeric.NewPRG(hint.Seed)
	if err != nil {
		return nil, newError(ErrKindIO, "regenerateA", err)
	}
	return prg.FillMatrix(params.N, params.SecretDim), nil
}

// Setup derives a fresh public matrix A from a random seed, computes the
// client hint H = D·A mod q, and returns both (serverHint, clientHint).
// Mirrors henrycg-simplepir's one-time hint computation and
// vectorBackend's pattern of deriving public material once and caching it alongside the
// data (vectorBackend.cachedMatrix).
func Setup(d *numeric.Matrix, params Params) (ServerHint, *numeric.Matrix, error) {
	if err := params.Validate(); err != nil {
		return ServerHint{}, nil, err
	}
	if d.Rows() != params.N || d.Cols() != params.N {
		return ServerHint{}, nil, newError(ErrKindParameter, "Setup",
			fmt.Errorf("database is %dx%d, want %dx%d", d.Rows(), d.Cols(), params.N, params.N))
	}

	var hint ServerHint
	if _, err := rand.Read(hint.Seed[:]); err != nil {
		return ServerHint{}, nil, newError(ErrKindIO, "Setup", err)
	}

	a, err := regenerateA(hint, params)
	if err != nil {
		return ServerHint{}, nil, err
	}
	clientHint := d.Mul(a)
	return hint, clientHint, nil
}

// Query builds a one-hot LWE query ciphertext u targeting column `target`
// of the database (so D·u selects that column), along with the ClientState needed to recover the answer.
// Mirrors henrycg-simplepir/pir/lhe.go Client.QueryLHE.
func Query(target uint64, params Params, hint ServerHint) (*ClientState, []uint64, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	if target >= params.N {
		return nil, nil, newError(ErrKindParameter, "Query",
			fmt.Errorf("target %d out of range [0,%d)", target, params.N))
	}

	a, err := regenerateA(hint, params)
	if err != nil {
		return nil, nil, err
	}
	s, err := lwe.GenSecret(params.SecretDim)
	if err != nil {
		return nil, nil, newError(ErrKindIO, "Query", err)
	}
	u, err := lwe.Encrypt(a, s, params.Delta(), target, params.N, params.Sigma)
	if err != nil {
		return nil, nil, newError(ErrKindParameter, "Query", err)
	}

	return &ClientState{Secret: s, P: params.P(), Target: target}, u, nil
}

// QueryVector builds an LWE query ciphertext encrypting an arbitrary
// plaintext probe vector rather than a one-hot index — the shape Tiptoe's
// embedding round needs (spec.md §4.6: the first round queries with a
// quantised embedding, not a record index).
func QueryVector(plaintext []uint64, params Params, hint ServerHint) (*ClientState, []uint64, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}
	a, err := regenerateA(hint, params)
	if err != nil {
		return nil, nil, err
	}
	s, err := lwe.GenSecret(params.SecretDim)
	if err != nil {
		return nil, nil, newError(ErrKindIO, "QueryVector", err)
	}
	u, err := lwe.EncryptVector(a, s, params.Delta(), plaintext, params.Sigma)
	if err != nil {
		return nil, nil, newError(ErrKindParameter, "QueryVector", err)
	}
	return &ClientState{Secret: s, P: params.P()}, u, nil
}

// Answer computes a = D·u mod q, the server's entire response to a query:
// one matrix-vector product over the whole database, independent of which
// row the client actually wants (the privacy property PIR exists for).
func Answer(d *numeric.Matrix, u []uint64) ([]uint64, error) {
	if d.Cols() != uint64(len(u)) {
		return nil, newError(ErrKindParameter, "Answer",
			fmt.Errorf("database has %d cols but query has length %d", d.Cols(), len(u)))
	}
	return d.MulVec(u), nil
}

// AnswerCompressed computes the same answer as Answer, gated behind the
// params.Compressed / p<2^21 precondition. It enforces the gate and the
// precondition check but packs nothing: the returned vector is exactly
// Answer's D·u, with the same length and size.
func AnswerCompressed(d *numeric.Matrix, u []uint64, params Params) ([]uint64, error) {
	if !params.Compressed {
		return nil, newError(ErrKindParameter, "AnswerCompressed", fmt.Errorf("params.Compressed is false"))
	}
	if params.P() >= 1<<21 {
		return nil, newError(ErrKindParameter, "AnswerCompressed",
			fmt.Errorf("compression requires p < 2^21, got p=%d", params.P()))
	}
	return Answer(d, u)
}

// round computes round(y * p / q) with half-up rounding, the integer form
// of spec.md §4.4's recovery formula.
func round(y, p, q uint64) uint64 {
	num := y * p
	return ((num + q/2) / q) % p
}

func dotMod(a, b []uint64) uint64 {
	var acc uint64
	for i := range a {
		acc += a[i] * b[i]
	}
	return acc & (numeric.Modulus - 1)
}

// RecoverCell recovers a single plaintext cell from one entry of the
// answer vector, given the corresponding row of the client hint H. Computes
// noised = aCell - H_row·s mod q, then rounds noised*p/q to the nearest
// integer mod p (spec.md §4.4).
func RecoverCell(cs *ClientState, hintRow []uint64, aCell uint64) (uint64, error) {
	if len(hintRow) != len(cs.Secret) {
		return 0, newError(ErrKindParameter, "RecoverCell",
			fmt.Errorf("hint row has length %d but secret has length %d", len(hintRow), len(cs.Secret)))
	}
	inner := dotMod(hintRow, cs.Secret)
	noised := (aCell - inner + numeric.Modulus) & (numeric.Modulus - 1)
	return round(noised, cs.P, numeric.Modulus), nil
}

// RecoverRow recovers every cell of a, one per row of the client hint
// matrix, in one pass — used when decoding a full packed record (spec.md
// §4.5's string matrix, where one logical record spans several rows).
func RecoverRow(cs *ClientState, clientHint *numeric.Matrix, a []uint64) ([]uint64, error) {
	if clientHint.Rows() != uint64(len(a)) {
		return nil, newError(ErrKindParameter, "RecoverRow",
			fmt.Errorf("client hint has %d rows but answer has length %d", clientHint.Rows(), len(a)))
	}
	out := make([]uint64, len(a))
	for i := range a {
		cell, err := RecoverCell(cs, clientHint.Row(uint64(i)), a[i])
		if err != nil {
			return nil, err
		}
		out[i] = cell
	}
	return out, nil
}
