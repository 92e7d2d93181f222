// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package numeric implements dense matrix/vector arithmetic over the
// ciphertext modulus q = 2^32, plus the deterministic PRG used to
// materialise the public LWE matrix A from a 32-byte seed.
package numeric

import "fmt"

// Modulus is the fixed ciphertext modulus q = 2^32 (spec: all server-side
// arithmetic is mod q). uint64 sums and products may wrap around 2^64 (an
// accumulated row sum, or a factor not yet reduced below 2^32); since q
// divides 2^64, the result after reduction mod q is unaffected.
const Modulus uint64 = 1 << 32

// reduce brings x back into [0, Modulus) by masking to the low 32 bits.
// q is a power of two, so reduction is a mask rather than a division.
func reduce(x uint64) uint64 {
	return x & (Modulus - 1)
}

// Matrix is a dense row-major matrix of residues mod Modulus.
type Matrix struct {
	rows uint64
	cols uint64
	data []uint64
}

// NewMatrix allocates a zeroed rows-by-cols matrix.
func NewMatrix(rows, cols uint64) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]uint64, rows*cols)}
}

func (m *Matrix) Rows() uint64 { return m.rows }
func (m *Matrix) Cols() uint64 { return m.cols }

// Get returns the residue at (i, j). Panics on out-of-range access, matching
// matrix.Matrix's Get/Set (programmer error, not a caller-facing error path).
func (m *Matrix) Get(i, j uint64) uint64 {
	if i >= m.rows || j >= m.cols {
		panic(fmt.Sprintf("numeric: index (%d,%d) out of bounds for %dx%d matrix", i, j, m.rows, m.cols))
	}
	return m.data[i*m.cols+j]
}

// Set stores val (reduced mod q) at (i, j).
func (m *Matrix) Set(i, j uint64, val uint64) {
	if i >= m.rows || j >= m.cols {
		panic(fmt.Sprintf("numeric: index (%d,%d) out of bounds for %dx%d matrix", i, j, m.rows, m.cols))
	}
	m.data[i*m.cols+j] = reduce(val)
}

// Copy returns a deep copy.
func (m *Matrix) Copy() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, data: make([]uint64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// Column returns a deep copy of column j as a length-rows vector.
func (m *Matrix) Column(j uint64) []uint64 {
	if j >= m.cols {
		panic(fmt.Sprintf("numeric: column %d out of bounds for %d cols", j, m.cols))
	}
	out := make([]uint64, m.rows)
	for i := uint64(0); i < m.rows; i++ {
		out[i] = m.data[i*m.cols+j]
	}
	return out
}

// Row returns a deep copy of row i as a length-cols vector.
func (m *Matrix) Row(i uint64) []uint64 {
	if i >= m.rows {
		panic(fmt.Sprintf("numeric: row %d out of bounds for %d rows", i, m.rows))
	}
	out := make([]uint64, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// SetColumn overwrites column j with vals (len(vals) must equal m.rows).
func (m *Matrix) SetColumn(j uint64, vals []uint64) {
	if j >= m.cols {
		panic(fmt.Sprintf("numeric: column %d out of bounds for %d cols", j, m.cols))
	}
	if uint64(len(vals)) != m.rows {
		panic("numeric: SetColumn length mismatch")
	}
	for i := uint64(0); i < m.rows; i++ {
		m.data[i*m.cols+j] = reduce(vals[i])
	}
}

// MulVec computes m * v mod q, where v has length m.cols.
func (m *Matrix) MulVec(v []uint64) []uint64 {
	if uint64(len(v)) != m.cols {
		panic(fmt.Sprintf("numeric: MulVec dimension mismatch: matrix cols %d, vector len %d", m.cols, len(v)))
	}
	out := make([]uint64, m.rows)
	for i := uint64(0); i < m.rows; i++ {
		var acc uint64
		base := i * m.cols
		for j := uint64(0); j < m.cols; j++ {
			acc += m.data[base+j] * v[j]
		}
		out[i] = reduce(acc)
	}
	return out
}

// Mul computes m * other mod q.
func (m *Matrix) Mul(other *Matrix) *Matrix {
	if m.cols != other.rows {
		panic(fmt.Sprintf("numeric: Mul dimension mismatch: %dx%d vs %dx%d", m.rows, m.cols, other.rows, other.cols))
	}
	out := NewMatrix(m.rows, other.cols)
	for i := uint64(0); i < m.rows; i++ {
		for k := uint64(0); k < m.cols; k++ {
			a := m.data[i*m.cols+k]
			if a == 0 {
				continue
			}
			obase := k * other.cols
			outBase := i * out.cols
			for j := uint64(0); j < other.cols; j++ {
				out.data[outBase+j] = reduce(out.data[outBase+j] + a*other.data[obase+j])
			}
		}
	}
	return out
}

// Transpose returns a new matrix with rows and columns swapped.
func (m *Matrix) Transpose() *Matrix {
	out := NewMatrix(m.cols, m.rows)
	for i := uint64(0); i < m.rows; i++ {
		for j := uint64(0); j < m.cols; j++ {
			out.data[j*out.cols+i] = m.data[i*m.cols+j]
		}
	}
	return out
}

// AddVec returns a+b mod q, element-wise.
func AddVec(a, b []uint64) []uint64 {
	if len(a) != len(b) {
		panic("numeric: AddVec length mismatch")
	}
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = reduce(a[i] + b[i])
	}
	return out
}

// SubVec returns a-b mod q, element-wise.
func SubVec(a, b []uint64) []uint64 {
	if len(a) != len(b) {
		panic("numeric: SubVec length mismatch")
	}
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = reduce(a[i] - b[i] + Modulus)
	}
	return out
}

// ScaleVec returns c*v mod q, element-wise.
func ScaleVec(v []uint64, c uint64) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = reduce(x * c)
	}
	return out
}
