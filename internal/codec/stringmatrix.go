// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec implements the two database packing formats Tiptoe queries
// against: a length-prefixed string matrix for record text, and a quantised
// embedding matrix for the semantic-score round. Both map onto the square
// mod-p matrix internal/simplepir operates over.
package codec

import (
	"fmt"
	"unicode/utf8"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// cellsForLength returns the number of cells needed to pack l bytes, one
// byte per cell. A cell is a mod-p residue recovered through simplepir's
// round(noised, p, q) (internal/simplepir/engine.go), which only preserves
// values below p; packing more than a single byte per cell would have the
// recovered value collapse to x mod p and destroy all but its low bits. One
// byte per cell keeps every cell's value < 256 <= p-1 for every valid p
// (spec.md §4.4, matching original_source/src/encoding.rs's
// StringMatrix::new, which packs a single u8 per cell).
func cellsForLength(l int) int {
	return l
}

// StringMatrix packs an ordered list of text records into a square matrix,
// one record per column, so a single PIR column-fetch (spec.md §4.3
// recover_row) returns one whole record.
type StringMatrix struct {
	N       uint64
	Records *numeric.Matrix
}

// EncodeStringMatrix lays out records column-major: row 0 of column r holds
// the byte length L_r; rows 1..L_r hold the record's bytes, one byte per
// cell. The matrix side N = max(R, W), where W = 1 + max_r L_r, keeping the
// side square per the shared query/answer dimension invariant (spec.md §3).
func EncodeStringMatrix(records []string) (*StringMatrix, error) {
	r := uint64(len(records))
	w := uint64(1)
	for _, rec := range records {
		need := uint64(1 + cellsForLength(len(rec)))
		if need > w {
			w = need
		}
	}
	n := r
	if w > n {
		n = w
	}
	if n == 0 {
		n = 1
	}

	m := numeric.NewMatrix(n, n)
	for col, rec := range records {
		b := []byte(rec)
		m.Set(0, uint64(col), uint64(len(b)))
		for i, by := range b {
			m.Set(uint64(1+i), uint64(col), uint64(by))
		}
	}

	return &StringMatrix{N: n, Records: m}, nil
}

// DecodeColumn reverses EncodeStringMatrix's per-record layout given a
// recovered column vector (the output of simplepir.RecoverRow): row 0 is
// the byte length, the following L rows are the record's bytes, one per
// cell.
func DecodeColumn(column []uint64) (string, error) {
	if len(column) == 0 {
		return "", fmt.Errorf("codec: empty column")
	}
	l := column[0]
	nCells := cellsForLength(int(l))
	if 1+nCells > len(column) {
		return "", fmt.Errorf("codec: length prefix %d implies %d cells but column has only %d rows", l, nCells, len(column)-1)
	}

	buf := make([]byte, nCells)
	for i := 0; i < nCells; i++ {
		v := column[1+i]
		if v > 255 {
			return "", fmt.Errorf("codec: cell %d value %d exceeds a single byte", i, v)
		}
		buf[i] = byte(v)
	}

	if !utf8.Valid(buf) {
		return "", fmt.Errorf("codec: decoded record is not valid UTF-8")
	}
	return string(buf), nil
}
