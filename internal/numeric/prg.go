// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package numeric

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// SeedLen is the width of a public PRG seed in bytes (256-bit, AES-256 key
// material after expansion).
const SeedLen = 32

// PRG is a deterministic, re-derivable pseudorandom generator over Z_q,
// seeded once from a public 32-byte seed. It generalises
// utils.CryptoSource (a one-shot rand.Source64 over an AES-CTR keystream)
// into a re-derivable generator: the same seed always yields the same
// stream, so a server can hand out `serverHint` (the seed) instead of the
// public matrix A itself, and any party can regenerate A on demand.
type PRG struct {
	mu     sync.Mutex
	stream cipher.Stream
}

// NewPRG derives an AES-256 key from seed via BLAKE2b-256 (so the raw seed
// bytes are never used directly as key material, unlike
// utils.CryptoSource which takes the seed as the AES key verbatim) and returns a
// PRG whose output is a deterministic function of seed alone.
func NewPRG(seed [SeedLen]byte) (*PRG, error) {
	key := blake2b.Sum256(seed[:])
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("numeric: derive PRG cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	return &PRG{stream: cipher.NewCTR(block, iv)}, nil
}

// next returns the next 8 bytes of keystream as a uint64.
func (p *PRG) next() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf [8]byte
	p.stream.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// Uint64Mod returns the next keystream word reduced mod q.
func (p *PRG) Uint64Mod() uint64 {
	return reduce(p.next())
}

// FillMatrix materialises a rows-by-cols matrix of uniform residues mod q,
// consuming the PRG stream in row-major order. Used to regenerate the
// public LWE matrix A = expand(serverHint) (spec.md §3, §4.3 setup).
func (p *PRG) FillMatrix(rows, cols uint64) *Matrix {
	out := NewMatrix(rows, cols)
	for i := range out.data {
		out.data[i] = p.Uint64Mod()
	}
	return out
}

// FillVec materialises a length-n vector of uniform residues mod q.
func (p *PRG) FillVec(n uint64) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = p.Uint64Mod()
	}
	return out
}
