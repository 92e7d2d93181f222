// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
	"github.com/lpassig/tiptoe-pir/internal/simplepir"
)

// flexUint64 decodes either a JSON numeric token or a decimal string into a
// uint64, and always marshals back as a numeric token — spec.md §6:
// "Integers are decimal strings or numeric JSON tokens; implementations
// MUST accept both and MUST emit one consistently."
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("httpapi: decimal-string uint64 %q: %w", s, err)
		}
		*f = flexUint64(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexUint64(v)
	return nil
}

func (f flexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(f))
}

func flexSliceToUint64(in []flexUint64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}

func hexSeed(hint simplepir.ServerHint) string {
	return hex.EncodeToString(hint.Seed[:])
}

func seedFromHex(s string) ([numeric.SeedLen]byte, error) {
	var out [numeric.SeedLen]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("httpapi: decode hex seed: %w", err)
	}
	if len(b) != numeric.SeedLen {
		return out, fmt.Errorf("httpapi: seed has %d bytes, want %d", len(b), numeric.SeedLen)
	}
	copy(out[:], b)
	return out, nil
}
