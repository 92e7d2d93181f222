// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package simplepir

import (
	"fmt"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// SelfTest runs one full Setup/Query/Answer/Recover round trip against a
// small synthetic database and confirms the recovered cell matches what
// was written, returning a descriptive error on any mismatch. Exposed so a
// server can validate its own parameters at startup (spec.md §10
// supplemented feature: surface an operational self-check rather than
// trusting Setup blindly) without depending on the tiptoe or httpapi
// packages.
func SelfTest(params Params) error {
	if err := params.Validate(); err != nil {
		return newError(ErrKindParameter, "SelfTest", err)
	}

	d := numeric.NewMatrix(params.N, params.N)
	prg, err := numeric.NewPRG([numeric.SeedLen]byte{1, 2, 3})
	if err != nil {
		return newError(ErrKindIO, "SelfTest", err)
	}
	p := params.P()
	for i := uint64(0); i < params.N; i++ {
		for j := uint64(0); j < params.N; j++ {
			d.Set(i, j, prg.Uint64Mod()%p)
		}
	}

	hint, clientHint, err := Setup(d, params)
	if err != nil {
		return newError(ErrKindIO, "SelfTest", err)
	}

	target := params.N / 2
	cs, u, err := Query(target, params, hint)
	if err != nil {
		return newError(ErrKindParameter, "SelfTest", err)
	}

	a, err := Answer(d, u)
	if err != nil {
		return newError(ErrKindIO, "SelfTest", err)
	}

	row, err := RecoverRow(cs, clientHint, a)
	if err != nil {
		return newError(ErrKindDecryptGarble, "SelfTest", err)
	}

	want := d.Column(target)
	for i := range want {
		if row[i] != want[i] {
			return newError(ErrKindDecryptGarble, "SelfTest",
				fmt.Errorf("row %d: recovered %d, want %d", i, row[i], want[i]))
		}
	}
	return nil
}
