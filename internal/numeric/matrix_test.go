// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package numeric

import "testing"

func TestMatrixSetGetRoundTrip(t *testing.T) {
	m := NewMatrix(4, 4)
	m.Set(1, 2, 12345)
	if got := m.Get(1, 2); got != 12345 {
		t.Errorf("Get() = %d, want 12345", got)
	}
}

func TestMatrixGetPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on out-of-range Get")
		}
	}()
	m := NewMatrix(2, 2)
	m.Get(5, 0)
}

func TestMatrixMulVec(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 3)
	m.Set(1, 1, 4)

	got := m.MulVec([]uint64{1, 1})
	want := []uint64{3, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MulVec()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMatrixMulAssociativity(t *testing.T) {
	a := NewMatrix(2, 2)
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 3)
	a.Set(1, 1, 4)

	b := NewMatrix(2, 2)
	b.Set(0, 0, 5)
	b.Set(0, 1, 6)
	b.Set(1, 0, 7)
	b.Set(1, 1, 8)

	ab := a.Mul(b)
	v := []uint64{1, 0}
	abv := ab.MulVec(v)
	bv := b.MulVec(v)
	aBv := a.MulVec(bv)

	for i := range abv {
		if abv[i] != aBv[i] {
			t.Errorf("(AB)v[%d] = %d, want A(Bv)[%d] = %d", i, abv[i], i, aBv[i])
		}
	}
}

func TestAddSubVecInverse(t *testing.T) {
	a := []uint64{1, 2, Modulus - 1}
	b := []uint64{10, 20, 30}
	sum := AddVec(a, b)
	back := SubVec(sum, b)
	for i := range a {
		if back[i] != a[i] {
			t.Errorf("SubVec(AddVec(a,b),b)[%d] = %d, want %d", i, back[i], a[i])
		}
	}
}

func TestPRGDeterministic(t *testing.T) {
	var seed [SeedLen]byte
	for i := range seed {
		seed[i] = byte(i)
	}

	prg1, err := NewPRG(seed)
	if err != nil {
		t.Fatalf("NewPRG: %v", err)
	}
	prg2, err := NewPRG(seed)
	if err != nil {
		t.Fatalf("NewPRG: %v", err)
	}

	m1 := prg1.FillMatrix(8, 8)
	m2 := prg2.FillMatrix(8, 8)

	for i := uint64(0); i < 8; i++ {
		for j := uint64(0); j < 8; j++ {
			if m1.Get(i, j) != m2.Get(i, j) {
				t.Fatalf("PRG not deterministic at (%d,%d): %d != %d", i, j, m1.Get(i, j), m2.Get(i, j))
			}
		}
	}
}

func TestPRGDifferentSeedsDiffer(t *testing.T) {
	var seedA, seedB [SeedLen]byte
	seedB[0] = 1

	prgA, _ := NewPRG(seedA)
	prgB, _ := NewPRG(seedB)

	vA := prgA.FillVec(16)
	vB := prgB.FillVec(16)

	same := true
	for i := range vA {
		if vA[i] != vB[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different streams")
	}
}
