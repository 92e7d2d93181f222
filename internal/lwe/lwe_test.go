// Copyright 2024 The vault-plugin-secrets-vector-dpe Authors
// SPDX-License-Identifier: Apache-2.0

package lwe

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/lpassig/tiptoe-pir/internal/numeric"
)

// signedResidue interprets a mod-q residue as the signed integer in
// (-q/2, q/2] it represents, so distribution statistics (mean, variance)
// are computed on the quantity the error term actually models rather than
// on its wraparound encoding.
func signedResidue(v uint64) float64 {
	if v > numeric.Modulus/2 {
		return float64(v) - float64(numeric.Modulus)
	}
	return float64(v)
}

func TestGenSecretLength(t *testing.T) {
	s, err := GenSecret(32)
	if err != nil {
		t.Fatalf("GenSecret: %v", err)
	}
	if len(s) != 32 {
		t.Errorf("len(s) = %d, want 32", len(s))
	}
}

func TestSampleErrorWithinBudget(t *testing.T) {
	// Statistical sanity check, not a hard bound: with sigma=6.4 and N=1000
	// draws, overwhelmingly few should round to a magnitude above 10*sigma.
	const n = 1000
	e, err := SampleError(n, DefaultSigma)
	if err != nil {
		t.Fatalf("SampleError: %v", err)
	}
	outliers := 0
	for _, v := range e {
		signed := int64(v)
		if v > numeric.Modulus/2 {
			signed = int64(v) - int64(numeric.Modulus)
		}
		if math.Abs(float64(signed)) > 10*DefaultSigma {
			outliers++
		}
	}
	if outliers > n/100 {
		t.Errorf("too many error-sample outliers: %d/%d", outliers, n)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var seed [numeric.SeedLen]byte
	prg, err := numeric.NewPRG(seed)
	if err != nil {
		t.Fatalf("NewPRG: %v", err)
	}

	const nRows, nCols = 16, 8
	a := prg.FillMatrix(nRows, nCols)

	s, err := GenSecret(nCols)
	if err != nil {
		t.Fatalf("GenSecret: %v", err)
	}

	const p = uint64(1 << 17)
	delta := numeric.Modulus / p

	const target = 3
	u, err := Encrypt(a, s, delta, target, nRows, 1.0) // tiny sigma to keep the test deterministic-ish
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	as := a.MulVec(s)
	noised := numeric.SubVec(u, as)
	// noised[target] should be close to delta; everywhere else close to 0.
	for i := uint64(0); i < nRows; i++ {
		want := uint64(0)
		if i == target {
			want = delta
		}
		diff := int64(noised[i]) - int64(want)
		if diff > int64(delta)/4 || diff < -int64(delta)/4 {
			t.Errorf("index %d: noised=%d, want near %d", i, noised[i], want)
		}
	}
}

// TestErrorDistributionMeanAndVarianceMatchSigma samples a large error
// vector and checks its sample mean/variance against the discrete
// Gaussian's theoretical mean 0 and variance sigma^2 (spec.md §8: the
// decryption-noise statistical property). Tolerances are generous multiples
// of the expected standard error, since this is a probabilistic check, not
// an exact equality.
func TestErrorDistributionMeanAndVarianceMatchSigma(t *testing.T) {
	const n = 50000
	const sigma = DefaultSigma

	e, err := SampleError(n, sigma)
	if err != nil {
		t.Fatalf("SampleError: %v", err)
	}
	samples := make([]float64, n)
	for i, v := range e {
		samples[i] = signedResidue(v)
	}

	mean := stat.Mean(samples, nil)
	variance := stat.Variance(samples, nil)

	// Standard error of the mean is sigma/sqrt(n); allow 6 standard errors
	// of slack to keep this from flaking under legitimate sampling noise.
	meanTolerance := 6 * sigma / math.Sqrt(n)
	if math.Abs(mean) > meanTolerance {
		t.Errorf("sample mean = %f, want within %f of 0", mean, meanTolerance)
	}

	// Variance of the sample variance is roughly 2*sigma^4/n; allow a wide
	// band (30%) since this is a coarse self-test, not a precision estimator.
	wantVariance := sigma * sigma
	if math.Abs(variance-wantVariance) > 0.3*wantVariance {
		t.Errorf("sample variance = %f, want within 30%% of %f", variance, wantVariance)
	}
}

// TestQueryCiphertextMarginalsLookUniform checks spec.md §8's
// indistinguishability property: with A fixed and s fresh and uniform each
// time, a single coordinate of the query ciphertext u should be
// statistically indistinguishable from uniform over Z_q. This buckets many
// independent draws of u[0] into equal-width bins and runs a chi-square
// goodness-of-fit test against the uniform expectation.
func TestQueryCiphertextMarginalsLookUniform(t *testing.T) {
	var seed [numeric.SeedLen]byte
	prg, err := numeric.NewPRG(seed)
	if err != nil {
		t.Fatalf("NewPRG: %v", err)
	}

	const nRows, nCols = 4, 8
	a := prg.FillMatrix(nRows, nCols)

	const p = uint64(1 << 17)
	delta := numeric.Modulus / p

	const bins = 16
	const trials = 8000
	counts := make([]float64, bins)
	binWidth := float64(numeric.Modulus) / bins

	for i := 0; i < trials; i++ {
		s, err := GenSecret(nCols)
		if err != nil {
			t.Fatalf("GenSecret: %v", err)
		}
		u, err := Encrypt(a, s, delta, 0, nRows, DefaultSigma)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		bin := int(float64(u[0]) / binWidth)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
	}

	expect := make([]float64, bins)
	for i := range expect {
		expect[i] = float64(trials) / bins
	}

	chiSq := stat.ChiSquare(counts, expect)

	// Critical value for a chi-square goodness-of-fit test with bins-1 = 15
	// degrees of freedom at alpha = 0.001 (standard table value), chosen
	// generously to avoid flaking on a true-uniform source.
	const criticalValue999 = 37.70
	if chiSq > criticalValue999 {
		t.Errorf("chi-square statistic = %f, exceeds critical value %f at dof=%d; marginal looks non-uniform", chiSq, criticalValue999, bins-1)
	}
}
