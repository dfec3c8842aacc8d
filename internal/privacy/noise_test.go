package privacy

import (
	"math"
	"math/rand"
	"testing"
)

func TestLaplaceNoiseIsUnbiased(t *testing.T) {
	engine := NewNoiseEngineWithSource(rand.NewSource(42))

	const trueValue = 0.5
	const samples = 200000

	for _, epsilon := range []float64{0.1, 1.0, 5.0} {
		sum := 0.0
		for i := 0; i < samples; i++ {
			sum += trueValue + engine.Laplace(1.0, epsilon)
		}
		mean := sum / samples
		// Standard error of the mean for Laplace(b) is b*sqrt(2/n).
		b := 1.0 / epsilon
		tolerance := 6 * b * math.Sqrt(2.0/samples)
		if math.Abs(mean-trueValue) > tolerance {
			t.Fatalf("epsilon=%v: mean of noised samples %v deviates from %v by more than %v", epsilon, mean, trueValue, tolerance)
		}
	}
}

func TestLaplaceScaleGrowsAsEpsilonShrinks(t *testing.T) {
	engine := NewNoiseEngineWithSource(rand.NewSource(7))

	const samples = 50000
	spread := func(epsilon float64) float64 {
		total := 0.0
		for i := 0; i < samples; i++ {
			total += math.Abs(engine.Laplace(1.0, epsilon))
		}
		return total / samples
	}

	tight := spread(5.0)
	loose := spread(0.1)
	if loose <= tight {
		t.Fatalf("expected more noise at epsilon=0.1 (%v) than at epsilon=5.0 (%v)", loose, tight)
	}
}

func TestGaussianNoiseRoughSigma(t *testing.T) {
	engine := NewNoiseEngineWithSource(rand.NewSource(11))

	const samples = 100000
	epsilon, delta := 1.0, 1e-5
	wantSigma := math.Sqrt(2*math.Log(1.25/delta)) / epsilon

	sumSq := 0.0
	for i := 0; i < samples; i++ {
		n := engine.Gaussian(1.0, epsilon, delta)
		sumSq += n * n
	}
	gotSigma := math.Sqrt(sumSq / samples)
	if math.Abs(gotSigma-wantSigma)/wantSigma > 0.05 {
		t.Fatalf("empirical sigma %v too far from expected %v", gotSigma, wantSigma)
	}
}

func TestNoiseIsZeroForInvalidBudget(t *testing.T) {
	engine := NewNoiseEngineWithSource(rand.NewSource(1))
	if n := engine.Laplace(1.0, 0); n != 0 {
		t.Fatalf("expected zero noise for epsilon=0, got %v", n)
	}
	if n := engine.Gaussian(1.0, 1.0, 0); n != 0 {
		t.Fatalf("expected zero noise for delta=0, got %v", n)
	}
}

func TestTierForSampleSize(t *testing.T) {
	cases := []struct {
		n           int
		wantEpsilon float64
	}{
		{1, 0.1},
		{49, 0.1},
		{50, 1.0},
		{99, 1.0},
		{100, 5.0},
		{5000, 5.0},
	}
	for _, tc := range cases {
		tier := TierForSampleSize(tc.n)
		if tier.Epsilon != tc.wantEpsilon {
			t.Fatalf("TierForSampleSize(%d).Epsilon=%v, want %v", tc.n, tier.Epsilon, tc.wantEpsilon)
		}
		if tier.Sensitivity != 1.0 {
			t.Fatalf("TierForSampleSize(%d).Sensitivity=%v, want 1.0", tc.n, tier.Sensitivity)
		}
	}
}

func TestClamp01(t *testing.T) {
	if got := Clamp01(-0.3); got != 0 {
		t.Fatalf("Clamp01(-0.3)=%v", got)
	}
	if got := Clamp01(1.7); got != 1 {
		t.Fatalf("Clamp01(1.7)=%v", got)
	}
	if got := Clamp01(0.42); got != 0.42 {
		t.Fatalf("Clamp01(0.42)=%v", got)
	}
}
