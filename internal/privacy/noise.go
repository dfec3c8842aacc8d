// Package privacy implements the differential-privacy noise mechanisms
// used to perturb published benchmark statistics.
package privacy

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// NoiseEngine draws calibrated noise from the Laplace and Gaussian
// mechanisms. Safe for concurrent use; the random source is injectable
// so statistical tests can seed it.
type NoiseEngine struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewNoiseEngine() *NoiseEngine {
	return NewNoiseEngineWithSource(rand.NewSource(time.Now().UnixNano()))
}

func NewNoiseEngineWithSource(src rand.Source) *NoiseEngine {
	return &NoiseEngine{rnd: rand.New(src)}
}

// Laplace draws noise with scale b = sensitivity/epsilon via the
/// inverse CDF: u uniform in (-0.5, 0.5), noise = -b*sign(u)*ln(1-2|u|).
// Used for sums, means, and percentiles.
func (e *NoiseEngine) Laplace(sensitivity, epsilon float64) float64 {
	if epsilon <= 0 {
		return 0
	}
	b := sensitivity / epsilon
	u := e.uniform() - 0.5
	return -b * sign(u) * math.Log(1-2*math.Abs(u))
}

// Gaussian draws noise with sigma = sensitivity*sqrt(2*ln(1.25/delta))/epsilon
// using Box-Muller.
func (e *NoiseEngine) Gaussian(sensitivity, epsilon, delta float64) float64 {
	if epsilon <= 0 || delta <= 0 || delta >= 1 {
		return 0
	}
	sigma := sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon
	u1 := e.uniform()
	u2 := e.uniform()
	// Box-Muller; guard against log(0).
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return sigma * z
}

func (e *NoiseEngine) uniform() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Float64()
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

// Clamp01 pulls a noised [0,1]-domain statistic back into range.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
