package privacy

// Tier is a privacy-parameter setting picked from the true sample size
// before noise is applied. Smaller samples get a smaller epsilon (more
// noise) because each individual's marginal contribution is larger.
// The cutoffs are tunable calibration, not provably optimal.
type Tier struct {
	Label       string
	Epsilon     float64
	Sensitivity float64
	Delta       float64
}

const (
	tierHighCutoff     = 50
	tierStandardCutoff = 100
)

// TierForSampleSize maps the true consenting sample size to a tier:
// n<50 -> epsilon 0.1, 50<=n<100 -> epsilon 1.0, n>=100 -> epsilon 5.0.
func TierForSampleSize(n int) Tier {
	switch {
	case n < tierHighCutoff:
		return Tier{Label: "high_privacy", Epsilon: 0.1, Sensitivity: 1.0, Delta: 1e-5}
	case n < tierStandardCutoff:
		return Tier{Label: "standard_privacy", Epsilon: 1.0, Sensitivity: 1.0, Delta: 1e-5}
	default:
		return Tier{Label: "low_privacy", Epsilon: 5.0, Sensitivity: 1.0, Delta: 1e-5}
	}
}
