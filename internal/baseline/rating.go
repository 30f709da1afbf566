package baseline

const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

type threshold struct {
	good float64 // at or below is good
	poor float64 // above is poor
}

// Web Vitals thresholds; CLS is unitless, the rest are milliseconds.
var thresholds = map[string]threshold{
	"CLS":  {good: 0.1, poor: 0.25},
	"FCP":  {good: 1800, poor: 3000},
	"INP":  {good: 200, poor: 500},
	"LCP":  {good: 2500, poor: 4000},
	"TTFB": {good: 800, poor: 1800},
}

// Rate classifies value for signal. Signals without thresholds rate "".
func Rate(signal string, value float64) string {
	t, ok := thresholds[signal]
	if !ok {
		return ""
	}
	switch {
	case value <= t.good:
		return RatingGood
	case value <= t.poor:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}
