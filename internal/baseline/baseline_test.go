package baseline_test

import (
	"testing"

	"codeberg.org/mutker/vitalsd/internal/baseline"
	"codeberg.org/mutker/vitalsd/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snaps(pairs ...float64) []history.MetricSnapshot {
	out := make([]history.MetricSnapshot, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, history.MetricSnapshot{Value: pairs[i], Timestamp: int64(pairs[i+1])})
	}
	return out
}

func ts(v int64) *int64 { return &v }

func TestCompareWithoutBaseline(t *testing.T) {
	h := &history.PagePerformanceHistory{
		Page:    "/home",
		Metrics: map[string][]history.MetricSnapshot{"LCP": snaps(3000, 10, 2000, 20)},
	}

	_, ok := baseline.Compare(h, history.DefaultSignals)
	assert.False(t, ok)

	_, ok = baseline.Compare(nil, history.DefaultSignals)
	assert.False(t, ok)
}

func TestCompareSelectsEarliestAtOrAfterBaseline(t *testing.T) {
	h := &history.PagePerformanceHistory{
		Page: "/home",
		Metrics: map[string][]history.MetricSnapshot{
			// 100 is before the baseline, 3000 sits exactly on it
			"LCP": snaps(100, 90, 3000, 100, 2800, 150, 2400, 200),
			"CLS": snaps(0.3, 120, 0.32, 180),
			"FCP": snaps(1000, 50),
		},
		OverallScoreHistory: snaps(60, 110, 85, 210),
		BaselineTimestamp:   ts(100),
	}

	c, ok := baseline.Compare(h, history.DefaultSignals)
	require.True(t, ok)
	assert.Equal(t, "/home", c.Page)
	assert.Equal(t, int64(100), c.BaselineTimestamp)

	lcp := c.Metrics["LCP"]
	assert.Equal(t, 3000.0, lcp.Before.Value)
	assert.Equal(t, 2400.0, lcp.After.Value)
	assert.Equal(t, -600.0, lcp.Change)
	require.NotNil(t, lcp.ChangePercent)
	assert.Equal(t, -20.0, *lcp.ChangePercent)
	assert.True(t, lcp.Improved)
	assert.Equal(t, baseline.RatingGood, lcp.Rating)

	cls := c.Metrics["CLS"]
	assert.Equal(t, 0.3, cls.Before.Value)
	assert.True(t, cls.Regressed)
	assert.Equal(t, baseline.RatingPoor, cls.Rating)

	assert.NotContains(t, c.Metrics, "FCP", "no FCP snapshot after the baseline")
	assert.NotContains(t, c.Metrics, "INP")

	require.NotNil(t, c.OverallScore)
	assert.Equal(t, 25.0, c.OverallScore.Change)
	assert.True(t, c.OverallScore.Improved, "a higher score is an improvement")

	assert.Equal(t, baseline.VerdictMixed, c.Verdict)
}

func TestCompareSingleSnapshotIsUnchanged(t *testing.T) {
	h := &history.PagePerformanceHistory{
		Page:              "/home",
		Metrics:           map[string][]history.MetricSnapshot{"TTFB": snaps(400, 500)},
		BaselineTimestamp: ts(500),
	}

	c, ok := baseline.Compare(h, history.DefaultSignals)
	require.True(t, ok)
	d := c.Metrics["TTFB"]
	assert.Zero(t, d.Change)
	assert.False(t, d.Improved)
	assert.False(t, d.Regressed)
	assert.Nil(t, c.OverallScore)
	assert.Equal(t, baseline.VerdictUnchanged, c.Verdict)
}

func TestCompareZeroBefore(t *testing.T) {
	h := &history.PagePerformanceHistory{
		Metrics:           map[string][]history.MetricSnapshot{"CLS": snaps(0, 1, 0.02, 2)},
		BaselineTimestamp: ts(0),
	}

	c, ok := baseline.Compare(h, []string{"CLS"})
	require.True(t, ok)
	assert.Nil(t, c.Metrics["CLS"].ChangePercent)
	assert.Equal(t, baseline.VerdictRegressed, c.Verdict)
}

func TestRate(t *testing.T) {
	tests := []struct {
		signal string
		value  float64
		want   string
	}{
		{"LCP", 2500, baseline.RatingGood},
		{"LCP", 2501, baseline.RatingNeedsImprovement},
		{"LCP", 4001, baseline.RatingPoor},
		{"CLS", 0.1, baseline.RatingGood},
		{"CLS", 0.2, baseline.RatingNeedsImprovement},
		{"INP", 650, baseline.RatingPoor},
		{"TTFB", 900, baseline.RatingNeedsImprovement},
		{"FCP", 1200, baseline.RatingGood},
		{"FID", 10, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, baseline.Rate(tt.signal, tt.value), "%s=%v", tt.signal, tt.value)
	}
}
