// Package baseline compares a page's current performance against the
// snapshots recorded right after its operator-set baseline.
package baseline

import (
	"math"

	"codeberg.org/mutker/vitalsd/internal/history"
)

const (
	VerdictImproved  = "improved"
	VerdictRegressed = "regressed"
	VerdictMixed     = "mixed"
	VerdictUnchanged = "unchanged"
)

// Delta is the before/after comparison of one series.
type Delta struct {
	Before        history.MetricSnapshot `json:"before"`
	After         history.MetricSnapshot `json:"after"`
	Change        float64                `json:"change"`
	ChangePercent *float64               `json:"changePercent,omitempty"`
	Improved      bool                   `json:"improved"`
	Regressed     bool                   `json:"regressed"`
	Rating        string                 `json:"rating,omitempty"`
}

// Comparison holds every series that has data at or after the baseline.
type Comparison struct {
	Page              string           `json:"page"`
	BaselineTimestamp int64            `json:"baselineTimestamp"`
	Metrics           map[string]Delta `json:"metrics"`
	OverallScore      *Delta           `json:"overallScore,omitempty"`
	Verdict           string           `json:"verdict"`
}

// Compare computes deltas for signals of h. It returns false when h has no
// baseline; there is no implicit default baseline.
//
// Each series is compared independently: before is the earliest snapshot
// at or after the baseline in that series, after is the series' latest
// snapshot. Series with nothing at or after the baseline are left out.
func Compare(h *history.PagePerformanceHistory, signals []string) (Comparison, bool) {
	if h == nil || h.BaselineTimestamp == nil {
		return Comparison{}, false
	}
	since := *h.BaselineTimestamp

	c := Comparison{
		Page:              h.Page,
		BaselineTimestamp: since,
		Metrics:           make(map[string]Delta),
	}

	for _, name := range signals {
		before, after, ok := window(h.Metrics[name], since)
		if !ok {
			continue
		}
		d := newDelta(before, after, false)
		d.Rating = Rate(name, after.Value)
		c.Metrics[name] = d
	}

	if before, after, ok := window(h.OverallScoreHistory, since); ok {
		d := newDelta(before, after, true)
		c.OverallScore = &d
	}

	c.Verdict = verdict(c)
	return c, true
}

// window returns the first snapshot at or after since and the last one.
func window(seq []history.MetricSnapshot, since int64) (history.MetricSnapshot, history.MetricSnapshot, bool) {
	for i, s := range seq {
		if s.Timestamp >= since {
			return seq[i], seq[len(seq)-1], true
		}
	}
	return history.MetricSnapshot{}, history.MetricSnapshot{}, false
}

func newDelta(before, after history.MetricSnapshot, higherIsBetter bool) Delta {
	change := after.Value - before.Value
	d := Delta{
		Before: before,
		After:  after,
		Change: change,
	}
	if before.Value != 0 {
		pct := math.Round(change/before.Value*1000) / 10
		d.ChangePercent = &pct
	}

	if higherIsBetter {
		change = -change
	}
	d.Improved = change < 0
	d.Regressed = change > 0
	return d
}

func verdict(c Comparison) string {
	improved, regressed := 0, 0
	count := func(d Delta) {
		switch {
		case d.Improved:
			improved++
		case d.Regressed:
			regressed++
		}
	}
	for _, d := range c.Metrics {
		count(d)
	}
	if c.OverallScore != nil {
		count(*c.OverallScore)
	}

	switch {
	case improved > 0 && regressed == 0:
		return VerdictImproved
	case regressed > 0 && improved == 0:
		return VerdictRegressed
	case improved > 0 && regressed > 0:
		return VerdictMixed
	default:
		return VerdictUnchanged
	}
}
