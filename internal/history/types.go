package history

// MetricSnapshot is a single observation of a signal or of the composite
// score. Timestamp is in Unix milliseconds.
type MetricSnapshot struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// PagePerformanceHistory holds the bounded per-signal history of one page.
type PagePerformanceHistory struct {
	Page                string                      `json:"page"`
	Metrics             map[string][]MetricSnapshot `json:"metrics"`
	OverallScoreHistory []MetricSnapshot            `json:"overallScoreHistory"`
	BaselineTimestamp   *int64                      `json:"baselineTimestamp,omitempty"`
}

// Document is the persisted mapping of page to history.
type Document map[string]*PagePerformanceHistory

// Latest returns the most recent snapshot of signal.
func (h *PagePerformanceHistory) Latest(signal string) (MetricSnapshot, bool) {
	seq := h.Metrics[signal]
	if len(seq) == 0 {
		return MetricSnapshot{}, false
	}
	return seq[len(seq)-1], true
}

func newPageHistory(page string) *PagePerformanceHistory {
	return &PagePerformanceHistory{
		Page:                page,
		Metrics:             make(map[string][]MetricSnapshot),
		OverallScoreHistory: []MetricSnapshot{},
	}
}

// appendBounded appends snap and drops the oldest entries beyond limit.
func appendBounded(seq []MetricSnapshot, snap MetricSnapshot, limit int) []MetricSnapshot {
	seq = append(seq, snap)
	if len(seq) > limit {
		seq = seq[len(seq)-limit:]
	}
	return seq
}
