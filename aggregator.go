package rollcall

// DefaultPromotionThreshold is the number of consecutive semi-positive
// frames (counted from the second frame of the run) credited as one positive.
const DefaultPromotionThreshold = 17

// UserMetrics is the accumulated attendance state of one participant.
type UserMetrics struct {
	Positive        int
	Negative        int
	SemiPositive    int
	PreviousLabel   Label
	RunLength       int
	FramesProcessed int
	FramesSkipped   int
}

// Aggregator folds the ordered frame labels of a single user into
// session counters. Isolated semi-positive frames are treated as noise;
// a sustained run of them is promoted to a positive credit.
// An Aggregator is not safe for concurrent use.
type Aggregator struct {
	threshold int
	metrics   UserMetrics
}

// NewAggregator returns an aggregator promoting semi-positive runs of the given length.
// A non-positive threshold falls back to DefaultPromotionThreshold.
func NewAggregator(threshold int) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultPromotionThreshold
	}
	return &Aggregator{threshold: threshold}
}

// Observe consumes the label of the next frame. A semi-positive is only
// counted when it follows another one, so a run counts from its second frame.
func (a *Aggregator) Observe(l Label) {
	m := &a.metrics

	switch {
	case l == SemiPositive && m.PreviousLabel == SemiPositive:
		m.RunLength++
		m.SemiPositive++
	case l == Positive:
		m.Positive++
	case l == Negative:
		m.Negative++
	}
	if l != SemiPositive {
		m.RunLength = 0
	}

	if m.RunLength >= a.threshold {
		m.Positive++
		m.RunLength = 0
	}

	m.PreviousLabel = l
	m.FramesProcessed++
}

// Skip records a frame that could not be classified and was left out.
func (a *Aggregator) Skip() {
	a.metrics.FramesSkipped++
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() UserMetrics {
	return a.metrics
}
