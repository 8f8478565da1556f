package logging

// ProgressSampler suppresses repetitive progress logs for a batch of known
// size, emitting only when completion crosses a percentage bucket.
type ProgressSampler struct {
	total      int
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler over total units that emits when
// the percent crosses bucket boundaries (default 25%).
func NewProgressSampler(total int, bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 25
	}
	return &ProgressSampler{total: total, bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether done completed units warrant a progress line.
// The final unit always logs.
func (s *ProgressSampler) ShouldLog(done int) bool {
	if s == nil || s.total <= 0 {
		return true
	}
	if done >= s.total {
		if s.lastBucket == int(100/s.bucketSize) {
			return false
		}
		s.lastBucket = int(100 / s.bucketSize)
		return true
	}
	bucket := int(s.Percent(done) / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Percent converts done into a completion percentage.
func (s *ProgressSampler) Percent(done int) float64 {
	if s == nil || s.total <= 0 {
		return 100
	}
	return float64(done) * 100 / float64(s.total)
}
