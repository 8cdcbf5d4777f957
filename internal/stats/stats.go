package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds aggregated session outcomes. Counters are safe for
// concurrent use.
type Stats struct {
	Sessions uint64
	Success  uint64
	Fail     uint64

	// Sum of successful load times, for an exact mean.
	loadTimeSumMs uint64

	// Load times of successful sessions (milliseconds).
	LoadTime *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		LoadTime: NewSafeHistogram(),
	}
}

// Add records one session outcome. Load time only counts for successes.
func (s *Stats) Add(success bool, loadTime time.Duration) {
	atomic.AddUint64(&s.Sessions, 1)
	if !success {
		atomic.AddUint64(&s.Fail, 1)
		return
	}
	atomic.AddUint64(&s.Success, 1)

	ms := loadTime.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	atomic.AddUint64(&s.loadTimeSumMs, uint64(ms))
	s.LoadTime.RecordValue(ms)
}

// SuccessRate returns the percentage of successful sessions, 0 when empty.
func (s *Stats) SuccessRate() float64 {
	total := atomic.LoadUint64(&s.Sessions)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Success)) / float64(total) * 100
}

// MeanLoadTimeMs is the exact mean over successful sessions, 0 when none.
func (s *Stats) MeanLoadTimeMs() float64 {
	ok := atomic.LoadUint64(&s.Success)
	if ok == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.loadTimeSumMs)) / float64(ok)
}

func (s *Stats) GetP50LoadTime() int64 {
	return s.LoadTime.ValueAtQuantile(50)
}

func (s *Stats) GetP90LoadTime() int64 {
	return s.LoadTime.ValueAtQuantile(90)
}

func (s *Stats) GetP99LoadTime() int64 {
	return s.LoadTime.ValueAtQuantile(99)
}
