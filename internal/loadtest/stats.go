package loadtest

import (
	"sort"
)

// Stats holds runtime statistics for a load test
type Stats struct {
	TotalRequests     int
	CompletedRequests int
	ErrorCount        int // Network errors (timeouts, TLS failures, refused connections)
	SuccessCount      int
	TTFBs             []int64 // Time-to-first-byte samples for percentile calculation
	TotalTTFBMs       int64
	MinTTFBMs         int64
	MaxTTFBMs         int64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		TTFBs:     make([]int64, 0, 1000),
		MinTTFBMs: -1,
		MaxTTFBMs: -1,
	}
}

// AddResult adds a request result to the statistics. Failed requests
// carry no meaningful TTFB, so only successful ones feed the
// latency distribution.
func (s *Stats) AddResult(ttfbMs int64, isNetworkError bool) {
	s.CompletedRequests++

	if isNetworkError {
		s.ErrorCount++
		return
	}

	s.SuccessCount++
	s.TotalTTFBMs += ttfbMs
	s.TTFBs = append(s.TTFBs, ttfbMs)

	if s.MinTTFBMs == -1 || ttfbMs < s.MinTTFBMs {
		s.MinTTFBMs = ttfbMs
	}
	if s.MaxTTFBMs == -1 || ttfbMs > s.MaxTTFBMs {
		s.MaxTTFBMs = ttfbMs
	}
}

// AvgTTFBMs returns the average time-to-first-byte in milliseconds
func (s *Stats) AvgTTFBMs() float64 {
	if s.SuccessCount == 0 {
		return 0
	}
	return float64(s.TotalTTFBMs) / float64(s.SuccessCount)
}

// Min returns the minimum TTFB, or 0 if no successful results
func (s *Stats) Min() int64 {
	if s.MinTTFBMs == -1 {
		return 0
	}
	return s.MinTTFBMs
}

// Max returns the maximum TTFB, or 0 if no successful results
func (s *Stats) Max() int64 {
	if s.MaxTTFBMs == -1 {
		return 0
	}
	return s.MaxTTFBMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *Stats) Percentile(p float64) int64 {
	if len(s.TTFBs) == 0 {
		return 0
	}

	// Make a copy and sort
	sorted := make([]int64, len(s.TTFBs))
	copy(sorted, s.TTFBs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *Stats) P50() int64 {
	return s.Percentile(50)
}

// P95 returns the 95th percentile
func (s *Stats) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *Stats) P99() int64 {
	return s.Percentile(99)
}

// SuccessRate returns the success rate as a percentage
func (s *Stats) SuccessRate() float64 {
	if s.CompletedRequests == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.CompletedRequests) * 100
}

// ErrorRate returns the network error rate as a percentage
func (s *Stats) ErrorRate() float64 {
	if s.CompletedRequests == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.CompletedRequests) * 100
}

// Progress returns the completion progress as a percentage
func (s *Stats) Progress() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.CompletedRequests) / float64(s.TotalRequests) * 100
}
