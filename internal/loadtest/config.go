package loadtest

import (
	"fmt"
	"net/url"
	"time"

	"github.com/studiowebux/probecli/internal/types"
)

// Config represents a load test configuration
type Config struct {
	URL               string
	CACertPath        string
	BearerToken       string
	RatePerSec        int    // Requests launched per one-second tick (default: 20)
	DurationSec       int    // Wall-clock duration of the scheduling loop (default: 60)
	RequestTimeoutSec int    // Timeout for individual requests (default: 10s)
	MaxInFlight       int    // Cap on concurrent requests (default: 2x rate)
	LogPath           string // Results log file (default: response-times.log)
	TruncateLog       bool   // Truncate the results log instead of appending
}

// Run represents a load test run record
type Run struct {
	ID                     int64
	URL                    string
	RatePerSec             int
	DurationSec            int
	StartedAt              time.Time
	CompletedAt            *time.Time
	Status                 string // "running", "completed", "cancelled"
	TotalRequestsSent      int
	TotalRequestsCompleted int
	TotalErrors            int
	AvgTTFBMs              float64
	MinTTFBMs              int64
	MaxTTFBMs              int64
	P50TTFBMs              int64
	P95TTFBMs              int64
	P99TTFBMs              int64
}

// Sample represents a single request sample in a load test
type Sample struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	ElapsedMs    int64
	StatusCode   int
	TTFBMs       int64
	ErrorMessage string
}

// Validate validates the load test configuration
func (c *Config) Validate() error {
	if c.URL == "" {
		return types.NewUsageError("target URL is required")
	}
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return types.NewConfigurationError("invalid target URL: %s", c.URL)
	}
	if c.RatePerSec <= 0 {
		return types.NewUsageError("rate must be greater than 0")
	}
	if c.RatePerSec > 10000 {
		return types.NewUsageError("rate cannot exceed 10,000 requests per second")
	}
	if c.DurationSec <= 0 {
		return types.NewUsageError("duration must be greater than 0")
	}
	if c.RequestTimeoutSec < 0 {
		return types.NewUsageError("request timeout cannot be negative")
	}
	if c.MaxInFlight < 0 {
		return types.NewUsageError("max in-flight requests cannot be negative")
	}
	if c.LogPath == "" {
		return types.NewUsageError("results log path is required")
	}
	return nil
}

// GetDuration returns the scheduling-loop duration as time.Duration
func (c *Config) GetDuration() time.Duration {
	return time.Duration(c.DurationSec) * time.Second
}

// GetRequestTimeout returns the request timeout as time.Duration
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeoutSec == 0 {
		return 10 * time.Second // Default 10 seconds
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// GetMaxInFlight returns the in-flight request cap. With no explicit
// cap configured, requests from one tick may overlap with the next, so
// the pool is sized to twice the per-second rate.
func (c *Config) GetMaxInFlight() int {
	if c.MaxInFlight == 0 {
		return c.RatePerSec * 2
	}
	return c.MaxInFlight
}

// TotalPlanned returns the number of requests the scheduler will launch.
func (c *Config) TotalPlanned() int {
	return c.RatePerSec * c.DurationSec
}

// IsRunning returns true if the run is currently in progress
func (r *Run) IsRunning() bool {
	return r.Status == "running"
}

// IsCompleted returns true if the run has finished
func (r *Run) IsCompleted() bool {
	return r.Status == "completed" || r.Status == "cancelled"
}

// String formats a run for list output.
func (r *Run) String() string {
	completed := "-"
	if r.CompletedAt != nil {
		completed = r.CompletedAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("#%d %s %s rate=%d/s duration=%ds sent=%d completed=%d errors=%d avg=%.1fms p95=%dms (%s .. %s)",
		r.ID, r.Status, r.URL, r.RatePerSec, r.DurationSec,
		r.TotalRequestsSent, r.TotalRequestsCompleted, r.TotalErrors,
		r.AvgTTFBMs, r.P95TTFBMs, r.StartedAt.Format(time.RFC3339), completed)
}
