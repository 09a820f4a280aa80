package loadtest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/probecli/internal/types"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second
)

// RequestResult represents the result of a single request execution
type RequestResult struct {
	SequenceNum int
	StatusCode  int
	TTFB        time.Duration
	ElapsedMs   int64
	Err         error
	Timestamp   time.Time
}

// Executor drives a rate-limited load test: a one-second ticker loop
// launches RatePerSec requests per tick onto a bounded worker pool for
// DurationSec ticks, then waits for every in-flight request to finish.
type Executor struct {
	config       *Config
	manager      *Manager
	log          *ResultLog
	run          *Run
	stats        *Stats
	httpClient   *http.Client
	caWarning    error
	testStart    time.Time
	resultChan   chan *RequestResult
	collectDone  chan struct{}
	statsMu      sync.Mutex
	requestsSent int
	samplesBuf   []*Sample
	bufferSize   int
}

// NewExecutor creates a new load test executor
func NewExecutor(config *Config, manager *Manager, log *ResultLog) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// An unreadable CA bundle is surfaced as a warning, not a fatal
	// error: TLS verification then fails per request and the run still
	// completes its full duration, logging failures.
	httpClient, caWarning := buildHTTPClient(config)

	stats := NewStats()
	stats.TotalRequests = config.TotalPlanned()

	return &Executor{
		config:      config,
		manager:     manager,
		log:         log,
		stats:       stats,
		httpClient:  httpClient,
		caWarning:   caWarning,
		resultChan:  make(chan *RequestResult, config.GetMaxInFlight()*2),
		collectDone: make(chan struct{}),
		samplesBuf:  make([]*Sample, 0, 100),
		bufferSize:  100,
	}, nil
}

// CAWarning returns the configuration problem found while loading the
// CA certificate, or nil if it loaded cleanly.
func (e *Executor) CAWarning() error {
	return e.caWarning
}

// Run executes the load test to completion. Cancelling ctx stops the
// scheduling loop early; requests already launched are still awaited
// (join semantics, not abrupt cancellation).
func (e *Executor) Run(ctx context.Context) error {
	run := &Run{
		URL:         e.config.URL,
		RatePerSec:  e.config.RatePerSec,
		DurationSec: e.config.DurationSec,
		StartedAt:   time.Now(),
		Status:      "running",
	}
	if err := e.manager.CreateRun(run); err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	e.run = run

	go e.collectResults()

	group := &errgroup.Group{}
	group.SetLimit(e.config.GetMaxInFlight())

	e.testStart = time.Now()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	status := "completed"
	seq := 0

loop:
	for tick := 0; ; {
		for i := 0; i < e.config.RatePerSec; i++ {
			n := seq
			seq++

			e.statsMu.Lock()
			e.requestsSent++
			e.statsMu.Unlock()

			// Go blocks once MaxInFlight requests are in flight,
			// so a slow target applies backpressure to the
			// scheduler instead of piling up goroutines.
			group.Go(func() error {
				e.resultChan <- e.doRequest(ctx, n)
				return nil
			})
		}

		tick++
		if tick >= e.config.DurationSec {
			break
		}

		select {
		case <-ctx.Done():
			status = "cancelled"
			break loop
		case <-ticker.C:
		}
	}

	// Join: all launched requests run to completion before the run is
	// reported as finished.
	group.Wait()
	close(e.resultChan)
	<-e.collectDone

	if ctx.Err() != nil {
		status = "cancelled"
	}
	e.finalize(status)

	return nil
}

// doRequest issues one HTTP POST with an empty JSON body and a bearer
// authorization header, measuring time-to-first-byte.
func (e *Executor) doRequest(ctx context.Context, seq int) *RequestResult {
	result := &RequestResult{SequenceNum: seq}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.URL, strings.NewReader("{}"))
	if err != nil {
		result.Err = types.NewTransientError(err)
		result.Timestamp = time.Now()
		result.ElapsedMs = time.Since(e.testStart).Milliseconds()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.config.BearerToken)

	var ttfb time.Duration
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			ttfb = time.Since(start)
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := e.httpClient.Do(req)
	result.Timestamp = time.Now()
	result.ElapsedMs = time.Since(e.testStart).Milliseconds()

	if err != nil {
		result.Err = types.NewTransientError(err)
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if ttfb == 0 {
		// Trace callback did not fire (e.g. empty response); fall back
		// to total round-trip time.
		ttfb = time.Since(start)
	}

	result.StatusCode = resp.StatusCode
	result.TTFB = ttfb
	return result
}

// collectResults drains the result channel, appending to the results
// log, updating statistics, and buffering samples for batch insert.
func (e *Executor) collectResults() {
	defer close(e.collectDone)

	for result := range e.resultChan {
		isNetworkError := result.Err != nil

		if isNetworkError {
			e.log.RecordError(result.Err)
		} else {
			e.log.RecordTTFB(result.TTFB)
		}

		ttfbMs := result.TTFB.Milliseconds()

		e.statsMu.Lock()
		e.stats.AddResult(ttfbMs, isNetworkError)
		e.statsMu.Unlock()

		sample := &Sample{
			RunID:      e.run.ID,
			Timestamp:  result.Timestamp,
			ElapsedMs:  result.ElapsedMs,
			StatusCode: result.StatusCode,
			TTFBMs:     ttfbMs,
		}
		if result.Err != nil {
			sample.ErrorMessage = result.Err.Error()
		}

		e.samplesBuf = append(e.samplesBuf, sample)

		if len(e.samplesBuf) >= e.bufferSize {
			e.flushSamples()
		}
	}

	e.flushSamples()
}

// flushSamples writes buffered samples to the database
func (e *Executor) flushSamples() {
	if len(e.samplesBuf) == 0 {
		return
	}

	if err := e.manager.SaveSamplesBatch(e.samplesBuf); err != nil {
		// Log error but don't stop execution
		fmt.Fprintf(os.Stderr, "Failed to save samples: %v\n", err)
	}

	e.samplesBuf = e.samplesBuf[:0]
}

// finalize completes the run record with final statistics
func (e *Executor) finalize(status string) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	now := time.Now()
	e.run.CompletedAt = &now
	e.run.Status = status
	e.run.TotalRequestsSent = e.requestsSent
	e.run.TotalRequestsCompleted = e.stats.CompletedRequests
	e.run.TotalErrors = e.stats.ErrorCount
	e.run.AvgTTFBMs = e.stats.AvgTTFBMs()
	e.run.MinTTFBMs = e.stats.Min()
	e.run.MaxTTFBMs = e.stats.Max()
	e.run.P50TTFBMs = e.stats.P50()
	e.run.P95TTFBMs = e.stats.P95()
	e.run.P99TTFBMs = e.stats.P99()

	if err := e.manager.UpdateRun(e.run); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update run record: %v\n", err)
	}
}

// GetStats returns the current statistics (thread-safe)
func (e *Executor) GetStats() *Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	statsCopy := &Stats{
		TotalRequests:     e.stats.TotalRequests,
		CompletedRequests: e.stats.CompletedRequests,
		ErrorCount:        e.stats.ErrorCount,
		SuccessCount:      e.stats.SuccessCount,
		TotalTTFBMs:       e.stats.TotalTTFBMs,
		MinTTFBMs:         e.stats.MinTTFBMs,
		MaxTTFBMs:         e.stats.MaxTTFBMs,
		TTFBs:             make([]int64, len(e.stats.TTFBs)),
	}
	copy(statsCopy.TTFBs, e.stats.TTFBs)

	return statsCopy
}

// GetRun returns the current run record
func (e *Executor) GetRun() *Run {
	return e.run
}

// buildHTTPClient creates an HTTP client with connection pooling sized
// to the in-flight cap. The second return value reports a CA bundle
// that could not be loaded; the client is still usable, requests will
// just fail TLS verification against targets signed by that CA.
func buildHTTPClient(config *Config) (*http.Client, error) {
	maxConns := config.GetMaxInFlight()

	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     maxConns,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.GetRequestTimeout(),
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	var caWarning error
	if config.CACertPath != "" {
		caCert, err := os.ReadFile(config.CACertPath)
		if err != nil {
			caWarning = types.NewConfigurationError("failed to read CA certificate %s: %v", config.CACertPath, err)
		} else {
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				caWarning = types.NewConfigurationError("failed to parse CA certificate %s", config.CACertPath)
			} else {
				transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
			}
		}
	}

	return &http.Client{
		Timeout:   config.GetRequestTimeout(),
		Transport: transport,
	}, caWarning
}
