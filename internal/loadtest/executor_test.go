package loadtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/studiowebux/probecli/internal/types"
)

// createTestManager creates a new Manager with an in-memory SQLite
// database for testing
func createTestManager(t *testing.T) *Manager {
	manager, err := NewManager(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test manager: %v", err)
	}
	return manager
}

// createTestLog creates a results log in a temp dir and returns it with
// its path
func createTestLog(t *testing.T) (*ResultLog, string) {
	path := filepath.Join(t.TempDir(), "response-times.log")
	log, err := OpenResultLog(path, false)
	if err != nil {
		t.Fatalf("Failed to open results log: %v", err)
	}
	return log, path
}

// readLogLines closes the log and returns its non-empty lines
func readLogLines(t *testing.T, log *ResultLog, path string) []string {
	if err := log.Close(); err != nil {
		t.Fatalf("Failed to close results log: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read results log: %v", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// TestExecutor_RateInvariant tests that a run with rate R and duration D
// appends R*D entries to the results log
func TestExecutor_RateInvariant(t *testing.T) {
	requestCount := int64(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:         server.URL,
		BearerToken: "test-token",
		RatePerSec:  20,
		DurationSec: 1,
		LogPath:     logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	if err := executor.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := executor.GetStats()
	if stats.CompletedRequests != 20 {
		t.Errorf("Expected 20 completed requests, got: %d", stats.CompletedRequests)
	}
	if stats.ErrorCount != 0 {
		t.Errorf("Expected 0 errors, got: %d", stats.ErrorCount)
	}
	if got := atomic.LoadInt64(&requestCount); got != 20 {
		t.Errorf("Expected server to receive 20 requests, got: %d", got)
	}

	lines := readLogLines(t, log, logPath)
	if len(lines) != 20 {
		t.Fatalf("Expected 20 log entries, got: %d", len(lines))
	}
	for i, line := range lines {
		ttfb, err := strconv.ParseFloat(line, 64)
		if err != nil {
			t.Errorf("Line %d: expected a seconds value, got %q", i, line)
			continue
		}
		if ttfb <= 0 {
			t.Errorf("Line %d: expected positive TTFB, got %f", i, ttfb)
		}
	}

	run := executor.GetRun()
	if run.Status != "completed" {
		t.Errorf("Expected status 'completed', got: %s", run.Status)
	}
	if run.TotalRequestsSent != 20 {
		t.Errorf("Expected 20 sent, got: %d", run.TotalRequestsSent)
	}

	// Verify samples were persisted
	samples, err := manager.GetSamples(run.ID)
	if err != nil {
		t.Fatalf("Failed to get samples: %v", err)
	}
	if len(samples) != 20 {
		t.Errorf("Expected 20 samples, got: %d", len(samples))
	}
}

// TestExecutor_MultiTickScheduling tests that batches are spread across
// one-second ticks
func TestExecutor_MultiTickScheduling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:         server.URL,
		BearerToken: "test-token",
		RatePerSec:  5,
		DurationSec: 2,
		LogPath:     logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	start := time.Now()
	if err := executor.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	// Two batches separated by one ticker interval
	if elapsed < 900*time.Millisecond {
		t.Errorf("Expected run to span at least one tick, took: %v", elapsed)
	}

	stats := executor.GetStats()
	if stats.CompletedRequests != 10 {
		t.Errorf("Expected 10 completed requests, got: %d", stats.CompletedRequests)
	}
}

// TestExecutor_RequestShape tests method, body, and bearer header
func TestExecutor_RequestShape(t *testing.T) {
	var gotMethod, gotAuth, gotContentType, gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotMethod.Store(r.Method)
		gotAuth.Store(r.Header.Get("Authorization"))
		gotContentType.Store(r.Header.Get("Content-Type"))
		gotBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:         server.URL,
		BearerToken: "s3cr3t",
		RatePerSec:  1,
		DurationSec: 1,
		LogPath:     logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	if err := executor.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if gotMethod.Load() != "POST" {
		t.Errorf("Expected POST, got: %v", gotMethod.Load())
	}
	if gotAuth.Load() != "Bearer s3cr3t" {
		t.Errorf("Expected bearer header, got: %v", gotAuth.Load())
	}
	if gotContentType.Load() != "application/json" {
		t.Errorf("Expected JSON content type, got: %v", gotContentType.Load())
	}
	if gotBody.Load() != "{}" {
		t.Errorf("Expected empty JSON body, got: %v", gotBody.Load())
	}
}

// TestExecutor_NetworkErrorsLoggedNotFatal tests that per-request
// failures are recorded and never abort the run
func TestExecutor_NetworkErrorsLoggedNotFatal(t *testing.T) {
	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:               "http://127.0.0.1:1", // Nothing listens here
		BearerToken:       "test-token",
		RatePerSec:        5,
		DurationSec:       1,
		RequestTimeoutSec: 1,
		LogPath:           logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	if err := executor.Run(context.Background()); err != nil {
		t.Fatalf("Expected failed requests to be non-fatal, got: %v", err)
	}

	stats := executor.GetStats()
	if stats.ErrorCount != 5 {
		t.Errorf("Expected 5 network errors, got: %d", stats.ErrorCount)
	}
	if stats.SuccessCount != 0 {
		t.Errorf("Expected 0 successes, got: %d", stats.SuccessCount)
	}

	lines := readLogLines(t, log, logPath)
	if len(lines) != 5 {
		t.Fatalf("Expected 5 log entries, got: %d", len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "error: ") {
			t.Errorf("Line %d: expected error entry, got %q", i, line)
		}
	}

	run := executor.GetRun()
	if run.Status != "completed" {
		t.Errorf("Expected the run to complete despite errors, got: %s", run.Status)
	}
	if run.TotalErrors != 5 {
		t.Errorf("Expected 5 errors on run record, got: %d", run.TotalErrors)
	}
}

// TestExecutor_UnreadableCAIsWarningNotFatal tests that a bad CA path
// surfaces as a configuration warning while the run still completes
func TestExecutor_UnreadableCAIsWarningNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:         server.URL,
		CACertPath:  filepath.Join(t.TempDir(), "missing-ca.pem"),
		BearerToken: "test-token",
		RatePerSec:  2,
		DurationSec: 1,
		LogPath:     logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	warn := executor.CAWarning()
	if warn == nil {
		t.Fatal("Expected a CA warning for a missing certificate file")
	}
	kind, ok := types.KindOf(warn)
	if !ok || kind != types.KindConfiguration {
		t.Errorf("Expected configuration error kind, got: %v (tagged=%v)", kind, ok)
	}

	if err := executor.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := executor.GetStats()
	if stats.CompletedRequests != 2 {
		t.Errorf("Expected run to complete its full duration, got %d completed", stats.CompletedRequests)
	}
}

// TestExecutor_Cancellation tests that cancelling the context stops
// scheduling but still waits for in-flight requests
func TestExecutor_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manager := createTestManager(t)
	defer manager.Close()
	log, logPath := createTestLog(t)

	config := &Config{
		URL:         server.URL,
		BearerToken: "test-token",
		RatePerSec:  5,
		DurationSec: 30,
		LogPath:     logPath,
	}

	executor, err := NewExecutor(config, manager, log)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := executor.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run := executor.GetRun()
	if run.Status != "cancelled" {
		t.Errorf("Expected status 'cancelled', got: %s", run.Status)
	}

	stats := executor.GetStats()
	if stats.CompletedRequests == 0 {
		t.Error("Expected launched requests to be awaited, got 0 completed")
	}
	if run.TotalRequestsSent >= config.TotalPlanned() {
		t.Errorf("Expected cancellation to stop scheduling, sent: %d", run.TotalRequestsSent)
	}
	// Join semantics: everything that was launched finished.
	if stats.CompletedRequests != run.TotalRequestsSent {
		t.Errorf("Expected %d completed to match %d sent", stats.CompletedRequests, run.TotalRequestsSent)
	}
}

// TestConfig_Validate tests load test configuration validation
func TestConfig_Validate(t *testing.T) {
	valid := Config{
		URL:         "https://example.com/ping",
		BearerToken: "token",
		RatePerSec:  20,
		DurationSec: 60,
		LogPath:     "response-times.log",
	}

	tests := []struct {
		name     string
		modify   func(c *Config)
		wantErr  bool
		wantKind types.ErrorKind
	}{
		{"valid", func(c *Config) {}, false, 0},
		{"missing url", func(c *Config) { c.URL = "" }, true, types.KindUsage},
		{"relative url", func(c *Config) { c.URL = "not-a-url" }, true, types.KindConfiguration},
		{"zero rate", func(c *Config) { c.RatePerSec = 0 }, true, types.KindUsage},
		{"excessive rate", func(c *Config) { c.RatePerSec = 20000 }, true, types.KindUsage},
		{"zero duration", func(c *Config) { c.DurationSec = 0 }, true, types.KindUsage},
		{"negative timeout", func(c *Config) { c.RequestTimeoutSec = -1 }, true, types.KindUsage},
		{"missing log path", func(c *Config) { c.LogPath = "" }, true, types.KindUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.modify(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				kind, ok := types.KindOf(err)
				if !ok || kind != tt.wantKind {
					t.Errorf("Expected kind %v, got: %v (tagged=%v)", tt.wantKind, kind, ok)
				}
			}
		})
	}
}

// TestConfig_Derived tests derived configuration values
func TestConfig_Derived(t *testing.T) {
	config := Config{RatePerSec: 20, DurationSec: 60}

	if got := config.GetMaxInFlight(); got != 40 {
		t.Errorf("Expected default in-flight cap of 40, got: %d", got)
	}
	config.MaxInFlight = 100
	if got := config.GetMaxInFlight(); got != 100 {
		t.Errorf("Expected explicit in-flight cap of 100, got: %d", got)
	}

	if got := config.GetRequestTimeout(); got != 10*time.Second {
		t.Errorf("Expected default timeout of 10s, got: %v", got)
	}
	config.RequestTimeoutSec = 3
	if got := config.GetRequestTimeout(); got != 3*time.Second {
		t.Errorf("Expected 3s timeout, got: %v", got)
	}

	if got := config.TotalPlanned(); got != 1200 {
		t.Errorf("Expected 1200 planned requests, got: %d", got)
	}
}
