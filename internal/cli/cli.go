package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/studiowebux/probecli/internal/config"
	"github.com/studiowebux/probecli/internal/knock"
	"github.com/studiowebux/probecli/internal/loadtest"
)

// LoadOptions contains options for running the load generator
type LoadOptions struct {
	URL         string
	CACertPath  string
	BearerToken string
	RatePerSec  int
	DurationSec int
	TimeoutSec  int
	MaxInFlight int
	LogPath     string
	TruncateLog bool
}

// KnockOptions contains options for running the port knocker
type KnockOptions struct {
	Host              string
	StartPort         int
	EndPort           int
	DelayMs           int
	ConnectTimeoutSec int
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// RunLoad executes a load test against the configured target.
func RunLoad(opts LoadOptions) error {
	cfg := &loadtest.Config{
		URL:               opts.URL,
		CACertPath:        opts.CACertPath,
		BearerToken:       opts.BearerToken,
		RatePerSec:        opts.RatePerSec,
		DurationSec:       opts.DurationSec,
		RequestTimeoutSec: opts.TimeoutSec,
		MaxInFlight:       opts.MaxInFlight,
		LogPath:           opts.LogPath,
		TruncateLog:       opts.TruncateLog,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	manager, err := loadtest.NewManager(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer manager.Close()

	log, err := loadtest.OpenResultLog(cfg.LogPath, cfg.TruncateLog)
	if err != nil {
		return err
	}
	defer log.Close()

	executor, err := loadtest.NewExecutor(cfg, manager, log)
	if err != nil {
		return err
	}
	if warn := executor.CAWarning(); warn != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (requests will fail TLS verification)\n", warn)
	}

	fmt.Printf("Target: %s | Rate: %d req/s | Duration: %ds | Log: %s\n",
		cfg.URL, cfg.RatePerSec, cfg.DurationSec, cfg.LogPath)

	ctx, cancel := signalContext()
	defer cancel()

	if err := executor.Run(ctx); err != nil {
		return err
	}

	stats := executor.GetStats()
	run := executor.GetRun()

	fmt.Printf("Load test %s: %d sent, %d completed, %d errors\n",
		run.Status, run.TotalRequestsSent, run.TotalRequestsCompleted, run.TotalErrors)
	if stats.SuccessCount > 0 {
		fmt.Printf("TTFB min/avg/max: %dms / %.1fms / %dms | P50: %dms | P95: %dms | P99: %dms\n",
			stats.Min(), stats.AvgTTFBMs(), stats.Max(), stats.P50(), stats.P95(), stats.P99())
	}

	return nil
}

// RunKnock executes a sequential knock against the target host.
func RunKnock(opts KnockOptions) error {
	cfg := &knock.Config{
		Host:           opts.Host,
		StartPort:      opts.StartPort,
		EndPort:        opts.EndPort,
		Delay:          time.Duration(opts.DelayMs) * time.Millisecond,
		ConnectTimeout: time.Duration(opts.ConnectTimeoutSec) * time.Second,
	}

	knocker, err := knock.New(cfg, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return knocker.Run(ctx)
}

// RunList prints past load test runs from the results database.
func RunList(limit int) error {
	manager, err := loadtest.NewManager(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open results database: %w", err)
	}
	defer manager.Close()

	runs, err := manager.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No load test runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		fmt.Println(run)
	}

	return nil
}
