package knock

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/studiowebux/probecli/internal/types"
)

// Config represents a knock sequence configuration
type Config struct {
	Host           string
	StartPort      int           // First port in the sequence (default: 1)
	EndPort        int           // Last port in the sequence (default: 65535)
	Delay          time.Duration // Pause after every attempt, regardless of outcome (default: 100ms)
	ConnectTimeout time.Duration // Per-attempt connect timeout (default: 1s)
}

// Validate validates the knock configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return types.NewUsageError("target host is required")
	}
	if c.StartPort < 1 || c.StartPort > 65535 {
		return types.NewUsageError("start port must be between 1 and 65535")
	}
	if c.EndPort < 1 || c.EndPort > 65535 {
		return types.NewUsageError("end port must be between 1 and 65535")
	}
	if c.StartPort > c.EndPort {
		return types.NewUsageError("start port cannot be greater than end port")
	}
	if c.Delay < 0 {
		return types.NewUsageError("delay cannot be negative")
	}
	if c.ConnectTimeout <= 0 {
		return types.NewUsageError("connect timeout must be greater than 0")
	}
	return nil
}

// Result captures the outcome of a single port attempt.
type Result struct {
	Port int
	Open bool
	Err  error
}

// Knocker walks a port range on a single host, one TCP connection
// attempt at a time. The scan is strictly sequential: ascending ports,
// a bounded connect per port, then a fixed delay. Knock daemons watch
// for ports touched in order within a time window, so the ordering and
// timing of the sequence is the payload and the scan must never be
// parallelized.
type Knocker struct {
	config   *Config
	dialer   *net.Dialer
	out      io.Writer
	onResult func(Result)
}

// New creates a Knocker writing per-port status lines to out.
func New(config *Config, out io.Writer) (*Knocker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Knocker{
		config: config,
		dialer: &net.Dialer{Timeout: config.ConnectTimeout},
		out:    out,
	}, nil
}

// OnResult registers a callback invoked after every port attempt.
func (k *Knocker) OnResult(fn func(Result)) {
	k.onResult = fn
}

// Run performs the knock sequence. Refused and timed-out connections
// are the expected outcome on most ports and never abort the scan;
// only ctx cancellation stops it early.
func (k *Knocker) Run(ctx context.Context) error {
	for port := k.config.StartPort; port <= k.config.EndPort; port++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(k.out, "Knocking on port %d...\n", port)

		addr := net.JoinHostPort(k.config.Host, strconv.Itoa(port))
		conn, err := k.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
		}

		if k.onResult != nil {
			result := Result{Port: port, Open: err == nil}
			if err != nil {
				result.Err = types.NewTransientError(err)
			}
			k.onResult(result)
		}

		if k.config.Delay > 0 && port < k.config.EndPort {
			timer := time.NewTimer(k.config.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	ports := k.config.EndPort - k.config.StartPort + 1
	fmt.Fprintf(k.out, "Knock sequence complete (%d ports).\n", ports)

	return nil
}
