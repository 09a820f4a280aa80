/*
Package loadtest implements a rate-limited HTTP load generator.

# Overview

A load test issues HTTP POST requests with an empty JSON body and a
bearer-authorization header at a fixed target rate for a fixed
wall-clock duration, recording each request's time-to-first-byte
(TTFB) to a plain-text results log and to a SQLite results database.

# Architecture

The package consists of four components:

 1. Config (config.go): Configuration, validation, run/sample records
 2. Executor (executor.go): Ticker-driven scheduling and worker pool
 3. Manager (manager.go): Database operations for runs and samples
 4. ResultLog (resultlog.go): Serialized append-only results log

# Executor Design

A one-second ticker loop launches RatePerSec requests per tick for
DurationSec ticks. Requests run on a bounded pool (errgroup with
SetLimit), so slow targets apply backpressure instead of piling up
unbounded goroutines. When the loop ends the executor waits for every
in-flight request before finalizing the run: join semantics, no
cancellation of launched work.

TTFB is captured via net/http/httptrace's GotFirstResponseByte hook.

# Error Handling

Per-request failures (refused connections, timeouts, TLS errors) are
transient: they are written to the results log and counted, never
propagated. An unreadable CA bundle is reported as a configuration
warning but does not stop the run; affected requests simply fail TLS
verification and are logged.

# Results Log

One line per completed request: TTFB in seconds ("%.6f") on success,
"error: <message>" on failure. A single goroutine owns the file handle
so concurrent request completions never interleave lines. The log is
appended to across invocations unless truncation is requested.
*/
package loadtest
