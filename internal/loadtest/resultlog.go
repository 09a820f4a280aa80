package loadtest

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// ResultLog appends one line per completed request to a plain-text log:
// the time-to-first-byte in seconds on success, or an error line on
// failure. Concurrent request goroutines race to record results, so a
// single goroutine owns the file handle and serializes every write.
type ResultLog struct {
	file  *os.File
	lines chan string
	done  chan struct{}
	once  sync.Once

	// writeErr holds the first write failure. Only the writer goroutine
	// touches it until done is closed, after which Close may read it.
	writeErr error
}

// OpenResultLog opens (or creates) the results log at path. With
// truncate false the log is appended to across invocations, keeping a
// historical record; with truncate true each run starts fresh.
func OpenResultLog(path string, truncate bool) (*ResultLog, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results log %s: %w", path, err)
	}

	l := &ResultLog{
		file:  file,
		lines: make(chan string, 256),
		done:  make(chan struct{}),
	}

	go l.writeLoop()

	return l, nil
}

// writeLoop drains the line channel and writes to the file. Lines are
// flushed as they arrive so a crash loses at most the buffered tail.
func (l *ResultLog) writeLoop() {
	defer close(l.done)

	w := bufio.NewWriter(l.file)
	for line := range l.lines {
		w.WriteString(line)
		if err := w.Flush(); err != nil && l.writeErr == nil {
			l.writeErr = err
		}
	}
}

// RecordTTFB records a successful request's time-to-first-byte.
func (l *ResultLog) RecordTTFB(ttfb time.Duration) {
	l.lines <- fmt.Sprintf("%.6f\n", ttfb.Seconds())
}

// RecordError records a failed request.
func (l *ResultLog) RecordError(err error) {
	l.lines <- fmt.Sprintf("error: %v\n", err)
}

// Close stops the writer goroutine, waits for pending lines to reach
// the file, and closes it. The first write failure, if any, is
// reported here. Safe to call more than once.
func (l *ResultLog) Close() error {
	var err error
	l.once.Do(func() {
		close(l.lines)
		<-l.done
		closeErr := l.file.Close()
		if l.writeErr != nil {
			err = fmt.Errorf("failed to write results log: %w", l.writeErr)
			return
		}
		err = closeErr
	})
	return err
}
