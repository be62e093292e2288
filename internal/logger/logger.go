// Package logger provides leveled logging for the sync engine.
// Messages go to an injected sink (stderr by default) and into a bounded
// in-memory buffer that can be queried for recent entries, so log capture
// never requires intercepting process-wide output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// BufferSize is the number of recent entries kept for querying.
const BufferSize = 1000

// Entry is one captured log line.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr

	buf     [BufferSize]Entry
	bufLen  int
	bufNext int
)

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetOutput sets the sink for log lines.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Reset clears the buffer. Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	bufLen = 0
	bufNext = 0
}

// Tail returns up to n most recent entries, oldest first.
// A non-positive n yields an empty result.
func Tail(n int) []Entry {
	mu.RLock()
	defer mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n > bufLen {
		n = bufLen
	}
	entries := make([]Entry, 0, n)
	for i := bufLen - n; i < bufLen; i++ {
		entries = append(entries, buf[(bufNext-bufLen+i+BufferSize*2)%BufferSize])
	}
	return entries
}

func log(level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	buf[bufNext] = Entry{Time: time.Now(), Level: level, Message: msg}
	bufNext = (bufNext + 1) % BufferSize
	if bufLen < BufferSize {
		bufLen++
	}

	if level == "DEBUG" && !verbose {
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", level, msg)
}

// Debug prints a message when verbose mode is enabled.
// The entry is buffered regardless.
func Debug(format string, args ...any) { log("DEBUG", format, args...) }

// Info prints an informational message.
func Info(format string, args ...any) { log("INFO", format, args...) }

// Warn prints a warning message.
func Warn(format string, args ...any) { log("WARN", format, args...) }

// Error prints an error message.
func Error(format string, args ...any) { log("ERROR", format, args...) }
