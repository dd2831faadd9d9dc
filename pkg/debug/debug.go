// Package debug provides conditional trace logging for drawer.
//
// Tracing is enabled by setting the DRAWER_DEBUG environment variable:
//
//	DRAWER_DEBUG=1 drawer list
//
// Messages go to stderr with a timestamp. When disabled every function is a
// no-op, so hot paths such as the search worker can call them freely.
package debug

import (
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"
)

// EnvVar is the environment variable that enables tracing.
const EnvVar = "DRAWER_DEBUG"

var (
	enabled atomic.Bool
	logger  atomic.Pointer[log.Logger]
)

func init() {
	if os.Getenv(EnvVar) != "" {
		SetOutput(os.Stderr)
		enabled.Store(true)
	}
}

// Enabled returns whether tracing is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled toggles tracing. The output defaults to stderr.
func SetEnabled(e bool) {
	if e && logger.Load() == nil {
		SetOutput(os.Stderr)
	}
	enabled.Store(e)
}

// SetOutput redirects trace output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.Store(log.New(w, "[DRAWER_DEBUG] ", log.Ltime|log.Lmicroseconds))
}

// Log writes a printf-style trace message.
func Log(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf(format, args...)
}

// LogTiming writes "name took d".
func LogTiming(name string, d time.Duration) {
	if !enabled.Load() {
		return
	}
	logger.Load().Printf("%s took %v", name, d)
}

// LogIf writes a trace message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogEnterExit logs entry and exit with timing:
//
//	defer debug.LogEnterExit("loader.live")()
func LogEnterExit(name string) func() {
	if !enabled.Load() {
		return func() {}
	}
	l := logger.Load()
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}
