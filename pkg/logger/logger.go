package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// EnvLogLevel overrides the level chosen by --verbose.
const EnvLogLevel = "IMGCHECK_LOG_LEVEL"

var (
	mu          sync.Mutex
	verboseMode bool
	std         = newLogger(os.Stderr)
)

// Logs go to stderr so reports written to stdout stay machine-readable.
func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
}

// SetVerbose enables or disables debug logging.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()

	verboseMode = verbose
	if verbose {
		std.SetLevel(log.DebugLevel)
	} else {
		std.SetLevel(log.InfoLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verboseMode
}

// SetLevel sets the level from a name: debug, info, warn, error.
// Unknown names fall back to info.
func SetLevel(level string) {
	l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		l = log.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()
	verboseMode = l <= log.DebugLevel
	std.SetLevel(l)
}

// ConfigureFromEnv applies IMGCHECK_LOG_LEVEL when set.
func ConfigureFromEnv() {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		SetLevel(lvl)
		Debug("log level set from environment", "level", lvl)
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

// Debugf logs a formatted debug message if verbose mode is enabled.
func Debugf(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

// Infof logs a formatted informational message.
func Infof(format string, v ...interface{}) {
	std.Infof(format, v...)
}

// Warnf logs a formatted warning.
func Warnf(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

// Errorf logs a formatted error message.
func Errorf(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

// Debug logs a message with key/value pairs.
func Debug(msg string, keyvals ...interface{}) {
	std.Debug(msg, keyvals...)
}

// Warn logs a warning with key/value pairs.
func Warn(msg string, keyvals ...interface{}) {
	std.Warn(msg, keyvals...)
}
