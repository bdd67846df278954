// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Version is reported in the CLI and in the User-Agent of every request.
const Version = "0.3.1"

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateDeviceID generates a new device identifier: a v4 UUID without dashes, the format the platform expects in device registrations.
func GenerateDeviceID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Redact shortens a secret for logging, keeping only a short prefix and suffix.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "[redacted]"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
