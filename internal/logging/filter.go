// Package logging holds zerolog helpers that keep secrets out of log output.
// Iteration data often carries credentials, so variable values are passed
// through SafeValue before they are logged.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces sensitive data.
const RedactedValue = "[REDACTED]"

//nolint:gochecknoglobals // compiled once
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|passwd|pwd|token)\s*[:=]\s*["']?[^\s"']{6,}["']?`),
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),
}

//nolint:gochecknoglobals // lookup table
var sensitiveNameParts = []string{
	"password", "passwd", "pwd", "secret", "token", "apikey", "api_key", "api-key", "credential", "privatekey",
}

// SensitiveDataHook flags log events whose message looks like it carries a secret.
// zerolog hooks cannot rewrite the message, so call sites still filter values.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches a known secret pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every secret-looking substring with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// IsSensitiveName reports whether a variable name suggests a secret value,
// e.g. "db.password" or "github_token".
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, part := range sensitiveNameParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// SafeValue returns a value fit for logging under the given variable name.
func SafeValue(name, value string) string {
	if value != "" && IsSensitiveName(name) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// FilteringWriter redacts secrets from everything written through it. The
// CLI wraps the rotating log file with it.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write filters p and reports the original length on success.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
