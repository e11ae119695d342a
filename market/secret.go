package market

import "log/slog"

// APIKey wraps an upstream API key to prevent accidental logging.
// Implements fmt.Stringer, fmt.GoStringer, slog.LogValuer, and encoding.TextMarshaler.
type APIKey string

// Value returns the actual key value.
// Only use this when authenticating against the upstream API.
func (k APIKey) Value() string { return string(k) }

// String returns a redacted placeholder (fmt.Stringer).
func (k APIKey) String() string { return "[REDACTED]" }

// GoString returns redacted for %#v (fmt.GoStringer).
func (k APIKey) GoString() string { return `market.APIKey("[REDACTED]")` }

// LogValue returns a redacted value for slog (slog.LogValuer).
func (k APIKey) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// MarshalText returns redacted bytes (encoding.TextMarshaler).
// Prevents accidental JSON/YAML serialization of the key.
func (k APIKey) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// IsEmpty returns true if the key is empty.
func (k APIKey) IsEmpty() bool {
	return k == ""
}
