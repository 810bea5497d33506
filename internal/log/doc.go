// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (cookies, tokens, secrets)
//   - In-place redaction of onion and IP addresses in log values
//   - Configurable log levels with verbose mode support
//   - Compatibility with tornago's slog-based logging
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (passwords, tokens, keys)
//   - Onion addresses, truncated to a short correlation prefix
//   - Non-loopback IPv4 addresses
//
// Full target addresses must never reach log output; the retained prefix
// is enough to correlate log lines for one target without reconstructing
// the address. Even in verbose mode, sensitive values are masked.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("fetch failed",
//	    "target", "http://vww6ybal4bd7szmgncyruucpgfkqahzddi37ktceo3ah7ngmcopnpyyd.onion/",
//	    // Logged as "http://vww6ybal***.onion/"
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
