// Package log provides slog loggers that mask secrets before they are
// written.
//
// mailspider sends user-supplied cookies, headers and proxy URLs with its
// requests, and those values can reach log records through debug output.
// SecureHandler wraps any slog.Handler and rewrites such attributes:
//   - attributes whose key names a credential (cookie, authorization,
//     headers, password, token, ...)
//   - string values shaped like a credential (bearer and basic auth, JWTs,
//     AWS keys, PEM private keys)
//   - URLs carrying a password in their user info, which are logged with
//     the password replaced
//
// Discovered email addresses and crawled URLs are the program's output and
// are never masked.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
