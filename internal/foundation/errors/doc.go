// Package errors provides foundational, type-safe error primitives used across stashhook.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (auth, not_found, network, parse, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry advice for callers (never, backoff, user)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryNetwork, "request failed").
//		WithContext("url", reqURL).
//		WithCause(originalErr).
//		Build()
package errors
