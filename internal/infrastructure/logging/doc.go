// Package logging provides structured logging for hadeck.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection, plus default service/version attributes
// attached to every record.
//
// Components receive a *Logger (or a narrow logging interface of their
// own) rather than reaching for a package-level logger, keeping output
// attributable and testable.
package logging
