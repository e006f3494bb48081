// Package logging sets up structured slog output for the indexing engine.
// Logs are JSON lines written to a size-rotated file under ~/.catindex/logs/
// and optionally mirrored to stderr.
//
// Secrets such as catalog tokens never appear in logs; use Fingerprint or
// Secret to record a stable, non-reversible identifier instead.
package logging
