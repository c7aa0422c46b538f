// Package diag turns PHPStan report messages into renderable diagnostics.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - File: absolute path as reported by PHPStan.
//   - Range: zero-based line plus a half-open column span in UTF-16 units.
//   - Message: PHPStan's text prefixed with "[phpstan] ".
//   - Code: PHPStan's error identifier when the tool reports one.
//
// # Ranges
//
// PHPStan reports lines only. When a LineProvider has the line's text the
// range covers its non-whitespace content, so editors underline the
// statement rather than its indentation. Without text (or for blank lines)
// the range degenerates to one character at column 0. The editor host only
// provides text for the active document; files that are not open are never
// read from disk unless the caller passes DiskLines explicitly.
//
// # Replacement
//
// Sinks receive full per-file replacement sets. Map emits a set for every
// reported file, including empty ones, so a re-run that reports nothing for
// a file clears it.
package diag
