package diag

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"fortio.org/safecast"

	"stanwatch/internal/report"
)

// LineProvider returns the current text of a line (zero-based) when the
// caller has it at hand. Implementations must not block on slow I/O
// unless the caller opted into it.
type LineProvider interface {
	Line(path string, line int) (string, bool)
}

type unavailable struct{}

func (unavailable) Line(string, int) (string, bool) { return "", false }

// Unavailable never has line text; every range falls back to column 0.
var Unavailable LineProvider = unavailable{}

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

// Fallback is the single-character range at column 0 used when no text is known.
func Fallback(line int) Range {
	return Range{Line: safeUint32(line), StartCol: 0, EndCol: 1}
}

// RangeFor covers the non-whitespace content of text. Blank lines fall
// back to the single-character range.
func RangeFor(text string, line int) Range {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	lead := text[:len(text)-len(trimmed)]
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if trimmed == "" {
		return Fallback(line)
	}
	start := utf16Len(lead)
	return Range{
		Line:     safeUint32(line),
		StartCol: safeUint32(start),
		EndCol:   safeUint32(start + utf16Len(trimmed)),
	}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if len(utf16.Encode([]rune{r})) == 2 {
			n += 2
			continue
		}
		n++
	}
	return n
}

// LineIndex converts PHPStan's 1-based line (possibly absent) to a zero-based index.
func LineIndex(line *int) int {
	if line == nil || *line < 1 {
		return 0
	}
	return *line - 1
}

// Map converts a report into replacement sets, one per reported file in
// sorted path order. Files reported with no messages get an empty set so
// sinks drop their stale diagnostics.
func Map(out *report.Output, lines LineProvider) []FileDiagnostics {
	if out == nil {
		return nil
	}
	if lines == nil {
		lines = Unavailable
	}
	paths := out.Paths()
	result := make([]FileDiagnostics, 0, len(paths))
	for _, path := range paths {
		file := out.Files[path]
		diags := make([]Diagnostic, 0, len(file.Messages))
		for _, msg := range file.Messages {
			diags = append(diags, Convert(path, msg, lines))
		}
		result = append(result, FileDiagnostics{File: path, Diagnostics: diags})
	}
	return result
}

// Convert maps a single message.
func Convert(path string, msg report.Message, lines LineProvider) Diagnostic {
	line := LineIndex(msg.Line)
	rng := Fallback(line)
	if text, ok := lines.Line(path, line); ok {
		rng = RangeFor(text, line)
	}
	return Diagnostic{
		File:    path,
		Range:   rng,
		Message: Prefix + msg.Message,
		Code:    msg.Identifier,
		Source:  Source,
		Tip:     msg.Tip,
	}
}

// Publish writes every set to sink, replacing whatever it held for the file.
func Publish(sink Sink, sets []FileDiagnostics) {
	if sink == nil {
		return
	}
	for _, set := range sets {
		sink.Replace(set.File, set.Diagnostics)
	}
}
