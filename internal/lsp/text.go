package lsp

import (
	"unicode/utf8"

	"stanwatch/internal/diag"
)

func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition maps an LSP position (UTF-16 columns) to a byte
// offset, clamped to the text.
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	line := 0
	i := 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	units := 0
	for i < len(text) && text[i] != '\n' && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return i
}

// activeLines serves line text for the last touched document only.
type activeLines struct{ s *Server }

var _ diag.LineProvider = activeLines{}

func (a activeLines) Line(path string, line int) (string, bool) {
	a.s.mu.Lock()
	uri := a.s.lastTouched
	doc, ok := a.s.openDocs[uri]
	a.s.mu.Unlock()
	if !ok || !samePath(uriToPath(uri), path) {
		return "", false
	}
	return diag.LineOf(doc.text, line)
}
