package diag

import (
	"os"
	"strings"
	"sync"
)

// LineOf returns the zero-based line of text without its terminator.
func LineOf(text string, line int) (string, bool) {
	if line < 0 {
		return "", false
	}
	for i := 0; i < line; i++ {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			return "", false
		}
		text = text[idx+1:]
	}
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSuffix(text, "\r"), true
}

// DiskLines reads line text straight from disk. Each file is read at most
// once per provider, so build a fresh provider for every run.
type DiskLines struct {
	mu    sync.Mutex
	files map[string]*string
}

// NewDiskLines returns an empty disk-backed provider.
func NewDiskLines() *DiskLines {
	return &DiskLines{files: make(map[string]*string)}
}

// Line implements LineProvider.
func (d *DiskLines) Line(path string, line int) (string, bool) {
	d.mu.Lock()
	content, seen := d.files[path]
	if !seen {
		if data, err := os.ReadFile(path); err == nil {
			s := string(data)
			content = &s
		}
		d.files[path] = content
	}
	d.mu.Unlock()
	if content == nil {
		return "", false
	}
	return LineOf(*content, line)
}
