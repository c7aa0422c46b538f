package diag

import (
	"sort"
	"sync"
)

// Collection is an in-memory Sink keyed by file. Safe for concurrent use.
type Collection struct {
	mu    sync.RWMutex
	files map[string][]Diagnostic
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{files: make(map[string][]Diagnostic)}
}

// Replace drops everything recorded for file and stores diags.
func (c *Collection) Replace(file string, diags []Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(diags) == 0 {
		delete(c.files, file)
		return
	}
	c.files[file] = append([]Diagnostic(nil), diags...)
}

// Get returns a copy of the diagnostics stored for file.
func (c *Collection) Get(file string) []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.files[file]...)
}

// Files lists files that currently have diagnostics, sorted.
func (c *Collection) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.files))
	for f := range c.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Len counts diagnostics over all files.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, d := range c.files {
		n += len(d)
	}
	return n
}

// Sets returns the collection as sorted replacement sets.
func (c *Collection) Sets() []FileDiagnostics {
	files := c.Files()
	out := make([]FileDiagnostics, 0, len(files))
	for _, f := range files {
		out = append(out, FileDiagnostics{File: f, Diagnostics: c.Get(f)})
	}
	return out
}

// Clear removes everything.
func (c *Collection) Clear() {
	c.mu.Lock()
	c.files = make(map[string][]Diagnostic)
	c.mu.Unlock()
}

// MultiSink fans a replacement out to several sinks in order.
type MultiSink []Sink

// Replace forwards to every non-nil sink.
func (m MultiSink) Replace(file string, diags []Diagnostic) {
	for _, s := range m {
		if s != nil {
			s.Replace(file, diags)
		}
	}
}
