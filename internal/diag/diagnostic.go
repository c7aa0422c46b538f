package diag

// Source names the analyser on every diagnostic.
const Source = "phpstan"

// Prefix is prepended to every message so the origin stays visible in
// hosts that drop the source field.
const Prefix = "[" + Source + "] "

// Range is a zero-based, half-open span on a single line. Columns count
// UTF-16 code units, which is what LSP clients expect.
type Range struct {
	Line     uint32 `json:"line" msgpack:"line"`
	StartCol uint32 `json:"start_col" msgpack:"start_col"`
	EndCol   uint32 `json:"end_col" msgpack:"end_col"`
}

// Diagnostic is one renderable issue.
type Diagnostic struct {
	File    string `json:"file" msgpack:"file"`
	Range   Range  `json:"range" msgpack:"range"`
	Message string `json:"message" msgpack:"message"`
	Code    string `json:"code,omitempty" msgpack:"code,omitempty"`
	Source  string `json:"source" msgpack:"source"`
	// Tip is PHPStan's optional hint for the issue.
	Tip string `json:"tip,omitempty" msgpack:"tip,omitempty"`
}

// FileDiagnostics is the full replacement set for one file.
type FileDiagnostics struct {
	File        string       `json:"file" msgpack:"file"`
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// Sink receives per-file replacement sets. An empty set clears the file.
type Sink interface {
	Replace(file string, diags []Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(file string, diags []Diagnostic)

// Replace calls f.
func (f SinkFunc) Replace(file string, diags []Diagnostic) { f(file, diags) }
