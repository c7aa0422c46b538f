// Package report decodes PHPStan's JSON error format.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Marker opens the JSON payload; anything before it is startup noise.
const Marker = `{"totals":`

// ErrNoPayload means the output carries no JSON report at all.
var ErrNoPayload = errors.New("no phpstan report in output")

// Totals are the aggregate counters of a run.
type Totals struct {
	Errors int `json:"errors" msgpack:"errors"`
	Files  int `json:"files" msgpack:"files"`
}

// Message is a single reported issue.
type Message struct {
	Message    string `json:"message" msgpack:"message"`
	Line       *int   `json:"line" msgpack:"line"`
	Ignorable  bool   `json:"ignorable" msgpack:"ignorable"`
	Identifier string `json:"identifier,omitempty" msgpack:"identifier,omitempty"`
	Tip        string `json:"tip,omitempty" msgpack:"tip,omitempty"`
}

// FileReport groups the messages of one file.
type FileReport struct {
	Errors   int       `json:"errors" msgpack:"errors"`
	Messages []Message `json:"messages" msgpack:"messages"`
}

// Output is the decoded report.
type Output struct {
	Totals Totals                `json:"totals" msgpack:"totals"`
	Files  map[string]FileReport `json:"files" msgpack:"files"`
	// Errors are project-level problems not tied to a file.
	Errors []string `json:"errors" msgpack:"errors"`
}

// UnmarshalJSON accepts PHP's encoding of an empty map as [] for files.
func (o *Output) UnmarshalJSON(data []byte) error {
	var aux struct {
		Totals Totals          `json:"totals"`
		Files  json.RawMessage `json:"files"`
		Errors []string        `json:"errors"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Totals = aux.Totals
	o.Errors = aux.Errors
	o.Files = map[string]FileReport{}
	if isEmptyList(aux.Files) {
		return nil
	}
	return json.Unmarshal(aux.Files, &o.Files)
}

// UnmarshalJSON reads the per-file counter from either "errors" or "error".
func (f *FileReport) UnmarshalJSON(data []byte) error {
	var aux struct {
		Errors   *int      `json:"errors"`
		Error    *int      `json:"error"`
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.Messages = aux.Messages
	switch {
	case aux.Errors != nil:
		f.Errors = *aux.Errors
	case aux.Error != nil:
		f.Errors = *aux.Error
	default:
		f.Errors = len(aux.Messages)
	}
	return nil
}

func isEmptyList(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return true
	}
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return false
	}
	return strings.TrimSpace(s[1:len(s)-1]) == ""
}

// Paths returns the reported file paths in sorted order.
func (o *Output) Paths() []string {
	if o == nil {
		return nil
	}
	paths := make([]string, 0, len(o.Files))
	for path := range o.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// MessageCount sums messages over every file.
func (o *Output) MessageCount() int {
	if o == nil {
		return 0
	}
	n := 0
	for _, f := range o.Files {
		n += len(f.Messages)
	}
	return n
}

// SyntaxError reports a payload that starts with the marker but does not decode.
type SyntaxError struct {
	Offset int64
	Raw    string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed phpstan report at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse locates the report in raw and decodes it. Trailing text after the
// JSON value is ignored.
func Parse(raw string) (*Output, error) {
	idx := strings.Index(raw, Marker)
	if idx < 0 {
		return nil, ErrNoPayload
	}
	payload := raw[idx:]
	dec := json.NewDecoder(strings.NewReader(payload))
	var out Output
	if err := dec.Decode(&out); err != nil {
		offset := dec.InputOffset()
		var se *json.SyntaxError
		if errors.As(err, &se) {
			offset = se.Offset
		}
		return nil, &SyntaxError{Offset: int64(idx) + offset, Raw: raw, Err: err}
	}
	return &out, nil
}
