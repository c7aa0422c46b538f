package diagfmt

import (
	"stanwatch/internal/diag"
	"stanwatch/internal/report"
)

// LocationJSON is a zero-based position inside a file, columns in UTF-16 units.
type LocationJSON struct {
	File     string `json:"file" msgpack:"file"`
	Line     uint32 `json:"line" msgpack:"line"`
	StartCol uint32 `json:"start_col" msgpack:"start_col"`
	EndCol   uint32 `json:"end_col" msgpack:"end_col"`
}

// DiagnosticJSON is one reported problem.
type DiagnosticJSON struct {
	Code     string       `json:"code,omitempty" msgpack:"code,omitempty"`
	Source   string       `json:"source" msgpack:"source"`
	Message  string       `json:"message" msgpack:"message"`
	Tip      string       `json:"tip,omitempty" msgpack:"tip,omitempty"`
	Location LocationJSON `json:"location" msgpack:"location"`
}

// Document is the machine-readable result of one analysis.
type Document struct {
	Target      string           `json:"target" msgpack:"target"`
	Outcome     string           `json:"outcome" msgpack:"outcome"`
	Status      string           `json:"status" msgpack:"status"`
	ExitCode    int              `json:"exit_code" msgpack:"exit_code"`
	Totals      report.Totals    `json:"totals" msgpack:"totals"`
	Diagnostics []DiagnosticJSON `json:"diagnostics" msgpack:"diagnostics"`
	// Errors are PHPStan's general (file-less) errors.
	Errors  []string `json:"errors,omitempty" msgpack:"errors,omitempty"`
	Message string   `json:"message,omitempty" msgpack:"message,omitempty"`
	Count   int      `json:"count" msgpack:"count"`
}

// DocumentInput carries what a Document is built from.
type DocumentInput struct {
	Target   string
	Outcome  string
	Status   string
	ExitCode int
	Message  string
	Report   *report.Output
	Sets     []diag.FileDiagnostics
}

// NewDocument flattens sets into document order (file, then report order).
func NewDocument(in DocumentInput, opts JSONOpts) Document {
	doc := Document{
		Target:      formatPath(in.Target, opts.PathMode, opts.BaseDir),
		Outcome:     in.Outcome,
		Status:      in.Status,
		ExitCode:    in.ExitCode,
		Message:     in.Message,
		Diagnostics: make([]DiagnosticJSON, 0),
	}
	if in.Report != nil {
		doc.Totals = in.Report.Totals
		doc.Errors = append(doc.Errors, in.Report.Errors...)
	}
	for _, set := range in.Sets {
		for _, d := range set.Diagnostics {
			doc.Diagnostics = append(doc.Diagnostics, DiagnosticJSON{
				Code:    d.Code,
				Source:  d.Source,
				Message: d.Message,
				Tip:     d.Tip,
				Location: LocationJSON{
					File:     formatPath(d.File, opts.PathMode, opts.BaseDir),
					Line:     d.Range.Line,
					StartCol: d.Range.StartCol,
					EndCol:   d.Range.EndCol,
				},
			})
		}
	}
	doc.Count = len(doc.Diagnostics)
	return doc
}
