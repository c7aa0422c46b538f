package diagfmt

import (
	"encoding/json"
	"io"
)

// JSON writes doc as a single JSON object.
func JSON(w io.Writer, doc Document, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}
