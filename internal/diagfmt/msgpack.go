package diagfmt

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack writes doc in MessagePack, keyed by the same names as JSON.
func Msgpack(w io.Writer, doc Document) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(doc)
}
