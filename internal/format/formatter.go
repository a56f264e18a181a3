// Package format defines the output formatter contract: write_header,
// write_batch and write_footer, called exactly once, once per batch, and
// once respectively, in the Tick Stream's batch order. Byte-level encoding
// is an external collaborator; CSV and JSON get full implementations here
// because they're trivial stdlib wrappers, Parquet gets a stub
package format

import (
	"io"

	"dukafeed/internal/archive"
)

// Formatter serializes a tick stream to a sink. Implementations must not
// assume WriteBatch is called more than once per batch or out of order
type Formatter interface {
	WriteHeader(w io.Writer) error
	WriteBatch(w io.Writer, batch archive.TickBatch) error
	WriteFooter(w io.Writer) error
}

// ByName returns the formatter for a name ("csv", "json", "parquet"), or
// false if unknown
func ByName(name string) (Formatter, bool) {
	switch name {
	case "csv":
		return CSV{}, true
	case "json":
		return &JSON{}, true
	case "parquet":
		return Parquet{}, true
	default:
		return nil, false
	}
}
