package format

import (
	"io"

	"dukafeed/internal/archive"

	perr "dukafeed/internal/platform/errors"
)

// Parquet satisfies the Formatter contract but does not implement
// Parquet's row-group byte layout: that encoding is explicitly out of
// scope (only the abstract write contract is specified). A real row-group
// writer belongs in a follow-up that picks and wires a Parquet library
type Parquet struct{}

// WriteHeader always fails; see type doc
func (Parquet) WriteHeader(w io.Writer) error {
	return perr.New(perr.KindPermanent, "parquet formatter is not implemented")
}

// WriteBatch always fails; see type doc
func (Parquet) WriteBatch(w io.Writer, batch archive.TickBatch) error {
	return perr.New(perr.KindPermanent, "parquet formatter is not implemented")
}

// WriteFooter always fails; see type doc
func (Parquet) WriteFooter(w io.Writer) error {
	return perr.New(perr.KindPermanent, "parquet formatter is not implemented")
}
