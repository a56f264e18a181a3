package archive

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"

	perr "dukafeed/internal/platform/errors"
)

// Decompress applies the legacy LZMA stream codec (not .xz) to a fetched
// hour blob. The archive never advertises an output length up front, so
// the reader is drained into a growing buffer. Any decode failure is
// classified Corrupt: corrupt hours are logged and skipped, never retried
func Decompress(blob []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, perr.Wrap(err, perr.KindCorrupt, "lzma header")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, perr.Wrap(err, perr.KindCorrupt, "lzma decode")
	}
	return out, nil
}
