package format

import (
	"encoding/json"
	"fmt"
	"io"

	"dukafeed/internal/archive"
)

// JSON writes a top-level JSON array of tick objects, one element per
// tick, streamed across WriteBatch calls with comma separators. A JSON
// value is single-use: one WriteHeader/WriteBatch*/WriteFooter sequence
type JSON struct {
	wrote bool
}

type jsonTick struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Ask         float64 `json:"ask"`
	Bid         float64 `json:"bid"`
	AskVolume   float32 `json:"ask_volume"`
	BidVolume   float32 `json:"bid_volume"`
}

// WriteHeader opens the array
func (j *JSON) WriteHeader(w io.Writer) error {
	j.wrote = false
	_, err := io.WriteString(w, "[")
	return err
}

// WriteBatch appends one JSON object per tick, comma-separated
func (j *JSON) WriteBatch(w io.Writer, batch archive.TickBatch) error {
	for _, t := range batch.Ticks {
		if j.wrote {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		b, err := json.Marshal(jsonTick{
			TimestampMS: t.Timestamp.UnixMilli(),
			Ask:         t.Ask,
			Bid:         t.Bid,
			AskVolume:   t.AskVolume,
			BidVolume:   t.BidVolume,
		})
		if err != nil {
			return fmt.Errorf("encode tick: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		j.wrote = true
	}
	return nil
}

// WriteFooter closes the array
func (j *JSON) WriteFooter(w io.Writer) error {
	_, err := io.WriteString(w, "]")
	return err
}
