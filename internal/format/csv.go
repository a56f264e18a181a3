package format

import (
	"encoding/csv"
	"io"
	"strconv"

	"dukafeed/internal/archive"
)

// CSV writes one row per tick: timestamp_ms,ask,bid,ask_volume,bid_volume
type CSV struct{}

var csvHeader = []string{"timestamp_ms", "ask", "bid", "ask_volume", "bid_volume"}

// WriteHeader writes the column header row
func (CSV) WriteHeader(w io.Writer) error {
	return csv.NewWriter(w).WriteAll([][]string{csvHeader})
}

// WriteBatch appends one row per tick in the batch
func (CSV) WriteBatch(w io.Writer, batch archive.TickBatch) error {
	cw := csv.NewWriter(w)
	for _, t := range batch.Ticks {
		row := []string{
			strconv.FormatInt(t.Timestamp.UnixMilli(), 10),
			strconv.FormatFloat(t.Ask, 'f', -1, 64),
			strconv.FormatFloat(t.Bid, 'f', -1, 64),
			strconv.FormatFloat(float64(t.AskVolume), 'f', -1, 32),
			strconv.FormatFloat(float64(t.BidVolume), 'f', -1, 32),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFooter is a no-op for CSV; there is no trailer to write
func (CSV) WriteFooter(w io.Writer) error { return nil }
