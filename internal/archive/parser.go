package archive

import (
	"encoding/binary"
	"math"
	"time"

	perr "dukafeed/internal/platform/errors"
)

// ParseTicks decodes a decompressed hour blob into a TickBatch. raw is a
// sequence of fixed 20-byte big-endian records (see rawTick); a trailing
// partial record is Corrupt. Ticks come back in file order, which the
// archive guarantees is already non-decreasing timestamp order within
// the hour
func ParseTicks(slot HourSlot, raw []byte, decimalFactor float64) (TickBatch, error) {
	if len(raw)%rawTickSize != 0 {
		return TickBatch{}, perr.Newf(perr.KindCorrupt,
			"%s: trailing partial record (%d bytes, not a multiple of %d)", slot, len(raw), rawTickSize)
	}

	n := len(raw) / rawTickSize
	ticks := make([]Tick, 0, n)
	hourStart := slot.Start()

	for i := 0; i < n; i++ {
		rec := raw[i*rawTickSize : (i+1)*rawTickSize]
		rt := decodeRawTick(rec)

		ticks = append(ticks, Tick{
			Timestamp: hourStart.Add(time.Duration(rt.msOffset) * time.Millisecond),
			Ask:       float64(rt.askRaw) / decimalFactor,
			Bid:       float64(rt.bidRaw) / decimalFactor,
			AskVolume: rt.askVol,
			BidVolume: rt.bidVol,
		})
	}

	return TickBatch{Slot: slot, Ticks: ticks}, nil
}

// decodeRawTick decodes one 20-byte big-endian record
func decodeRawTick(rec []byte) rawTick {
	return rawTick{
		msOffset: binary.BigEndian.Uint32(rec[0:4]),
		askRaw:   binary.BigEndian.Uint32(rec[4:8]),
		bidRaw:   binary.BigEndian.Uint32(rec[8:12]),
		askVol:   math.Float32frombits(binary.BigEndian.Uint32(rec[12:16])),
		bidVol:   math.Float32frombits(binary.BigEndian.Uint32(rec[16:20])),
	}
}
